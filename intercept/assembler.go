package intercept

import (
	"errors"
	"net/http"
)

// Assembler collects interceptors and builds an ordered Chain.
//
// An Assembler is not safe for concurrent use; the Chain it builds is.
type Assembler struct {
	client  string
	entries []Entry
	errs    []error
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Named sets the client name the chain attaches to each request context.
func (a *Assembler) Named(client string) *Assembler {
	a.client = client
	return a
}

// Add inserts i at the order of its category.
func (a *Assembler) Add(i Interceptor) *Assembler {
	if i == nil {
		a.errs = append(a.errs, ErrNilInterceptor)
		return a
	}
	return a.AddEntry(EntryFor(i))
}

// AddWithOrder inserts i at a raw order.
func (a *Assembler) AddWithOrder(name string, order int, i Interceptor) *Assembler {
	if i == nil {
		a.errs = append(a.errs, ErrNilInterceptor)
		return a
	}
	return a.AddEntry(EntryWithOrder(name, order, i))
}

// AddEntry inserts a prepared entry.
func (a *Assembler) AddEntry(e Entry) *Assembler {
	if e.Interceptor == nil {
		a.errs = append(a.errs, ErrNilInterceptor)
		return a
	}
	a.entries = InsertByOrder(a.entries, e)
	return a
}

// Len returns the number of entries added so far.
func (a *Assembler) Len() int {
	return len(a.entries)
}

// Build returns the assembled chain. It fails if a nil interceptor was
// added.
func (a *Assembler) Build() (*Chain, error) {
	if len(a.errs) > 0 {
		return nil, errors.Join(a.errs...)
	}
	entries := make([]Entry, len(a.entries))
	copy(entries, a.entries)
	return &Chain{client: a.client, entries: entries}, nil
}

// Chain is an immutable ordered sequence of interceptors.
type Chain struct {
	client  string
	entries []Entry
}

// Client returns the client name the chain was built for.
func (c *Chain) Client() string {
	if c == nil {
		return ""
	}
	return c.client
}

// Entries returns a copy of the chain, outermost first.
func (c *Chain) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Names returns the entry names, outermost first.
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// Keys returns the entry categories, outermost first.
func (c *Chain) Keys() []OrderingKey {
	if c == nil {
		return nil
	}
	keys := make([]OrderingKey, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.Key
	}
	return keys
}

// Len returns the number of entries.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// RoundTripper returns a round tripper that sends requests through the
// chain and then base. A nil base uses http.DefaultTransport.
func (c *Chain) RoundTripper(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	if c == nil {
		return rt
	}
	for i := len(c.entries) - 1; i >= 0; i-- {
		rt = &link{interceptor: c.entries[i].Interceptor, next: rt}
	}
	if c.client != "" {
		rt = &namedRoot{client: c.client, next: rt}
	}
	return rt
}

// namedRoot attaches the client name unless the caller already set one.
type namedRoot struct {
	client string
	next   http.RoundTripper
}

func (n *namedRoot) RoundTrip(req *http.Request) (*http.Response, error) {
	if ClientName(req.Context()) == "" {
		req = req.WithContext(WithClientName(req.Context(), n.client))
	}
	return n.next.RoundTrip(req)
}

type link struct {
	interceptor Interceptor
	next        http.RoundTripper
}

func (l *link) RoundTrip(req *http.Request) (*http.Response, error) {
	return l.interceptor.Intercept(req, l.next)
}
