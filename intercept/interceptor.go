package intercept

import (
	"fmt"
	"net/http"
)

// Interceptor wraps a single round trip. It may change the request before
// handing it to next and may inspect or replace the response after.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Requests: req must not be modified; clone it first.
// - Errors: a non-nil error means the response is nil.
type Interceptor interface {
	Intercept(req *http.Request, next http.RoundTripper) (*http.Response, error)
}

// InterceptorFunc adapts a function to Interceptor. It belongs to KeyDefault.
type InterceptorFunc func(req *http.Request, next http.RoundTripper) (*http.Response, error)

// Intercept calls f.
func (f InterceptorFunc) Intercept(req *http.Request, next http.RoundTripper) (*http.Response, error) {
	return f(req, next)
}

// Entry is an interceptor placed in a chain.
type Entry struct {
	// Key is the interceptor's category.
	Key OrderingKey

	// Order is the sort position; for keyed entries it equals int(Key).
	Order int

	// Name identifies the entry in Chain.Names.
	Name string

	Interceptor Interceptor
}

// EntryFor returns the entry of i at the order of its category.
func EntryFor(i Interceptor) Entry {
	key := KeyOf(i)
	return Entry{Key: key, Order: int(key), Name: nameOf(i, key), Interceptor: i}
}

// EntryWithOrder returns an entry with a raw order. The key is the
// category with that value, or KeyDefault when none matches.
func EntryWithOrder(name string, order int, i Interceptor) Entry {
	key := OrderingKey(order)
	if !key.Valid() {
		key = KeyDefault
	}
	if name == "" {
		name = nameOf(i, key)
	}
	return Entry{Key: key, Order: order, Name: name, Interceptor: i}
}

type named interface {
	Name() string
}

func nameOf(i Interceptor, key OrderingKey) string {
	if n, ok := i.(named); ok && n.Name() != "" {
		return n.Name()
	}
	if key != KeyDefault {
		return key.String()
	}
	return fmt.Sprintf("%T", i)
}

// InsertByOrder inserts e before the first entry whose order is greater
// than e.Order, or appends it. Entries of equal order keep the order in
// which they were inserted. The returned slice may share chain's backing
// array.
func InsertByOrder(chain []Entry, e Entry) []Entry {
	for i, cur := range chain {
		if cur.Order > e.Order {
			chain = append(chain, Entry{})
			copy(chain[i+1:], chain[i:])
			chain[i] = e
			return chain
		}
	}
	return append(chain, e)
}
