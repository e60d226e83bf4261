package resilience

import (
	"errors"
	"sort"
)

// layer is the source of a definition in a Builder.
type layer int

const (
	layerUser layer = iota
	layerPreset
)

type entry struct {
	def PolicyDefinition
	seq int
}

// Builder collects policy definitions from a preset and from explicit user
// configuration and merges them into a PolicySet.
//
// Definitions added while a preset configures the builder form the preset
// layer; all other definitions form the user layer. On Build, a user
// definition replaces the preset definition with the same name, preset-only
// definitions are kept and user-only definitions are added. Within a layer
// the last definition added for a name wins.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	mode   layer
	seq    int
	preset map[string]entry
	user   map[string]entry

	built *PolicySet
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		preset: make(map[string]entry),
		user:   make(map[string]entry),
	}
}

// Add records def in the current layer.
func (b *Builder) Add(def PolicyDefinition) *Builder {
	b.seq++
	e := entry{def: def, seq: b.seq}
	if b.mode == layerPreset {
		b.preset[def.Name()] = e
	} else {
		b.user[def.Name()] = e
	}
	b.built = nil
	return b
}

// Apply runs p against the builder as the preset layer.
func (b *Builder) Apply(p *Preset) *Builder {
	p.Configure(b)
	return b
}

// Len returns the number of definitions the merged set will hold.
func (b *Builder) Len() int {
	n := len(b.user)
	for name := range b.preset {
		if _, ok := b.user[name]; !ok {
			n++
		}
	}
	return n
}

// Build validates and merges the collected definitions. Calling Build again
// without adding definitions returns the same set.
func (b *Builder) Build() (*PolicySet, error) {
	if b.built != nil {
		return b.built, nil
	}

	merged := make(map[string]entry, len(b.preset)+len(b.user))
	for name, e := range b.preset {
		merged[name] = e
	}
	for name, e := range b.user {
		merged[name] = e
	}

	entries := make([]entry, 0, len(merged))
	var errs []error
	for _, e := range merged {
		if err := e.def.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, e)
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
		return nil, errors.Join(errs...)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].def.Order != entries[j].def.Order {
			return entries[i].def.Order < entries[j].def.Order
		}
		return entries[i].seq < entries[j].seq
	})

	defs := make([]PolicyDefinition, len(entries))
	for i, e := range entries {
		defs[i] = e.def
	}
	b.built = &PolicySet{defs: defs}
	return b.built, nil
}

// PolicySet is an immutable, merged and ordered set of definitions, at most
// one per kind (or per name for custom policies).
type PolicySet struct {
	defs []PolicyDefinition
}

// Definitions returns the definitions in nesting order, innermost first.
func (s *PolicySet) Definitions() []PolicyDefinition {
	if s == nil {
		return nil
	}
	out := make([]PolicyDefinition, len(s.defs))
	copy(out, s.defs)
	return out
}

// Get returns the definition of kind. For KindCustom it returns the first
// custom definition; use Lookup for a specific name.
func (s *PolicySet) Get(kind Kind) (PolicyDefinition, bool) {
	if s == nil {
		return PolicyDefinition{}, false
	}
	for _, d := range s.defs {
		if d.Kind == kind {
			return d, true
		}
	}
	return PolicyDefinition{}, false
}

// Lookup returns the definition with the given merge name.
func (s *PolicySet) Lookup(name string) (PolicyDefinition, bool) {
	if s == nil {
		return PolicyDefinition{}, false
	}
	for _, d := range s.defs {
		if d.Name() == name {
			return d, true
		}
	}
	return PolicyDefinition{}, false
}

// Len returns the number of definitions.
func (s *PolicySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.defs)
}
