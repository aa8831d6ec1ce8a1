package backend

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is an immutable arena of descriptors keyed by id, plus the alias
// table that maps user-facing names onto canonical ids.
type Registry struct {
	byID    map[string]Descriptor
	ordered []Descriptor
	aliases map[string]string
}

// NewRegistry validates descriptors and aliases and builds a registry.
func NewRegistry(descriptors []Descriptor, aliases map[string]string) (*Registry, error) {
	r := &Registry{
		byID:    make(map[string]Descriptor, len(descriptors)),
		aliases: make(map[string]string, len(aliases)),
	}

	for _, d := range descriptors {
		if err := d.validate(); err != nil {
			return nil, err
		}
		id := strings.ToLower(d.ID)
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("duplicate backend id %q", d.ID)
		}
		d.ID = id
		r.byID[id] = d
		r.ordered = append(r.ordered, d)
	}

	sort.SliceStable(r.ordered, func(i, j int) bool {
		if r.ordered[i].Priority == r.ordered[j].Priority {
			return r.ordered[i].ID < r.ordered[j].ID
		}
		return r.ordered[i].Priority < r.ordered[j].Priority
	})

	for alias, target := range aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		target = strings.ToLower(strings.TrimSpace(target))
		if _, ok := r.byID[target]; !ok {
			return nil, fmt.Errorf("alias %q points at unknown backend %q", alias, target)
		}
		if _, clash := r.byID[alias]; clash && alias != target {
			return nil, fmt.Errorf("alias %q shadows a backend id", alias)
		}
		r.aliases[alias] = target
	}

	return r, nil
}

// Get returns the descriptor for a canonical id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	d, ok := r.byID[strings.ToLower(id)]
	return d, ok
}

// Resolve maps a user-facing token (id or alias) to a canonical id.
func (r *Registry) Resolve(token string) (string, bool) {
	if r == nil {
		return "", false
	}
	token = strings.ToLower(strings.TrimSpace(token))
	token = strings.Trim(token, ",:;.!?\"'")
	if token == "" {
		return "", false
	}
	if _, ok := r.byID[token]; ok {
		return token, true
	}
	if id, ok := r.aliases[token]; ok {
		return id, true
	}
	return "", false
}

// All returns every descriptor ordered by priority, then id.
func (r *Registry) All() []Descriptor {
	if r == nil {
		return nil
	}
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// IDs returns every canonical id in priority order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.ordered))
	for _, d := range r.ordered {
		ids = append(ids, d.ID)
	}
	return ids
}

// ByCategory returns descriptors in a category, in priority order.
func (r *Registry) ByCategory(category string) []Descriptor {
	var out []Descriptor
	for _, d := range r.All() {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

// FirstByTransport returns the highest-priority backend using transport t.
// When offlineOnly is set, only offline-capable backends qualify.
func (r *Registry) FirstByTransport(t Transport, offlineOnly bool) (Descriptor, bool) {
	for _, d := range r.All() {
		if d.Transport != t {
			continue
		}
		if offlineOnly && !d.OfflineCapable {
			continue
		}
		return d, true
	}
	return Descriptor{}, false
}

// Aliases returns a copy of the alias table.
func (r *Registry) Aliases() map[string]string {
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// AliasesFor returns the sorted aliases that resolve to id.
func (r *Registry) AliasesFor(id string) []string {
	var out []string
	for alias, target := range r.aliases {
		if target == id {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// Providers returns the sorted set of provider names referenced by backends.
func (r *Registry) Providers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range r.ordered {
		if !seen[d.Provider] {
			seen[d.Provider] = true
			out = append(out, d.Provider)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ordered)
}
