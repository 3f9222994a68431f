package avatar

import (
	"fmt"
	"sort"
	"sync"
)

// Entry pairs a descriptor with its live adapter.
type Entry struct {
	Descriptor Descriptor
	Provider   Provider
}

// Registry is a thread-safe set of registered providers. It supports
// wholesale replacement on configuration reload; in-flight requests keep
// using the entries they already resolved.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a provider under its descriptor name, replacing any
// previous registration with the same name.
func (r *Registry) Register(desc Descriptor, p Provider) error {
	if desc.Name == "" {
		return fmt.Errorf("provider descriptor missing name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[desc.Name] = &Entry{Descriptor: desc, Provider: p}
	return nil
}

// Get retrieves an entry by name.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// List returns all entries sorted by name.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Descriptor.Name < out[j].Descriptor.Name })
	return out
}

// Names returns the sorted names of all registered providers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Replace swaps the full entry set, reconciling by name. It returns the
// names that survived the reload so callers can carry health history over.
func (r *Registry) Replace(entries []*Entry) []string {
	next := make(map[string]*Entry, len(entries))
	for _, e := range entries {
		next[e.Descriptor.Name] = e
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]string, 0, len(next))
	for name := range next {
		if _, ok := r.entries[name]; ok {
			kept = append(kept, name)
		}
	}
	r.entries = next
	sort.Strings(kept)
	return kept
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
