package fileset

import (
	"path/filepath"
	"sync"
)

// Registry shares one FileSet per dataset within a process, so every
// reader and writer of the same files competes for the same tickets.
type Registry struct {
	mu   sync.Mutex
	sets map[string]*registered
}

type registered struct {
	set  *FileSet
	refs int
}

// DefaultRegistry is the process-wide registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry. Separate registries do not see
// each other's tickets.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[string]*registered)}
}

// Get returns the FileSet keyed by the absolute data path of paths,
// creating it with cfg on first use. Later calls ignore cfg. Every Get
// must be paired with a Release.
func (r *Registry) Get(paths Paths, cfg Config) *FileSet {
	key := registryKey(paths)

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sets[key]; ok {
		e.refs++
		return e.set
	}
	s := New(paths, cfg)
	r.sets[key] = &registered{set: s, refs: 1}
	return s
}

// Release drops one reference to the FileSet for paths. The last release
// removes and closes the set; tickets still held at that point are logged
// and counted in the result.
func (r *Registry) Release(paths Paths) int {
	key := registryKey(paths)

	r.mu.Lock()
	e, ok := r.sets[key]
	if !ok {
		r.mu.Unlock()
		return 0
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return 0
	}
	delete(r.sets, key)
	r.mu.Unlock()

	return e.set.Close()
}

// Len returns the number of registered sets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets)
}

func registryKey(paths Paths) string {
	p := paths[KindData]
	if p == "" {
		p = paths[KindIndex]
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
