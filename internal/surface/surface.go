// Package surface tracks the render targets a plot can be attached to.
//
// Surfaces are owned by the UI: a pane registers itself once it exists and
// reports its size on every layout pass. The pipeline never creates them; it
// waits for them (see Attacher) and binds payloads to them.
package surface

import (
	"strconv"
	"sync"

	"github.com/billie-coop/gridscope/internal/csync"
	"github.com/billie-coop/gridscope/internal/plot"
)

// MergedKey is the surface showing the single merged plot.
const MergedKey = "merged"

// FacetKey returns the surface key of the i-th facet pane.
func FacetKey(i int) string {
	return "facet/" + strconv.Itoa(i)
}

// Binding is a payload attached to a surface.
type Binding struct {
	ID           uint64
	GenerationID uint64
	Result       plot.PlotResult
}

// Surface is one render target.
type Surface struct {
	key string

	mu        sync.RWMutex
	width     int
	height    int
	binding   *Binding
	teardowns int
}

// Key returns the stable surface key.
func (s *Surface) Key() string { return s.key }

// Size returns the current extent.
func (s *Surface) Size() (width, height int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// Ready reports whether the surface has a non-zero extent.
func (s *Surface) Ready() bool {
	w, h := s.Size()
	return w > 0 && h > 0
}

// Binding returns the live binding, if any.
func (s *Surface) Binding() (Binding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.binding == nil {
		return Binding{}, false
	}
	return *s.binding, true
}

// Teardowns returns how many bindings were released from this surface.
func (s *Surface) Teardowns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teardowns
}

func (s *Surface) resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

// bind releases the previous binding before installing b, so at most one
// binding is ever live.
func (s *Surface) bind(b Binding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.binding = &b
}

func (s *Surface) clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked()
}

func (s *Surface) releaseLocked() bool {
	if s.binding == nil {
		return false
	}
	s.binding = nil
	s.teardowns++
	return true
}

// Registry holds the surfaces that currently exist.
type Registry struct {
	surfaces *csync.Map[string, *Surface]

	mu       sync.RWMutex
	onChange func(key string)
	nextID   uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{surfaces: csync.NewMap[string, *Surface]()}
}

// OnChange installs a callback invoked after a binding is installed or
// cleared. The callback must not block.
func (r *Registry) OnChange(f func(key string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = f
}

// Register makes the surface for key available, creating it if needed, and
// records its size. Registering an existing key keeps its binding.
func (r *Registry) Register(key string, width, height int) *Surface {
	s := r.surfaces.Compute(key, func(cur *Surface, exists bool) (*Surface, bool) {
		if exists {
			return cur, true
		}
		return &Surface{key: key}, true
	})
	s.resize(width, height)
	return s
}

// Resize updates the extent of an existing surface.
func (r *Registry) Resize(key string, width, height int) bool {
	s, ok := r.surfaces.Get(key)
	if !ok {
		return false
	}
	s.resize(width, height)
	return true
}

// Remove tears down the surface's binding and forgets it.
func (r *Registry) Remove(key string) {
	s, ok := r.surfaces.Get(key)
	if !ok {
		return
	}
	r.surfaces.Delete(key)
	if s.clear() {
		r.notify(key)
	}
}

// Get returns the surface for key.
func (r *Registry) Get(key string) (*Surface, bool) {
	return r.surfaces.Get(key)
}

// Keys lists the registered surface keys.
func (r *Registry) Keys() []string {
	return r.surfaces.Keys()
}

// Clear releases the binding at key without removing the surface.
func (r *Registry) Clear(key string) {
	if s, ok := r.surfaces.Get(key); ok && s.clear() {
		r.notify(key)
	}
}

func (r *Registry) bind(s *Surface, generation uint64, result plot.PlotResult) Binding {
	r.mu.Lock()
	r.nextID++
	b := Binding{ID: r.nextID, GenerationID: generation, Result: result}
	r.mu.Unlock()

	s.bind(b)
	r.notify(s.key)
	return b
}

func (r *Registry) notify(key string) {
	r.mu.RLock()
	f := r.onChange
	r.mu.RUnlock()
	if f != nil {
		f(key)
	}
}
