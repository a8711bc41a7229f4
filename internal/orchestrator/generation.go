package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/billie-coop/gridscope/internal/plot"
)

// GenerationState is where a generation is in its lifecycle.
type GenerationState string

const (
	StateIdle       GenerationState = "idle"
	StateDebouncing GenerationState = "debouncing"
	StateSubmitted  GenerationState = "submitted"
	StatePolling    GenerationState = "polling"
	StateSettled    GenerationState = "settled"
	StateAttaching  GenerationState = "attaching"
	StateDone       GenerationState = "done"
	StateFailed     GenerationState = "failed"
	StateTimedOut   GenerationState = "timed_out"
	StateSuperseded GenerationState = "superseded"
)

// Terminal reports whether no further transition can happen.
func (s GenerationState) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateTimedOut, StateSuperseded:
		return true
	}
	return false
}

// Generation is one attempt to turn a query into a plot.
type Generation struct {
	ID          uint64
	Query       plot.Query
	Facet       bool
	State       GenerationState
	CacheHit    bool
	Polls       int
	Err         error
	StartedAt   time.Time
	CompletedAt *time.Time
}

// DefaultHistorySize is how many generations History keeps.
const DefaultHistorySize = 50

// History is a bounded, ordered record of recent generations.
type History struct {
	mu    sync.RWMutex
	gens  map[uint64]*Generation
	order []uint64
	limit int
}

// NewHistory creates a history keeping at most limit generations.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{
		gens:  make(map[uint64]*Generation),
		order: make([]uint64, 0, limit),
		limit: limit,
	}
}

// Add records a new generation in StateSubmitted.
func (h *History) Add(id uint64, q plot.Query, facet bool, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.gens[id] = &Generation{
		ID:        id,
		Query:     q,
		Facet:     facet,
		State:     StateSubmitted,
		StartedAt: now,
	}
	h.order = append(h.order, id)

	for len(h.order) > h.limit {
		delete(h.gens, h.order[0])
		h.order = h.order[1:]
	}
}

// UpdateState moves a generation to state. Terminal states are final.
func (h *History) UpdateState(id uint64, state GenerationState, now time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	gen, exists := h.gens[id]
	if !exists {
		return fmt.Errorf("generation not found: %d", id)
	}
	if gen.State.Terminal() {
		return fmt.Errorf("generation %d already %s", id, gen.State)
	}

	gen.State = state
	if state.Terminal() {
		gen.CompletedAt = &now
	}
	return nil
}

// Update applies f to a generation's record.
func (h *History) Update(id uint64, f func(*Generation)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if gen, ok := h.gens[id]; ok {
		f(gen)
	}
}

// Get returns a copy of a generation's record.
func (h *History) Get(id uint64) (Generation, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	gen, ok := h.gens[id]
	if !ok {
		return Generation{}, false
	}
	return *gen, true
}

// All returns copies of every recorded generation, oldest first.
func (h *History) All() []Generation {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Generation, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, *h.gens[id])
	}
	return out
}

// Summary returns a one-line count of outcomes.
func (h *History) Summary() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var active, done, failed, superseded int
	for _, gen := range h.gens {
		switch gen.State {
		case StateDone:
			done++
		case StateFailed, StateTimedOut:
			failed++
		case StateSuperseded:
			superseded++
		default:
			active++
		}
	}

	return fmt.Sprintf("Generations: %d active, %d done, %d failed, %d superseded",
		active, done, failed, superseded)
}
