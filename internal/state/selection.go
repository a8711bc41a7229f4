package state

import (
	"maps"
	"path/filepath"
	"slices"
	"time"
)

// SelectionFile is the state file name inside the .gridscope directory.
const SelectionFile = "selection.json"

// Selection is the plot selection restored on the next start.
type Selection struct {
	Targets   []string       `json:"targets"`
	Statistic string         `json:"statistic"`
	PlotKind  string         `json:"plot_kind"`
	Filters   map[string]any `json:"filters,omitempty"`
	FacetMode bool           `json:"facet_mode"`
	SavedAt   time.Time      `json:"saved_at"`
}

// SelectionStore persists the last selection.
type SelectionStore struct {
	*Store[*Selection]
}

// NewSelectionStore creates a store under dir.
func NewSelectionStore(dir string) *SelectionStore {
	return &SelectionStore{
		Store: NewStore(filepath.Join(dir, SelectionFile), func() *Selection {
			return &Selection{}
		}),
	}
}

// Last returns a copy of the saved selection and whether one was saved.
func (s *SelectionStore) Last() (Selection, bool) {
	sel := s.Get()
	if sel == nil || sel.Statistic == "" {
		return Selection{}, false
	}
	out := *sel
	out.Targets = slices.Clone(sel.Targets)
	out.Filters = maps.Clone(sel.Filters)
	return out, true
}

// Save records sel as the last selection.
func (s *SelectionStore) Save(sel Selection, now time.Time) error {
	return s.Update(func(*Selection) *Selection {
		next := sel
		next.Targets = slices.Clone(sel.Targets)
		next.Filters = maps.Clone(sel.Filters)
		next.SavedAt = now
		return &next
	})
}
