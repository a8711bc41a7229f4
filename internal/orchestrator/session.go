package orchestrator

import (
	"maps"
	"slices"

	"github.com/billie-coop/gridscope/internal/plot"
)

// Session is the user's current selection. The orchestrator owns one and
// mutates it only in response to input events.
type Session struct {
	Targets   []string
	Statistic string
	PlotKind  string
	Filters   map[string]any
	FacetMode bool
	Facets    []plot.Facet
}

// DefaultSession starts on the energy balance area chart.
func DefaultSession() Session {
	return Session{
		Statistic: "energy_balance",
		PlotKind:  "area",
		Filters:   map[string]any{},
	}
}

// Query builds the merged query for the current selection.
func (s Session) Query() plot.Query {
	return plot.Query{
		TargetIDs:  slices.Clone(s.Targets),
		Statistic:  s.Statistic,
		PlotKind:   s.PlotKind,
		Parameters: maps.Clone(s.Filters),
	}
}

// Primary is the first selected dataset, or "" when nothing is selected.
func (s Session) Primary() string {
	return primary(s.Targets)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s Session) Clone() Session {
	out := s
	out.Targets = slices.Clone(s.Targets)
	out.Filters = maps.Clone(s.Filters)
	out.Facets = slices.Clone(s.Facets)
	return out
}
