package events

import (
	"github.com/billie-coop/gridscope/internal/plot"
)

// EventType identifies the type of event
type EventType string

// Wildcard subscribes to every event type.
const Wildcard EventType = "*"

const (
	// Generation lifecycle
	GenerationStartedEvent EventType = "generation.started"
	GenerationStateEvent   EventType = "generation.state"

	// Results
	PlotRenderedEvent    EventType = "plot.rendered"
	PlotFailedEvent      EventType = "plot.failed"
	FacetsPreparedEvent  EventType = "facets.prepared"
	FacetsCompletedEvent EventType = "facets.completed"

	// Surfaces
	SurfaceUpdatedEvent EventType = "surface.updated"

	// UI
	StatusMessageEvent EventType = "ui.status"
)

// Event represents an event in the system
type Event struct {
	Type    EventType
	Payload interface{}
}

// GenerationPayload accompanies generation lifecycle events.
type GenerationPayload struct {
	ID    uint64
	State string
	Query plot.Query
	Facet bool
}

// PlotRenderedPayload reports a committed merged-mode plot.
type PlotRenderedPayload struct {
	GenerationID uint64
	SurfaceKey   string
	Result       plot.PlotResult
}

// PlotFailedPayload reports a user-visible failure of the primary query.
type PlotFailedPayload struct {
	GenerationID uint64
	Kind         plot.Kind
	Err          error
}

// FacetsPreparedPayload tells the UI which facet surfaces to create.
type FacetsPreparedPayload struct {
	GenerationID uint64
	Facets       []plot.Facet
	SurfaceKeys  []string
}

// FacetsCompletedPayload carries the ordered fan-out aggregate.
type FacetsCompletedPayload struct {
	GenerationID uint64
	Results      []plot.FacetResult
	Err          error // nil, *plot.PartialFailure, or the all-failed error
}

// SurfacePayload names a surface whose content changed.
type SurfacePayload struct {
	Key string
}

// StatusMessagePayload is a transient status bar message.
type StatusMessagePayload struct {
	Message string
	Type    string // "info", "warning", "error", "success"
}
