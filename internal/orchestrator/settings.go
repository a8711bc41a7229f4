package orchestrator

import (
	"time"

	"github.com/billie-coop/gridscope/internal/config"
	"github.com/billie-coop/gridscope/internal/surface"
)

// Settings tunes the pipeline.
type Settings struct {
	FilterDebounce    time.Duration
	TargetDebounce    time.Duration
	Backoff           Backoff
	AttachAttempts    int
	AttachInterval    time.Duration
	FanOutConcurrency int
	FacetParameter    string
	// Deadline bounds a whole generation; 0 leaves only the attempt budget.
	Deadline time.Duration
}

// DefaultSettings mirrors config.DefaultConfig.
func DefaultSettings() Settings {
	return Settings{
		FilterDebounce:    500 * time.Millisecond,
		TargetDebounce:    200 * time.Millisecond,
		Backoff:           DefaultBackoff(),
		AttachAttempts:    surface.DefaultAttempts,
		AttachInterval:    surface.DefaultInterval,
		FanOutConcurrency: 4,
		FacetParameter:    DefaultFacetParameter,
	}
}

// SettingsFromConfig converts the user's config into pipeline settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		FilterDebounce: cfg.FilterDebounce(),
		TargetDebounce: cfg.TargetDebounce(),
		Backoff: Backoff{
			Initial:     cfg.PollInitial(),
			Factor:      cfg.PollFactor,
			Max:         cfg.PollMax(),
			MaxAttempts: cfg.PollMaxAttempts,
		},
		AttachAttempts:    cfg.AttachAttempts,
		AttachInterval:    cfg.AttachInterval(),
		FanOutConcurrency: cfg.FanOutConcurrency,
		FacetParameter:    DefaultFacetParameter,
		Deadline:          cfg.GenerationDeadline(),
	}
}
