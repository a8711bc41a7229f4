package surface

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/billie-coop/gridscope/internal/clock"
	"github.com/billie-coop/gridscope/internal/metrics"
	"github.com/billie-coop/gridscope/internal/plot"
)

// Default readiness budget: 20 checks, 50ms apart.
const (
	DefaultAttempts = 20
	DefaultInterval = 50 * time.Millisecond
)

// Guard runs effect only if the caller's generation is still current and
// reports whether it ran.
type Guard func(effect func()) bool

// Attacher binds results to surfaces once they exist and have a size.
type Attacher struct {
	registry *Registry
	clock    clock.Clock
	attempts int
	interval time.Duration
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// AttacherOption configures an Attacher.
type AttacherOption func(*Attacher)

// WithBudget sets the number of readiness checks per gate and their spacing.
func WithBudget(attempts int, interval time.Duration) AttacherOption {
	return func(a *Attacher) {
		if attempts > 0 {
			a.attempts = attempts
		}
		if interval > 0 {
			a.interval = interval
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) AttacherOption {
	return func(a *Attacher) { a.clock = c }
}

// WithLogger sets the logger used for RenderErrors.
func WithLogger(l zerolog.Logger) AttacherOption {
	return func(a *Attacher) { a.logger = l }
}

// WithMetrics records attach failures.
func WithMetrics(m *metrics.Metrics) AttacherOption {
	return func(a *Attacher) { a.metrics = m }
}

// NewAttacher creates an attacher over registry.
func NewAttacher(registry *Registry, opts ...AttacherOption) *Attacher {
	a := &Attacher{
		registry: registry,
		clock:    clock.Real{},
		attempts: DefaultAttempts,
		interval: DefaultInterval,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Attach waits for the surface at key to exist and then to report a
// non-zero extent, each gate with its own retry budget, and binds result to
// it through guard. A surface that never becomes ready, within the budget or
// before ctx's deadline, yields a *plot.RenderError, which is logged here and
// should not be shown to the user. A stale guard or cancelled ctx yields
// plot.ErrSuperseded.
func (a *Attacher) Attach(ctx context.Context, key string, generation uint64, result plot.PlotResult, guard Guard) error {
	s, err := a.await(ctx, key, "surface never appeared", func() (*Surface, bool) {
		return a.registry.Get(key)
	})
	if err != nil {
		return a.failed(key, generation, err)
	}

	if _, err := a.await(ctx, key, "surface never reported a size", func() (*Surface, bool) {
		return s, s.Ready()
	}); err != nil {
		return a.failed(key, generation, err)
	}

	committed := guard(func() {
		a.registry.bind(s, generation, result)
	})
	if !committed {
		return plot.ErrSuperseded
	}
	return nil
}

func (a *Attacher) await(ctx context.Context, key, reason string, check func() (*Surface, bool)) (*Surface, error) {
	for i := 0; i < a.attempts; i++ {
		if s, ok := check(); ok {
			return s, nil
		}
		if err := a.clock.Sleep(ctx, a.interval); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, &plot.RenderError{SurfaceKey: key, Reason: reason + " before the generation deadline"}
			}
			return nil, plot.ErrSuperseded
		}
	}
	if s, ok := check(); ok {
		return s, nil
	}
	return nil, &plot.RenderError{SurfaceKey: key, Reason: fmt.Sprintf("%s after %d checks", reason, a.attempts)}
}

func (a *Attacher) failed(key string, generation uint64, err error) error {
	if errors.Is(err, plot.ErrSuperseded) {
		return err
	}
	a.metrics.AttachFailed()
	a.logger.Warn().
		Err(err).
		Str("surface", key).
		Uint64("generation", generation).
		Msg("dropping plot, surface not ready")
	return err
}
