package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/clock"
	"github.com/billie-coop/gridscope/internal/metrics"
	"github.com/billie-coop/gridscope/internal/plot"
)

// Backoff is the poll schedule: Initial, then multiplied by Factor on every
// attempt, never above Max, for at most MaxAttempts status calls.
type Backoff struct {
	Initial     time.Duration
	Factor      float64
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff is 500ms growing by 1.5x up to 5s, 60 attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:     500 * time.Millisecond,
		Factor:      1.5,
		Max:         5 * time.Second,
		MaxAttempts: 60,
	}
}

// Next returns the delay following d.
func (b Backoff) Next(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * b.Factor)
	if next > b.Max || next <= 0 {
		return b.Max
	}
	return next
}

// Poller follows a deferred task until it settles.
type Poller struct {
	backend Backend
	backoff Backoff
	seq     *Sequencer
	clock   clock.Clock
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewPoller creates a poller whose currency checks use seq.
func NewPoller(backend Backend, backoff Backoff, seq *Sequencer, c clock.Clock, logger zerolog.Logger, m *metrics.Metrics) *Poller {
	return &Poller{backend: backend, backoff: backoff, seq: seq, clock: c, logger: logger, metrics: m}
}

// Poll sleeps, asks for the task status and classifies the answer until the
// task settles, the attempts run out, or generation gen is superseded.
// onAttempt, when non-nil, is called after each status call.
//
// Status calls run on a context detached from ctx's cancellation: a call in
// flight is allowed to finish and its answer is dropped if stale. Sleeps
// honour ctx so a superseded poller stops promptly.
func (p *Poller) Poll(ctx context.Context, gen uint64, h plot.TaskHandle, q plot.Query, onAttempt func(plot.TaskHandle)) (*plot.PlotResult, error) {
	status, err := p.await(ctx, gen, h, onAttempt)
	if err != nil {
		return nil, err
	}
	return settle(status, q)
}

// PollTable follows a statistics task and decodes its frame.
func (p *Poller) PollTable(ctx context.Context, gen uint64, h plot.TaskHandle, q plot.Query) (*plot.Table, error) {
	status, err := p.await(ctx, gen, h, nil)
	if err != nil {
		return nil, err
	}
	res, err := succeeded(status)
	if err != nil {
		return nil, err
	}
	tbl, err := plot.DecodeTable(res.Data)
	if err != nil {
		return nil, &plot.TransportError{Op: "status", Err: err}
	}
	tbl.Statistic = q.Statistic
	tbl.GeneratedAt = api.ParseTimestamp(res.GeneratedAt)
	return tbl, nil
}

// await polls until the task reports SUCCESS and returns that status.
func (p *Poller) await(ctx context.Context, gen uint64, h plot.TaskHandle, onAttempt func(plot.TaskHandle)) (*api.TaskStatus, error) {
	log := p.logger.With().Uint64("generation", gen).Str("task", h.TaskID).Logger()
	if h.NextDelay <= 0 {
		h.NextDelay = p.backoff.Initial
	}
	httpCtx := context.WithoutCancel(ctx)

	var lastErr error
	for h.Attempt < p.backoff.MaxAttempts {
		if !p.seq.IsCurrent(gen) {
			return nil, plot.ErrSuperseded
		}
		if err := p.clock.Sleep(ctx, h.NextDelay); err != nil {
			return nil, p.interrupted(h, err)
		}
		if !p.seq.IsCurrent(gen) {
			return nil, plot.ErrSuperseded
		}

		h.Attempt++
		status, err := p.backend.TaskStatus(httpCtx, h.TaskID)
		p.metrics.Polled()
		h.NextDelay = p.backoff.Next(h.NextDelay)
		if onAttempt != nil {
			onAttempt(h)
		}

		if !p.seq.IsCurrent(gen) {
			return nil, plot.ErrSuperseded
		}
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", h.Attempt).Msg("status check failed, retrying")
			continue
		}

		log.Debug().Str("state", status.State).Int("attempt", h.Attempt).Msg("task status")

		switch status.State {
		case api.StateSuccess:
			settled := *status
			if settled.TaskID == "" {
				settled.TaskID = h.TaskID
			}
			return &settled, nil
		case api.StateFailure:
			if status.Error != "" {
				return nil, &plot.DomainError{TaskID: h.TaskID, Message: status.Error}
			}
			return nil, &plot.TransportError{Op: "status", Err: fmt.Errorf("task %s failed without a message", h.TaskID)}
		case api.StateRevoked:
			return nil, &plot.TransportError{Op: "status", Err: fmt.Errorf("task %s was revoked", h.TaskID)}
		default:
			// PENDING, PROGRESS and anything the queue adds later
		}
	}

	if lastErr != nil {
		log.Warn().Err(lastErr).Msg("poll attempts exhausted")
	}
	return nil, &plot.TimeoutError{TaskID: h.TaskID, Attempts: h.Attempt}
}

func (p *Poller) interrupted(h plot.TaskHandle, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &plot.TimeoutError{TaskID: h.TaskID, Attempts: h.Attempt}
	}
	return plot.ErrSuperseded
}

// succeeded unwraps a SUCCESS status into its result envelope or the
// embedded computation error.
func succeeded(status *api.TaskStatus) (*api.TaskResult, error) {
	res := status.Result
	if res == nil {
		return nil, &plot.TransportError{Op: "status", Err: fmt.Errorf("task %s succeeded without a result", status.TaskID)}
	}
	if res.Failed() {
		return nil, &plot.DomainError{TaskID: status.TaskID, Message: res.Error, Detail: res.ErrorDetails}
	}
	return res, nil
}

// settle turns a SUCCESS status into a plot.
func settle(status *api.TaskStatus, q plot.Query) (*plot.PlotResult, error) {
	res, err := succeeded(status)
	if err != nil {
		return nil, err
	}

	var payload plot.Payload
	if err := json.Unmarshal(res.Data, &payload); err != nil {
		return nil, &plot.TransportError{Op: "status", Err: fmt.Errorf("failed to decode plot data: %w", err)}
	}

	out := &plot.PlotResult{
		Payload:     payload,
		GeneratedAt: api.ParseTimestamp(res.GeneratedAt),
		Statistic:   q.Statistic,
		PlotKind:    q.PlotKind,
	}
	if res.Request != nil {
		if res.Request.Statistic != "" {
			out.Statistic = res.Request.Statistic
		}
		if res.Request.PlotType != "" {
			out.PlotKind = res.Request.PlotType
		}
	}
	return out, nil
}
