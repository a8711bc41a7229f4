package orchestrator

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/metrics"
	"github.com/billie-coop/gridscope/internal/plot"
)

// Backend is the subset of the API client the pipeline needs.
type Backend interface {
	SubmitPlot(ctx context.Context, q plot.Query) (*api.SubmitResponse, error)
	SubmitStatistics(ctx context.Context, q plot.Query) (*api.SubmitResponse, error)
	TaskStatus(ctx context.Context, taskID string) (*api.TaskStatus, error)
}

// Submission is the answer to Submit: exactly one of Result and Handle is set.
type Submission struct {
	Result *plot.PlotResult
	Handle *plot.TaskHandle
}

// Requester submits queries. It never retries.
type Requester struct {
	backend Backend
	backoff Backoff
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewRequester creates a requester. backoff seeds the first poll delay of
// returned handles.
func NewRequester(backend Backend, backoff Backoff, logger zerolog.Logger, m *metrics.Metrics) *Requester {
	return &Requester{backend: backend, backoff: backoff, logger: logger, metrics: m}
}

// Submit posts q. A cache hit comes back as a finished result; anything else
// as a handle to poll. Network and HTTP failures become *plot.TransportError.
func (r *Requester) Submit(ctx context.Context, q plot.Query) (Submission, error) {
	resp, err := r.backend.SubmitPlot(ctx, q)
	if err != nil {
		return Submission{}, transportError("submit", err)
	}

	if resp.Immediate() {
		r.metrics.CacheHit()
		r.logger.Debug().Str("query", q.Key()).Msg("cache hit")
		return Submission{Result: &plot.PlotResult{
			Payload:     *resp.PlotData,
			CacheHit:    true,
			GeneratedAt: api.ParseTimestamp(resp.GeneratedAt),
			Statistic:   q.Statistic,
			PlotKind:    q.PlotKind,
		}}, nil
	}

	if resp.TaskID == "" {
		return Submission{}, &plot.TransportError{Op: "submit", Err: errors.New("reply has neither plot_data nor task_id")}
	}

	r.logger.Debug().Str("query", q.Key()).Str("task", resp.TaskID).Msg("task queued")
	return Submission{Handle: &plot.TaskHandle{
		TaskID:    resp.TaskID,
		NextDelay: r.backoff.Initial,
	}}, nil
}

// SubmitStatistics queues a raw statistics task and returns its handle.
func (r *Requester) SubmitStatistics(ctx context.Context, q plot.Query) (plot.TaskHandle, error) {
	resp, err := r.backend.SubmitStatistics(ctx, q)
	if err != nil {
		return plot.TaskHandle{}, transportError("statistics", err)
	}
	if resp.TaskID == "" {
		return plot.TaskHandle{}, &plot.TransportError{Op: "statistics", Err: errors.New("reply has no task_id")}
	}
	r.logger.Debug().Str("query", q.Key()).Str("task", resp.TaskID).Msg("statistics queued")
	return plot.TaskHandle{TaskID: resp.TaskID, NextDelay: r.backoff.Initial}, nil
}

func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	terr := &plot.TransportError{Op: op, Err: err}
	var se *api.StatusError
	if errors.As(err, &se) {
		terr.StatusCode = se.Code
	}
	return terr
}
