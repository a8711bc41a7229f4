package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/clock"
	"github.com/billie-coop/gridscope/internal/plot"
)

func sampleQuery() plot.Query {
	return plot.Query{TargetIDs: []string{"de-2030"}, Statistic: "energy_balance", PlotKind: "area"}
}

func TestBackoffMonotonicAndCapped(t *testing.T) {
	b := DefaultBackoff()
	d := b.Initial
	for i := 0; i < 20; i++ {
		next := b.Next(d)
		if next < d {
			t.Fatalf("delay decreased at step %d: %v -> %v", i, d, next)
		}
		if next > b.Max {
			t.Fatalf("delay %v exceeds max %v", next, b.Max)
		}
		d = next
	}
	if d != b.Max {
		t.Errorf("expected delay to reach the cap, got %v", d)
	}
}

func newTestPoller(backend Backend, seq *Sequencer) (*Poller, *clock.Fake) {
	c := clock.NewFake(time.Unix(0, 0))
	return NewPoller(backend, testBackoff(), seq, c, zerolog.Nop(), nil), c
}

func TestPollTerminatesWithinMaxAttempts(t *testing.T) {
	backend := &fakeBackend{replies: []statusReply{pending()}}
	seq := &Sequencer{}
	gen := seq.Next()
	p, c := newTestPoller(backend, seq)

	_, err := p.Poll(context.Background(), gen, plot.TaskHandle{TaskID: "task-1"}, sampleQuery(), nil)

	var terr *plot.TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if terr.Attempts != 6 {
		t.Errorf("expected 6 attempts, got %d", terr.Attempts)
	}
	if _, calls := backend.calls(); calls != 6 {
		t.Errorf("expected 6 status calls, got %d", calls)
	}

	want := []time.Duration{
		500 * time.Millisecond,
		750 * time.Millisecond,
		1125 * time.Millisecond,
		1687500 * time.Microsecond,
		2531250 * time.Microsecond,
		3796875 * time.Microsecond,
	}
	if diff := cmp.Diff(want, c.Sleeps()); diff != "" {
		t.Errorf("sleep schedule mismatch (-want +got):\n%s", diff)
	}
}

func TestPollClassification(t *testing.T) {
	detail := &plot.Diagnostic{
		Parameters: map[string]any{"bus_carrier": "AC"},
		StackTrace: "Traceback (most recent call last): ...",
	}

	tests := []struct {
		name      string
		replies   []statusReply
		wantKind  plot.Kind
		wantCalls int
		check     func(t *testing.T, res *plot.PlotResult, err error)
	}{
		{
			name:      "pending then success",
			replies:   []statusReply{pending(), {status: &api.TaskStatus{State: api.StateProgress}}, success(sampleFigure)},
			wantKind:  plot.KindNone,
			wantCalls: 3,
			check: func(t *testing.T, res *plot.PlotResult, _ error) {
				if res.Payload.Empty() || res.CacheHit {
					t.Errorf("unexpected result %+v", res)
				}
				if res.Statistic != "energy_balance" || res.PlotKind != "area" {
					t.Errorf("result should carry the query's statistic and kind, got %s/%s", res.Statistic, res.PlotKind)
				}
			},
		},
		{
			name: "success with embedded error",
			replies: []statusReply{{status: &api.TaskStatus{
				TaskID: "task-1",
				State:  api.StateSuccess,
				Result: &api.TaskResult{Status: "error", Error: "carrier not found", ErrorDetails: detail},
			}}},
			wantKind:  plot.KindDomain,
			wantCalls: 1,
			check: func(t *testing.T, _ *plot.PlotResult, err error) {
				var derr *plot.DomainError
				errors.As(err, &derr)
				if derr.Message != "carrier not found" {
					t.Errorf("message = %q", derr.Message)
				}
				if diff := cmp.Diff(detail, derr.Detail); diff != "" {
					t.Errorf("detail must be passed through verbatim (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:      "failure with message",
			replies:   []statusReply{{status: &api.TaskStatus{State: api.StateFailure, Error: "worker crashed"}}},
			wantKind:  plot.KindDomain,
			wantCalls: 1,
		},
		{
			name:      "failure without message",
			replies:   []statusReply{{status: &api.TaskStatus{State: api.StateFailure}}},
			wantKind:  plot.KindTransport,
			wantCalls: 1,
		},
		{
			name:      "revoked task stops polling",
			replies:   []statusReply{pending(), {status: &api.TaskStatus{State: api.StateRevoked, Status: "terminated"}}},
			wantKind:  plot.KindTransport,
			wantCalls: 2,
		},
		{
			name:      "status network error is retried",
			replies:   []statusReply{{err: errNetwork}, {err: errNetwork}, success(sampleFigure)},
			wantKind:  plot.KindNone,
			wantCalls: 3,
		},
		{
			name:      "success without result",
			replies:   []statusReply{{status: &api.TaskStatus{State: api.StateSuccess}}},
			wantKind:  plot.KindTransport,
			wantCalls: 1,
		},
		{
			name:      "network errors until exhausted",
			replies:   []statusReply{{err: errNetwork}},
			wantKind:  plot.KindTimeout,
			wantCalls: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{replies: tt.replies}
			seq := &Sequencer{}
			gen := seq.Next()
			p, _ := newTestPoller(backend, seq)

			res, err := p.Poll(context.Background(), gen, plot.TaskHandle{TaskID: "task-1"}, sampleQuery(), nil)
			if got := plot.Classify(err); got != tt.wantKind {
				t.Fatalf("Classify(%v) = %s, want %s", err, got, tt.wantKind)
			}
			if err == nil && res == nil {
				t.Fatal("nil result without error")
			}
			if _, calls := backend.calls(); calls != tt.wantCalls {
				t.Errorf("expected %d status calls, got %d", tt.wantCalls, calls)
			}
			if tt.check != nil {
				tt.check(t, res, err)
			}
		})
	}
}

func TestPollTable(t *testing.T) {
	stats := sampleQuery()
	stats.Statistic = "supply"

	t.Run("frame", func(t *testing.T) {
		backend := &fakeBackend{replies: []statusReply{pending(), success(`{"index":["wind"],"columns":["2030"],"data":[[4.5]]}`)}}
		seq := &Sequencer{}
		p, _ := newTestPoller(backend, seq)

		tbl, err := p.PollTable(context.Background(), seq.Next(), plot.TaskHandle{TaskID: "task-1"}, stats)
		if err != nil {
			t.Fatalf("PollTable: %v", err)
		}
		if tbl.Statistic != "supply" || tbl.Cell(0, 0) != "4.5" || tbl.GeneratedAt.IsZero() {
			t.Errorf("unexpected table %+v", tbl)
		}
	})

	t.Run("embedded error", func(t *testing.T) {
		backend := &fakeBackend{replies: []statusReply{{status: &api.TaskStatus{
			State:  api.StateSuccess,
			Result: &api.TaskResult{Status: "error", Error: "unknown carrier"},
		}}}}
		seq := &Sequencer{}
		p, _ := newTestPoller(backend, seq)

		_, err := p.PollTable(context.Background(), seq.Next(), plot.TaskHandle{TaskID: "task-1"}, stats)
		var derr *plot.DomainError
		if !errors.As(err, &derr) || derr.TaskID != "task-1" {
			t.Errorf("expected a domain error for task-1, got %v", err)
		}
	})

	t.Run("undecodable data", func(t *testing.T) {
		backend := &fakeBackend{replies: []statusReply{success(`[1, 2]`)}}
		seq := &Sequencer{}
		p, _ := newTestPoller(backend, seq)

		_, err := p.PollTable(context.Background(), seq.Next(), plot.TaskHandle{TaskID: "task-1"}, stats)
		if plot.Classify(err) != plot.KindTransport {
			t.Errorf("expected a transport error, got %v", err)
		}
	})
}

func TestPollStopsWhenSuperseded(t *testing.T) {
	seq := &Sequencer{}
	gen := seq.Next()
	backend := &fakeBackend{replies: []statusReply{pending()}}
	backend.onStatus = func(call int) {
		if call == 2 {
			seq.Next()
		}
	}
	p, _ := newTestPoller(backend, seq)

	var attempts []int
	_, err := p.Poll(context.Background(), gen, plot.TaskHandle{TaskID: "task-1"}, sampleQuery(), func(h plot.TaskHandle) {
		attempts = append(attempts, h.Attempt)
	})
	if !errors.Is(err, plot.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if _, calls := backend.calls(); calls != 2 {
		t.Errorf("a superseded handle must not be polled again, got %d calls", calls)
	}
	if diff := cmp.Diff([]int{1, 2}, attempts); diff != "" {
		t.Errorf("attempt callbacks mismatch (-want +got):\n%s", diff)
	}
}

func TestPollCancelledContext(t *testing.T) {
	seq := &Sequencer{}
	gen := seq.Next()
	p, _ := newTestPoller(&fakeBackend{}, seq)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Poll(ctx, gen, plot.TaskHandle{TaskID: "task-1"}, sampleQuery(), nil)
	if !errors.Is(err, plot.ErrSuperseded) {
		t.Errorf("cancelled sleep should stop as superseded, got %v", err)
	}

	ctx, cancel = context.WithDeadline(context.Background(), time.Unix(0, 0))
	defer cancel()
	_, err = p.Poll(ctx, gen, plot.TaskHandle{TaskID: "task-1"}, sampleQuery(), nil)
	var terr *plot.TimeoutError
	if !errors.As(err, &terr) {
		t.Errorf("expired deadline should time out, got %v", err)
	}
}

func TestRequester(t *testing.T) {
	t.Run("cache hit needs no handle", func(t *testing.T) {
		r := NewRequester(&fakeBackend{submit: cacheHit}, testBackoff(), zerolog.Nop(), nil)
		sub, err := r.Submit(context.Background(), sampleQuery())
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if sub.Result == nil || sub.Handle != nil || !sub.Result.CacheHit {
			t.Errorf("expected an immediate cached result, got %+v", sub)
		}
	})

	t.Run("deferred seeds the first delay", func(t *testing.T) {
		r := NewRequester(&fakeBackend{}, testBackoff(), zerolog.Nop(), nil)
		sub, err := r.Submit(context.Background(), sampleQuery())
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		want := &plot.TaskHandle{TaskID: "task-1", NextDelay: 500 * time.Millisecond}
		if diff := cmp.Diff(want, sub.Handle); diff != "" {
			t.Errorf("handle mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("reply without task id is rejected", func(t *testing.T) {
		backend := &fakeBackend{submit: func(plot.Query) (*api.SubmitResponse, error) {
			return &api.SubmitResponse{}, nil
		}}
		r := NewRequester(backend, testBackoff(), zerolog.Nop(), nil)
		sub, err := r.Submit(context.Background(), sampleQuery())

		var terr *plot.TransportError
		if !errors.As(err, &terr) || terr.Op != "submit" {
			t.Fatalf("expected submit TransportError, got %v", err)
		}
		if sub.Handle != nil {
			t.Errorf("no handle may be returned, got %+v", sub.Handle)
		}
		if _, calls := backend.calls(); calls != 0 {
			t.Errorf("nothing to poll, got %d status calls", calls)
		}
	})

	t.Run("statistics are always deferred", func(t *testing.T) {
		r := NewRequester(&fakeBackend{}, testBackoff(), zerolog.Nop(), nil)
		h, err := r.SubmitStatistics(context.Background(), sampleQuery())
		if err != nil {
			t.Fatalf("SubmitStatistics: %v", err)
		}
		if h.TaskID != "task-1" || h.NextDelay != 500*time.Millisecond {
			t.Errorf("unexpected handle %+v", h)
		}

		backend := &fakeBackend{statistics: func(plot.Query) (*api.SubmitResponse, error) {
			return &api.SubmitResponse{}, nil
		}}
		r = NewRequester(backend, testBackoff(), zerolog.Nop(), nil)
		if _, err := r.SubmitStatistics(context.Background(), sampleQuery()); plot.Classify(err) != plot.KindTransport {
			t.Errorf("reply without task id should be a transport error, got %v", err)
		}
	})

	t.Run("http failure is a transport error", func(t *testing.T) {
		backend := &fakeBackend{submit: func(plot.Query) (*api.SubmitResponse, error) {
			return nil, &api.StatusError{Code: 502, Body: "bad gateway"}
		}}
		r := NewRequester(backend, testBackoff(), zerolog.Nop(), nil)
		_, err := r.Submit(context.Background(), sampleQuery())

		var terr *plot.TransportError
		if !errors.As(err, &terr) {
			t.Fatalf("expected TransportError, got %v", err)
		}
		if terr.StatusCode != 502 || terr.Op != "submit" {
			t.Errorf("unexpected transport error %+v", terr)
		}
	})
}
