package orchestrator

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/clock"
	"github.com/billie-coop/gridscope/internal/events"
	"github.com/billie-coop/gridscope/internal/mockapi"
	"github.com/billie-coop/gridscope/internal/plot"
	"github.com/billie-coop/gridscope/internal/surface"
)

var errNetwork = errors.New("connection refused")

type statusReply struct {
	status *api.TaskStatus
	err    error
}

// fakeBackend scripts submit answers per query and replays status replies
// in order, repeating the last one.
type fakeBackend struct {
	mu          sync.Mutex
	submit      func(q plot.Query) (*api.SubmitResponse, error)
	statistics  func(q plot.Query) (*api.SubmitResponse, error)
	replies     []statusReply
	submits     int
	statusCalls int
	onStatus    func(call int)
}

func (b *fakeBackend) SubmitPlot(_ context.Context, q plot.Query) (*api.SubmitResponse, error) {
	b.mu.Lock()
	b.submits++
	submit := b.submit
	b.mu.Unlock()
	if submit == nil {
		return &api.SubmitResponse{TaskID: "task-1", Status: "processing"}, nil
	}
	return submit(q)
}

func (b *fakeBackend) SubmitStatistics(_ context.Context, q plot.Query) (*api.SubmitResponse, error) {
	b.mu.Lock()
	b.submits++
	statistics := b.statistics
	b.mu.Unlock()
	if statistics == nil {
		return &api.SubmitResponse{TaskID: "task-1", Status: "processing"}, nil
	}
	return statistics(q)
}

func (b *fakeBackend) TaskStatus(_ context.Context, _ string) (*api.TaskStatus, error) {
	b.mu.Lock()
	b.statusCalls++
	call := b.statusCalls
	hook := b.onStatus
	var r statusReply
	switch {
	case len(b.replies) == 0:
		r = statusReply{status: &api.TaskStatus{State: api.StatePending}}
	case call <= len(b.replies):
		r = b.replies[call-1]
	default:
		r = b.replies[len(b.replies)-1]
	}
	b.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return r.status, r.err
}

func (b *fakeBackend) calls() (submits, statuses int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submits, b.statusCalls
}

func pending() statusReply {
	return statusReply{status: &api.TaskStatus{TaskID: "task-1", State: api.StatePending}}
}

func success(data string) statusReply {
	return statusReply{status: &api.TaskStatus{
		TaskID: "task-1",
		State:  api.StateSuccess,
		Result: &api.TaskResult{
			Status:      "success",
			GeneratedAt: "2025-03-01T12:00:00Z",
			Data:        []byte(data),
		},
	}}
}

const sampleFigure = `{"data":[{"type":"bar","name":"wind","x":["2030"],"y":[1]}],"layout":{}}`

func cacheHit(q plot.Query) (*api.SubmitResponse, error) {
	return &api.SubmitResponse{
		PlotData: &plot.Payload{Data: []byte(`[{"type":"bar","name":"` + q.Statistic + `"}]`), Layout: []byte(`{}`)},
		CacheHit: true,
	}, nil
}

func testBackoff() Backoff {
	return Backoff{Initial: 500 * time.Millisecond, Factor: 1.5, Max: 5 * time.Second, MaxAttempts: 6}
}

type harness struct {
	o        *Orchestrator
	clock    *clock.Fake
	surfaces *surface.Registry
	events   <-chan events.Event
}

func newHarness(t *testing.T, backend Backend) *harness {
	t.Helper()
	c := clock.NewFake(time.Unix(0, 0))
	broker := events.NewBrokerWithBuffer(256)
	surfaces := surface.NewRegistry()
	surfaces.Register(surface.MergedKey, 80, 24)

	settings := DefaultSettings()
	settings.Backoff = testBackoff()

	deps := Deps{
		Backend:  backend,
		Surfaces: surfaces,
		Broker:   broker,
		Clock:    c,
		Logger:   zerolog.Nop(),
	}
	if lookup, ok := backend.(NetworkLookup); ok {
		deps.Catalog = lookup
	}
	if admin, ok := backend.(CacheAdmin); ok {
		deps.Cache = admin
	}
	o := New(deps, settings)
	t.Cleanup(func() {
		o.Close()
		o.Wait()
	})

	return &harness{o: o, clock: c, surfaces: surfaces, events: broker.Subscribe()}
}

func newMockHarness(t *testing.T) (*harness, *mockapi.Server) {
	t.Helper()
	backend := mockapi.New("/api/v1")
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	return newHarness(t, api.NewClient(srv.URL)), backend
}

// waitFor returns the first event of type typ accepted by match.
func (h *harness) waitFor(t *testing.T, typ events.EventType, match func(events.Event) bool) events.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-h.events:
			if ev.Type == typ && (match == nil || match(ev)) {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
			return events.Event{}
		}
	}
}

func forGeneration(id uint64) func(events.Event) bool {
	return func(ev events.Event) bool {
		switch p := ev.Payload.(type) {
		case events.PlotRenderedPayload:
			return p.GenerationID == id
		case events.PlotFailedPayload:
			return p.GenerationID == id
		case events.FacetsCompletedPayload:
			return p.GenerationID == id
		case events.GenerationPayload:
			return p.ID == id
		}
		return false
	}
}
