package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/clock"
	"github.com/billie-coop/gridscope/internal/csync"
	"github.com/billie-coop/gridscope/internal/events"
	"github.com/billie-coop/gridscope/internal/logging"
	"github.com/billie-coop/gridscope/internal/metrics"
	"github.com/billie-coop/gridscope/internal/plot"
	"github.com/billie-coop/gridscope/internal/surface"
)

// NetworkLookup fetches one dataset's metadata.
type NetworkLookup interface {
	GetNetwork(ctx context.Context, id string) (*api.Network, error)
}

// CacheAdmin drops the backend's cached plots.
type CacheAdmin interface {
	ClearPlotCache(ctx context.Context) (*api.ClearCacheResponse, error)
}

// Deps are the collaborators an Orchestrator is built from. Catalog and
// Cache are optional.
type Deps struct {
	Backend  Backend
	Catalog  NetworkLookup
	Cache    CacheAdmin
	Surfaces *surface.Registry
	Broker   *events.Broker
	Clock    clock.Clock
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

// Orchestrator owns the selection session and drives generations.
type Orchestrator struct {
	settings Settings
	clock    clock.Clock
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	broker   *events.Broker
	surfaces *surface.Registry
	catalog  NetworkLookup
	cache    CacheAdmin

	seq       *Sequencer
	debounce  *Debouncer
	requester *Requester
	poller    *Poller
	fanout    *FanOut
	attacher  *surface.Attacher
	history   *History

	// Last successful result per surface key
	results *csync.Map[string, plot.PlotResult]

	mu      sync.Mutex
	session Session
	cancel  context.CancelFunc
	closed  bool
	wg      sync.WaitGroup

	stateMu sync.RWMutex
	state   GenerationState
}

// New wires an orchestrator. A zero Deps.Clock means the wall clock.
func New(deps Deps, settings Settings) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Surfaces == nil {
		deps.Surfaces = surface.NewRegistry()
	}
	logger := logging.Component(deps.Logger, "orchestrator")

	o := &Orchestrator{
		settings: settings,
		clock:    deps.Clock,
		logger:   logger,
		metrics:  deps.Metrics,
		broker:   deps.Broker,
		surfaces: deps.Surfaces,
		catalog:  deps.Catalog,
		cache:    deps.Cache,
		seq:      &Sequencer{},
		debounce: NewDebouncer(deps.Clock),
		history:  NewHistory(DefaultHistorySize),
		results:  csync.NewMap[string, plot.PlotResult](),
		session:  DefaultSession(),
		state:    StateIdle,
	}
	o.requester = NewRequester(deps.Backend, settings.Backoff, logger, deps.Metrics)
	o.poller = NewPoller(deps.Backend, settings.Backoff, o.seq, deps.Clock, logger, deps.Metrics)
	o.fanout = NewFanOut(o.resolve, o.seq, settings.FacetParameter, settings.FanOutConcurrency)
	o.attacher = surface.NewAttacher(deps.Surfaces,
		surface.WithBudget(settings.AttachAttempts, settings.AttachInterval),
		surface.WithClock(deps.Clock),
		surface.WithLogger(logger),
		surface.WithMetrics(deps.Metrics),
	)

	deps.Surfaces.OnChange(func(key string) {
		o.publish(events.SurfaceUpdatedEvent, events.SurfacePayload{Key: key})
	})

	return o
}

// Session returns a copy of the current selection.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Clone()
}

// State returns the state of the most recent generation.
func (o *Orchestrator) State() GenerationState {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

// Current returns the id of the authoritative generation.
func (o *Orchestrator) Current() uint64 {
	return o.seq.Current()
}

// Result returns the last successful result committed for a surface key.
func (o *Orchestrator) Result(key string) (plot.PlotResult, bool) {
	return o.results.Get(key)
}

// History returns recent generations, oldest first.
func (o *Orchestrator) History() []Generation {
	return o.history.All()
}

// SetTargets replaces the selected dataset ids. In facet mode a new primary
// dataset invalidates the facets, which the next generation looks up again.
func (o *Orchestrator) SetTargets(ids []string) {
	o.update(func(s *Session) {
		if s.FacetMode && primary(ids) != s.Primary() {
			s.Facets = nil
		}
		s.Targets = append([]string(nil), ids...)
	}, o.settings.TargetDebounce)
}

// SetStatistic selects the statistic to plot.
func (o *Orchestrator) SetStatistic(name string) error {
	if !plot.IsAllowedStatistic(name) {
		return fmt.Errorf("unknown statistic %q", name)
	}
	o.update(func(s *Session) { s.Statistic = name }, o.settings.TargetDebounce)
	return nil
}

// SetPlotKind selects the chart type.
func (o *Orchestrator) SetPlotKind(kind string) error {
	if !plot.IsAllowedPlotKind(kind) {
		return fmt.Errorf("unknown plot kind %q", kind)
	}
	o.update(func(s *Session) { s.PlotKind = kind }, o.settings.TargetDebounce)
	return nil
}

// SetFilter sets one query parameter; nil or "" removes it.
func (o *Orchestrator) SetFilter(key string, value any) {
	o.update(func(s *Session) {
		if s.Filters == nil {
			s.Filters = map[string]any{}
		}
		if value == nil || value == "" {
			delete(s.Filters, key)
			return
		}
		s.Filters[key] = value
	}, o.settings.FilterDebounce)
}

// SetFacetMode switches between one merged plot and one plot per facet.
func (o *Orchestrator) SetFacetMode(on bool, facets []plot.Facet) {
	o.update(func(s *Session) {
		s.FacetMode = on
		s.Facets = append([]plot.Facet(nil), facets...)
	}, o.settings.TargetDebounce)
}

// Restore replaces the selection without starting a generation. It is meant
// for the saved selection at startup; call Refresh to plot it.
func (o *Orchestrator) Restore(sess Session) error {
	if !plot.IsAllowedStatistic(sess.Statistic) {
		return fmt.Errorf("unknown statistic %q", sess.Statistic)
	}
	if !plot.IsAllowedPlotKind(sess.PlotKind) {
		return fmt.Errorf("unknown plot kind %q", sess.PlotKind)
	}
	next := sess.Clone()
	if next.Filters == nil {
		next.Filters = map[string]any{}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.session = next
	return nil
}

// Refresh starts a generation for the current selection right away.
func (o *Orchestrator) Refresh() {
	o.debounce.Flush(o.start)
}

// Close stops pending work. Generations in flight are superseded; their
// HTTP calls finish in the background and are dropped.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	cancel := o.cancel
	o.mu.Unlock()

	o.debounce.Stop()
	o.seq.Next()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until every started pipeline goroutine has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) update(mutate func(*Session), window time.Duration) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	mutate(&o.session)
	o.mu.Unlock()

	o.setState(StateDebouncing)
	o.publish(events.GenerationStateEvent, events.GenerationPayload{
		ID:    o.seq.Current(),
		State: string(StateDebouncing),
	})
	o.debounce.Schedule(o.start, window)
}

// start mints a generation for the current selection and runs its pipeline
// on a new goroutine. The previous generation, if any, is superseded.
func (o *Orchestrator) start() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	sess := o.session.Clone()
	q := sess.Query()

	id := o.seq.Next()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}

	if err := q.Validate(); err != nil {
		o.mu.Unlock()
		o.setState(StateIdle)
		o.logger.Debug().Err(err).Uint64("generation", id).Msg("selection incomplete")
		o.publishStatus(idleHint(sess), "info")
		return
	}

	ctx, cancel := o.generationContext()
	o.cancel = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		defer cancel()
		o.run(ctx, id, sess, q)
	}()
}

func (o *Orchestrator) generationContext() (context.Context, context.CancelFunc) {
	if o.settings.Deadline > 0 {
		return context.WithTimeout(context.Background(), o.settings.Deadline)
	}
	return context.WithCancel(context.Background())
}

func (o *Orchestrator) run(ctx context.Context, id uint64, sess Session, q plot.Query) {
	log := o.logger.With().Uint64("generation", id).Str("query", q.Key()).Logger()
	started := o.clock.Now()

	o.metrics.GenerationStarted()
	o.history.Add(id, q, sess.FacetMode, started)
	o.seq.Apply(id, func() {
		o.setState(StateSubmitted)
		o.publish(events.GenerationStartedEvent, events.GenerationPayload{
			ID:    id,
			State: string(StateSubmitted),
			Query: q,
			Facet: sess.FacetMode,
		})
	})

	log.Info().
		Strs("targets", q.TargetIDs).
		Str("statistic", q.Statistic).
		Str("kind", q.PlotKind).
		Bool("facets", sess.FacetMode).
		Msg("generation started")

	if sess.FacetMode {
		facets, err := o.facetsFor(ctx, sess)
		if err != nil {
			if !o.dropIfStale(id, err, "facets", log) {
				o.fail(id, []string{surface.MergedKey}, err, log)
			}
			return
		}
		o.runFacets(ctx, id, facets, q, log)
	} else {
		o.runMerged(ctx, id, q, log)
	}
}

func (o *Orchestrator) runMerged(ctx context.Context, id uint64, q plot.Query, log zerolog.Logger) {
	res, err := o.resolve(ctx, id, q)
	if o.dropIfStale(id, err, "result", log) {
		return
	}
	if err != nil {
		o.fail(id, []string{surface.MergedKey}, err, log)
		return
	}

	if !o.seq.Apply(id, func() {
		o.results.Set(surface.MergedKey, *res)
		o.history.Update(id, func(g *Generation) { g.CacheHit = res.CacheHit })
		o.transitionLocked(id, StateSettled)
	}) {
		o.dropIfStale(id, plot.ErrSuperseded, "result", log)
		return
	}

	if o.attach(ctx, id, surface.MergedKey, *res, log) {
		o.finish(id, "ok", log)
	}
}

func (o *Orchestrator) runFacets(ctx context.Context, id uint64, facets []plot.Facet, q plot.Query, log zerolog.Logger) {
	if len(facets) == 0 {
		o.fail(id, []string{surface.MergedKey}, errors.New("no facets available for the selected datasets"), log)
		return
	}

	keys := make([]string, len(facets))
	for i := range facets {
		keys[i] = surface.FacetKey(i)
	}
	o.seq.Apply(id, func() {
		o.publish(events.FacetsPreparedEvent, events.FacetsPreparedPayload{
			GenerationID: id,
			Facets:       facets,
			SurfaceKeys:  keys,
		})
	})
	o.metrics.FanOut(len(facets))

	results, err := o.fanout.Run(ctx, id, facets, q)
	if o.dropIfStale(id, err, "facets", log) {
		return
	}

	var partial *plot.PartialFailure
	allFailed := err != nil && !errors.As(err, &partial)

	if !o.seq.Apply(id, func() {
		for i, r := range results {
			if r.OK() {
				o.results.Set(keys[i], *r.Result)
			} else {
				o.results.Delete(keys[i])
				o.surfaces.Clear(keys[i])
			}
		}
		o.publish(events.FacetsCompletedEvent, events.FacetsCompletedPayload{
			GenerationID: id,
			Results:      results,
			Err:          err,
		})
		if !allFailed {
			o.transitionLocked(id, StateSettled)
		}
	}) {
		o.dropIfStale(id, plot.ErrSuperseded, "facets", log)
		return
	}

	if allFailed {
		o.fail(id, nil, err, log)
		return
	}
	if partial != nil {
		log.Warn().Int("failed", partial.Failed).Int("total", partial.Total).Msg("some facets failed")
	}

	var g errgroup.Group
	attached := make([]bool, len(results))
	for i, r := range results {
		if !r.OK() {
			attached[i] = true
			continue
		}
		g.Go(func() error {
			attached[i] = o.attach(ctx, id, keys[i], *r.Result, log)
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range attached {
		if !ok {
			// superseded while attaching
			return
		}
	}
	if partial != nil {
		o.finish(id, plot.KindPartial.String(), log)
	} else {
		o.finish(id, "ok", log)
	}
}

// facetsFor returns the session's facets, looking them up from the primary
// dataset's metadata when the session has none.
func (o *Orchestrator) facetsFor(ctx context.Context, sess Session) ([]plot.Facet, error) {
	if len(sess.Facets) > 0 || o.catalog == nil {
		return sess.Facets, nil
	}
	id := sess.Primary()
	n, err := o.catalog.GetNetwork(context.WithoutCancel(ctx), id)
	if err != nil {
		return nil, transportError("network", err)
	}
	facets := n.CarrierFacets()

	o.mu.Lock()
	if o.session.FacetMode && o.session.Primary() == id {
		o.session.Facets = slices.Clone(facets)
	}
	o.mu.Unlock()
	return facets, nil
}

// Statistics fetches the current selection's statistic as a table. The
// answer belongs to the generation current at the call and is dropped with
// plot.ErrSuperseded if the selection moves on first.
func (o *Orchestrator) Statistics(ctx context.Context) (*plot.Table, error) {
	q := o.Session().Query()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	gen := o.seq.Current()

	h, err := o.requester.SubmitStatistics(context.WithoutCancel(ctx), q)
	if err != nil {
		return nil, err
	}
	if !o.seq.IsCurrent(gen) {
		return nil, plot.ErrSuperseded
	}
	tbl, err := o.poller.PollTable(ctx, gen, h, q)
	if err != nil {
		return nil, err
	}
	o.logger.Debug().Str("statistic", q.Statistic).Int("rows", tbl.Len()).Msg("statistics fetched")
	return tbl, nil
}

// ClearCache drops the backend's cached plots and replots the selection.
// It returns how many cache entries were removed.
func (o *Orchestrator) ClearCache(ctx context.Context) (int, error) {
	if o.cache == nil {
		return 0, errors.New("cache administration is not available")
	}
	resp, err := o.cache.ClearPlotCache(ctx)
	if err != nil {
		return 0, transportError("cache", err)
	}
	o.logger.Info().Int("deleted", resp.DeletedKeys).Msg("plot cache cleared")
	o.Refresh()
	return resp.DeletedKeys, nil
}

// resolve runs submit and, for deferred answers, poll.
func (o *Orchestrator) resolve(ctx context.Context, id uint64, q plot.Query) (*plot.PlotResult, error) {
	sub, err := o.requester.Submit(context.WithoutCancel(ctx), q)
	if !o.seq.IsCurrent(id) {
		return nil, plot.ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	if sub.Result != nil {
		return sub.Result, nil
	}

	o.seq.Apply(id, func() { o.transitionLocked(id, StatePolling) })
	return o.poller.Poll(ctx, id, *sub.Handle, q, func(h plot.TaskHandle) {
		o.history.Update(id, func(g *Generation) { g.Polls++ })
	})
}

// attach binds res to the surface at key. It returns false only when the
// generation was superseded; RenderErrors are logged by the attacher and
// otherwise ignored.
func (o *Orchestrator) attach(ctx context.Context, id uint64, key string, res plot.PlotResult, log zerolog.Logger) bool {
	o.seq.Apply(id, func() { o.transitionLocked(id, StateAttaching) })

	err := o.attacher.Attach(ctx, key, id, res, func(effect func()) bool {
		return o.seq.Apply(id, func() {
			effect()
			o.publish(events.PlotRenderedEvent, events.PlotRenderedPayload{
				GenerationID: id,
				SurfaceKey:   key,
				Result:       res,
			})
		})
	})
	switch {
	case errors.Is(err, plot.ErrSuperseded) && !o.seq.IsCurrent(id):
		o.dropIfStale(id, err, "attach", log)
		return false
	case err != nil:
		log.Debug().Err(err).Str("surface", key).Msg("render error ignored")
	}
	return true
}

// fail replaces what the given surfaces show with an error state.
func (o *Orchestrator) fail(id uint64, keys []string, err error, log zerolog.Logger) {
	kind := plot.Classify(err)
	state := StateFailed
	if kind == plot.KindTimeout {
		state = StateTimedOut
	}

	if !o.seq.Apply(id, func() {
		for _, key := range keys {
			o.results.Delete(key)
			o.surfaces.Clear(key)
		}
		o.history.Update(id, func(g *Generation) { g.Err = err })
		o.transitionLocked(id, state)
		o.publish(events.PlotFailedEvent, events.PlotFailedPayload{
			GenerationID: id,
			Kind:         kind,
			Err:          err,
		})
	}) {
		o.dropIfStale(id, plot.ErrSuperseded, "error", log)
		return
	}

	o.metrics.Outcome(kind.String())
	log.Warn().Err(err).Str("kind", kind.String()).Msg("generation failed")
}

func (o *Orchestrator) finish(id uint64, outcome string, log zerolog.Logger) {
	if !o.seq.Apply(id, func() { o.transitionLocked(id, StateDone) }) {
		o.dropIfStale(id, plot.ErrSuperseded, "done", log)
		return
	}
	o.metrics.Outcome(outcome)
	if gen, ok := o.history.Get(id); ok {
		logging.Since(log.Info(), gen.StartedAt, o.clock.Now()).
			Bool("cache_hit", gen.CacheHit).
			Int("polls", gen.Polls).
			Str("outcome", outcome).
			Msg("generation done")
	}
}

// dropIfStale records a superseded generation. It reports true when the
// caller must stop.
func (o *Orchestrator) dropIfStale(id uint64, err error, stage string, log zerolog.Logger) bool {
	if !errors.Is(err, plot.ErrSuperseded) && o.seq.IsCurrent(id) {
		return false
	}
	if o.history.UpdateState(id, StateSuperseded, o.clock.Now()) == nil {
		o.metrics.Dropped(stage)
		log.Debug().Str("stage", stage).Msg("superseded, dropping")
	}
	return true
}

// transitionLocked must run inside Sequencer.Apply.
func (o *Orchestrator) transitionLocked(id uint64, state GenerationState) {
	_ = o.history.UpdateState(id, state, o.clock.Now())
	o.setState(state)
	o.publish(events.GenerationStateEvent, events.GenerationPayload{ID: id, State: string(state)})
}

func (o *Orchestrator) setState(state GenerationState) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	o.state = state
}

func (o *Orchestrator) publish(t events.EventType, payload any) {
	if o.broker == nil {
		return
	}
	o.broker.Publish(events.Event{Type: t, Payload: payload})
}

func (o *Orchestrator) publishStatus(msg, typ string) {
	o.publish(events.StatusMessageEvent, events.StatusMessagePayload{Message: msg, Type: typ})
}

func primary(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func idleHint(s Session) string {
	if len(s.Targets) == 0 {
		return "Select a dataset to plot"
	}
	return "Selection incomplete"
}
