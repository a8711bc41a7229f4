// Package mockapi is a scriptable stand-in for the statistics backend.
//
// It serves the same JSON endpoints as the real service so the dashboard can
// be developed offline (see cmd/gridscope-mock) and so pipeline tests can
// drive cache hits, slow tasks, computation errors and outages.
package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/plot"
)

// Script describes how the backend answers one kind of plot request.
type Script struct {
	// SubmitStatus, when non-zero, fails the submission with that HTTP status.
	SubmitStatus int
	// SubmitDelay holds the submission reply back.
	SubmitDelay time.Duration
	// CacheHit answers the submission with plot_data directly.
	CacheHit bool
	// PendingPolls is how many PENDING replies precede the final state.
	PendingPolls int
	// DomainError settles the task as SUCCESS with an error-flagged result.
	DomainError string
	// StackTrace goes into error_details when DomainError is set.
	StackTrace string
	// Failure settles the task as FAILURE with this message.
	Failure string
	// NeverSettles keeps the task PENDING forever.
	NeverSettles bool
	// Payload overrides the generated chart.
	Payload *plot.Payload
}

// Matcher selects requests for a Script.
type Matcher func(api.PlotRequest) bool

type rule struct {
	match  Matcher
	script Script
}

type task struct {
	id      string
	req     api.PlotRequest
	stats   bool
	script  Script
	polls   int
	created time.Time
}

// Server is an http.Handler emulating the backend.
type Server struct {
	mu       sync.Mutex
	router   *mux.Router
	prefix   string
	rules    []rule
	fallback Script
	networks []api.Network
	tasks    map[string]*task
	nextTask int
	cached   map[string]bool

	submits     []api.PlotRequest
	statistics  []api.StatisticsRequest
	statusCalls int
}

// New creates a server mounted under prefix (e.g. "/api/v1").
func New(prefix string) *Server {
	s := &Server{
		router: mux.NewRouter(),
		prefix: prefix,
		tasks:  make(map[string]*task),
		cached: make(map[string]bool),
	}

	v1 := s.router.PathPrefix(prefix).Subrouter()
	v1.HandleFunc("/plots/generate", s.handleGenerate).Methods(http.MethodPost)
	v1.HandleFunc("/statistics/", s.handleStatistics).Methods(http.MethodPost)
	v1.HandleFunc("/tasks/status/{task_id}", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/cache/redis/stats", s.handleCacheStats).Methods(http.MethodGet)
	v1.HandleFunc("/cache/redis/plots", s.handleClearPlots).Methods(http.MethodDelete)
	v1.HandleFunc("/networks/", s.handleListNetworks).Methods(http.MethodGet)
	v1.HandleFunc("/networks/{id}", s.handleGetNetwork).Methods(http.MethodGet)
	v1.HandleFunc("/version/", s.handleVersion).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Default sets the script used when no rule matches.
func (s *Server) Default(script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = script
}

// Handle adds a rule; rules are tried in insertion order.
func (s *Server) Handle(match Matcher, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule{match: match, script: script})
}

// SetNetworks replaces the catalog.
func (s *Server) SetNetworks(networks []api.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks = append([]api.Network(nil), networks...)
}

// Submits returns the plot requests received so far, in arrival order.
func (s *Server) Submits() []api.PlotRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.PlotRequest(nil), s.submits...)
}

// StatisticsRequests returns the statistics requests received so far.
func (s *Server) StatisticsRequests() []api.StatisticsRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.StatisticsRequest(nil), s.statistics...)
}

// StatusCalls returns the number of task status requests served.
func (s *Server) StatusCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls
}

// TaskPolls returns how often one task was polled.
func (s *Server) TaskPolls(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[taskID]; ok {
		return t.polls
	}
	return 0
}

// MatchParameter matches requests whose parameter key equals value.
func MatchParameter(key string, value any) Matcher {
	return func(req api.PlotRequest) bool {
		return fmt.Sprint(req.Parameters[key]) == fmt.Sprint(value)
	}
}

// MatchStatistic matches requests for one statistic.
func MatchStatistic(name string) Matcher {
	return func(req api.PlotRequest) bool {
		return req.Statistic == name
	}
}

func (s *Server) scriptFor(req api.PlotRequest) Script {
	for _, r := range s.rules {
		if r.match(req) {
			return r.script
		}
	}
	return s.fallback
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.PlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	s.submits = append(s.submits, req)
	script := s.scriptFor(req)
	s.mu.Unlock()

	if script.SubmitDelay > 0 {
		select {
		case <-time.After(script.SubmitDelay):
		case <-r.Context().Done():
			return
		}
	}

	if script.SubmitStatus != 0 {
		writeJSON(w, script.SubmitStatus, map[string]string{"detail": "scripted submission failure"})
		return
	}

	if len(req.NetworkIDs) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "At least one network ID is required"})
		return
	}

	s.mu.Lock()
	s.cached[cacheKey(req)] = true
	s.mu.Unlock()

	if script.CacheHit {
		payload := payloadFor(req, script)
		writeJSON(w, http.StatusOK, api.SubmitResponse{
			PlotData:    &payload,
			CacheHit:    true,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	s.queue(w, &task{req: req, script: script})
}

// handleStatistics queues a raw statistics task. Statistics are never
// answered from the cache.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	var req api.StatisticsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	if len(req.NetworkIDs) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "At least one network ID is required"})
		return
	}

	preq := api.PlotRequest{NetworkIDs: req.NetworkIDs, Statistic: req.Statistic, Parameters: req.Parameters}
	s.mu.Lock()
	s.statistics = append(s.statistics, req)
	script := s.scriptFor(preq)
	s.mu.Unlock()

	if script.SubmitStatus != 0 {
		writeJSON(w, script.SubmitStatus, map[string]string{"detail": "scripted submission failure"})
		return
	}
	script.CacheHit = false
	s.queue(w, &task{req: preq, stats: true, script: script})
}

func (s *Server) queue(w http.ResponseWriter, t *task) {
	s.mu.Lock()
	s.nextTask++
	t.id = "t" + strconv.Itoa(s.nextTask)
	t.created = time.Now()
	s.tasks[t.id] = t
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.SubmitResponse{
		TaskID:    t.id,
		Status:    "processing",
		StatusURL: s.prefix + "/tasks/status/" + t.id,
		Message:   "Task queued. Poll status_url for results.",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["task_id"]

	s.mu.Lock()
	s.statusCalls++
	t, ok := s.tasks[id]
	if ok {
		t.polls++
	}
	s.mu.Unlock()

	if !ok {
		// Unknown ids look PENDING, as they do on a real task queue
		writeJSON(w, http.StatusOK, api.TaskStatus{TaskID: id, State: api.StatePending, Status: "Task is waiting to be executed"})
		return
	}

	writeJSON(w, http.StatusOK, s.statusFor(t))
}

func (s *Server) statusFor(t *task) api.TaskStatus {
	sc := t.script
	if sc.NeverSettles || t.polls <= sc.PendingPolls {
		return api.TaskStatus{TaskID: t.id, State: api.StatePending, Status: "Task is waiting to be executed"}
	}

	switch {
	case sc.Failure != "":
		return api.TaskStatus{TaskID: t.id, State: api.StateFailure, Error: sc.Failure}
	case sc.DomainError != "":
		return api.TaskStatus{
			TaskID: t.id,
			State:  api.StateSuccess,
			Result: &api.TaskResult{
				Status: "error",
				TaskID: t.id,
				Error:  sc.DomainError,
				ErrorDetails: &plot.Diagnostic{
					Parameters: t.req.Parameters,
					StackTrace: sc.StackTrace,
				},
			},
		}
	case t.stats:
		raw, _ := json.Marshal(SampleTable(t.req))
		return api.TaskStatus{
			TaskID: t.id,
			State:  api.StateSuccess,
			Result: &api.TaskResult{
				Status:      "success",
				TaskID:      t.id,
				GeneratedAt: time.Now().UTC().Format(time.RFC3339Nano),
				Data:        raw,
				Request:     &api.ResultRequest{Statistic: t.req.Statistic},
			},
		}
	default:
		payload := payloadFor(t.req, sc)
		raw, _ := json.Marshal(payload)
		return api.TaskStatus{
			TaskID: t.id,
			State:  api.StateSuccess,
			Result: &api.TaskResult{
				Status:      "success",
				TaskID:      t.id,
				GeneratedAt: time.Now().UTC().Format(time.RFC3339Nano),
				Data:        raw,
				Request:     &api.ResultRequest{Statistic: t.req.Statistic, PlotType: t.req.PlotType},
			},
		}
	}
}

func (s *Server) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	total := len(s.networks)
	start := min(max(skip, 0), total)
	end := min(start+limit, total)
	page := append([]api.Network(nil), s.networks[start:end]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.NetworkList{
		Data: page,
		Meta: api.NetworkMeta{Total: total, Skip: skip, Limit: limit},
	})
}

func (s *Server) handleGetNetwork(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.networks {
		if n.ID == id {
			writeJSON(w, http.StatusOK, n)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Network not found"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	n := len(s.cached)
	s.mu.Unlock()

	stats := api.CacheStats{Available: true, TotalKeys: n, KeysByType: map[string]int{}, MemoryUsed: "1.00M"}
	if n > 0 {
		stats.KeysByType["plot"] = n
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClearPlots(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	n := len(s.cached)
	s.cached = make(map[string]bool)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.ClearCacheResponse{Message: "Cleared all plot caches", DeletedKeys: n})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := api.Health{Status: "healthy", Version: "mock"}
	h.Cache.Status = "healthy"
	h.Cache.Type = "memory"
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.Version{BackendVersion: "mock", PypsaVersion: "mock"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
