package api

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/billie-coop/gridscope/internal/plot"
)

// Task states reported by the status endpoint.
const (
	StatePending  = "PENDING"
	StateProgress = "PROGRESS"
	StateSuccess  = "SUCCESS"
	StateFailure  = "FAILURE"
	StateRevoked  = "REVOKED"
)

// PlotRequest is the body of POST /plots/generate.
type PlotRequest struct {
	NetworkIDs []string       `json:"network_ids"`
	Statistic  string         `json:"statistic"`
	PlotType   string         `json:"plot_type"`
	Parameters map[string]any `json:"parameters"`
}

// NewPlotRequest converts a query, never sending null parameters.
func NewPlotRequest(q plot.Query) PlotRequest {
	params := q.Parameters
	if params == nil {
		params = map[string]any{}
	}
	return PlotRequest{
		NetworkIDs: q.TargetIDs,
		Statistic:  q.Statistic,
		PlotType:   q.PlotKind,
		Parameters: params,
	}
}

// StatisticsRequest is the body of POST /statistics/.
type StatisticsRequest struct {
	NetworkIDs []string       `json:"network_ids"`
	Statistic  string         `json:"statistic"`
	Parameters map[string]any `json:"parameters"`
}

// NewStatisticsRequest converts a query; the plot kind is not sent.
func NewStatisticsRequest(q plot.Query) StatisticsRequest {
	req := NewPlotRequest(q)
	return StatisticsRequest{NetworkIDs: req.NetworkIDs, Statistic: req.Statistic, Parameters: req.Parameters}
}

// SubmitResponse is either a cache hit (PlotData set) or a queued task (TaskID set).
type SubmitResponse struct {
	PlotData    *plot.Payload `json:"plot_data,omitempty"`
	CacheHit    bool          `json:"cache_hit,omitempty"`
	GeneratedAt string        `json:"generated_at,omitempty"`

	TaskID    string `json:"task_id,omitempty"`
	Status    string `json:"status,omitempty"`
	StatusURL string `json:"status_url,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Immediate reports whether the response already carries the plot.
func (r *SubmitResponse) Immediate() bool {
	return r.PlotData != nil
}

// TaskStatus is the body of GET /tasks/status/{id}.
type TaskStatus struct {
	TaskID  string      `json:"task_id"`
	State   string      `json:"state"`
	Status  string      `json:"status,omitempty"`
	Current *int        `json:"current,omitempty"`
	Total   *int        `json:"total,omitempty"`
	Result  *TaskResult `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// TaskResult is the unified result envelope of a finished task.
type TaskResult struct {
	Status       string           `json:"status"` // "ok"/"success" or "error"
	TaskID       string           `json:"task_id,omitempty"`
	GeneratedAt  string           `json:"generated_at,omitempty"`
	Data         json.RawMessage  `json:"data,omitempty"`
	Request      *ResultRequest   `json:"request,omitempty"`
	Error        string           `json:"error,omitempty"`
	ErrorDetails *plot.Diagnostic `json:"error_details,omitempty"`
}

// ResultRequest echoes what the task computed.
type ResultRequest struct {
	Statistic string `json:"statistic,omitempty"`
	PlotType  string `json:"plot_type,omitempty"`
}

// Failed reports whether the task carried an embedded computation error.
func (r *TaskResult) Failed() bool {
	return r.Status == "error" || r.Error != ""
}

// ParseTimestamp reads the backend's ISO-8601 timestamps. Unparseable or
// empty values yield the zero time.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Network is one dataset in the catalog.
type Network struct {
	ID              string         `json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	Filename        string         `json:"filename"`
	FileSize        int64          `json:"file_size,omitempty"`
	Name            string         `json:"name,omitempty"`
	DimensionsCount map[string]int `json:"dimensions_count,omitempty"`
	ComponentsCount map[string]int `json:"components_count,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
	Facets          *Facets        `json:"facets,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
}

// DisplayName prefers the network name over the file name.
func (n Network) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Filename
}

// Facets lists the filterable dimensions of a network.
type Facets struct {
	Carriers  map[string]map[string]any `json:"carriers,omitempty"`
	Countries []string                  `json:"countries,omitempty"`
}

// CarrierFacets returns one facet per bus carrier, sorted by key, using the
// carrier's nice_name as display name when present.
func (n Network) CarrierFacets() []plot.Facet {
	if n.Facets == nil {
		return nil
	}
	keys := make([]string, 0, len(n.Facets.Carriers))
	for k := range n.Facets.Carriers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]plot.Facet, 0, len(keys))
	for _, k := range keys {
		f := plot.Facet{Key: k}
		if nice, ok := n.Facets.Carriers[k]["nice_name"].(string); ok {
			f.Name = nice
		}
		out = append(out, f)
	}
	return out
}

// NetworkList is a page of the catalog.
type NetworkList struct {
	Data []Network   `json:"data"`
	Meta NetworkMeta `json:"meta"`
}

// NetworkMeta carries pagination details.
type NetworkMeta struct {
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// Health is the backend health report.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Cache   struct {
		Status string `json:"status"`
		Type   string `json:"type"`
	} `json:"cache"`
}

// CacheStats describes the backend's result cache.
type CacheStats struct {
	Available  bool           `json:"available"`
	TotalKeys  int            `json:"total_keys"`
	KeysByType map[string]int `json:"keys_by_type"`
	MemoryUsed string         `json:"memory_used,omitempty"`
}

// ClearCacheResponse reports how many cache entries were removed.
type ClearCacheResponse struct {
	Message     string `json:"message"`
	DeletedKeys int    `json:"deleted_keys"`
}

// Version reports component versions.
type Version struct {
	BackendVersion string `json:"backend_version"`
	PypsaVersion   string `json:"pypsa_version"`
}
