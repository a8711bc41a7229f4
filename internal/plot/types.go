package plot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Query is one plot request. Two queries with equal fields share a Key.
type Query struct {
	TargetIDs  []string       `json:"network_ids"`
	Statistic  string         `json:"statistic"`
	PlotKind   string         `json:"plot_type"`
	Parameters map[string]any `json:"parameters"`
}

// Key returns a short stable identifier for the query.
// encoding/json sorts map keys, so parameter order never changes the key.
func (q Query) Key() string {
	params := q.Parameters
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(struct {
		T []string       `json:"t"`
		S string         `json:"s"`
		K string         `json:"k"`
		P map[string]any `json:"p"`
	}{q.TargetIDs, q.Statistic, q.PlotKind, params})
	if err != nil {
		// Unmarshalable parameters still need a key; fall back to fmt.
		raw = []byte(fmt.Sprintf("%v|%s|%s|%v", q.TargetIDs, q.Statistic, q.PlotKind, params))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:12]
}

// Equal reports structural equality.
func (q Query) Equal(other Query) bool {
	return q.Key() == other.Key()
}

// WithParameter returns a copy of q with key set to value. The receiver's
// parameter map is never mutated.
func (q Query) WithParameter(key string, value any) Query {
	params := make(map[string]any, len(q.Parameters)+1)
	for k, v := range q.Parameters {
		params[k] = v
	}
	params[key] = value
	q.Parameters = params
	q.TargetIDs = append([]string(nil), q.TargetIDs...)
	return q
}

// Validate checks the query against the backend allowlists.
func (q Query) Validate() error {
	if len(q.TargetIDs) == 0 {
		return fmt.Errorf("invalid query: at least one dataset id is required")
	}
	for _, id := range q.TargetIDs {
		if id == "" {
			return fmt.Errorf("invalid query: empty dataset id")
		}
	}
	if !IsAllowedStatistic(q.Statistic) {
		return fmt.Errorf("invalid query: statistic %q is not allowed", q.Statistic)
	}
	if !IsAllowedPlotKind(q.PlotKind) {
		return fmt.Errorf("invalid query: plot kind %q is not allowed", q.PlotKind)
	}
	return nil
}

// Payload is the chart data and layout exactly as the backend produced it.
type Payload struct {
	Data   json.RawMessage `json:"data"`
	Layout json.RawMessage `json:"layout"`
}

// Empty reports whether the payload carries no traces.
func (p Payload) Empty() bool {
	return len(p.Data) == 0 || string(p.Data) == "null" || string(p.Data) == "[]"
}

// PlotResult is a settled plot.
type PlotResult struct {
	Payload     Payload
	CacheHit    bool
	GeneratedAt time.Time
	Statistic   string
	PlotKind    string
}

// TaskHandle tracks a deferred backend task. It belongs to exactly one
// generation and is dropped when that generation is superseded.
type TaskHandle struct {
	TaskID    string
	Attempt   int
	NextDelay time.Duration
}

// Facet is one filter value requested as its own plot.
type Facet struct {
	// Key is the filter value sent to the backend (e.g. a carrier name).
	Key string
	// Name is what the UI shows; defaults to Key.
	Name string
}

// DisplayName returns Name, or Key when Name is empty.
func (f Facet) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Key
}

// FacetResult is the outcome for one facet. Exactly one of Result and Err is set.
type FacetResult struct {
	Key         string
	DisplayName string
	Result      *PlotResult
	Err         error
}

// OK reports whether the facet produced a plot.
func (r FacetResult) OK() bool {
	return r.Err == nil && r.Result != nil
}
