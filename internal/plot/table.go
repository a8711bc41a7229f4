package plot

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// SeriesColumn names the single column of a table decoded from a series.
const SeriesColumn = "value"

// Table is a statistic returned as numbers instead of a chart.
type Table struct {
	Statistic   string
	Columns     []string
	Index       []string
	Rows        [][]any
	GeneratedAt time.Time
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Cell formats one value for display. Missing cells and nulls are blank.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	switch v := t.Rows[row][col].(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'g', 6, 64)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

type splitFrame struct {
	Index   []any   `json:"index"`
	Columns []any   `json:"columns"`
	Data    [][]any `json:"data"`
}

// DecodeTable reads a serialized frame. Frames arrive in the "split" layout
// ({"index", "columns", "data"}); series arrive as a flat object, which
// becomes one SeriesColumn ordered by key.
func DecodeTable(raw json.RawMessage) (*Table, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("statistics data is not an object: %w", err)
	}
	if fields == nil {
		return nil, errors.New("statistics data is empty")
	}

	_, hasData := fields["data"]
	_, hasColumns := fields["columns"]
	if hasData && hasColumns {
		var f splitFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("failed to decode frame: %w", err)
		}
		if len(f.Index) != len(f.Data) {
			return nil, fmt.Errorf("frame has %d index labels for %d rows", len(f.Index), len(f.Data))
		}
		t := &Table{Columns: labels(f.Columns), Index: labels(f.Index), Rows: f.Data}
		for i, row := range t.Rows {
			if len(row) != len(t.Columns) {
				return nil, fmt.Errorf("frame row %d has %d values for %d columns", i, len(row), len(t.Columns))
			}
		}
		return t, nil
	}

	var series map[string]any
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, fmt.Errorf("failed to decode series: %w", err)
	}
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := &Table{Columns: []string{SeriesColumn}, Index: keys, Rows: make([][]any, len(keys))}
	for i, k := range keys {
		switch series[k].(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("series value %q is not a scalar", k)
		}
		t.Rows[i] = []any{series[k]}
	}
	return t, nil
}

func labels(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case string:
			out[i] = v
		case float64:
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		case []any:
			// multi-level labels
			parts := make([]string, len(v))
			for j, p := range v {
				parts[j] = fmt.Sprint(p)
			}
			out[i] = fmt.Sprint(parts)
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
