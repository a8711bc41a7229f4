// Package chart turns plot payloads into something a terminal can show and
// into PNG files.
//
// The payload is a plotly-style figure: a data array of traces with x, y
// and name, plus a layout object. Only the parts needed for a sketch are
// read; everything else is ignored.
package chart

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/billie-coop/gridscope/internal/plot"
)

// Trace is one named series.
type Trace struct {
	Name string
	Type string
	X    []string
	Y    []float64
}

// Figure is the readable subset of a payload.
type Figure struct {
	Title  string
	XTitle string
	YTitle string
	Traces []Trace
}

type rawTrace struct {
	Type string            `json:"type"`
	Name string            `json:"name"`
	X    []json.RawMessage `json:"x"`
	Y    []json.RawMessage `json:"y"`
}

type rawTitle struct {
	Text string `json:"text"`
}

// UnmarshalJSON accepts both {"text": "..."} and a bare string.
func (t *rawTitle) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		t.Text = s
		return nil
	}
	type plain rawTitle
	return json.Unmarshal(b, (*plain)(t))
}

type rawLayout struct {
	Title *rawTitle `json:"title"`
	XAxis struct {
		Title *rawTitle `json:"title"`
	} `json:"xaxis"`
	YAxis struct {
		Title *rawTitle `json:"title"`
	} `json:"yaxis"`
}

// Parse reads a payload. Traces without y values are skipped; missing x
// values default to the point index.
func Parse(p plot.Payload) (Figure, error) {
	var fig Figure
	if p.Empty() {
		return fig, fmt.Errorf("payload has no traces")
	}

	var traces []rawTrace
	if err := json.Unmarshal(p.Data, &traces); err != nil {
		return fig, fmt.Errorf("failed to parse traces: %w", err)
	}

	if len(p.Layout) > 0 && string(p.Layout) != "null" {
		var layout rawLayout
		if err := json.Unmarshal(p.Layout, &layout); err != nil {
			return fig, fmt.Errorf("failed to parse layout: %w", err)
		}
		fig.Title = titleText(layout.Title)
		fig.XTitle = titleText(layout.XAxis.Title)
		fig.YTitle = titleText(layout.YAxis.Title)
	}

	for i, rt := range traces {
		if len(rt.Y) == 0 {
			continue
		}
		t := Trace{Name: rt.Name, Type: rt.Type}
		if t.Name == "" {
			t.Name = "trace " + strconv.Itoa(i)
		}
		for j, raw := range rt.Y {
			t.Y = append(t.Y, number(raw))
			if j < len(rt.X) {
				t.X = append(t.X, label(rt.X[j]))
			} else {
				t.X = append(t.X, strconv.Itoa(j))
			}
		}
		fig.Traces = append(fig.Traces, t)
	}

	if len(fig.Traces) == 0 {
		return fig, fmt.Errorf("payload has no plottable traces")
	}
	return fig, nil
}

// Categories returns the distinct x labels in first-seen order.
func (f Figure) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range f.Traces {
		for _, x := range t.X {
			if !seen[x] {
				seen[x] = true
				out = append(out, x)
			}
		}
	}
	return out
}

func titleText(t *rawTitle) string {
	if t == nil {
		return ""
	}
	return t.Text
}

// number reads a JSON number or numeric string; anything else is 0.
func number(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return 0
}

func label(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return string(raw)
}
