package chart

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/billie-coop/gridscope/internal/plot"
)

func payload(data, layout string) plot.Payload {
	return plot.Payload{Data: []byte(data), Layout: []byte(layout)}
}

func TestParse(t *testing.T) {
	p := payload(
		`[{"type":"bar","name":"wind","x":["2030","2040"],"y":[10,"20.5"]},
		  {"type":"bar","x":[2030],"y":[null]},
		  {"type":"scatter","name":"empty"}]`,
		`{"title":{"text":"Energy balance"},"xaxis":{"title":"period"},"yaxis":{"title":{"text":"TWh"}}}`,
	)

	fig, err := Parse(p)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := Figure{
		Title:  "Energy balance",
		XTitle: "period",
		YTitle: "TWh",
		Traces: []Trace{
			{Name: "wind", Type: "bar", X: []string{"2030", "2040"}, Y: []float64{10, 20.5}},
			{Name: "trace 1", Type: "bar", X: []string{"2030"}, Y: []float64{0}},
		},
	}
	if diff := cmp.Diff(want, fig); diff != "" {
		t.Errorf("figure mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"2030", "2040"}, fig.Categories()); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	tests := []struct {
		name string
		p    plot.Payload
	}{
		{"no data", plot.Payload{}},
		{"empty array", payload(`[]`, `{}`)},
		{"no y values", payload(`[{"name":"x"}]`, `{}`)},
		{"not json", payload(`{{`, `{}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.p); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestTextFitsSurface(t *testing.T) {
	fig := Figure{
		Title: "Capacity",
		Traces: []Trace{
			{Name: "wind", X: []string{"DE", "FR"}, Y: []float64{30, 10}},
			{Name: "solar", X: []string{"DE", "FR"}, Y: []float64{10, -10}},
		},
	}

	out := Text(fig, 40, 6)
	lines := strings.Split(out, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected title, two rows and legend, got %d lines:\n%s", len(lines), out)
	}
	for _, l := range lines {
		if n := len([]rune(l)); n > 40 {
			t.Errorf("line exceeds width (%d): %q", n, l)
		}
	}
	if !strings.HasPrefix(lines[1], "DE ") || !strings.HasSuffix(lines[1], "40.0") {
		t.Errorf("unexpected DE row %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "20.0") {
		t.Errorf("negative values should count by magnitude, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "█ wind") || !strings.Contains(lines[3], "▓ solar") {
		t.Errorf("unexpected legend %q", lines[3])
	}

	// The DE row is the peak and fills the whole bar.
	de := strings.Count(lines[1], "█") + strings.Count(lines[1], "▓")
	fr := strings.Count(lines[2], "█") + strings.Count(lines[2], "▓")
	if diff := de - 2*fr; diff < -1 || diff > 1 {
		t.Errorf("bar lengths should be proportional: DE=%d FR=%d", de, fr)
	}
}

func TestTextTooSmall(t *testing.T) {
	fig := Figure{Traces: []Trace{{Name: "a", X: []string{"x"}, Y: []float64{1}}}}
	if out := Text(fig, 5, 2); out != "" {
		t.Errorf("expected nothing for a tiny surface, got %q", out)
	}
}

func TestWritePNG(t *testing.T) {
	fig := Figure{
		Title: "Supply",
		Traces: []Trace{
			{Name: "wind", X: []string{"2030", "2040", "2050"}, Y: []float64{1, 2, 3}},
			{Name: "gas", X: []string{"2030"}, Y: []float64{2}},
		},
	}

	var buf bytes.Buffer
	if err := WritePNG(&buf, fig, 640, 360); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 640 || b.Dy() != 360 {
		t.Errorf("unexpected size %v", b)
	}
}
