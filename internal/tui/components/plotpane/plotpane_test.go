package plotpane

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/billie-coop/gridscope/internal/plot"
	"github.com/billie-coop/gridscope/internal/surface"
	"github.com/charmbracelet/x/ansi"
)

func payload(t *testing.T) plot.Payload {
	t.Helper()
	data, err := json.Marshal([]map[string]any{
		{"name": "wind", "type": "bar", "x": []int{2030, 2040}, "y": []float64{10, 20}},
	})
	if err != nil {
		t.Fatal(err)
	}
	layout, _ := json.Marshal(map[string]any{"title": map[string]any{"text": "Energy balance"}})
	return plot.Payload{Data: data, Layout: layout}
}

func bind(t *testing.T, reg *surface.Registry, key string, p plot.Payload) {
	t.Helper()
	a := surface.NewAttacher(reg)
	err := a.Attach(context.Background(), key, 1, plot.PlotResult{Payload: p}, func(effect func()) bool {
		effect()
		return true
	})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
}

func TestRefreshRendersBinding(t *testing.T) {
	reg := surface.NewRegistry()
	pane := New(surface.MergedKey, "merged")
	w, h := pane.SetSize(60, 14)
	if w != 58 || h != 11 {
		t.Fatalf("inner size = %dx%d, want 58x11", w, h)
	}
	s := reg.Register(surface.MergedKey, w, h)

	pane.SetPending()
	if !pane.Pending() {
		t.Fatal("pane should be pending")
	}

	bind(t, reg, surface.MergedKey, payload(t))
	pane.Refresh(s)

	if pane.Pending() {
		t.Error("refresh with a binding should end pending")
	}
	fig, ok := pane.Figure()
	if !ok || fig.Title != "Energy balance" {
		t.Fatalf("figure = %+v, %v", fig, ok)
	}
	view := ansi.Strip(pane.View())
	if !strings.Contains(view, "wind") {
		t.Errorf("view should contain the legend, got:\n%s", view)
	}
}

func TestRefreshWithoutBindingEmptiesPane(t *testing.T) {
	reg := surface.NewRegistry()
	pane := New(surface.MergedKey, "merged")
	w, h := pane.SetSize(40, 10)
	s := reg.Register(surface.MergedKey, w, h)

	bind(t, reg, surface.MergedKey, payload(t))
	pane.Refresh(s)
	reg.Clear(surface.MergedKey)
	pane.Refresh(s)

	if _, ok := pane.Figure(); ok {
		t.Error("cleared surface should leave the pane empty")
	}
}

func TestUnparseablePayloadShowsRenderError(t *testing.T) {
	reg := surface.NewRegistry()
	pane := New(surface.FacetKey(0), "AC")
	w, h := pane.SetSize(40, 10)
	s := reg.Register(surface.FacetKey(0), w, h)

	bind(t, reg, surface.FacetKey(0), plot.Payload{Data: json.RawMessage(`{"not":"traces"}`)})
	pane.Refresh(s)

	var rerr *plot.RenderError
	if !errors.As(pane.Err(), &rerr) {
		t.Fatalf("expected RenderError, got %v", pane.Err())
	}
}

func TestSetError(t *testing.T) {
	pane := New(surface.FacetKey(1), "DC")
	pane.SetSize(60, 8)
	pane.SetPending()
	pane.SetError(&plot.DomainError{Message: "no DC links"})

	if pane.Pending() {
		t.Error("error should end pending")
	}
	if !strings.Contains(ansi.Strip(pane.View()), "no DC links") {
		t.Errorf("view should show the error, got:\n%s", pane.View())
	}
}
