package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/events"
	"github.com/billie-coop/gridscope/internal/orchestrator"
	"github.com/billie-coop/gridscope/internal/plot"
	"github.com/billie-coop/gridscope/internal/surface"
	tea "github.com/charmbracelet/bubbletea/v2"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/charmbracelet/x/ansi"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

type fakeController struct {
	session  orchestrator.Session
	refresh  int
	table    *plot.Table
	tableErr error
	cleared  int
}

func newFakeController() *fakeController {
	return &fakeController{session: orchestrator.DefaultSession()}
}

func (f *fakeController) Session() orchestrator.Session { return f.session.Clone() }
func (f *fakeController) SetTargets(ids []string)       { f.session.Targets = ids }
func (f *fakeController) Refresh()                      { f.refresh++ }

func (f *fakeController) SetStatistic(name string) error {
	if !plot.IsAllowedStatistic(name) {
		return errors.New("unknown statistic")
	}
	f.session.Statistic = name
	return nil
}

func (f *fakeController) SetPlotKind(kind string) error {
	if !plot.IsAllowedPlotKind(kind) {
		return errors.New("unknown plot kind")
	}
	f.session.PlotKind = kind
	return nil
}

func (f *fakeController) SetFilter(key string, value any) {
	if value == nil {
		delete(f.session.Filters, key)
		return
	}
	f.session.Filters[key] = value
}

func (f *fakeController) SetFacetMode(on bool, facets []plot.Facet) {
	f.session.FacetMode = on
	f.session.Facets = facets
}

func (f *fakeController) Statistics(context.Context) (*plot.Table, error) {
	return f.table, f.tableErr
}

func (f *fakeController) ClearCache(context.Context) (int, error) {
	f.cleared++
	f.refresh++
	return 3, nil
}

type fakeCatalog struct {
	networks []api.Network
	err      error
}

func (c fakeCatalog) ListNetworks(ctx context.Context, skip, limit int) (*api.NetworkList, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &api.NetworkList{Data: c.networks, Meta: api.NetworkMeta{Total: len(c.networks)}}, nil
}

func catalogNetworks() []api.Network {
	return []api.Network{
		{
			ID:   "eu-2050",
			Name: "Europe 2050",
			Facets: &api.Facets{Carriers: map[string]map[string]any{
				"AC": {"nice_name": "AC grid"},
				"H2": {"nice_name": "Hydrogen"},
			}},
		},
		{ID: "toy", Filename: "toy.nc"},
	}
}

type harness struct {
	m        *Model
	ctrl     *fakeController
	surfaces *surface.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := newFakeController()
	surfaces := surface.NewRegistry()
	m := New(Options{
		Controller: ctrl,
		Catalog:    fakeCatalog{networks: catalogNetworks()},
		Surfaces:   surfaces,
		Broker:     events.NewBroker(),
		Logger:     zerolog.Nop(),
		ExportDir:  t.TempDir(),
	})
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return &harness{m: m, ctrl: ctrl, surfaces: surfaces}
}

func (h *harness) load(t *testing.T) {
	t.Helper()
	msg := h.m.loadNetworks()()
	h.m.Update(msg)
}

func (h *harness) key(s string) {
	h.m.handleKey(keyPress(s))
}

// keyPress builds a key event whose String() is s.
func keyPress(s string) tea.KeyPressMsg {
	switch s {
	case "up":
		return tea.KeyPressMsg{Code: tea.KeyUp}
	case "down":
		return tea.KeyPressMsg{Code: tea.KeyDown}
	case "space":
		return tea.KeyPressMsg{Code: tea.KeySpace, Text: " "}
	case "tab":
		return tea.KeyPressMsg{Code: tea.KeyTab}
	}
	r := []rune(s)[0]
	return tea.KeyPressMsg{Code: r, Text: s}
}

func bindPayload(t *testing.T, reg *surface.Registry, key string) {
	t.Helper()
	data, _ := json.Marshal([]map[string]any{
		{"name": "wind", "x": []int{2030, 2040}, "y": []float64{1, 2}},
	})
	a := surface.NewAttacher(reg)
	err := a.Attach(context.Background(), key, 1, plot.PlotResult{Payload: plot.Payload{Data: data}},
		func(effect func()) bool { effect(); return true })
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
}

func TestLayoutRegistersMergedSurface(t *testing.T) {
	h := newHarness(t)

	s, ok := h.surfaces.Get(surface.MergedKey)
	if !ok {
		t.Fatal("merged surface not registered")
	}
	if !s.Ready() {
		t.Error("merged surface should have a non-zero extent after layout")
	}
	w, _ := s.Size()
	if want := (120 - sidebarWidth - 2) - 2; w != want {
		t.Errorf("surface width = %d, want %d", w, want)
	}
}

func TestCatalogSelectsFirstDataset(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	if diff := cmp.Diff([]string{"eu-2050"}, h.ctrl.session.Targets); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}

	h.key("down")
	h.key("space")
	if diff := cmp.Diff([]string{"eu-2050", "toy"}, h.ctrl.session.Targets); diff != "" {
		t.Errorf("targets after toggle mismatch (-want +got):\n%s", diff)
	}
}

func TestCatalogErrorShownInStatus(t *testing.T) {
	h := newHarness(t)
	h.m.catalog = fakeCatalog{err: errors.New("connection refused")}
	h.load(t)

	msg, ok := h.m.statusBar.Message()
	if !ok || !strings.Contains(msg.Content, "could not load datasets") {
		t.Errorf("status = %+v", msg)
	}
}

func TestSelectionKeys(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	h.key("s")
	if got := h.ctrl.session.Statistic; got != cycle(plot.Statistics(), "energy_balance") {
		t.Errorf("statistic = %s", got)
	}
	h.key("k")
	if got := h.ctrl.session.PlotKind; got != cycle(plot.PlotKinds(), "area") {
		t.Errorf("kind = %s", got)
	}

	h.key("c")
	if got := h.ctrl.session.Filters[orchestrator.DefaultFacetParameter]; got != "AC" {
		t.Errorf("carrier filter = %v, want AC", got)
	}
	h.key("c")
	h.key("c")
	if _, ok := h.ctrl.session.Filters[orchestrator.DefaultFacetParameter]; ok {
		t.Error("third cycle should clear the carrier filter")
	}

	h.key("r")
	if h.ctrl.refresh != 1 {
		t.Errorf("refresh calls = %d, want 1", h.ctrl.refresh)
	}
}

func TestFacetToggle(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	h.key("f")
	if !h.ctrl.session.FacetMode || len(h.ctrl.session.Facets) != 2 {
		t.Fatalf("facet mode = %v with %d facets", h.ctrl.session.FacetMode, len(h.ctrl.session.Facets))
	}

	h.m.handleEvent(events.Event{Type: events.FacetsPreparedEvent, Payload: events.FacetsPreparedPayload{
		GenerationID: 2,
		Facets:       h.ctrl.session.Facets,
		SurfaceKeys:  []string{surface.FacetKey(0), surface.FacetKey(1)},
	}})
	if len(h.m.panes) != 2 || h.m.panes[1].Title() != "Hydrogen" {
		t.Fatalf("expected two facet panes, got %d", len(h.m.panes))
	}
	for _, key := range []string{surface.FacetKey(0), surface.FacetKey(1)} {
		if s, ok := h.surfaces.Get(key); !ok || !s.Ready() {
			t.Errorf("facet surface %s not ready", key)
		}
	}

	h.key("f")
	if h.ctrl.session.FacetMode {
		t.Error("second toggle should leave facet mode")
	}
	if _, ok := h.surfaces.Get(surface.FacetKey(0)); ok {
		t.Error("facet surfaces should be removed when leaving facet mode")
	}
	if len(h.m.panes) != 1 || h.m.panes[0].Key() != surface.MergedKey {
		t.Error("expected the merged pane back")
	}
}

func TestFacetsCompletedMarksFailedSlots(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.key("f")
	keys := []string{surface.FacetKey(0), surface.FacetKey(1)}
	h.m.handleEvent(events.Event{Type: events.FacetsPreparedEvent, Payload: events.FacetsPreparedPayload{
		GenerationID: 2, Facets: h.ctrl.session.Facets, SurfaceKeys: keys,
	}})

	bindPayload(t, h.surfaces, keys[0])
	failure := &plot.DomainError{Message: "no hydrogen buses"}
	h.m.handleEvent(events.Event{Type: events.FacetsCompletedEvent, Payload: events.FacetsCompletedPayload{
		GenerationID: 2,
		Results: []plot.FacetResult{
			{Key: "AC", Result: &plot.PlotResult{}},
			{Key: "H2", Err: failure},
		},
		Err: &plot.PartialFailure{Failed: 1, Total: 2},
	}})

	if _, ok := h.m.panes[0].Figure(); !ok {
		t.Error("successful facet should show its plot")
	}
	if !errors.Is(h.m.panes[1].Err(), failure) {
		t.Errorf("failed facet error = %v", h.m.panes[1].Err())
	}
	if msg, _ := h.m.statusBar.Message(); !strings.Contains(msg.Content, "1 of 2 facets failed") {
		t.Errorf("status = %q", msg.Content)
	}
}

func TestPlotFailedShowsErrorPanel(t *testing.T) {
	h := newHarness(t)

	h.m.handleEvent(events.Event{Type: events.GenerationStartedEvent, Payload: events.GenerationPayload{
		ID: 1, State: "submitted", Query: plot.Query{Statistic: "capex", PlotKind: "bar"},
	}})
	if !h.m.panes[0].Pending() {
		t.Fatal("merged pane should be pending after start")
	}

	h.m.handleEvent(events.Event{Type: events.PlotFailedEvent, Payload: events.PlotFailedPayload{
		GenerationID: 1,
		Kind:         plot.KindDomain,
		Err:          &plot.DomainError{Message: "division by zero"},
	}})

	if !h.m.errorPanel.Visible() {
		t.Fatal("error panel should be visible")
	}
	if h.m.panes[0].Pending() {
		t.Error("failure should stop the spinner")
	}
	if !strings.Contains(ansi.Strip(h.m.errorPanel.View()), "division by zero") {
		t.Error("error panel should contain the error detail")
	}

	// The next generation clears the panel
	h.m.handleEvent(events.Event{Type: events.GenerationStartedEvent, Payload: events.GenerationPayload{ID: 2, State: "submitted"}})
	if h.m.errorPanel.Visible() {
		t.Error("a new generation should clear the error panel")
	}
}

func TestPlotRenderedRefreshesPane(t *testing.T) {
	h := newHarness(t)

	h.m.handleEvent(events.Event{Type: events.GenerationStartedEvent, Payload: events.GenerationPayload{ID: 1, State: "submitted"}})
	bindPayload(t, h.surfaces, surface.MergedKey)
	h.m.handleEvent(events.Event{Type: events.PlotRenderedEvent, Payload: events.PlotRenderedPayload{
		GenerationID: 1, SurfaceKey: surface.MergedKey,
	}})

	if h.m.panes[0].Pending() {
		t.Error("rendered plot should end pending")
	}
	if _, ok := h.m.panes[0].Figure(); !ok {
		t.Error("pane should show the bound figure")
	}
}

func TestExportWritesPNG(t *testing.T) {
	h := newHarness(t)
	bindPayload(t, h.surfaces, surface.MergedKey)
	h.m.refresh(surface.MergedKey)

	cmd := h.m.export()
	if cmd == nil {
		t.Fatal("expected an export command")
	}
	done, ok := cmd().(exportDoneMsg)
	if !ok || done.err != nil {
		t.Fatalf("export = %+v", done)
	}
	if !strings.HasSuffix(done.path, "-merged.png") {
		t.Errorf("export path = %s", done.path)
	}
}

func TestCycle(t *testing.T) {
	opts := []string{"a", "b", "c"}
	tests := map[string]string{"a": "b", "c": "a", "zzz": "a"}
	for in, want := range tests {
		if got := cycle(opts, in); got != want {
			t.Errorf("cycle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRestoredTargetsSurviveCatalog(t *testing.T) {
	h := newHarness(t)
	h.ctrl.session.Targets = []string{"toy", "gone"}
	h.load(t)

	if diff := cmp.Diff([]string{"toy"}, h.ctrl.session.Targets); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
	if h.ctrl.refresh != 1 {
		t.Errorf("restored selection should be plotted right away, refresh calls = %d", h.ctrl.refresh)
	}
}

func TestRestoreFacetMode(t *testing.T) {
	h := newHarness(t)
	h.m.restoreFacets = true
	h.ctrl.session.Targets = []string{"eu-2050"}
	h.load(t)

	if !h.ctrl.session.FacetMode || len(h.ctrl.session.Facets) != 2 {
		t.Errorf("facet mode should be restored, got %v with %d facets",
			h.ctrl.session.FacetMode, len(h.ctrl.session.Facets))
	}
}

func TestStatisticsTableToggle(t *testing.T) {
	h := newHarness(t)
	h.load(t)
	h.ctrl.table = &plot.Table{
		Statistic: "supply",
		Columns:   []string{"2030"},
		Index:     []string{"wind"},
		Rows:      [][]any{{42.0}},
	}

	h.key("t")
	if !h.m.showStats || !h.m.stats.Loading() {
		t.Fatal("t should show the table and start a fetch")
	}
	s, _ := h.surfaces.Get(surface.MergedKey)
	if _, height := s.Size(); height >= 40-statusHeight-3 {
		t.Errorf("the table should take room from the plots, surface height %d", height)
	}

	h.m.Update(h.m.fetchStatistics()())
	if tbl, ok := h.m.stats.Table(); !ok || tbl.Statistic != "supply" {
		t.Fatalf("table not shown: %+v", tbl)
	}
	if !strings.Contains(ansi.Strip(h.m.View().Layer.(*uv.StyledString).Text), "42") {
		t.Error("view should contain the table values")
	}

	// A superseded fetch leaves the current table alone
	h.m.Update(statisticsLoadedMsg{err: plot.ErrSuperseded})
	if _, ok := h.m.stats.Table(); !ok {
		t.Error("superseded fetch must not clear the table")
	}

	h.ctrl.tableErr = &plot.DomainError{Message: "no such carrier"}
	h.m.Update(h.m.fetchStatistics()())
	if h.m.stats.Err() == nil {
		t.Error("fetch errors should be shown in the table")
	}

	h.key("t")
	if h.m.showStats {
		t.Error("second t should hide the table")
	}
}

func TestGenerationRefetchesVisibleTable(t *testing.T) {
	h := newHarness(t)
	h.m.showStats = true

	cmd := h.m.handleEvent(events.Event{Type: events.GenerationStartedEvent, Payload: events.GenerationPayload{ID: 3, State: "submitted"}})
	if cmd == nil || !h.m.stats.Loading() {
		t.Error("a new generation should refetch the visible table")
	}
}

func TestClearCacheKey(t *testing.T) {
	h := newHarness(t)

	if cmd := h.m.handleKey(keyPress("R")); cmd == nil {
		t.Fatal("R should return a command")
	}
	h.m.Update(h.m.requestCacheClear()())

	if h.ctrl.cleared != 1 {
		t.Errorf("ClearCache calls = %d, want 1", h.ctrl.cleared)
	}
	if msg, _ := h.m.statusBar.Message(); !strings.Contains(msg.Content, "cleared 3 cached plots") {
		t.Errorf("status = %q", msg.Content)
	}
}
