package tui

import (
	"context"
	"fmt"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/events"
	"github.com/billie-coop/gridscope/internal/orchestrator"
	"github.com/billie-coop/gridscope/internal/plot"
	"github.com/billie-coop/gridscope/internal/surface"
	"github.com/billie-coop/gridscope/internal/tui/components/errorpanel"
	"github.com/billie-coop/gridscope/internal/tui/components/plotpane"
	"github.com/billie-coop/gridscope/internal/tui/components/sidebar"
	"github.com/billie-coop/gridscope/internal/tui/components/statstable"
	"github.com/billie-coop/gridscope/internal/tui/components/status"
	"github.com/billie-coop/gridscope/internal/tui/styles"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/rs/zerolog"
)

// Controller receives the user's selection changes.
type Controller interface {
	Session() orchestrator.Session
	SetTargets(ids []string)
	SetStatistic(name string) error
	SetPlotKind(kind string) error
	SetFilter(key string, value any)
	SetFacetMode(on bool, facets []plot.Facet)
	Refresh()
	Statistics(ctx context.Context) (*plot.Table, error)
	ClearCache(ctx context.Context) (int, error)
}

// Catalog lists the datasets the user can plot.
type Catalog interface {
	ListNetworks(ctx context.Context, skip, limit int) (*api.NetworkList, error)
}

// Options configures the TUI model.
type Options struct {
	Controller Controller
	Catalog    Catalog
	Surfaces   *surface.Registry
	Broker     *events.Broker
	Logger     zerolog.Logger

	// ExportDir receives PNG exports.
	ExportDir string
	// Backend is shown in the sidebar header.
	Backend string
	// FacetParameter is the filter key cycled by the carrier key.
	FacetParameter string
	// RestoreFacets turns facet mode back on once the catalog is loaded.
	RestoreFacets bool
}

// Model is the root bubbletea model.
type Model struct {
	width  int
	height int

	sidebar    *sidebar.Model
	panes      []*plotpane.Model
	focus      int
	errorPanel *errorpanel.Model
	stats      *statstable.Model
	showStats  bool
	statusBar  *status.Component

	ctrl      Controller
	catalog   Catalog
	surfaces  *surface.Registry
	exportDir string
	facetKey  string
	log       zerolog.Logger

	restoreFacets bool

	eventBroker *events.Broker
	eventSub    <-chan events.Event
	generation  events.GenerationPayload
}

// New creates the root model and subscribes it to the broker.
func New(opts Options) *Model {
	facetKey := opts.FacetParameter
	if facetKey == "" {
		facetKey = orchestrator.DefaultFacetParameter
	}
	m := &Model{
		sidebar:    sidebar.New(),
		panes:      []*plotpane.Model{plotpane.New(surface.MergedKey, "plot")},
		errorPanel: errorpanel.New(),
		stats:      statstable.New(),
		statusBar:  status.New(),
		ctrl:       opts.Controller,
		catalog:    opts.Catalog,
		surfaces:   opts.Surfaces,
		exportDir:  opts.ExportDir,
		facetKey:   facetKey,

		restoreFacets: opts.RestoreFacets,
		log:           opts.Logger.With().Str("component", "tui").Logger(),
		eventBroker:   opts.Broker,
	}
	m.sidebar.SetBackend(opts.Backend)
	m.syncSelection()
	if m.eventBroker != nil {
		m.eventSub = m.eventBroker.Subscribe()
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadNetworks()}
	if m.eventSub != nil {
		cmds = append(cmds, m.listenForEvents())
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case events.Event:
		return m, tea.Batch(m.handleEvent(msg), m.listenForEvents())

	case networksLoadedMsg:
		return m, m.handleNetworks(msg)

	case statisticsLoadedMsg:
		return m, m.handleStatistics(msg)

	case cacheClearedMsg:
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("failed to clear plot cache")
			return m, m.statusBar.ShowError("could not clear the plot cache")
		}
		return m, m.statusBar.ShowSuccess(fmt.Sprintf("cleared %d cached plots, replotting", msg.deleted))

	case exportDoneMsg:
		if msg.err != nil {
			return m, m.statusBar.ShowError("export failed: " + msg.err.Error())
		}
		return m, m.statusBar.ShowSuccess("saved " + msg.path)

	case status.ClearMessageMsg:
		m.statusBar.Update(msg)
		return m, nil
	}

	// Remaining messages (spinner ticks, mouse) go to the children.
	for i, p := range m.panes {
		var cmd tea.Cmd
		m.panes[i], cmd = p.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.errorPanel, cmd = m.errorPanel.Update(msg)
	cmds = append(cmds, cmd)
	m.stats, cmd = m.stats.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) View() tea.View {
	if m.width == 0 || m.height == 0 {
		return tea.NewView("")
	}
	theme := styles.CurrentTheme()

	sidebarView := lipgloss.NewStyle().
		Width(sidebarWidth).
		Height(m.height - statusHeight).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Render(m.sidebar.View())

	main := m.plotArea()
	if m.showStats {
		main = lipgloss.JoinVertical(lipgloss.Left, main, m.stats.View())
	}
	if m.errorPanel.Visible() {
		main = lipgloss.JoinVertical(lipgloss.Left, main, m.errorPanel.View())
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebarView, main)
	return tea.NewView(lipgloss.JoinVertical(lipgloss.Left, body, m.statusBar.View()))
}

func (m *Model) plotArea() string {
	cols := columns(len(m.panes))
	var rows []string
	for start := 0; start < len(m.panes); start += cols {
		end := min(start+cols, len(m.panes))
		row := make([]string, 0, end-start)
		for _, p := range m.panes[start:end] {
			row = append(row, p.View())
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// Close unsubscribes from the broker.
func (m *Model) Close() {
	if m.eventBroker != nil && m.eventSub != nil {
		m.eventBroker.Unsubscribe(m.eventSub)
		m.eventSub = nil
	}
}

// syncSelection copies the controller's session into the sidebar.
func (m *Model) syncSelection() {
	if m.ctrl == nil {
		return
	}
	sess := m.ctrl.Session()
	m.sidebar.SetSelection(sidebar.Selection{
		Statistic: sess.Statistic,
		PlotKind:  sess.PlotKind,
		Filters:   sess.Filters,
		FacetMode: sess.FacetMode,
		Facets:    len(sess.Facets),
	})
}
