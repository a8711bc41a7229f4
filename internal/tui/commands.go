package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/chart"
	"github.com/billie-coop/gridscope/internal/plot"
	tea "github.com/charmbracelet/bubbletea/v2"
)

const (
	catalogPageSize = 100
	catalogTimeout  = 10 * time.Second

	exportWidth  = 1280
	exportHeight = 720

	cacheTimeout = 10 * time.Second
)

type networksLoadedMsg struct {
	networks []api.Network
	total    int
	err      error
}

type statisticsLoadedMsg struct {
	table *plot.Table
	err   error
}

type cacheClearedMsg struct {
	deleted int
	err     error
}

type exportDoneMsg struct {
	path string
	err  error
}

// loadNetworks fetches the first catalog page.
func (m *Model) loadNetworks() tea.Cmd {
	if m.catalog == nil {
		return nil
	}
	catalog := m.catalog
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
		defer cancel()

		list, err := catalog.ListNetworks(ctx, 0, catalogPageSize)
		if err != nil {
			return networksLoadedMsg{err: err}
		}
		return networksLoadedMsg{networks: list.Data, total: list.Meta.Total}
	}
}

func (m *Model) handleNetworks(msg networksLoadedMsg) tea.Cmd {
	m.sidebar.SetNetworks(msg.networks, msg.err)
	if msg.err != nil {
		m.log.Error().Err(msg.err).Msg("failed to load catalog")
		return m.statusBar.ShowError("could not load datasets")
	}
	m.log.Debug().Int("count", len(msg.networks)).Int("total", msg.total).Msg("catalog loaded")

	if len(msg.networks) == 0 {
		return m.statusBar.ShowWarning("the backend has no datasets")
	}
	var cmd tea.Cmd
	if restored := m.restoreTargets(); !restored {
		// Plot the first dataset right away
		m.ctrl.SetTargets(m.sidebar.Select(msg.networks[0].ID))
		m.syncSelection()
	} else if m.restoreFacets {
		cmd = m.toggleFacets()
	} else {
		m.ctrl.Refresh()
	}
	m.restoreFacets = false

	if msg.total > len(msg.networks) {
		return tea.Batch(cmd, m.statusBar.ShowInfo(fmt.Sprintf("showing %d of %d datasets", len(msg.networks), msg.total)))
	}
	return cmd
}

// restoreTargets selects the session's targets that still exist in the
// catalog. It reports false when none survive.
func (m *Model) restoreTargets() bool {
	targets := m.ctrl.Session().Targets
	if len(targets) == 0 {
		return false
	}
	kept := m.sidebar.SetSelected(targets)
	if len(kept) == 0 {
		return false
	}
	if len(kept) != len(targets) {
		m.ctrl.SetTargets(kept)
	}
	m.syncSelection()
	return true
}

// toggleStatistics shows or hides the statistics table, fetching it when shown.
func (m *Model) toggleStatistics() tea.Cmd {
	m.showStats = !m.showStats
	m.layout()
	if !m.showStats {
		return nil
	}
	return m.loadStatistics()
}

// loadStatistics fetches the selection's statistic as a table. The fetch
// lives as long as the current generation.
func (m *Model) loadStatistics() tea.Cmd {
	return tea.Batch(m.stats.SetLoading(), m.fetchStatistics())
}

func (m *Model) fetchStatistics() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		tbl, err := ctrl.Statistics(context.Background())
		return statisticsLoadedMsg{table: tbl, err: err}
	}
}

func (m *Model) handleStatistics(msg statisticsLoadedMsg) tea.Cmd {
	if errors.Is(msg.err, plot.ErrSuperseded) {
		// a newer fetch is on its way
		return nil
	}
	if msg.err != nil {
		m.log.Warn().Err(msg.err).Msg("statistics fetch failed")
		m.stats.SetError(msg.err)
		return nil
	}
	m.stats.SetTable(msg.table)
	return nil
}

// clearCache drops the backend's cached plots; the controller replots.
func (m *Model) clearCache() tea.Cmd {
	return tea.Batch(m.statusBar.ShowInfo("clearing plot cache"), m.requestCacheClear())
}

func (m *Model) requestCacheClear() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
		defer cancel()
		n, err := ctrl.ClearCache(ctx)
		return cacheClearedMsg{deleted: n, err: err}
	}
}

// export writes the focused pane's plot as a PNG under the export directory.
func (m *Model) export() tea.Cmd {
	if len(m.panes) == 0 {
		return nil
	}
	pane := m.panes[m.focus]
	fig, ok := pane.Figure()
	if !ok {
		return m.statusBar.ShowWarning("nothing to export")
	}

	sess := m.ctrl.Session()
	name := fmt.Sprintf("%s-%s-%s-%s.png",
		sess.Statistic, sess.PlotKind, sess.Query().Key(),
		strings.ReplaceAll(pane.Key(), "/", "-"))
	dir := m.exportDir
	log := m.log

	return func() tea.Msg {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exportDoneMsg{err: err}
		}
		path := filepath.Join(dir, name)
		if err := chart.SavePNG(path, fig, exportWidth, exportHeight); err != nil {
			log.Error().Err(err).Str("path", path).Msg("export failed")
			return exportDoneMsg{err: err}
		}
		log.Info().Str("path", path).Msg("plot exported")
		return exportDoneMsg{path: path}
	}
}
