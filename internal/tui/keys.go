package tui

import (
	"fmt"
	"slices"

	"github.com/billie-coop/gridscope/internal/plot"
	tea "github.com/charmbracelet/bubbletea/v2"
)

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q":
		m.Close()
		return tea.Quit

	case "up":
		m.sidebar.MoveUp()
	case "down":
		m.sidebar.MoveDown()

	case "space", " ", "enter":
		m.ctrl.SetTargets(m.sidebar.Toggle())

	case "s":
		next := cycle(plot.Statistics(), m.ctrl.Session().Statistic)
		if err := m.ctrl.SetStatistic(next); err != nil {
			return m.statusBar.ShowError(err.Error())
		}

	case "k":
		next := cycle(plot.PlotKinds(), m.ctrl.Session().PlotKind)
		if err := m.ctrl.SetPlotKind(next); err != nil {
			return m.statusBar.ShowError(err.Error())
		}

	case "c":
		return m.cycleCarrier()

	case "f":
		return m.toggleFacets()

	case "tab":
		if len(m.panes) > 1 {
			m.focus = (m.focus + 1) % len(m.panes)
			m.syncFocus()
		}

	case "r":
		m.ctrl.Refresh()
		return m.statusBar.ShowInfo("refreshing")

	case "R":
		return m.clearCache()

	case "t":
		return m.toggleStatistics()

	case "e":
		return m.export()

	default:
		return nil
	}

	m.syncSelection()
	return nil
}

// cycleCarrier steps the carrier filter through "none" and every carrier
// of the primary dataset.
func (m *Model) cycleCarrier() tea.Cmd {
	n, ok := m.sidebar.Primary()
	if !ok {
		return m.statusBar.ShowWarning("no dataset selected")
	}
	facets := n.CarrierFacets()
	if len(facets) == 0 {
		return m.statusBar.ShowWarning(fmt.Sprintf("%s has no carriers", n.DisplayName()))
	}

	options := []string{""}
	for _, f := range facets {
		options = append(options, f.Key)
	}
	current, _ := m.ctrl.Session().Filters[m.facetKey].(string)
	next := cycle(options, current)

	if next == "" {
		m.ctrl.SetFilter(m.facetKey, nil)
	} else {
		m.ctrl.SetFilter(m.facetKey, next)
	}
	m.syncSelection()
	return nil
}

// toggleFacets switches between one merged plot and one plot per carrier.
func (m *Model) toggleFacets() tea.Cmd {
	if m.ctrl.Session().FacetMode {
		m.ctrl.SetFacetMode(false, nil)
		m.setMergedPane()
		m.syncSelection()
		return nil
	}

	n, ok := m.sidebar.Primary()
	if !ok {
		return m.statusBar.ShowWarning("no dataset selected")
	}
	facets := n.CarrierFacets()
	if len(facets) == 0 {
		return m.statusBar.ShowWarning(fmt.Sprintf("%s has no carriers to facet by", n.DisplayName()))
	}
	m.ctrl.SetFacetMode(true, facets)
	m.syncSelection()
	return nil
}

// cycle returns the element after current, wrapping around. An unknown
// current value starts from the first element.
func cycle(options []string, current string) string {
	if len(options) == 0 {
		return current
	}
	i := slices.Index(options, current)
	return options[(i+1)%len(options)]
}
