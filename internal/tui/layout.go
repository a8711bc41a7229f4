package tui

import (
	"math"
	"slices"
	"strings"

	"github.com/billie-coop/gridscope/internal/surface"
	"github.com/billie-coop/gridscope/internal/tui/components/plotpane"
)

const (
	sidebarWidth = 30
	statusHeight = 1
)

// columns picks a near-square grid for n panes.
func columns(n int) int {
	if n <= 1 {
		return 1
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// layout sizes every component and registers each pane's surface with its
// inner extent, so the attacher sees the real layout size.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.statusBar.SetSize(m.width, statusHeight)
	m.sidebar.SetSize(sidebarWidth, m.height-statusHeight-2)

	mainWidth := max(m.width-sidebarWidth-2, 0)
	mainHeight := max(m.height-statusHeight, 0)

	if m.errorPanel.Visible() {
		panelHeight := mainHeight / 3
		m.errorPanel.SetSize(mainWidth, panelHeight)
		mainHeight -= panelHeight
	}
	if m.showStats {
		tableHeight := mainHeight / 3
		m.stats.SetSize(mainWidth, tableHeight)
		mainHeight -= tableHeight
	}

	n := len(m.panes)
	cols := columns(n)
	rows := (n + cols - 1) / cols
	cellWidth := mainWidth / cols
	cellHeight := mainHeight / max(rows, 1)

	for _, p := range m.panes {
		w, h := p.SetSize(cellWidth, cellHeight)
		if m.surfaces == nil {
			continue
		}
		s := m.surfaces.Register(p.Key(), w, h)
		p.Refresh(s)
	}
}

// setFacetPanes replaces the panes with one per facet key, removing the
// surfaces of facet panes that no longer exist.
func (m *Model) setFacetPanes(keys, titles []string) {
	panes := make([]*plotpane.Model, len(keys))
	for i, key := range keys {
		panes[i] = plotpane.New(key, titles[i])
	}
	m.replacePanes(panes)
}

// setMergedPane returns to a single merged pane.
func (m *Model) setMergedPane() {
	if len(m.panes) == 1 && m.panes[0].Key() == surface.MergedKey {
		return
	}
	m.replacePanes([]*plotpane.Model{plotpane.New(surface.MergedKey, "plot")})
}

func (m *Model) replacePanes(panes []*plotpane.Model) {
	keep := make([]string, len(panes))
	for i, p := range panes {
		keep[i] = p.Key()
	}
	if m.surfaces != nil {
		for _, key := range m.surfaces.Keys() {
			if !slices.Contains(keep, key) && strings.HasPrefix(key, "facet/") {
				m.surfaces.Remove(key)
			}
		}
	}
	m.panes = panes
	m.focus = 0
	m.layout()
	m.syncFocus()
}

func (m *Model) pane(key string) *plotpane.Model {
	for _, p := range m.panes {
		if p.Key() == key {
			return p
		}
	}
	return nil
}

func (m *Model) syncFocus() {
	for i, p := range m.panes {
		p.SetFocused(len(m.panes) > 1 && i == m.focus)
	}
}
