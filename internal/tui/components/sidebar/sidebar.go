// Package sidebar renders the dataset catalog and the current plot selection.
package sidebar

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/billie-coop/gridscope/internal/api"
	"github.com/billie-coop/gridscope/internal/tui/styles"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
)

// Selection is the part of the session the sidebar displays.
type Selection struct {
	Statistic string
	PlotKind  string
	Filters   map[string]any
	FacetMode bool
	Facets    int
}

// Model holds the catalog, the cursor and the selected targets.
type Model struct {
	width  int
	height int

	networks []api.Network
	cursor   int
	selected []string // in selection order

	selection Selection
	state     string
	loadErr   error
	backend   string
}

// New creates an empty sidebar.
func New() *Model {
	return &Model{state: "idle"}
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetNetworks replaces the catalog, dropping selections that vanished.
func (m *Model) SetNetworks(networks []api.Network, err error) {
	m.loadErr = err
	if err != nil {
		return
	}
	m.networks = networks
	m.selected = slices.DeleteFunc(m.selected, func(id string) bool {
		return !slices.ContainsFunc(networks, func(n api.Network) bool { return n.ID == id })
	})
	m.cursor = min(m.cursor, max(len(networks)-1, 0))
}

// SetBackend records the backend description shown in the header.
func (m *Model) SetBackend(s string) { m.backend = s }

// SetSelection updates the statistic, kind and filter indicators.
func (m *Model) SetSelection(sel Selection) { m.selection = sel }

// SetState updates the generation state line.
func (m *Model) SetState(state string) { m.state = state }

// MoveUp moves the cursor; it reports whether the cursor moved.
func (m *Model) MoveUp() bool {
	if m.cursor == 0 {
		return false
	}
	m.cursor--
	return true
}

// MoveDown moves the cursor; it reports whether the cursor moved.
func (m *Model) MoveDown() bool {
	if m.cursor >= len(m.networks)-1 {
		return false
	}
	m.cursor++
	return true
}

// Cursor returns the network under the cursor.
func (m *Model) Cursor() (api.Network, bool) {
	if m.cursor < 0 || m.cursor >= len(m.networks) {
		return api.Network{}, false
	}
	return m.networks[m.cursor], true
}

// Toggle adds or removes the network under the cursor from the selection
// and returns the new target list.
func (m *Model) Toggle() []string {
	n, ok := m.Cursor()
	if !ok {
		return m.Selected()
	}
	if i := slices.Index(m.selected, n.ID); i >= 0 {
		m.selected = slices.Delete(m.selected, i, i+1)
	} else {
		m.selected = append(m.selected, n.ID)
	}
	return m.Selected()
}

// Select makes id the only selected network.
func (m *Model) Select(id string) []string {
	m.selected = []string{id}
	return m.Selected()
}

// SetSelected restores a saved selection, keeping only ids present in the
// catalog, and returns what was kept.
func (m *Model) SetSelected(ids []string) []string {
	m.selected = m.selected[:0]
	for _, id := range ids {
		if slices.ContainsFunc(m.networks, func(n api.Network) bool { return n.ID == id }) && !slices.Contains(m.selected, id) {
			m.selected = append(m.selected, id)
		}
	}
	return m.Selected()
}

// Selected returns the selected network ids in selection order.
func (m *Model) Selected() []string {
	return slices.Clone(m.selected)
}

// Primary returns the first selected network, falling back to the cursor.
func (m *Model) Primary() (api.Network, bool) {
	if len(m.selected) > 0 {
		for _, n := range m.networks {
			if n.ID == m.selected[0] {
				return n, true
			}
		}
	}
	return m.Cursor()
}

func (m *Model) View() string {
	width := m.width
	if width == 0 {
		width = 30
	}
	theme := styles.CurrentTheme()
	s := theme.S()

	var b strings.Builder

	b.WriteString(s.Title.Render("⚡ gridscope"))
	b.WriteString("\n")
	if m.backend != "" {
		b.WriteString(s.Subtle.Render(ansi.Truncate(m.backend, width-2, "…")))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(s.Subtitle.Render("Datasets"))
	b.WriteString("\n")
	switch {
	case m.loadErr != nil:
		b.WriteString(s.Error.Render(ansi.Truncate("catalog: "+m.loadErr.Error(), width-2, "…")))
		b.WriteString("\n")
	case len(m.networks) == 0:
		b.WriteString(s.Muted.Render("loading…"))
		b.WriteString("\n")
	}
	for i, n := range m.networks {
		mark := "○"
		if slices.Contains(m.selected, n.ID) {
			mark = "●"
		}
		line := ansi.Truncate(fmt.Sprintf("%s %s", mark, n.DisplayName()), width-4, "…")
		if i == m.cursor {
			b.WriteString(s.Selected.Render("▸ " + line))
		} else {
			b.WriteString(s.Base.Render("  " + line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	sel := m.selection
	b.WriteString(s.Subtitle.Render("Plot"))
	b.WriteString("\n")
	b.WriteString(field(s, "statistic", sel.Statistic))
	b.WriteString(field(s, "kind", sel.PlotKind))
	b.WriteString(field(s, "filters", formatFilters(sel.Filters)))
	facets := "off"
	if sel.FacetMode {
		facets = fmt.Sprintf("on (%d)", sel.Facets)
	}
	b.WriteString(field(s, "facets", facets))
	b.WriteString("\n")

	b.WriteString(s.Subtitle.Render("State"))
	b.WriteString("\n")
	b.WriteString(stateStyle(s, m.state).Render(m.state))
	b.WriteString("\n\n")

	b.WriteString(s.Subtle.Render("↑/↓ move · space select\ns/k stat/kind · c carrier\nf facets · t table\nr refresh · R clear cache\ne export · q quit"))

	return lipgloss.NewStyle().Width(width - 2).Render(b.String())
}

func field(s *styles.Styles, name, value string) string {
	return s.Muted.Render(fmt.Sprintf("%-10s", name)) + s.Base.Render(value) + "\n"
}

func formatFilters(filters map[string]any) string {
	if len(filters) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, filters[k]))
	}
	return strings.Join(parts, ", ")
}

func stateStyle(s *styles.Styles, state string) lipgloss.Style {
	switch state {
	case "done":
		return s.Success
	case "failed", "timed_out":
		return s.Error
	case "superseded":
		return s.Subtle
	case "idle":
		return s.Muted
	default:
		return s.Warning
	}
}
