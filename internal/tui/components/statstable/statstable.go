// Package statstable shows the selected statistic as numbers below the plots.
package statstable

import (
	"strings"

	"github.com/billie-coop/gridscope/internal/plot"
	"github.com/billie-coop/gridscope/internal/tui/styles"
	"github.com/charmbracelet/bubbles/v2/spinner"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/charmbracelet/x/ansi"
)

const (
	chromeWidth  = 2
	chromeHeight = 3
)

// Model renders one statistics table.
type Model struct {
	width  int
	height int

	spinner spinner.Model
	loading bool
	err     error
	table   *plot.Table
}

// New creates an empty table view.
func New() *Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(styles.CurrentTheme().Accent)
	return &Model{spinner: s}
}

// SetSize sets the outer size.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetLoading shows the spinner until SetTable or SetError.
func (m *Model) SetLoading() tea.Cmd {
	m.loading = true
	m.err = nil
	return m.spinner.Tick
}

// Loading reports whether a fetch is outstanding.
func (m *Model) Loading() bool { return m.loading }

// SetTable shows tbl.
func (m *Model) SetTable(tbl *plot.Table) {
	m.loading = false
	m.err = nil
	m.table = tbl
}

// SetError replaces the table with err.
func (m *Model) SetError(err error) {
	m.loading = false
	m.err = err
	m.table = nil
}

// Table returns the table on display.
func (m *Model) Table() (*plot.Table, bool) {
	return m.table, m.table != nil
}

func (m *Model) Err() error { return m.err }

func (m *Model) Update(msg tea.Msg) (*Model, tea.Cmd) {
	if !m.loading {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	s := styles.CurrentTheme().S()
	innerWidth := max(m.width-chromeWidth, 0)
	innerHeight := max(m.height-chromeHeight, 0)

	title := "statistics"
	if m.table != nil && m.table.Statistic != "" {
		title += " · " + m.table.Statistic
	}
	header := s.Title.Render(ansi.Truncate(title, innerWidth, "…"))

	var body string
	switch {
	case m.loading:
		body = m.spinner.View() + " " + s.Muted.Render("fetching…")
	case m.err != nil:
		body = s.Error.Render(strings.TrimRight(ansi.Wordwrap("✗ "+m.err.Error(), innerWidth, " "), "\n"))
	case m.table == nil:
		body = s.Muted.Render("no statistics yet")
	case m.table.Len() == 0:
		body = s.Muted.Render("the statistic is empty")
	default:
		body = m.render(innerWidth, innerHeight)
	}

	return s.Border.
		Width(m.width).
		Height(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, body))
}

func (m *Model) render(width, height int) string {
	theme := styles.CurrentTheme()
	headerStyle := lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Padding(0, 1)
	indexStyle := lipgloss.NewStyle().Foreground(theme.FgMuted).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Foreground(theme.FgBase).Padding(0, 1).Align(lipgloss.Right)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Border)).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		Headers(append([]string{""}, m.table.Columns...)...).
		Width(width).
		Height(height).
		Wrap(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return indexStyle
			default:
				return cellStyle
			}
		})

	for r := 0; r < m.table.Len(); r++ {
		cells := make([]string, 0, len(m.table.Columns)+1)
		cells = append(cells, m.table.Index[r])
		for c := range m.table.Columns {
			cells = append(cells, m.table.Cell(r, c))
		}
		t.Row(cells...)
	}
	return t.Render()
}
