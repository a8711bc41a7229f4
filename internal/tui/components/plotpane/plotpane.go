// Package plotpane renders one plot surface: a titled viewport showing the
// surface's bound plot, a spinner while a generation is pending, or an
// inline error for a failed facet.
package plotpane

import (
	"strings"

	"github.com/billie-coop/gridscope/internal/chart"
	"github.com/billie-coop/gridscope/internal/plot"
	"github.com/billie-coop/gridscope/internal/surface"
	"github.com/billie-coop/gridscope/internal/tui/styles"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
)

// chrome is the border plus title line around the plot content.
const (
	chromeWidth  = 2
	chromeHeight = 3
)

// Model is a single plot pane bound to a surface key.
type Model struct {
	key   string
	title string

	width  int
	height int

	viewport viewport.Model
	spinner  spinner.Model

	pending bool
	err     error
	figure  *chart.Figure
	binding uint64
	focused bool
}

// New creates a pane for the surface at key.
func New(key, title string) *Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(styles.CurrentTheme().Accent)
	return &Model{
		key:      key,
		title:    title,
		viewport: viewport.New(),
		spinner:  s,
	}
}

func (m *Model) Key() string   { return m.key }
func (m *Model) Title() string { return m.title }

// SetTitle changes the pane heading.
func (m *Model) SetTitle(title string) { m.title = title }

// SetFocused highlights the pane border.
func (m *Model) SetFocused(focused bool) { m.focused = focused }

// SetSize sets the outer size and returns the inner extent the surface
// should be registered with.
func (m *Model) SetSize(width, height int) (innerWidth, innerHeight int) {
	m.width = width
	m.height = height
	innerWidth = max(width-chromeWidth, 0)
	innerHeight = max(height-chromeHeight, 0)
	m.viewport = viewport.New(
		viewport.WithWidth(innerWidth),
		viewport.WithHeight(innerHeight),
	)
	m.viewport.MouseWheelEnabled = true
	m.render()
	return innerWidth, innerHeight
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// SetPending shows the spinner until the next Refresh or SetError.
func (m *Model) SetPending() tea.Cmd {
	m.pending = true
	m.err = nil
	m.render()
	return m.spinner.Tick
}

// Pending reports whether the pane is waiting for a plot.
func (m *Model) Pending() bool { return m.pending }

// SetError shows err in place of the plot.
func (m *Model) SetError(err error) {
	m.pending = false
	m.err = err
	m.figure = nil
	m.render()
}

// Err returns the error shown in the pane.
func (m *Model) Err() error { return m.err }

// Refresh re-reads the surface binding. A surface without a binding leaves
// the pane empty.
func (m *Model) Refresh(s *surface.Surface) {
	b, ok := s.Binding()
	if !ok {
		m.figure = nil
		m.binding = 0
		m.render()
		return
	}
	m.pending = false
	if b.ID == m.binding && m.figure != nil {
		return
	}
	m.binding = b.ID
	fig, err := chart.Parse(b.Result.Payload)
	if err != nil {
		m.figure = nil
		m.err = &plot.RenderError{SurfaceKey: m.key, Reason: err.Error()}
	} else {
		m.figure = &fig
		m.err = nil
	}
	m.render()
}

// Figure returns the parsed plot on display.
func (m *Model) Figure() (chart.Figure, bool) {
	if m.figure == nil {
		return chart.Figure{}, false
	}
	return *m.figure, true
}

func (m *Model) Update(msg tea.Msg) (*Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.pending {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) render() {
	w, h := m.viewport.Width(), m.viewport.Height()
	if w == 0 || h == 0 {
		return
	}
	s := styles.CurrentTheme().S()

	switch {
	case m.err != nil:
		m.viewport.SetContent(s.Error.Render(wrap("✗ "+m.err.Error(), w)))
	case m.figure != nil:
		m.viewport.SetContent(chart.Text(*m.figure, w, h))
	default:
		m.viewport.SetContent("")
	}
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	s := styles.CurrentTheme().S()

	border := s.Border
	if m.focused {
		border = s.BorderFocused
	}

	title := m.title
	if m.figure != nil && m.figure.Title != "" {
		title = m.title + " · " + m.figure.Title
	}
	header := s.Title.Render(ansi.Truncate(title, m.width-chromeWidth, "…"))

	var body string
	if m.pending {
		body = m.spinner.View() + " " + s.Muted.Render("generating…")
	} else {
		body = m.viewport.View()
	}

	return border.
		Width(m.width).
		Height(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, body))
}

func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return strings.TrimRight(ansi.Wordwrap(s, width, " "), "\n")
}
