// Package errorpanel shows the failure of the primary query, including the
// backend's diagnostic detail, as rendered markdown.
package errorpanel

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/billie-coop/gridscope/internal/plot"
	"github.com/billie-coop/gridscope/internal/tui/styles"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
)

// maxTraceLines bounds the stack trace excerpt.
const maxTraceLines = 12

// Model holds the error on display. A nil error hides the panel.
type Model struct {
	err      error
	width    int
	height   int
	viewport viewport.Model
}

func New() *Model {
	return &Model{viewport: viewport.New()}
}

// Visible reports whether there is an error to show.
func (m *Model) Visible() bool { return m.err != nil }

// Err returns the error on display.
func (m *Model) Err() error { return m.err }

// Set shows err; nil hides the panel.
func (m *Model) Set(err error) {
	m.err = err
	m.render()
}

// Clear hides the panel.
func (m *Model) Clear() { m.Set(nil) }

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport = viewport.New(
		viewport.WithWidth(max(width-2, 0)),
		viewport.WithHeight(max(height-2, 0)),
	)
	m.render()
}

func (m *Model) Update(msg tea.Msg) (*Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) render() {
	if m.err == nil || m.viewport.Width() == 0 {
		m.viewport.SetContent("")
		return
	}
	md := Markdown(m.err)
	r, err := styles.MarkdownRenderer(m.viewport.Width())
	if err != nil {
		m.viewport.SetContent(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		m.viewport.SetContent(md)
		return
	}
	m.viewport.SetContent(strings.Trim(out, "\n"))
}

func (m *Model) View() string {
	if m.err == nil || m.width == 0 || m.height == 0 {
		return ""
	}
	s := styles.CurrentTheme().S()
	return s.Border.
		BorderForeground(styles.CurrentTheme().Error).
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// Markdown describes err for display. Domain errors carry the backend's
// message, parameters and a stack trace excerpt verbatim.
func Markdown(err error) string {
	var b strings.Builder

	kind := plot.Classify(err)
	fmt.Fprintf(&b, "## %s\n\n", heading(kind))

	var derr *plot.DomainError
	if !errors.As(err, &derr) {
		fmt.Fprintf(&b, "%s\n", err.Error())
		return b.String()
	}

	msg := derr.Message
	if msg == "" {
		msg = "The backend reported an error without a message."
	}
	fmt.Fprintf(&b, "%s\n", msg)
	if derr.TaskID != "" {
		fmt.Fprintf(&b, "\nTask `%s`\n", derr.TaskID)
	}
	if derr.Detail == nil {
		return b.String()
	}

	if len(derr.Detail.Parameters) > 0 {
		b.WriteString("\n### Parameters\n\n")
		keys := make([]string, 0, len(derr.Detail.Parameters))
		for k := range derr.Detail.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- **%s**: `%v`\n", k, derr.Detail.Parameters[k])
		}
	}

	if derr.Detail.StackTrace != "" {
		lines := strings.Split(strings.TrimRight(derr.Detail.StackTrace, "\n"), "\n")
		if len(lines) > maxTraceLines {
			lines = append([]string{"…"}, lines[len(lines)-maxTraceLines:]...)
		}
		b.WriteString("\n### Stack trace\n\n```\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n```\n")
	}

	return b.String()
}

func heading(kind plot.Kind) string {
	switch kind {
	case plot.KindDomain:
		return "Plot computation failed"
	case plot.KindTimeout:
		return "Plot timed out"
	case plot.KindTransport:
		return "Backend unreachable"
	default:
		return "Plot failed"
	}
}
