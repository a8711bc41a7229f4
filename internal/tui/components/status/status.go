package status

import (
	"fmt"
	"time"

	"github.com/billie-coop/gridscope/internal/tui/styles"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
)

// MessageType represents the type of status message
type MessageType int

const (
	Info MessageType = iota
	Warning
	Error
	Success
)

// ParseType maps the event payload's type name onto a MessageType.
func ParseType(s string) MessageType {
	switch s {
	case "warning":
		return Warning
	case "error":
		return Error
	case "success":
		return Success
	default:
		return Info
	}
}

// StatusMessage represents a status bar message
type StatusMessage struct {
	Content   string
	Type      MessageType
	Timestamp time.Time
}

// Component implements a status bar that shows temporary messages
type Component struct {
	message     *StatusMessage
	width       int
	leftContent string

	clearAfter time.Duration
	now        func() time.Time
}

// New creates a new status bar component
func New() *Component {
	return &Component{
		clearAfter: 5 * time.Second,
		now:        time.Now,
	}
}

// SetMessage sets a status message and returns the command that clears it
// once clearAfter has passed.
func (c *Component) SetMessage(content string, msgType MessageType) tea.Cmd {
	stamp := c.now()
	c.message = &StatusMessage{
		Content:   content,
		Type:      msgType,
		Timestamp: stamp,
	}

	return tea.Tick(c.clearAfter, func(time.Time) tea.Msg {
		return ClearMessageMsg{timestamp: stamp}
	})
}

func (c *Component) ShowInfo(message string) tea.Cmd {
	return c.SetMessage(message, Info)
}

func (c *Component) ShowWarning(message string) tea.Cmd {
	return c.SetMessage(message, Warning)
}

func (c *Component) ShowError(message string) tea.Cmd {
	return c.SetMessage(message, Error)
}

func (c *Component) ShowSuccess(message string) tea.Cmd {
	return c.SetMessage(message, Success)
}

// Message returns the message on display, if any.
func (c *Component) Message() (StatusMessage, bool) {
	if c.message == nil {
		return StatusMessage{}, false
	}
	return *c.message, true
}

// SetLeftContent sets the left side content (generation state)
func (c *Component) SetLeftContent(content string) {
	c.leftContent = content
}

func (c *Component) SetSize(width, height int) tea.Cmd {
	c.width = width
	return nil
}

// ClearMessageMsg is sent when a status message should be cleared
type ClearMessageMsg struct {
	timestamp time.Time
}

func (c *Component) Update(msg tea.Msg) (*Component, tea.Cmd) {
	if msg, ok := msg.(ClearMessageMsg); ok {
		// Only clear if this is for the current message
		if c.message != nil && msg.timestamp.Equal(c.message.Timestamp) {
			c.message = nil
		}
	}
	return c, nil
}

func (c *Component) View() string {
	if c.width == 0 {
		return ""
	}

	theme := styles.CurrentTheme()

	statusStyle := lipgloss.NewStyle().
		Width(c.width).
		Height(1).
		Background(theme.BgSubtle).
		Foreground(theme.FgBase).
		Padding(0, 1)

	leftContent := c.leftContent
	rightContent := c.formatMessage()

	availableWidth := c.width - 2

	if ansi.StringWidth(leftContent)+ansi.StringWidth(rightContent) > availableWidth {
		rightContent = ansi.Truncate(rightContent, 40, "...")
		remaining := availableWidth - ansi.StringWidth(rightContent) - 1
		if remaining > 3 {
			leftContent = ansi.Truncate(leftContent, remaining, "...")
		} else {
			leftContent = ""
		}
	}

	content := leftContent
	if rightContent != "" {
		spacesNeeded := availableWidth - ansi.StringWidth(leftContent) - ansi.StringWidth(rightContent)
		if spacesNeeded > 0 {
			content += fmt.Sprintf("%*s%s", spacesNeeded, "", rightContent)
		} else {
			content += " " + rightContent
		}
	}

	return statusStyle.Render(content)
}

func (c *Component) formatMessage() string {
	if c.message == nil {
		return ""
	}

	switch c.message.Type {
	case Success:
		return "✅ " + c.message.Content
	case Warning:
		return "⚠️ " + c.message.Content
	case Error:
		return "❌ " + c.message.Content
	default:
		return c.message.Content
	}
}
