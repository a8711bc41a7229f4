package styles

import (
	"fmt"
	"image/color"
	"sort"
	"sync"

	"github.com/charmbracelet/lipgloss/v2"
)

// Theme holds semantic colors.
type Theme struct {
	Name string

	Primary   color.Color
	Secondary color.Color
	Accent    color.Color

	BgBase   color.Color
	BgSubtle color.Color

	FgBase   color.Color
	FgMuted  color.Color
	FgSubtle color.Color

	Border      color.Color
	BorderFocus color.Color

	Success color.Color
	Error   color.Color
	Warning color.Color
	Info    color.Color

	// GlamourStyle is the glamour style used for markdown panels.
	GlamourStyle string

	styles *Styles
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Base     lipgloss.Style
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Muted    lipgloss.Style
	Subtle   lipgloss.Style
	Selected lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Border        lipgloss.Style
	BorderFocused lipgloss.Style
	Badge         lipgloss.Style
}

// S returns the theme's styles, building them on first use.
func (t *Theme) S() *Styles {
	if t.styles == nil {
		t.styles = t.buildStyles()
	}
	return t.styles
}

func (t *Theme) buildStyles() *Styles {
	base := lipgloss.NewStyle().Foreground(t.FgBase)

	return &Styles{
		Base:     base,
		Title:    base.Foreground(t.Accent).Bold(true),
		Subtitle: base.Foreground(t.Secondary).Bold(true),
		Muted:    base.Foreground(t.FgMuted),
		Subtle:   base.Foreground(t.FgSubtle),
		Selected: base.Foreground(t.Primary).Bold(true),

		Success: base.Foreground(t.Success),
		Error:   base.Foreground(t.Error),
		Warning: base.Foreground(t.Warning),
		Info:    base.Foreground(t.Info),

		Border: base.
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.Border),

		BorderFocused: base.
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus),

		Badge: base.
			Background(t.BgSubtle).
			Foreground(t.FgBase).
			Padding(0, 1),
	}
}

// NewGridTheme is the default theme: cool blues with an amber accent.
func NewGridTheme() *Theme {
	return &Theme{
		Name: "grid",

		Primary:   ParseHex("#38BDF8"), // Sky
		Secondary: ParseHex("#A78BFA"), // Violet
		Accent:    ParseHex("#F59E0B"), // Amber

		BgBase:   ParseHex("#0F172A"),
		BgSubtle: ParseHex("#1E293B"),

		FgBase:   ParseHex("#F8FAFC"),
		FgMuted:  ParseHex("#CBD5E1"),
		FgSubtle: ParseHex("#64748B"),

		Border:      ParseHex("#334155"),
		BorderFocus: ParseHex("#F59E0B"),

		Success: ParseHex("#22C55E"),
		Error:   ParseHex("#EF4444"),
		Warning: ParseHex("#F59E0B"),
		Info:    ParseHex("#38BDF8"),

		GlamourStyle: "dracula",
	}
}

// NewLightTheme suits light terminal backgrounds.
func NewLightTheme() *Theme {
	return &Theme{
		Name: "light",

		Primary:   ParseHex("#0369A1"),
		Secondary: ParseHex("#6D28D9"),
		Accent:    ParseHex("#B45309"),

		BgBase:   ParseHex("#FFFFFF"),
		BgSubtle: ParseHex("#E2E8F0"),

		FgBase:   ParseHex("#0F172A"),
		FgMuted:  ParseHex("#334155"),
		FgSubtle: ParseHex("#94A3B8"),

		Border:      ParseHex("#CBD5E1"),
		BorderFocus: ParseHex("#B45309"),

		Success: ParseHex("#15803D"),
		Error:   ParseHex("#B91C1C"),
		Warning: ParseHex("#B45309"),
		Info:    ParseHex("#0369A1"),

		GlamourStyle: "light",
	}
}

// Manager handles theme switching and registration
type Manager struct {
	mu      sync.RWMutex
	themes  map[string]*Theme
	current *Theme
}

var (
	defaultMu      sync.Mutex
	defaultManager *Manager
)

// SetDefaultManager replaces the process-wide manager.
func SetDefaultManager(m *Manager) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultManager = m
}

// CurrentTheme returns the active theme of the default manager.
func CurrentTheme() *Theme {
	defaultMu.Lock()
	if defaultManager == nil {
		defaultManager = NewManager("grid")
	}
	m := defaultManager
	defaultMu.Unlock()
	return m.Current()
}

// NewManager registers the built-in themes and selects defaultTheme,
// falling back to "grid" for unknown names.
func NewManager(defaultTheme string) *Manager {
	m := &Manager{themes: make(map[string]*Theme)}
	m.Register(NewGridTheme())
	m.Register(NewLightTheme())

	m.current = m.themes[defaultTheme]
	if m.current == nil {
		m.current = m.themes["grid"]
	}
	return m
}

func (m *Manager) Register(theme *Theme) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.themes[theme.Name] = theme
}

func (m *Manager) Current() *Theme {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) SetTheme(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if theme, ok := m.themes[name]; ok {
		m.current = theme
		return nil
	}
	return fmt.Errorf("theme %s not found", name)
}

// List returns the registered theme names, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.themes))
	for name := range m.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseHex converts hex string to color
func ParseHex(hex string) color.Color {
	var r, g, b uint8
	fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
