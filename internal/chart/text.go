package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
)

var fills = []string{"█", "▓", "▒", "░", "▚", "▞"}

// Text renders fig as a horizontal stacked bar sketch that fits in
// width×height cells. Each row is one x category; each trace contributes a
// segment proportional to its magnitude.
func Text(fig Figure, width, height int) string {
	if width < 10 || height < 3 {
		return ""
	}

	var b strings.Builder
	rows := height
	if fig.Title != "" {
		b.WriteString(truncate(fig.Title, width))
		b.WriteString("\n")
		rows--
	}
	// Legend takes the last line
	rows--

	cats := fig.Categories()
	if len(cats) > rows {
		cats = cats[:max(rows, 0)]
	}

	values := make([][]float64, len(cats))
	var peak float64
	for i, cat := range cats {
		values[i] = make([]float64, len(fig.Traces))
		var total float64
		for j, t := range fig.Traces {
			v := math.Abs(valueAt(t, cat))
			values[i][j] = v
			total += v
		}
		peak = math.Max(peak, total)
	}

	labelWidth := 0
	for _, c := range cats {
		labelWidth = max(labelWidth, lipgloss.Width(c))
	}
	labelWidth = min(labelWidth, width/3)
	valueWidth := len(formatValue(peak))
	barWidth := width - labelWidth - valueWidth - 3
	if barWidth < 1 {
		barWidth = 1
	}

	for i, cat := range cats {
		var total float64
		var bar strings.Builder
		drawn := 0
		for j, v := range values[i] {
			total += v
			if peak == 0 {
				continue
			}
			// Cumulative rounding keeps the stack length exact
			upto := int(math.Round(total / peak * float64(barWidth)))
			if n := upto - drawn; n > 0 {
				bar.WriteString(strings.Repeat(fills[j%len(fills)], n))
				drawn = upto
			}
		}
		fmt.Fprintf(&b, "%-*s %s%s %s\n",
			labelWidth, truncate(cat, labelWidth),
			bar.String(), strings.Repeat(" ", barWidth-drawn),
			formatValue(total))
	}

	b.WriteString(truncate(legend(fig), width))
	return b.String()
}

func legend(fig Figure) string {
	parts := make([]string, 0, len(fig.Traces))
	for j, t := range fig.Traces {
		parts = append(parts, fills[j%len(fills)]+" "+t.Name)
	}
	return strings.Join(parts, "  ")
}

func valueAt(t Trace, cat string) float64 {
	var sum float64
	for i, x := range t.X {
		if x == cat {
			sum += t.Y[i]
		}
	}
	return sum
}

func formatValue(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fG", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fk", v/1e3)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
