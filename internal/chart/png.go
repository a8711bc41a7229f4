package chart

import (
	"fmt"
	"io"
	"os"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var palette = []drawing.Color{
	gochart.ColorBlue,
	gochart.ColorGreen,
	gochart.ColorOrange,
	gochart.ColorRed,
	gochart.ColorYellow,
	gochart.ColorAlternateGray,
}

// WritePNG draws fig as a line chart over its categories.
func WritePNG(w io.Writer, fig Figure, width, height int) error {
	cats := fig.Categories()
	if len(cats) == 0 {
		return fmt.Errorf("figure has no points")
	}

	index := make(map[string]float64, len(cats))
	ticks := make([]gochart.Tick, 0, len(cats))
	for i, c := range cats {
		index[c] = float64(i)
		ticks = append(ticks, gochart.Tick{Value: float64(i), Label: c})
	}

	series := make([]gochart.Series, 0, len(fig.Traces))
	for j, t := range fig.Traces {
		xs := make([]float64, 0, len(t.X))
		for _, x := range t.X {
			xs = append(xs, index[x])
		}
		ys := append([]float64(nil), t.Y...)
		// Pad single points so the x range is not empty
		if len(xs) == 1 {
			xs = append(xs, xs[0]+1)
			ys = append(ys, ys[0])
		}
		col := palette[j%len(palette)]
		series = append(series, gochart.ContinuousSeries{
			Name:    t.Name,
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    3,
			},
		})
	}

	ch := gochart.Chart{
		Title:      fig.Title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 24}},
		XAxis:      gochart.XAxis{Name: fig.XTitle, Ticks: ticks},
		YAxis:      gochart.YAxis{Name: fig.YTitle},
		Series:     series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	if err := ch.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// SavePNG writes fig to path.
func SavePNG(path string, fig Figure, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WritePNG(f, fig, width, height); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
