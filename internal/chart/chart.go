// Package chart renders category totals as a bar-chart PNG.
package chart

import (
	"bytes"
	"fmt"
	"os"

	"github.com/golang/freetype/truetype"
	"github.com/wcharczuk/go-chart/v2"

	"cardspend/internal/core"
)

const (
	DefaultTitle  = "Spending by category"
	DefaultHeight = 512
	DefaultWidth  = 1024

	barWidth   = 60
	barSpacing = 40
	// headroom keeps the tallest bar below the top of the canvas
	headroom = 1.1
)

// Style controls chart appearance. Zero fields take defaults.
type Style struct {
	Title  string
	Width  int
	Height int
	Font   *truetype.Font // nil uses the go-chart default font, which has no CJK glyphs
}

// LoadFont parses a TrueType font file. It is meant to be called once at startup.
func LoadFont(path string) (*truetype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	font, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return font, nil
}

// Render draws one bar per category, in aggregation order, and returns PNG bytes.
// An aggregation without categories renders nothing and returns nil bytes.
func Render(agg core.Aggregation, style Style) ([]byte, error) {
	if len(agg.Categories) == 0 {
		return nil, nil
	}

	bars := make([]chart.Value, 0, len(agg.Categories))
	top := 0.0
	for _, c := range agg.Categories {
		v := core.Round2(c.Amount).InexactFloat64()
		if v > top {
			top = v
		}
		bars = append(bars, chart.Value{Label: c.Label, Value: v})
	}
	if top <= 0 {
		top = 1
	}

	graph := chart.BarChart{
		Title:      withDefault(style.Title, DefaultTitle),
		Width:      width(style.Width, len(bars)),
		Height:     positive(style.Height, DefaultHeight),
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Font:       style.Font,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top * headroom},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, core.WrapError(core.KindRenderingFailure, err, "render bar chart")
	}
	return buf.Bytes(), nil
}

// width grows the canvas so every bar keeps its configured width.
func width(configured, bars int) int {
	need := bars*(barWidth+barSpacing) + 200
	w := positive(configured, DefaultWidth)
	if need > w {
		return need
	}
	return w
}

func positive(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
