// Package render draws dashboard charts as SVG with go-chart.
package render

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// EmptyNotice is shown in place of a chart whose summary table has no rows.
const EmptyNotice = "No data for the selected filters"

const (
	DefaultWidth  = 720
	DefaultHeight = 360
)

// Palette assigns series colors in order.
var Palette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444",
	"#8B5CF6", "#06B6D4", "#EC4899", "#84CC16",
}

// Point is one category and its value.
type Point struct {
	Label string
	Value float64
}

// BarChart maps categories to values.
type BarChart struct {
	Title  string
	YLabel string
	Bars   []Point
	Width  int
	Height int
}

// Series is one hue of a line chart. Points refer to categories by label and
// categories without a point leave a gap in the x positions.
type Series struct {
	Name   string
	Points []Point
}

// LineChart draws one or more series over ordered categories.
type LineChart struct {
	Title      string
	XLabel     string
	YLabel     string
	Categories []string
	Series     []Series
	Width      int
	Height     int
}

// Color returns the palette color for series i.
func Color(i int) drawing.Color {
	hex := strings.TrimPrefix(Palette[i%len(Palette)], "#")
	return drawing.ColorFromHex(hex)
}

// Bar writes c as SVG. A chart without bars renders the empty notice.
func Bar(w io.Writer, c BarChart) error {
	width, height := size(c.Width, c.Height)
	if len(c.Bars) == 0 {
		return Placeholder(w, c.Title, width, height)
	}

	maxV := 0.0
	bars := make([]chart.Value, len(c.Bars))
	for i, b := range c.Bars {
		maxV = math.Max(maxV, b.Value)
		col := Color(i)
		bars[i] = chart.Value{
			Label: b.Label,
			Value: b.Value,
			Style: chart.Style{FillColor: col, StrokeColor: col, StrokeWidth: 1},
		}
	}
	top, ticks := yAxis(maxV)

	barWidth := 60
	if need := len(bars)*(barWidth+20) + 120; need > width {
		width = need
	}
	bc := chart.BarChart{
		Title:      c.Title,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: 20,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 24}},
		YAxis: chart.YAxis{
			Name:  c.YLabel,
			Range: &chart.ContinuousRange{Min: 0, Max: top},
			Ticks: ticks,
		},
		Bars: bars,
	}
	if err := bc.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("render bar chart %q: %w", c.Title, err)
	}
	return nil
}

// Line writes c as SVG. A chart without points renders the empty notice.
func Line(w io.Writer, c LineChart) error {
	width, height := size(c.Width, c.Height)
	pos := make(map[string]float64, len(c.Categories))
	for i, cat := range c.Categories {
		pos[cat] = float64(i)
	}

	maxV := 0.0
	var series []chart.Series
	for i, s := range c.Series {
		var xs, ys []float64
		for _, p := range s.Points {
			x, ok := pos[p.Label]
			if !ok {
				continue
			}
			xs = append(xs, x)
			ys = append(ys, p.Value)
			maxV = math.Max(maxV, p.Value)
		}
		if len(xs) == 0 {
			continue
		}
		col := Color(i)
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    3,
			},
		})
	}
	if len(series) == 0 {
		return Placeholder(w, c.Title, width, height)
	}
	top, yticks := yAxis(maxV)

	ch := chart.Chart{
		Title:      c.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 28}},
		XAxis: chart.XAxis{
			Name:      c.XLabel,
			Ticks:     categoryTicks(c.Categories),
			Range:     &chart.ContinuousRange{Min: -0.5, Max: float64(len(c.Categories)) - 0.5},
			TickStyle: chart.Style{TextRotationDegrees: rotation(len(c.Categories))},
		},
		YAxis: chart.YAxis{
			Name:  c.YLabel,
			Range: &chart.ContinuousRange{Min: 0, Max: top},
			Ticks: yticks,
		},
		Series: series,
	}
	if len(series) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	if err := ch.Render(chart.SVG, w); err != nil {
		return fmt.Errorf("render line chart %q: %w", c.Title, err)
	}
	return nil
}

// Placeholder writes an empty plot area carrying the EmptyNotice.
func Placeholder(w io.Writer, title string, width, height int) error {
	width, height = size(width, height)
	_, err := fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" class="chart-empty">`+
		`<text x="%d" y="24" text-anchor="middle" font-family="sans-serif" font-size="15" fill="#111827">%s</text>`+
		`<rect x="40" y="40" width="%d" height="%d" fill="none" stroke="#D1D5DB" stroke-dasharray="4 4"/>`+
		`<text x="%d" y="%d" text-anchor="middle" font-family="sans-serif" font-size="13" fill="#6B7280">%s</text>`+
		`</svg>`,
		width, height, width, height,
		width/2, html.EscapeString(title),
		width-80, height-80,
		width/2, height/2, EmptyNotice)
	return err
}

func size(width, height int) (int, int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return width, height
}

// categoryTicks labels each category position and adds blank ticks half a
// slot beyond both ends. go-chart derives the axis range from explicit ticks,
// so the padding keeps a single category from collapsing the range to zero.
func categoryTicks(categories []string) []chart.Tick {
	n := len(categories)
	ticks := make([]chart.Tick, 0, n+2)
	ticks = append(ticks, chart.Tick{Value: -0.5})
	for i, c := range categories {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: c})
	}
	return append(ticks, chart.Tick{Value: float64(n) - 0.5})
}

func rotation(n int) float64 {
	if n > 8 {
		return 45
	}
	return 0
}

// yAxis returns a rounded top bound above maxV and evenly spaced ticks from zero.
func yAxis(maxV float64) (float64, []chart.Tick) {
	if maxV <= 0 || math.IsNaN(maxV) || math.IsInf(maxV, 0) {
		maxV = 1
	}
	step := niceStep(maxV / 5)
	top := math.Ceil(maxV/step) * step
	if top <= maxV {
		top += step
	}
	ticks := make([]chart.Tick, 0, int(top/step)+1)
	for v := 0.0; v <= top+step/2; v += step {
		ticks = append(ticks, chart.Tick{Value: v, Label: formatTick(v)})
	}
	return top, ticks
}

// niceStep rounds raw up to 1, 2, 2.5 or 5 times a power of ten.
func niceStep(raw float64) float64 {
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, c := range []float64{1, 2, 2.5, 5, 10} {
		if c*mag >= raw {
			return c * mag
		}
	}
	return 10 * mag
}

func formatTick(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
