// Package chart draws the performance bar chart embedded in the brief.
package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Title is drawn above the bars
const Title = "Market Performance Overview"

// EmptyMessage is drawn when there is nothing to plot
const EmptyMessage = "No market data available"

// Layout in pixels (rendered at 72 dpi, so one point is one pixel)
const (
	DefaultWidth      = 900
	titleHeight       = 48
	rowHeight         = 30
	barHeight         = 18
	bottomPad         = 48 // X axis ticks and label
	placeholderHeight = titleHeight + 3*rowHeight
	maxNameChars      = 24
	dpi               = 72
)

var (
	textColor = color.RGBA{0x2c, 0x3e, 0x50, 0xff}
	axisColor = color.RGBA{0x7f, 0x8c, 0x8d, 0xff}
	gridColor = color.RGBA{0xec, 0xf0, 0xf1, 0xff}
)

// Service renders summaries as a horizontal bar chart PNG.
type Service struct {
	logger arbor.ILogger
	width  int
}

// NewService creates a chart renderer
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
		width:  DefaultWidth,
	}
}

// Height returns the image height for n bars
func Height(n int) int {
	if n == 0 {
		return placeholderHeight
	}
	return titleHeight + n*rowHeight + bottomPad
}

// Render draws one bar per summary in order, top to bottom: green up, red down, grey flat.
// An empty input produces a placeholder image rather than an error.
func (s *Service) Render(summaries []models.PerformanceSummary) ([]byte, error) {
	var (
		p   *plot.Plot
		err error
	)
	if len(summaries) == 0 {
		p, err = placeholder()
	} else {
		p, err = bars(summaries)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build chart: %w", err)
	}

	canvas := vgimg.NewWith(
		vgimg.UseWH(vg.Length(s.width), vg.Length(Height(len(summaries)))),
		vgimg.UseDPI(dpi),
	)
	p.Draw(draw.New(canvas))

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}

	s.logger.Debug().
		Int("bars", len(summaries)).
		Int("bytes", buf.Len()).
		Msg("Chart rendered")

	return buf.Bytes(), nil
}

func newPlot() *plot.Plot {
	p := plot.New()
	p.Title.Text = Title
	p.Title.TextStyle.Color = textColor
	p.Title.TextStyle.Font.Size = vg.Points(16)
	return p
}

func placeholder() (*plot.Plot, error) {
	p := newPlot()
	p.HideAxes()

	msg, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: 0.5, Y: 0.5}},
		Labels: []string{EmptyMessage},
	})
	if err != nil {
		return nil, err
	}
	msg.TextStyle[0].Color = axisColor
	msg.TextStyle[0].XAlign = text.XCenter
	msg.TextStyle[0].YAlign = text.YCenter
	p.Add(msg)

	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	return p, nil
}

func bars(summaries []models.PerformanceSummary) (*plot.Plot, error) {
	p := newPlot()
	p.X.Label.Text = "Change (%)"
	p.X.Label.TextStyle.Color = textColor

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = nil
	p.Add(grid)

	n := len(summaries)
	names := make([]string, n)
	labelXYs := make(plotter.XYs, n)
	labelTexts := make([]string, n)

	// Scale spans zero so the axis is always visible
	lo, hi := 0.0, 0.0
	for i, sm := range summaries {
		// Plot rows bottom-up, so the first summary sits at the top
		y := float64(n - 1 - i)
		v := sm.PercentChange.InexactFloat64()
		barColor := hexColor(sm.Direction.Color())

		names[n-1-i] = truncate(sm.Name, maxNameChars)
		labelXYs[i] = plotter.XY{X: v, Y: y}
		labelTexts[i] = formatPercent(sm.PercentChange)
		lo, hi = min(lo, v), max(hi, v)

		if sm.Direction == models.DirectionFlat {
			// A zero-length bar is invisible; mark the row on the axis instead
			marker, err := plotter.NewScatter(plotter.XYs{{X: 0, Y: y}})
			if err != nil {
				return nil, err
			}
			marker.GlyphStyle = draw.GlyphStyle{Color: barColor, Radius: vg.Points(5), Shape: draw.BoxGlyph{}}
			p.Add(marker)
			continue
		}

		bar, err := plotter.NewBarChart(plotter.Values{v}, vg.Points(barHeight))
		if err != nil {
			return nil, err
		}
		bar.Horizontal = true
		bar.XMin = y
		bar.Color = barColor
		bar.LineStyle.Width = 0
		p.Add(bar)
	}

	axis, err := plotter.NewLine(plotter.XYs{{X: 0, Y: -0.5}, {X: 0, Y: float64(n) - 0.5}})
	if err != nil {
		return nil, err
	}
	axis.LineStyle.Color = axisColor
	axis.LineStyle.Width = vg.Points(1)
	p.Add(axis)

	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: labelXYs, Labels: labelTexts})
	if err != nil {
		return nil, err
	}
	for i, sm := range summaries {
		style := &labels.TextStyle[i]
		style.Color = hexColor(sm.Direction.Color())
		style.YAlign = text.YCenter
		if sm.PercentChange.IsNegative() {
			style.XAlign = text.XRight
		} else {
			style.XAlign = text.XLeft
		}
	}
	labels.Offset = vg.Point{X: vg.Points(6)}
	p.Add(labels)

	// Leave room beside the longest bars for their labels
	if hi == lo {
		hi = lo + 1
	}
	pad := (hi - lo) * 0.18
	p.X.Min = lo
	if lo < 0 {
		p.X.Min = lo - pad
	}
	p.X.Max = hi + pad
	p.Y.Min, p.Y.Max = -0.5, float64(n)-0.5
	p.NominalY(names...)
	p.Y.Tick.Label.Color = textColor

	return p, nil
}

// formatPercent renders +1.23% / -1.23% / 0.00%
func formatPercent(p decimal.Decimal) string {
	if p.IsPositive() {
		return "+" + p.StringFixed(2) + "%"
	}
	return p.StringFixed(2) + "%"
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max-2])) + ".."
}

// hexColor parses "#rrggbb"; anything else is black.
func hexColor(hex string) color.RGBA {
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil || len(hex) != 7 {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
