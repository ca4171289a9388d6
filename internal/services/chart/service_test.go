package chart

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketbrief/internal/models"
)

func createTestLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func summary(name, percent string) models.PerformanceSummary {
	p := decimal.RequireFromString(percent)
	return models.PerformanceSummary{Symbol: name, Name: name, PercentChange: p, Direction: models.DirectionOf(p)}
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func rgba(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

// pixels collects the coordinates of every pixel painted exactly c.
func pixels(img image.Image, c color.RGBA) []image.Point {
	var pts []image.Point
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if rgba(img.At(x, y)) == c {
				pts = append(pts, image.Pt(x, y))
			}
		}
	}
	return pts
}

func centroid(pts []image.Point) image.Point {
	var sx, sy int
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	return image.Pt(sx/len(pts), sy/len(pts))
}

var (
	green = color.RGBA{0x27, 0xae, 0x60, 0xff}
	red   = color.RGBA{0xe7, 0x4c, 0x3c, 0xff}
	grey  = color.RGBA{0x95, 0xa5, 0xa6, 0xff}
	white = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

func TestRender_BarsColouredByDirection(t *testing.T) {
	svc := NewService(createTestLogger())
	data, err := svc.Render([]models.PerformanceSummary{
		summary("Up Index", "5"),
		summary("Down Index", "-5"),
		summary("Flat Index", "0"),
	})
	require.NoError(t, err)

	img := decode(t, data)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
	assert.Equal(t, Height(3), img.Bounds().Dy())

	up, down, flat := pixels(img, green), pixels(img, red), pixels(img, grey)
	require.Greater(t, len(up), 500, "up bar")
	require.Greater(t, len(down), 500, "down bar")
	require.Greater(t, len(flat), 30, "flat marker")

	// Up grows right of the axis, down grows left
	assert.Greater(t, centroid(up).X, centroid(down).X)
	// Rows keep input order top to bottom
	assert.Less(t, centroid(up).Y, centroid(down).Y)
	assert.Less(t, centroid(down).Y, centroid(flat).Y)
	// Flat marker sits between the two bars horizontally
	assert.Greater(t, centroid(flat).X, centroid(down).X)
	assert.Less(t, centroid(flat).X, centroid(up).X)
}

func TestRender_LargerMoveDrawsLongerBar(t *testing.T) {
	svc := NewService(createTestLogger())
	small, err := svc.Render([]models.PerformanceSummary{summary("A", "1"), summary("B", "-4")})
	require.NoError(t, err)
	large, err := svc.Render([]models.PerformanceSummary{summary("A", "4"), summary("B", "-4")})
	require.NoError(t, err)

	assert.Greater(t, len(pixels(decode(t, large), green)), len(pixels(decode(t, small), green)))
}

func TestRender_EmptyPlaceholder(t *testing.T) {
	svc := NewService(createTestLogger())
	data, err := svc.Render(nil)
	require.NoError(t, err)

	img := decode(t, data)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
	assert.Equal(t, Height(0), img.Bounds().Dy())

	assert.Empty(t, pixels(img, green))
	assert.Empty(t, pixels(img, red))

	// Title and message were drawn
	b := img.Bounds()
	assert.Less(t, len(pixels(img, white)), b.Dx()*b.Dy())
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "+5.26%", formatPercent(decimal.RequireFromString("5.26")))
	assert.Equal(t, "-1.50%", formatPercent(decimal.RequireFromString("-1.5")))
	assert.Equal(t, "0.00%", formatPercent(decimal.Zero))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Nifty 50", truncate("Nifty 50", 24))
	assert.Equal(t, "Nasdaq..", truncate("Nasdaq Composite", 8))
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, color.RGBA{0x27, 0xae, 0x60, 0xff}, hexColor("#27ae60"))
	assert.Equal(t, color.RGBA{A: 0xff}, hexColor("nope"))
}
