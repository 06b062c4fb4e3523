package render

import (
	"fmt"
	"image/color"
	"io"

	"github.com/fogleman/gg"

	"github.com/starford/inkwell/internal/grid"
)

// RuleSpacing is the distance between the ruled guide lines of a page image.
const RuleSpacing = 50

var ruleColor = color.Gray{Y: 0xdd}

// Gray maps a 4-bit ink colour to an 8-bit gray level, 0 black and 15 white.
func Gray(c byte) color.Gray {
	c = min(c, 15)
	return color.Gray{Y: uint8(int(c) * 255 / 15)}
}

// Canvas is a grid.Renderer backed by an in-memory raster.
type Canvas struct {
	metrics *Metrics
	dc      *gg.Context
}

var _ grid.Renderer = (*Canvas)(nil)

// NewCanvas creates a blank width x height page. ruled adds horizontal guide
// lines every RuleSpacing pixels.
func NewCanvas(metrics *Metrics, width, height int, ruled bool) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render: invalid canvas %dx%d", width, height)
	}
	dc := gg.NewContext(width, height)
	dc.SetColor(Gray(grid.Background))
	dc.Clear()

	if ruled {
		dc.SetColor(ruleColor)
		dc.SetLineWidth(1)
		for y := RuleSpacing; y < height; y += RuleSpacing {
			dc.DrawLine(0, float64(y)+0.5, float64(width), float64(y)+0.5)
			dc.Stroke()
		}
	}
	return &Canvas{metrics: metrics, dc: dc}, nil
}

// MeasureText implements grid.TextMeasurer.
func (c *Canvas) MeasureText(s string, size int) int {
	return c.metrics.MeasureText(s, size)
}

// DrawSegment implements grid.Renderer.
func (c *Canvas) DrawSegment(x0, y0, x1, y1 int, width, col byte) {
	c.dc.SetColor(Gray(col))
	c.dc.SetLineWidth(float64(max(width, 1)))
	c.dc.SetLineCapRound()
	c.dc.DrawLine(float64(x0), float64(y0), float64(x1), float64(y1))
	c.dc.Stroke()
}

// DrawText implements grid.Renderer. (x, y) is the top-left of the label.
func (c *Canvas) DrawText(x, y int, s string, size int) {
	face, err := c.metrics.Face(size)
	if err != nil {
		return
	}
	c.dc.SetFontFace(face)
	c.dc.SetColor(Gray(0))
	c.dc.DrawStringAnchored(s, float64(x), float64(y), 0, 1)
}

// At returns the gray level of the pixel at (x, y).
func (c *Canvas) At(x, y int) uint8 {
	return color.GrayModel.Convert(c.dc.Image().At(x, y)).(color.Gray).Y
}

// EncodePNG writes the canvas to w as a PNG image.
func (c *Canvas) EncodePNG(w io.Writer) error {
	if err := c.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("render: encode png: %w", err)
	}
	return nil
}
