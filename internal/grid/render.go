package grid

import "github.com/starford/inkwell/internal/models"

// Background is the palette index used to paint over erased strokes.
const Background byte = 15

// TextMeasurer reports the pixel width of s rendered at the given font size.
type TextMeasurer interface {
	MeasureText(s string, size int) int
}

// Renderer is the drawing surface the grid paints onto.
type Renderer interface {
	TextMeasurer
	DrawSegment(x0, y0, x1, y1 int, width, color byte)
	DrawText(x, y int, s string, size int)
}

// Draw paints every stroke and link in the rows visible between scrollTop and
// scrollTop+viewportHeight. originY is the screen offset of the page surface.
// Within a row strokes are painted bucket by bucket in insertion order.
func (g *Grid) Draw(r Renderer, scrollTop, viewportHeight, originY int) {
	first, last, ok := g.VisibleRows(scrollTop, viewportHeight)
	if !ok {
		return
	}
	for j := first; j <= last; j++ {
		rw := &g.rows[j]
		for i := range rw.buckets {
			for _, s := range rw.buckets[i] {
				drawStroke(r, s, s.Color, scrollTop, originY)
			}
		}
		for _, l := range rw.links {
			if l.Y > scrollTop+models.LinkSize {
				r.DrawText(l.X, l.Y-scrollTop+originY-models.LinkSize, l.Target, models.LinkSize)
			}
		}
	}
}

// Undraw returns an erase callback that repaints a stroke in the background
// colour at the same geometry.
func Undraw(r Renderer, scrollTop, originY int) func(models.Stroke) {
	return func(s models.Stroke) {
		drawStroke(r, s, Background, scrollTop, originY)
	}
}

func drawStroke(r Renderer, s models.Stroke, color byte, scrollTop, originY int) {
	// Segments that start or end above the scroll line are not shown.
	if s.AY < scrollTop || s.BY < scrollTop {
		return
	}
	r.DrawSegment(s.AX, originY+s.AY-scrollTop, s.BX, originY+s.BY-scrollTop, s.Width, color)
}
