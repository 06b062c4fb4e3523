// Package grid implements the spatial index for the strokes and links of a
// single page.
//
// The page surface is cut into horizontal row bands of Geometry.RowHeight
// pixels. Each row holds models.ColumnCount stroke buckets addressed by
// x / Geometry.RowWidth, plus an unordered list of links. Rows are created
// lazily as content is inserted further down the page.
package grid

import (
	"errors"
	"fmt"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/models"
)

// Link hit boxes extend this many pixels past the label on every side.
const linkSlack = 10

// MaxScreens is how many screen heights a page may extend below its top.
const MaxScreens = 64

// Geometry holds the bucket dimensions derived from the screen size and the
// number of rows a page may grow to.
type Geometry struct {
	RowWidth  int
	RowHeight int
	MaxRows   int
}

// NewGeometry derives bucket dimensions for a page of width x height pixels.
// The +1 keeps ColumnCount columns covering the full width.
func NewGeometry(width, height int) Geometry {
	return Geometry{
		RowWidth:  width/models.ColumnCount + 1,
		RowHeight: height/models.ColumnCount + 1,
		MaxRows:   MaxScreens * models.ColumnCount,
	}
}

// Width returns the page width covered by the column buckets.
func (g Geometry) Width() int { return g.RowWidth * models.ColumnCount }

// Height returns the deepest y a page can hold, exclusive.
func (g Geometry) Height() int { return g.RowHeight * g.MaxRows }

// CheckStroke reports ErrOutOfBounds when the start point of s has no bucket.
func (g Geometry) CheckStroke(s models.Stroke) error {
	return g.checkPoint("stroke start", s.AX, s.AY)
}

// CheckLink reports ErrOutOfBounds when a link anchor at (x, y) has no row.
func (g Geometry) CheckLink(x, y int) error {
	return g.checkPoint("link anchor", x, y)
}

func (g Geometry) checkPoint(what string, x, y int) error {
	if x < 0 || y < 0 || x >= g.Width() || y >= g.Height() {
		return fmt.Errorf("grid: %s (%d,%d): %w", what, x, y, apperr.ErrOutOfBounds)
	}
	return nil
}

type row struct {
	buckets [models.ColumnCount][]models.Stroke
	links   []models.Link
}

// Grid owns the strokes and links of one resident page.
// It is not safe for concurrent use.
type Grid struct {
	geom     Geometry
	measurer TextMeasurer
	rows     []row

	strokesDirty bool
	linksDirty   bool
}

// New creates an empty grid. measurer is used to size link labels.
func New(geom Geometry, measurer TextMeasurer) (*Grid, error) {
	if geom.RowWidth <= 0 || geom.RowHeight <= 0 || geom.MaxRows <= 0 {
		return nil, fmt.Errorf("grid: invalid geometry %dx%d, %d rows", geom.RowWidth, geom.RowHeight, geom.MaxRows)
	}
	if measurer == nil {
		return nil, errors.New("grid: text measurer is required")
	}
	return &Grid{geom: geom, measurer: measurer}, nil
}

// Geometry returns the bucket dimensions of the grid.
func (g *Grid) Geometry() Geometry { return g.geom }

// Len returns the number of rows currently allocated.
func (g *Grid) Len() int { return len(g.rows) }

// StrokesDirty reports whether strokes changed since the last MarkClean.
func (g *Grid) StrokesDirty() bool { return g.strokesDirty }

// LinksDirty reports whether links changed since the last MarkClean.
func (g *Grid) LinksDirty() bool { return g.linksDirty }

// MarkClean clears the selected dirty flags.
func (g *Grid) MarkClean(strokes, links bool) {
	if strokes {
		g.strokesDirty = false
	}
	if links {
		g.linksDirty = false
	}
}

// Reset drops all content and marks both categories dirty, so the next save
// clears the page in the store.
func (g *Grid) Reset() {
	g.rows = nil
	g.strokesDirty = true
	g.linksDirty = true
}

// rowFor grows the row list so that index j exists and returns it.
func (g *Grid) rowFor(j int) *row {
	if j >= len(g.rows) {
		g.rows = append(g.rows, make([]row, j+1-len(g.rows))...)
	}
	return &g.rows[j]
}

// InsertStroke appends s to the bucket containing its start point.
func (g *Grid) InsertStroke(s models.Stroke) error {
	if err := g.geom.CheckStroke(s); err != nil {
		return err
	}
	col := s.AX / g.geom.RowWidth
	rw := g.rowFor(s.AY / g.geom.RowHeight)
	rw.buckets[col] = append(rw.buckets[col], s)
	g.strokesDirty = true
	return nil
}

// InsertLink places a link to target with its anchor at (x, y).
func (g *Grid) InsertLink(x, y int, target string) error {
	if target == "" {
		return errors.New("grid: link target is empty")
	}
	if err := g.geom.CheckLink(x, y); err != nil {
		return err
	}
	l := models.Link{
		X:      x,
		Y:      y,
		Width:  g.measurer.MeasureText(target, models.LinkSize),
		Target: target,
	}
	rw := g.rowFor(y / g.geom.RowHeight)
	rw.links = append(rw.links, l)
	g.linksDirty = true
	return nil
}

// EraseInRadius removes every stroke whose start point lies within r of
// (cx, cy). Only the start point is tested, not the whole segment.
// undraw, when non-nil, is called for each stroke before it is dropped.
// The removed strokes are returned in scan order. r is capped at the page
// extent; a centre further than r outside the page finds nothing.
func (g *Grid) EraseInRadius(cx, cy, r int, undraw func(models.Stroke)) []models.Stroke {
	if len(g.rows) == 0 || r < 0 {
		return nil
	}
	w, h := g.geom.Width(), g.geom.Height()
	r = min(r, max(w, h))
	if cx < -r || cy < -r || cx > w+r || cy > h+r {
		return nil
	}
	firstRow := clamp((cy-r-1)/g.geom.RowHeight, 0, len(g.rows)-1)
	lastRow := clamp((cy+r+1)/g.geom.RowHeight, 0, len(g.rows)-1)
	firstCol := clamp((cx-r-1)/g.geom.RowWidth, 0, models.ColumnCount-1)
	lastCol := clamp((cx+r+1)/g.geom.RowWidth, 0, models.ColumnCount-1)

	var removed []models.Stroke
	for j := firstRow; j <= lastRow; j++ {
		rw := &g.rows[j]
		for i := firstCol; i <= lastCol; i++ {
			bucket := rw.buckets[i]
			kept := bucket[:0]
			for _, s := range bucket {
				if lenSq(s.AX-cx, s.AY-cy) <= r*r {
					if undraw != nil {
						undraw(s)
					}
					removed = append(removed, s)
					continue
				}
				kept = append(kept, s)
			}
			clear(bucket[len(kept):])
			rw.buckets[i] = kept
		}
	}
	if len(removed) > 0 {
		g.strokesDirty = true
	}
	return removed
}

// LinkRef addresses a link found by FindLink. It is only valid until the
// next mutation of the grid.
type LinkRef struct {
	Row   int
	Index int
	Link  models.Link
}

// FindLink returns the first link whose hit box contains (x, y), searching
// the row containing y and its two neighbours in row then insertion order.
func (g *Grid) FindLink(x, y int) (LinkRef, bool) {
	if len(g.rows) == 0 {
		return LinkRef{}, false
	}
	j := y / g.geom.RowHeight
	if y < 0 {
		j = -1
	}
	for i := max(0, j-1); i <= min(j+1, len(g.rows)-1); i++ {
		for k, l := range g.rows[i].links {
			if hit(l, x, y) {
				return LinkRef{Row: i, Index: k, Link: l}, true
			}
		}
	}
	return LinkRef{}, false
}

// RemoveLink deletes the link FindLink would return for (x, y).
func (g *Grid) RemoveLink(x, y int) (models.Link, bool) {
	ref, ok := g.FindLink(x, y)
	if !ok {
		return models.Link{}, false
	}
	rw := &g.rows[ref.Row]
	rw.links = append(rw.links[:ref.Index], rw.links[ref.Index+1:]...)
	g.linksDirty = true
	return ref.Link, true
}

// VisibleRows returns the inclusive row range intersecting the viewport.
// ok is false when scrollTop is already past the last row.
func (g *Grid) VisibleRows(scrollTop, viewportHeight int) (first, last int, ok bool) {
	first = max(scrollTop/g.geom.RowHeight, 0)
	if first >= len(g.rows) {
		return 0, 0, false
	}
	last = min((scrollTop+viewportHeight)/g.geom.RowHeight, len(g.rows)-1)
	if last < first {
		return 0, 0, false
	}
	return first, last, true
}

// RowStrokes calls fn for every stroke in row j, bucket by bucket in
// insertion order.
func (g *Grid) RowStrokes(j int, fn func(col int, s models.Stroke)) {
	if j < 0 || j >= len(g.rows) {
		return
	}
	for i, bucket := range g.rows[j].buckets {
		for _, s := range bucket {
			fn(i, s)
		}
	}
}

// Strokes returns a copy of every stroke in row, column, insertion order.
func (g *Grid) Strokes() []models.Stroke {
	var out []models.Stroke
	for j := range g.rows {
		g.RowStrokes(j, func(_ int, s models.Stroke) {
			out = append(out, s)
		})
	}
	return out
}

// StrokeCount returns the number of strokes on the page.
func (g *Grid) StrokeCount() int {
	n := 0
	for j := range g.rows {
		for _, bucket := range g.rows[j].buckets {
			n += len(bucket)
		}
	}
	return n
}

// Links returns a copy of every link in row then insertion order.
func (g *Grid) Links() []models.Link {
	var out []models.Link
	for j := range g.rows {
		out = append(out, g.rows[j].links...)
	}
	return out
}

func hit(l models.Link, x, y int) bool {
	if x < l.X-linkSlack || x > l.X+l.Width+linkSlack {
		return false
	}
	if y < l.Y-models.LinkSize-linkSlack || y > l.Y+linkSlack {
		return false
	}
	return true
}

func lenSq(x, y int) int { return x*x + y*y }

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
