// Package models defines the domain types for Inkwell.
package models

import "time"

// ColumnCount is the fixed number of column buckets in every grid row.
const ColumnCount = 16

// LinkSize is the font size used to render and hit-test link labels.
const LinkSize = 32

// Stroke is one drawn ink segment in page-pixel coordinates.
type Stroke struct {
	AX    int  `json:"ax"`
	AY    int  `json:"ay"`
	BX    int  `json:"bx"`
	BY    int  `json:"by"`
	Width byte `json:"width"`
	Color byte `json:"color"`
	Type  byte `json:"type"`
	Etc   byte `json:"etc"`
}

// Link is an anchor on a page that points at another document.
// Width is the measured label width, cached at insertion time.
type Link struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Target string `json:"target"`
}

// LinkRecord is the persisted form of a link; the width is not stored.
type LinkRecord struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Target string `json:"target"`
}

// Record returns the persisted form of l.
func (l Link) Record() LinkRecord {
	return LinkRecord{X: l.X, Y: l.Y, Target: l.Target}
}

// PageKey identifies one page of one document.
type PageKey struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
}

// DumpMetadata describes one page dump file on disk.
type DumpMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
