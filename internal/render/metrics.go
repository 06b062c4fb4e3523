// Package render measures link labels with the Go regular font and rasterizes
// pages to PNG.
package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Metrics measures text in pixels using a parsed OpenType font. Faces are
// created once per size and cached.
type Metrics struct {
	font *opentype.Font

	mu    sync.Mutex
	faces map[int]font.Face
}

// NewMetrics parses the embedded Go regular font.
func NewMetrics() (*Metrics, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: parse font: %w", err)
	}
	return &Metrics{font: f, faces: map[int]font.Face{}}, nil
}

// Face returns the cached face for size, creating it on first use.
func (m *Metrics) Face(size int) (font.Face, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.faces[size]; ok {
		return f, nil
	}
	face, err := opentype.NewFace(m.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("render: face size %d: %w", size, err)
	}
	m.faces[size] = face
	return face, nil
}

// MeasureText returns the advance width of s in whole pixels.
func (m *Metrics) MeasureText(s string, size int) int {
	if s == "" || size <= 0 {
		return 0
	}
	face, err := m.Face(size)
	if err != nil {
		return 0
	}
	m.mu.Lock()
	adv := font.MeasureString(face, s)
	m.mu.Unlock()
	// 26.6 fixed point, rounded to nearest.
	return max(0, (int(adv)+32)>>6)
}

// Close releases every cached face.
func (m *Metrics) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for size, f := range m.faces {
		f.Close()
		delete(m.faces, size)
	}
	return nil
}
