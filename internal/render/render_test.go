package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/inkwell/internal/grid"
	"github.com/starford/inkwell/internal/models"
)

func testMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics()
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMeasureText(t *testing.T) {
	m := testMetrics(t)

	assert.Zero(t, m.MeasureText("", models.LinkSize))
	short := m.MeasureText("Go", models.LinkSize)
	long := m.MeasureText("Gophers", models.LinkSize)
	assert.Positive(t, short)
	assert.Greater(t, long, short)
	assert.Greater(t, m.MeasureText("Gophers", 64), long)
}

func TestFace_Cached(t *testing.T) {
	m := testMetrics(t)
	a, err := m.Face(20)
	require.NoError(t, err)
	b, err := m.Face(20)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestGray(t *testing.T) {
	assert.Equal(t, uint8(0), Gray(0).Y)
	assert.Equal(t, uint8(255), Gray(15).Y)
	assert.Equal(t, uint8(17*5), Gray(5).Y)
	assert.Equal(t, uint8(255), Gray(200).Y)
}

func TestNewCanvas_Rejects(t *testing.T) {
	_, err := NewCanvas(testMetrics(t), 0, 10, false)
	assert.Error(t, err)
}

func TestCanvas_RuledBackground(t *testing.T) {
	c, err := NewCanvas(testMetrics(t), 200, 200, true)
	require.NoError(t, err)

	assert.Equal(t, uint8(255), c.At(10, 10))
	assert.Less(t, c.At(10, RuleSpacing), uint8(255))
}

func TestCanvas_DrawsGrid(t *testing.T) {
	m := testMetrics(t)
	g, err := grid.New(grid.NewGeometry(400, 400), m)
	require.NoError(t, err)
	require.NoError(t, g.InsertStroke(models.Stroke{AX: 10, AY: 10, BX: 190, BY: 10, Width: 4, Color: 0}))
	require.NoError(t, g.InsertLink(20, 150, "Other"))

	c, err := NewCanvas(m, 400, 400, false)
	require.NoError(t, err)
	g.Draw(c, 0, 400, 0)

	assert.Equal(t, uint8(0), c.At(100, 10))
	assert.Equal(t, uint8(255), c.At(100, 300))

	var buf bytes.Buffer
	require.NoError(t, c.EncodePNG(&buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
}
