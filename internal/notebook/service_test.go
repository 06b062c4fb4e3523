package notebook

import (
	"bytes"
	"context"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/inkstore"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/render"
	"github.com/starford/inkwell/internal/sse"
	"github.com/starford/inkwell/internal/storage"
	"github.com/starford/inkwell/internal/testutil"
)

type eventLog struct {
	mu     sync.Mutex
	events []sse.PageEvent
}

func (l *eventLog) publish(e sse.PageEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.events {
		out = append(out, e.Kind)
	}
	return out
}

type fixture struct {
	svc    *Service
	db     *inkstore.DB
	dumps  *storage.FS
	events *eventLog
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.TestStore(t)
	_, dumps := testutil.TestDumps(t)
	metrics, err := render.NewMetrics()
	require.NoError(t, err)
	events := &eventLog{}

	svc, err := New(db, metrics, Options{
		Width:   400,
		Height:  600,
		Dumps:   dumps,
		Publish: events.publish,
		Logger:  testutil.Logger(),
	})
	require.NoError(t, err)
	return fixture{svc: svc, db: db, dumps: dumps, events: events}
}

func stroke(x, y int) models.Stroke {
	return models.Stroke{AX: x, AY: y, BX: x + 10, BY: y + 10, Width: 2}
}

func TestNew_RejectsBadSize(t *testing.T) {
	_, err := New(testutil.TestStore(t), nil, Options{})
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st := f.svc.Status(ctx)
	assert.Equal(t, "unloaded", st.State)

	require.NoError(t, f.svc.Load(ctx, "Home", 0))
	_, err := f.svc.AddStrokes(ctx, []models.Stroke{stroke(10, 10), stroke(20, 20)})
	require.NoError(t, err)

	st = f.svc.Status(ctx)
	assert.Equal(t, "resident", st.State)
	assert.Equal(t, "Home", st.Document)
	assert.Equal(t, 2, st.Strokes)
	assert.True(t, st.StrokesDirty)
	assert.False(t, st.LinksDirty)
}

func TestSave_EmitsOnlyWhenDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Load(ctx, "Home", 0))
	require.NoError(t, f.svc.Save(ctx))
	_, err := f.svc.AddStrokes(ctx, []models.Stroke{stroke(10, 10)})
	require.NoError(t, err)
	require.NoError(t, f.svc.Save(ctx))

	assert.Equal(t, []string{sse.KindLoaded, sse.KindSaved}, f.events.kinds())
}

func TestAddStrokes_RejectedBatchAddsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Load(ctx, "Home", 0))

	n, err := f.svc.AddStrokes(ctx, []models.Stroke{stroke(1, 1), stroke(2, 2), stroke(-1, 3)})
	assert.ErrorIs(t, err, apperr.ErrOutOfBounds)
	assert.Zero(t, n)

	n, err = f.svc.AddStrokes(ctx, []models.Stroke{stroke(1, 1), stroke(1, 100_000_000)})
	assert.ErrorIs(t, err, apperr.ErrOutOfBounds)
	assert.Zero(t, n)

	st := f.svc.Status(ctx)
	assert.Zero(t, st.Strokes)
	assert.False(t, st.StrokesDirty)

	n, err = f.svc.AddStrokes(ctx, []models.Stroke{stroke(1, 1), stroke(2, 2)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, f.svc.Status(ctx).Strokes)
}

func TestAddStrokes_RequiresResident(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddStrokes(context.Background(), []models.Stroke{stroke(-1, 3)})
	assert.ErrorIs(t, err, apperr.ErrNotResident)
}

func TestEraseAndLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Load(ctx, "Home", 0))
	_, err := f.svc.AddStrokes(ctx, []models.Stroke{stroke(100, 100)})
	require.NoError(t, err)

	removed, err := f.svc.Erase(ctx, 102, 102, 5)
	require.NoError(t, err)
	assert.Len(t, removed, 1)
	assert.Contains(t, f.events.kinds(), sse.KindErased)

	require.NoError(t, f.svc.AddLink(ctx, 100, 50, "Other"))
	l, err := f.svc.FindLink(ctx, 105, 45)
	require.NoError(t, err)
	assert.Equal(t, "Other", l.Target)

	_, err = f.svc.FindLink(ctx, 300, 500)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.RemoveLink(ctx, 105, 45)
	require.NoError(t, err)
	_, err = f.svc.RemoveLink(ctx, 105, 45)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFollow_LoadsTargetPageZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Load(ctx, "Home", 2))
	require.NoError(t, f.svc.AddLink(ctx, 100, 50, "Other"))

	l, err := f.svc.Follow(ctx, 110, 40)
	require.NoError(t, err)
	assert.Equal(t, "Other", l.Target)

	st := f.svc.Status(ctx)
	assert.Equal(t, "Other", st.Document)
	assert.Equal(t, 0, st.Page)

	// The link was saved on the way out.
	links, err := f.db.ReadLinks("Home", 2)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestCutAndPaste(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for p := range 3 {
		require.NoError(t, f.db.ReplaceStrokes("A", p, []models.Stroke{{AX: p, AY: p, Etc: byte(p)}}))
	}

	err := f.svc.Paste(ctx)
	assert.ErrorIs(t, err, apperr.ErrNotResident)

	require.NoError(t, f.svc.Load(ctx, "A", 1))
	require.NoError(t, f.svc.Cut(ctx))

	cut, err := f.db.ReadStrokes(CopiesDocument, 0)
	require.NoError(t, err)
	require.Len(t, cut, 1)
	assert.Equal(t, byte(1), cut[0].Etc)

	// A:1 now holds the former A:2.
	p, err := f.svc.ReadPage(ctx, "A", 1)
	require.NoError(t, err)
	require.Len(t, p.Strokes, 1)
	assert.Equal(t, byte(2), p.Strokes[0].Etc)

	require.NoError(t, f.svc.Paste(ctx))
	p, err = f.svc.ReadPage(ctx, "A", 1)
	require.NoError(t, err)
	require.Len(t, p.Strokes, 1)
	assert.Equal(t, byte(1), p.Strokes[0].Etc)

	err = f.svc.Paste(ctx)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNextPrevAndScroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Load(ctx, "Home", 0))

	changed, err := f.svc.Prev(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.svc.Next(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, f.svc.Status(ctx).Page)

	assert.Equal(t, 300, f.svc.ScrollHalf(ctx, true))
	assert.Equal(t, 0, f.svc.ScrollHalf(ctx, false))
	assert.Equal(t, 0, f.svc.Scroll(ctx, -10))
}

func TestReadPage_ResidentIncludesUnsaved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Load(ctx, "Home", 0))
	_, err := f.svc.AddStrokes(ctx, []models.Stroke{stroke(10, 10)})
	require.NoError(t, err)

	p, err := f.svc.ReadPage(ctx, "Home", 0)
	require.NoError(t, err)
	assert.Len(t, p.Strokes, 1)

	p, err = f.svc.ReadPage(ctx, "Home", 7)
	require.NoError(t, err)
	assert.Empty(t, p.Strokes)
	assert.NotNil(t, p.Links)

	_, err = f.svc.ReadPage(ctx, "", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidPage)
}

func TestDocumentsAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	docs, err := f.svc.Documents(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, f.svc.Load(ctx, "Home", 0))
	_, err = f.svc.AddStrokes(ctx, []models.Stroke{stroke(10, 10)})
	require.NoError(t, err)

	docs, err = f.svc.Documents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Home"}, docs)

	pages, err := f.svc.Pages(ctx, "Home")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, pages)
}

func TestExportThenImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Load(ctx, "Home", 0))
	_, err := f.svc.AddStrokes(ctx, []models.Stroke{stroke(10, 10)})
	require.NoError(t, err)
	require.NoError(t, f.svc.AddLink(ctx, 100, 50, "Other"))

	res, err := f.svc.Export(ctx, "Home", 0)
	require.NoError(t, err)
	assert.Equal(t, "Home/page-000.json", res.Dump)
	assert.Equal(t, "Home/page-000.png", res.Image)

	raw, err := f.dumps.Read(res.Image)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())

	d, sum, err := f.dumps.ReadDump(res.Dump)
	require.NoError(t, err)

	key, err := f.svc.Import(ctx, d, sum)
	require.NoError(t, err)
	assert.Equal(t, models.PageKey{Document: "Home", Page: 1}, key)

	p, err := f.svc.ReadPage(ctx, "Home", 1)
	require.NoError(t, err)
	assert.Len(t, p.Strokes, 1)
	assert.Len(t, p.Links, 1)

	_, err = f.svc.Import(ctx, d, sum)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
	assert.Contains(t, f.events.kinds(), sse.KindImported)
}

func TestImport_ReloadsResidentSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.ReplaceStrokes("Home", 0, []models.Stroke{stroke(1, 1)}))
	require.NoError(t, f.svc.Load(ctx, "Home", 1))

	d, err := storage.NewDump("Home", 9, []models.Stroke{stroke(5, 5), stroke(6, 6)}, nil)
	require.NoError(t, err)
	key, err := f.svc.Import(ctx, d, "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, key.Page)
	assert.Equal(t, 2, f.svc.Status(ctx).Strokes)
}

func TestRenderResident(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var buf bytes.Buffer
	assert.ErrorIs(t, f.svc.RenderResident(ctx, &buf), apperr.ErrNotResident)

	require.NoError(t, f.svc.Load(ctx, "Home", 0))
	_, err := f.svc.AddStrokes(ctx, []models.Stroke{stroke(10, 10)})
	require.NoError(t, err)
	require.NoError(t, f.svc.RenderResident(ctx, &buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestCheckAndRepair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.ReplaceStrokes("A", 0, []models.Stroke{stroke(1, 1)}))
	require.NoError(t, f.db.ReplaceStrokes("A", 2, []models.Stroke{stroke(2, 2)}))

	gaps, err := f.svc.Check(ctx)
	require.NoError(t, err)
	require.Len(t, gaps, 1)

	fixed, err := f.svc.Repair(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, fixed)

	gaps, err = f.svc.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestClose_SavesResident(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Load(ctx, "Home", 0))
	_, err := f.svc.AddStrokes(ctx, []models.Stroke{stroke(10, 10)})
	require.NoError(t, err)
	require.NoError(t, f.svc.Close())

	strokes, err := f.db.ReadStrokes("Home", 0)
	require.NoError(t, err)
	assert.Len(t, strokes, 1)
	assert.Equal(t, "unloaded", f.svc.Status(ctx).State)
}
