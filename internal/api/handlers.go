package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/notebook"
)

// Handler holds API route handlers.
type Handler struct {
	nb *notebook.Service
}

// NewHandler creates a new Handler.
func NewHandler(nb *notebook.Service) *Handler {
	return &Handler{nb: nb}
}

var errBadPoint = errors.New("query parameters 'x' and 'y' must be integers")

// point reads the x and y query parameters.
func point(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	x, errX := strconv.Atoi(q.Get("x"))
	y, errY := strconv.Atoi(q.Get("y"))
	if errX != nil || errY != nil {
		return 0, 0, errBadPoint
	}
	return x, y, nil
}

// docParam extracts the document name, accepting encoded slashes.
func docParam(r *http.Request) string {
	raw := chi.URLParam(r, "doc")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// State handles GET /api/state.
//
//	@Summary		Current session state
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	Status
//	@Security		BearerAuth
//	@Router			/state [get]
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.nb.Status(r.Context()))
}

// Load handles POST /api/load.
//
//	@Summary		Make a page resident
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoadRequest	true	"Page to load"
//	@Success		200		{object}	Status
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/load [post]
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.nb.Load(r.Context(), req.Document, req.Page); err != nil {
		writeError(w, "load", err)
		return
	}
	writeJSON(w, http.StatusOK, h.nb.Status(r.Context()))
}

// Save handles POST /api/save.
//
//	@Summary		Persist the resident page
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	Status
//	@Security		BearerAuth
//	@Router			/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.nb.Save(r.Context()); err != nil {
		writeError(w, "save", err)
		return
	}
	writeJSON(w, http.StatusOK, h.nb.Status(r.Context()))
}

// Next handles POST /api/next.
//
//	@Summary		Turn to the next page
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	NavResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/next [post]
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	changed, err := h.nb.Next(r.Context())
	if err != nil {
		writeError(w, "next", err)
		return
	}
	writeJSON(w, http.StatusOK, NavResponse{Changed: changed, Status: h.nb.Status(r.Context())})
}

// Prev handles POST /api/prev.
//
//	@Summary		Turn to the previous page
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	NavResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/prev [post]
func (h *Handler) Prev(w http.ResponseWriter, r *http.Request) {
	changed, err := h.nb.Prev(r.Context())
	if err != nil {
		writeError(w, "prev", err)
		return
	}
	writeJSON(w, http.StatusOK, NavResponse{Changed: changed, Status: h.nb.Status(r.Context())})
}

// Scroll handles POST /api/scroll.
//
//	@Summary		Scroll the viewport
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ScrollRequest	true	"Scroll amount"
//	@Success		200		{object}	ScrollResponse
//	@Security		BearerAuth
//	@Router			/scroll [post]
func (h *Handler) Scroll(w http.ResponseWriter, r *http.Request) {
	var req ScrollRequest
	if !decode(w, r, &req) {
		return
	}
	var top int
	switch req.Direction {
	case "down":
		top = h.nb.ScrollHalf(r.Context(), true)
	case "up":
		top = h.nb.ScrollHalf(r.Context(), false)
	default:
		top = h.nb.Scroll(r.Context(), req.Delta)
	}
	writeJSON(w, http.StatusOK, ScrollResponse{Scroll: top})
}

// Move handles POST /api/move.
//
//	@Summary		Move a page, keeping numbering contiguous
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveRequest	true	"Source and destination"
//	@Success		200		{object}	Status
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/move [post]
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.nb.Move(r.Context(), req.FromDocument, req.FromPage, req.ToDocument, req.ToPage); err != nil {
		writeError(w, "move", err)
		return
	}
	writeJSON(w, http.StatusOK, h.nb.Status(r.Context()))
}

// Cut handles POST /api/cut.
//
//	@Summary		Move the resident page to the Copies document
//	@Tags			pages
//	@Produce		json
//	@Success		200	{object}	Status
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cut [post]
func (h *Handler) Cut(w http.ResponseWriter, r *http.Request) {
	if err := h.nb.Cut(r.Context()); err != nil {
		writeError(w, "cut", err)
		return
	}
	writeJSON(w, http.StatusOK, h.nb.Status(r.Context()))
}

// Paste handles POST /api/paste.
//
//	@Summary		Move the first Copies page into the resident slot
//	@Tags			pages
//	@Produce		json
//	@Success		200	{object}	Status
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/paste [post]
func (h *Handler) Paste(w http.ResponseWriter, r *http.Request) {
	if err := h.nb.Paste(r.Context()); err != nil {
		writeError(w, "paste", err)
		return
	}
	writeJSON(w, http.StatusOK, h.nb.Status(r.Context()))
}

// AddStrokes handles POST /api/strokes.
//
//	@Summary		Add strokes to the resident page
//	@Tags			ink
//	@Accept			json
//	@Produce		json
//	@Param			body	body		StrokesRequest	true	"Strokes"
//	@Success		201		{object}	StrokesResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/strokes [post]
func (h *Handler) AddStrokes(w http.ResponseWriter, r *http.Request) {
	var req StrokesRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.nb.AddStrokes(r.Context(), req.Strokes)
	if err != nil {
		writeError(w, "add strokes", err)
		return
	}
	writeJSON(w, http.StatusCreated, StrokesResponse{Added: n})
}

// Erase handles POST /api/erase.
//
//	@Summary		Erase strokes starting near a point
//	@Tags			ink
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EraseRequest	true	"Eraser position"
//	@Success		200		{object}	EraseResponse
//	@Security		BearerAuth
//	@Router			/erase [post]
func (h *Handler) Erase(w http.ResponseWriter, r *http.Request) {
	var req EraseRequest
	if !decode(w, r, &req) {
		return
	}
	removed, err := h.nb.Erase(r.Context(), req.X, req.Y, req.Radius)
	if err != nil {
		writeError(w, "erase", err)
		return
	}
	if removed == nil {
		removed = []models.Stroke{}
	}
	writeJSON(w, http.StatusOK, EraseResponse{Removed: removed})
}

// AddLink handles POST /api/links.
//
//	@Summary		Anchor a link on the resident page
//	@Tags			ink
//	@Accept			json
//	@Param			body	body	LinkRequest	true	"Link"
//	@Success		201		"Link added"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links [post]
func (h *Handler) AddLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.nb.AddLink(r.Context(), req.X, req.Y, req.Target); err != nil {
		writeError(w, "add link", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// FindLink handles GET /api/links?x=&y=.
//
//	@Summary		Find the link under a point
//	@Tags			ink
//	@Produce		json
//	@Param			x	query		int	true	"X"
//	@Param			y	query		int	true	"Y"
//	@Success		200	{object}	models.Link
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links [get]
func (h *Handler) FindLink(w http.ResponseWriter, r *http.Request) {
	x, y, err := point(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	l, err := h.nb.FindLink(r.Context(), x, y)
	if err != nil {
		writeError(w, "find link", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// RemoveLink handles DELETE /api/links?x=&y=.
//
//	@Summary		Remove the link under a point
//	@Tags			ink
//	@Produce		json
//	@Param			x	query		int	true	"X"
//	@Param			y	query		int	true	"Y"
//	@Success		200	{object}	models.Link
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links [delete]
func (h *Handler) RemoveLink(w http.ResponseWriter, r *http.Request) {
	x, y, err := point(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	l, err := h.nb.RemoveLink(r.Context(), x, y)
	if err != nil {
		writeError(w, "remove link", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// Follow handles POST /api/follow?x=&y=.
//
//	@Summary		Load the document a link points at
//	@Tags			ink
//	@Produce		json
//	@Param			x	query		int	true	"X"
//	@Param			y	query		int	true	"Y"
//	@Success		200	{object}	Status
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/follow [post]
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	x, y, err := point(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if _, err := h.nb.Follow(r.Context(), x, y); err != nil {
		writeError(w, "follow link", err)
		return
	}
	writeJSON(w, http.StatusOK, h.nb.Status(r.Context()))
}

// Documents handles GET /api/documents.
//
//	@Summary		List documents with stored pages
//	@Tags			browse
//	@Produce		json
//	@Success		200	{object}	map[string][]string
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	docs, err := h.nb.Documents(r.Context())
	if err != nil {
		writeError(w, "documents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// Pages handles GET /api/documents/{doc}/pages.
//
//	@Summary		List stored page numbers of a document
//	@Tags			browse
//	@Produce		json
//	@Param			doc	path		string	true	"Document"
//	@Success		200	{object}	map[string][]int
//	@Security		BearerAuth
//	@Router			/documents/{doc}/pages [get]
func (h *Handler) Pages(w http.ResponseWriter, r *http.Request) {
	doc := docParam(r)
	pages, err := h.nb.Pages(r.Context(), doc)
	if err != nil {
		writeError(w, "pages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc, "pages": pages})
}

// ReadPage handles GET /api/documents/{doc}/pages/{page}.
//
//	@Summary		Read the strokes and links of a page
//	@Tags			browse
//	@Produce		json
//	@Param			doc		path		string	true	"Document"
//	@Param			page	path		int		true	"Page"
//	@Success		200		{object}	Page
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{doc}/pages/{page} [get]
func (h *Handler) ReadPage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("page must be an integer"))
		return
	}
	p, err := h.nb.ReadPage(r.Context(), docParam(r), page)
	if err != nil {
		writeError(w, "read page", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Render handles GET /api/render.png.
//
//	@Summary		Render the visible part of the resident page
//	@Tags			output
//	@Produce		png
//	@Success		200
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/render.png [get]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.nb.RenderResident(r.Context(), &buf); err != nil {
		writeError(w, "render", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Export handles POST /api/export.
//
//	@Summary		Export a page as a JSON dump and PNG
//	@Tags			output
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExportRequest	true	"Page to export"
//	@Success		201		{object}	notebook.ExportResult
//	@Security		BearerAuth
//	@Router			/export [post]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.nb.Export(r.Context(), req.Document, req.Page)
	if err != nil {
		writeError(w, "export", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
