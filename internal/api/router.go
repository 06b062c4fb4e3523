package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/inkwell/internal/notebook"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(nb *notebook.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(nb)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Session.
	r.Get("/state", h.State)
	r.Post("/load", h.Load)
	r.Post("/save", h.Save)
	r.Post("/next", h.Next)
	r.Post("/prev", h.Prev)
	r.Post("/scroll", h.Scroll)

	// Page relocation.
	r.Post("/move", h.Move)
	r.Post("/cut", h.Cut)
	r.Post("/paste", h.Paste)

	// Ink.
	r.Post("/strokes", h.AddStrokes)
	r.Post("/erase", h.Erase)
	r.Post("/links", h.AddLink)
	r.Get("/links", h.FindLink)
	r.Delete("/links", h.RemoveLink)
	r.Post("/follow", h.Follow)

	// Browsing and output.
	r.Get("/documents", h.Documents)
	r.Get("/documents/{doc}/pages", h.Pages)
	r.Get("/documents/{doc}/pages/{page}", h.ReadPage)
	r.Get("/render.png", h.Render)
	r.Post("/export", h.Export)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
