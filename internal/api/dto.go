package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/notebook"
)

// Status is the session snapshot (aliased from the domain layer).
type Status = notebook.Status

// Page is the full page content (aliased from the domain layer).
type Page = notebook.Page

// LoadRequest selects the page to make resident.
type LoadRequest struct {
	Document string `json:"document" example:"Home" validate:"required"`
	Page     int    `json:"page" example:"0"`
}

// Validate implements validation.Validatable.
func (r *LoadRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Document, validation.Required),
		validation.Field(&r.Page, validation.Min(0)),
	)
}

// MoveRequest relocates a page.
type MoveRequest struct {
	FromDocument string `json:"from_document" example:"Home" validate:"required"`
	FromPage     int    `json:"from_page" example:"3"`
	ToDocument   string `json:"to_document" example:"Archive" validate:"required"`
	ToPage       int    `json:"to_page" example:"0"`
}

// Validate implements validation.Validatable.
func (r *MoveRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.FromDocument, validation.Required),
		validation.Field(&r.FromPage, validation.Min(0)),
		validation.Field(&r.ToDocument, validation.Required),
		validation.Field(&r.ToPage, validation.Min(0)),
	)
}

// ScrollRequest scrolls by Delta pixels, or by half a page when Direction
// is "up" or "down".
type ScrollRequest struct {
	Delta     int    `json:"delta" example:"120"`
	Direction string `json:"direction,omitempty" example:"down"`
}

// Validate implements validation.Validatable.
func (r *ScrollRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Direction, validation.In("up", "down")),
	)
}

// ScrollResponse reports the new scroll offset.
type ScrollResponse struct {
	Scroll int `json:"scroll" example:"300"`
}

// StrokesRequest adds strokes to the resident page.
type StrokesRequest struct {
	Strokes []models.Stroke `json:"strokes" validate:"required"`
}

// Validate implements validation.Validatable.
func (r *StrokesRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Strokes, validation.Required),
	)
}

// StrokesResponse reports how many strokes were added.
type StrokesResponse struct {
	Added int `json:"added" example:"12"`
}

// MaxEraseRadius bounds the eraser size accepted over HTTP.
const MaxEraseRadius = 4096

// EraseRequest erases strokes starting within Radius of (X, Y).
type EraseRequest struct {
	X      int `json:"x" example:"100"`
	Y      int `json:"y" example:"100"`
	Radius int `json:"radius" example:"10"`
}

// Validate implements validation.Validatable.
func (r *EraseRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Radius, validation.Required, validation.Min(1), validation.Max(MaxEraseRadius)),
	)
}

// EraseResponse lists the removed strokes.
type EraseResponse struct {
	Removed []models.Stroke `json:"removed"`
}

// LinkRequest anchors a link on the resident page.
type LinkRequest struct {
	X      int    `json:"x" example:"100"`
	Y      int    `json:"y" example:"50"`
	Target string `json:"target" example:"Other" validate:"required"`
}

// Validate implements validation.Validatable.
func (r *LinkRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Target, validation.Required),
	)
}

// ExportRequest names the page to export.
type ExportRequest struct {
	Document string `json:"document" example:"Home" validate:"required"`
	Page     int    `json:"page" example:"0"`
}

// Validate implements validation.Validatable.
func (r *ExportRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Document, validation.Required),
		validation.Field(&r.Page, validation.Min(0)),
	)
}

// NavResponse reports whether a page turn happened.
type NavResponse struct {
	Changed bool   `json:"changed"`
	Status  Status `json:"status"`
}
