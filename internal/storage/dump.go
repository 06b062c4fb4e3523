package storage

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/starford/inkwell/internal/models"
)

// Dump is the JSON form of one page.
type Dump struct {
	ID         string              `json:"id"`
	Document   string              `json:"document"`
	Page       int                 `json:"page"`
	Strokes    []models.Stroke     `json:"strokes"`
	Links      []models.LinkRecord `json:"links"`
	ExportedAt time.Time           `json:"exported_at"`
}

// NewDump stamps a page snapshot with a fresh time-ordered ID.
func NewDump(doc string, page int, strokes []models.Stroke, links []models.LinkRecord) (Dump, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Dump{}, fmt.Errorf("storage: dump id: %w", err)
	}
	return Dump{
		ID:         id.String(),
		Document:   doc,
		Page:       page,
		Strokes:    strokes,
		Links:      links,
		ExportedAt: time.Now().UTC(),
	}, nil
}

// Validate implements validation.Validatable.
func (d Dump) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.ID, validation.Required, is.UUID),
		validation.Field(&d.Document, validation.Required, validation.Length(1, 255)),
		validation.Field(&d.Page, validation.Min(0)),
		validation.Field(&d.Links, validation.Each(validation.By(validLink))),
	)
}

func validLink(v any) error {
	l, _ := v.(models.LinkRecord)
	if l.Target == "" {
		return validation.NewError("validation_link_target", "link target is required")
	}
	if l.X < 0 || l.Y < 0 {
		return validation.NewError("validation_link_anchor", "link anchor must not be negative")
	}
	return nil
}

// Encode validates d and returns its indented JSON form.
func Encode(d Dump) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("storage: invalid dump: %w", err)
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("storage: encode dump: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses and validates a dump file.
func Decode(data []byte) (Dump, error) {
	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return Dump{}, fmt.Errorf("storage: decode dump: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Dump{}, fmt.Errorf("storage: invalid dump: %w", err)
	}
	return d, nil
}

// DumpPath returns the file name used when exporting (doc, page), relative
// to the dump root. ext is ".json" or ".png".
func DumpPath(doc string, page int, ext string) string {
	return path.Join(dirName(doc), fmt.Sprintf("page-%03d%s", page, ext))
}

// dirName turns a document name into a single safe path element.
func dirName(doc string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, doc)
	if name == "" || strings.Trim(name, ".") == "" {
		return "_"
	}
	return name
}
