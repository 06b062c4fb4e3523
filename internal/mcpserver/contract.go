package mcpserver

// DumpFormatContract describes the JSON page dump format accepted by the
// inbox and produced by export_page.
const DumpFormatContract = `# Inkwell Page Dump Format

A page dump is one JSON object describing a single page of a document.

## Structure

` + "```" + `json
{
  "id": "0190a8d6-5b3c-7c4e-9a3b-1f2e3d4c5b6a",
  "document": "Home",
  "page": 0,
  "strokes": [
    {"ax": 10, "ay": 10, "bx": 20, "by": 20, "width": 2, "color": 0, "type": 0, "etc": 0}
  ],
  "links": [
    {"x": 100, "y": 50, "target": "Other"}
  ],
  "exported_at": "2026-01-15T09:30:00Z"
}
` + "```" + `

## Rules

1. **id** is a UUID, unique per export. Files are de-duplicated by content
   checksum, so re-exporting the same page yields a new dump.
2. **document** is required. **page** is the page number at export time; an
   import always appends the page as the document's new last page.
3. **Strokes** are straight segments from (ax, ay) to (bx, by) in page pixels.
   ` + "`" + `width` + "`" + `, ` + "`" + `color` + "`" + `, ` + "`" + `type` + "`" + ` and ` + "`" + `etc` + "`" + ` are bytes (0..255); colour is a
   4-bit gray level where 0 is black and 15 is white.
4. **Links** anchor the bottom-left of a label at (x, y); the label is the
   target document name and must not be empty. Coordinates are never negative.
5. Dumps are written atomically and end with a newline. Files that do not end
   in ` + "`" + `.json` + "`" + ` are ignored by the inbox.
`
