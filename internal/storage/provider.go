// Package storage reads and writes page dump files: portable JSON snapshots
// of a single page used for export and inbox import.
package storage

import "github.com/starford/inkwell/internal/models"

// Provider is the interface for dump directory operations.
type Provider interface {
	// List returns metadata for every .json file under dir (relative to root).
	List(dir string) ([]models.DumpMetadata, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
	// WriteDump validates and writes d at its canonical path, returning it.
	WriteDump(d Dump) (string, error)
	// ReadDump decodes the dump at path and returns its content checksum.
	ReadDump(path string) (Dump, string, error)
}

var _ Provider = (*FS)(nil)
