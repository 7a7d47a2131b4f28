// Package storage defines the read-only vault file-system abstraction.
package storage

import "time"

// FileMetadata is a lightweight listing entry for a vault file.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for reading note files. The pipeline never
// writes to the vault; documents are owned by the note store.
type Provider interface {
	// List returns metadata for every .md file matching prefix. A path
	// matches when it equals the prefix or starts with prefix plus a
	// separator. The empty prefix matches top-level files only.
	List(prefix string) ([]FileMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
}
