// Package storage defines the docs-directory file-system abstraction.
package storage

import "github.com/starford/ansuz/internal/models"

// Provider is the interface for local document operations. The sync pipeline
// never writes to the docs directory; the provider is read-only.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to the docs root).
	List(dir string) ([]models.DocumentMeta, error)
	// Read returns the raw bytes of the file at path (relative to the docs root).
	Read(path string) ([]byte, error)
	// Abs resolves path (relative to the docs root) to an absolute path,
	// rejecting anything that escapes the root.
	Abs(path string) (string, error)
	// Root returns the absolute docs root directory.
	Root() string
}
