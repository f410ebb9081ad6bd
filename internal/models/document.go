// Package models holds shared data types for local documents.
package models

import "time"

// DocumentMeta describes one Markdown file discovered under the docs root.
type DocumentMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
