// Package apperr defines sentinel errors shared across the application.
package apperr

import "errors"

// ErrNotFound marks a remote page or attachment that does not exist.
var ErrNotFound = errors.New("not found")
