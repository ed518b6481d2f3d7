// Package storage persists the mirrored output tree.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path"
	"strings"
)

// Store writes and reads files of the output tree. Paths are slash-separated
// and relative to the store root; they may not escape it.
type Store interface {
	// WriteFile stores data at p, creating parent directories. Writing the
	// content a file already holds is skipped and reported as written=false.
	WriteFile(ctx context.Context, p string, data []byte) (written bool, err error)

	// ReadFile returns the content at p or ErrNotFound.
	ReadFile(ctx context.Context, p string) ([]byte, error)

	// Exists reports whether a file or directory exists at p.
	Exists(ctx context.Context, p string) (bool, error)

	// Delete removes the file at p. A missing file is not an error.
	Delete(ctx context.Context, p string) error

	// ListDirs returns the names of the subdirectories of dir, sorted.
	ListDirs(ctx context.Context, dir string) ([]string, error)

	// Root describes where the tree lives (a directory for FSStore).
	Root() string
}

// ErrNotFound is returned when a file doesn't exist.
type ErrNotFound struct {
	Path string
}

func (e ErrNotFound) Error() string {
	return "file not found: " + e.Path
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// ErrOutsideRoot is returned for paths escaping the store root.
var ErrOutsideRoot = errors.New("path escapes the output root")

// Clean normalizes p and rejects absolute or escaping paths.
func Clean(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return "", ErrOutsideRoot
	}
	c := path.Clean(p)
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", ErrOutsideRoot
	}
	return c, nil
}

// Hash returns the hex SHA256 of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
