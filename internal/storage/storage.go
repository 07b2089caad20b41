package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("content not found")
	ErrInvalidName = errors.New("invalid content name")
)

type Info struct {
	Name        string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// ContentStore persists upload payloads under flat names.
type ContentStore interface {
	Save(ctx context.Context, name string, contentType string, r io.Reader, size int64) error
	Open(ctx context.Context, name string) (io.ReadCloser, Info, error)
	Delete(ctx context.Context, name string) error
	Ping(ctx context.Context) error
}

// ValidName reports whether name is a plain file name that cannot escape
// the content root.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return !strings.Contains(name, "..")
}
