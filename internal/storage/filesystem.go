package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const partialSuffix = ".partial"

type FilesystemStore struct {
	root string
}

func NewFilesystemStore(root string) (*FilesystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve content dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	return &FilesystemStore{root: abs}, nil
}

func (s *FilesystemStore) Root() string {
	return s.root
}

// Save streams r into a hidden partial file and renames it into place once
// the copy succeeds, so a failed write leaves no visible file behind.
func (s *FilesystemStore) Save(ctx context.Context, name string, _ string, r io.Reader, _ int64) error {
	if !ValidName(name) {
		return ErrInvalidName
	}

	final := filepath.Join(s.root, name)
	partial := filepath.Join(s.root, "."+name+partialSuffix)

	f, err := os.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create partial: %w", err)
	}

	_, copyErr := io.Copy(f, contextReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(partial)
		if copyErr != nil {
			return fmt.Errorf("write payload: %w", copyErr)
		}
		return fmt.Errorf("close payload: %w", closeErr)
	}

	if err := os.Rename(partial, final); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("commit payload: %w", err)
	}
	return nil
}

func (s *FilesystemStore) Open(ctx context.Context, name string) (io.ReadCloser, Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, Info{}, err
	}
	if !ValidName(name) {
		return nil, Info{}, ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Info{}, ErrNotFound
		}
		return nil, Info{}, fmt.Errorf("open payload: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Info{}, fmt.Errorf("stat payload: %w", err)
	}
	if !stat.Mode().IsRegular() {
		f.Close()
		return nil, Info{}, ErrNotFound
	}

	return f, Info{
		Name:        name,
		Size:        stat.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		ModTime:     stat.ModTime(),
	}, nil
}

func (s *FilesystemStore) Delete(_ context.Context, name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(s.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *FilesystemStore) Ping(_ context.Context) error {
	stat, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("%s is not a directory", s.root)
	}
	return nil
}

// SweepPartials removes partial files last modified before now-olderThan and
// returns how many were deleted.
func (s *FilesystemStore) SweepPartials(now time.Time, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("read content dir: %w", err)
	}

	cutoff := now.Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, partialSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
