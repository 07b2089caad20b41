package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"disasterwatch/api/internal/events"
	"disasterwatch/api/internal/ids"
	"disasterwatch/api/internal/repository"
	"disasterwatch/api/internal/storage"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func pngBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, "\x89PNG\r\n\x1a\n")
	return data
}

func sequentialNamer() ids.Namer {
	var mu sync.Mutex
	n := 0
	return ids.Namer{
		Now: func() time.Time { return testNow },
		Suffix: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return string(rune('a' + n - 1))
		},
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Ping(context.Context) error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type failingStore struct {
	storage.ContentStore
}

func (failingStore) Save(context.Context, string, string, io.Reader, int64) error {
	return errors.New("disk full")
}

type fixture struct {
	uploads   *repository.UploadRepository
	store     *storage.FilesystemStore
	publisher *recordingPublisher
	intake    *UploadService
}

func newFixture(t *testing.T, maxBytes int64) fixture {
	t.Helper()
	store, err := storage.NewFilesystemStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	uploads := repository.NewUploadRepository(func() time.Time { return testNow })
	publisher := &recordingPublisher{}
	intake := NewUploadService(uploads, store, UploadOptions{
		MaxBytes:  maxBytes,
		Namer:     sequentialNamer(),
		Publisher: publisher,
	}, zerolog.Nop())

	return fixture{uploads: uploads, store: store, publisher: publisher, intake: intake}
}

func pngInput(name string, size int) UploadInput {
	return UploadInput{
		File:         bytes.NewReader(pngBytes(size)),
		OriginalName: name,
		MimeType:     "image/png",
		Size:         int64(size),
	}
}
