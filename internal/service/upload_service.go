package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"disasterwatch/api/internal/apperr"
	"disasterwatch/api/internal/events"
	"disasterwatch/api/internal/ids"
	"disasterwatch/api/internal/media/sniffer"
	"disasterwatch/api/internal/media/svg"
	"disasterwatch/api/internal/metrics"
	"disasterwatch/api/internal/models"
	"disasterwatch/api/internal/repository"
	"disasterwatch/api/internal/storage"
)

const DefaultMaxUploadBytes int64 = 10 * 1024 * 1024

type UploadInput struct {
	File         io.Reader
	FieldName    string
	OriginalName string
	MimeType     string
	Size         int64
}

type UploadResult struct {
	Upload models.Upload
}

type UploadOptions struct {
	MaxBytes  int64
	FieldName string
	Namer     ids.Namer
	Publisher events.Publisher
	Metrics   *metrics.Collector
}

type UploadService struct {
	uploads   *repository.UploadRepository
	store     storage.ContentStore
	publisher events.Publisher
	metrics   *metrics.Collector
	namer     ids.Namer
	maxBytes  int64
	fieldName string
	log       zerolog.Logger
}

func NewUploadService(uploads *repository.UploadRepository, store storage.ContentStore, opts UploadOptions, log zerolog.Logger) *UploadService {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxUploadBytes
	}
	if opts.FieldName == "" {
		opts.FieldName = "image"
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Namer.Now == nil && opts.Namer.Suffix == nil {
		opts.Namer = ids.NewNamer()
	}

	return &UploadService{
		uploads:   uploads,
		store:     store,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		namer:     opts.Namer,
		maxBytes:  opts.MaxBytes,
		fieldName: opts.FieldName,
		log:       log,
	}
}

func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload validates the payload, persists it to the content store and
// creates a pending record. Nothing is left behind when it fails.
func (s *UploadService) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	const op = "UploadService.Upload"

	result, err := s.upload(ctx, input)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeInvalidArgument) {
			s.metrics.UploadRejected()
		}
		return UploadResult{}, err
	}
	s.metrics.UploadAccepted(result.Upload.SizeBytes)

	s.publish(ctx, events.Event{
		Type:       events.TypeUploadCreated,
		UploadID:   result.Upload.ID,
		Filename:   result.Upload.Filename,
		OccurredAt: result.Upload.CreatedAt,
		Data: map[string]any{
			"originalname": result.Upload.OriginalName,
			"mimetype":     result.Upload.MimeType,
			"size":         result.Upload.SizeBytes,
		},
	}, op)

	return result, nil
}

func (s *UploadService) upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	const op = "UploadService.Upload"

	if err := s.Validate(input); err != nil {
		return UploadResult{}, err
	}

	mimeType := sniffer.NormalizeMIME(input.MimeType)

	head, body, err := sniffer.Peek(input.File)
	if err != nil {
		return UploadResult{}, apperr.E(apperr.CodeInternal, op, "read payload", err)
	}
	if len(head) == 0 {
		return UploadResult{}, apperr.E(apperr.CodeInvalidArgument, op, "No file uploaded", apperr.ErrNoFileProvided)
	}

	detected, err := sniffer.DetectHead(head)
	if err != nil && !errors.Is(err, sniffer.ErrUnknownType) {
		return UploadResult{}, apperr.E(apperr.CodeInternal, op, "detect type", err)
	}

	size := input.Size
	if detected.Type == sniffer.TypeSVG || mimeType == "image/svg+xml" {
		data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
		if err != nil {
			return UploadResult{}, apperr.E(apperr.CodeInternal, op, "read payload", err)
		}
		if int64(len(data)) > s.maxBytes {
			return UploadResult{}, s.TooLarge(op)
		}
		clean, err := svg.Sanitize(data)
		if err != nil {
			return UploadResult{}, apperr.E(apperr.CodeInvalidArgument, op, "Invalid SVG document", err)
		}
		body = bytes.NewReader(clean)
		size = int64(len(clean))
	}

	field := input.FieldName
	if field == "" {
		field = s.fieldName
	}
	filename := s.namer.Name(field, input.OriginalName, detected.Extension())

	counter := &limitedCounter{r: body, limit: s.maxBytes}
	if err := s.store.Save(ctx, filename, mimeType, counter, size); err != nil {
		if counter.exceeded {
			_ = s.store.Delete(context.WithoutCancel(ctx), filename)
			return UploadResult{}, s.TooLarge(op)
		}
		return UploadResult{}, apperr.E(apperr.CodeInternal, op, "store payload", err)
	}

	upload, err := s.uploads.Create(ctx, models.NewUpload{
		Filename:     filename,
		OriginalName: input.OriginalName,
		MimeType:     mimeType,
		Format:       string(detected.Type),
		SizeBytes:    counter.n,
	})
	if err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), filename); delErr != nil {
			s.log.Warn().Err(delErr).Str("filename", filename).Msg("remove orphaned payload failed")
		}
		return UploadResult{}, apperr.E(apperr.CodeInternal, op, "save metadata", err)
	}

	s.log.Info().
		Int64("upload_id", upload.ID).
		Str("filename", upload.Filename).
		Str("mimetype", upload.MimeType).
		Int64("size", upload.SizeBytes).
		Msg("upload stored")

	return UploadResult{Upload: upload}, nil
}

// Validate applies the intake rules in order: payload present, image mime
// type, size within the limit.
func (s *UploadService) Validate(input UploadInput) error {
	const op = "UploadService.Validate"

	if input.File == nil {
		return apperr.E(apperr.CodeInvalidArgument, op, "No file uploaded", apperr.ErrNoFileProvided)
	}
	if !sniffer.IsImageMIME(input.MimeType) {
		return apperr.E(apperr.CodeInvalidArgument, op, "Only image files are allowed", apperr.ErrInvalidFileType)
	}
	if input.Size > s.maxBytes {
		return s.TooLarge(op)
	}
	return nil
}

func (s *UploadService) TooLarge(op string) error {
	return apperr.E(apperr.CodeInvalidArgument, op,
		fmt.Sprintf("File too large (max %d bytes)", s.maxBytes), apperr.ErrFileTooLarge)
}

func (s *UploadService) publish(ctx context.Context, event events.Event, op string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("op", op).Int64("upload_id", event.UploadID).Msg("publish event failed")
	}
}

// limitedCounter counts bytes read and fails once more than limit bytes
// have been seen.
type limitedCounter struct {
	r        io.Reader
	limit    int64
	n        int64
	exceeded bool
}

func (c *limitedCounter) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.limit {
		c.exceeded = true
		return n, apperr.ErrFileTooLarge
	}
	return n, err
}
