package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"disasterwatch/api/internal/ids"
)

type Type string

const (
	TypeUploadCreated  Type = "upload.created"
	TypeUploadAnalyzed Type = "upload.analyzed"
)

type Event struct {
	ID         string
	Type       Type
	UploadID   int64
	Filename   string
	OccurredAt time.Time
	Data       map[string]any
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Ping(ctx context.Context) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Ping(context.Context) error { return nil }

// RedisPublisher appends events to a redis stream, trimming it
// approximately to MaxLen entries.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		stream: stream,
		maxLen: 10000,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	values, err := encode(event)
	if err != nil {
		return err
	}
	_, err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func encode(event Event) (map[string]any, error) {
	if event.ID == "" {
		event.ID = ids.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	values := map[string]any{
		"eventId":    event.ID,
		"type":       string(event.Type),
		"uploadId":   strconv.FormatInt(event.UploadID, 10),
		"filename":   event.Filename,
		"occurredAt": event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if len(event.Data) > 0 {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return nil, fmt.Errorf("encode event data: %w", err)
		}
		values["data"] = string(data)
	}
	return values, nil
}
