package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/spa-slots/internal/appointment"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeSnapshotUpdated is published after a new snapshot was saved
	EventTypeSnapshotUpdated EventType = "SNAPSHOT_UPDATED"
)

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// SnapshotUpdatedPayload is the JSON carried in the data field.
type SnapshotUpdatedPayload struct {
	EventID      string                    `json:"event_id"`
	EventType    string                    `json:"event_type"`
	Timestamp    time.Time                 `json:"timestamp"`
	Count        int                       `json:"count"`
	LastUpdated  *time.Time                `json:"last_updated,omitempty"`
	Appointments []appointment.Appointment `json:"appointments"`
	Source       string                    `json:"source"`
}

// Publisher announces new snapshots on a Redis stream. A Publisher without a
// client does nothing.
type Publisher struct {
	redis  RedisClient
	stream string
	now    func() time.Time
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	return &Publisher{
		redis:  client,
		stream: stream,
		now:    time.Now,
		logger: logger.With("component", "event_publisher"),
	}
}

// NewDisabledPublisher returns a publisher whose calls are no-ops.
func NewDisabledPublisher(logger *slog.Logger) *Publisher {
	return NewPublisher(nil, "", logger)
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.redis != nil
}

func (p *Publisher) PublishSnapshotUpdated(ctx context.Context, snap *appointment.Snapshot) error {
	if !p.Enabled() || snap == nil {
		return nil
	}

	payload := SnapshotUpdatedPayload{
		EventID:      uuid.New().String(),
		EventType:    string(EventTypeSnapshotUpdated),
		Timestamp:    p.now().UTC(),
		Count:        snap.Count,
		LastUpdated:  snap.LastUpdated,
		Appointments: snap.Appointments,
		Source:       "spa-slots",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	lastUpdated := ""
	if snap.LastUpdated != nil {
		lastUpdated = snap.LastUpdated.UTC().Format(time.RFC3339)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":     payload.EventID,
			"event_type":   payload.EventType,
			"count":        strconv.Itoa(snap.Count),
			"last_updated": lastUpdated,
			"data":         string(data),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("event published",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"stream", p.stream,
		"stream_id", id,
		"count", snap.Count,
	)

	return nil
}
