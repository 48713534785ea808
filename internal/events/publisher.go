package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"volo/internal/config"
)

// Type names a lifecycle event.
type Type string

const (
	TypeSessionStarted   Type = "session.started"
	TypeSessionStopped   Type = "session.stopped"
	TypeSessionFinalized Type = "session.finalized"
	TypeSessionDelivered Type = "session.delivered"
	TypeWorkerCrashed    Type = "worker.crashed"
)

const source = "volo"

// Event is the JSON document written for every milestone.
type Event struct {
	ID         string    `json:"event_id"`
	Type       Type      `json:"type"`
	GuildID    string    `json:"guild_id"`
	SessionID  string    `json:"session_id,omitempty"`
	ChannelID  string    `json:"channel_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     string    `json:"source"`

	Lines           int      `json:"lines,omitempty"`
	Tracks          int      `json:"tracks,omitempty"`
	Mixed           bool     `json:"mixed,omitempty"`
	Artifacts       []string `json:"artifacts,omitempty"`
	ExportError     string   `json:"export_error,omitempty"`
	DeliveryOutcome string   `json:"delivery_outcome,omitempty"`
	FailedUploads   int      `json:"failed_uploads,omitempty"`
	Attempt         int      `json:"attempt,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// MessageWriter is the subset of kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes events to a topic.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
	now     func() time.Time
}

// NewPublisher returns a Kafka-backed publisher, or a discarding one when no
// brokers are configured.
func NewPublisher(cfg config.Events) *Publisher {
	if len(cfg.Brokers) == 0 {
		return &Publisher{}
	}
	timeout := time.Duration(cfg.WriteTimeoutSeconds) * time.Second
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           timeout,
		ReadTimeout:            timeout,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(writer, timeout)
}

// NewPublisherWithWriter builds a publisher on an existing writer.
func NewPublisherWithWriter(w MessageWriter, timeout time.Duration) *Publisher {
	return &Publisher{writer: w, timeout: timeout, now: time.Now}
}

// Enabled reports whether events leave the process.
func (p *Publisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// Publish fills the envelope fields and writes the event.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if !p.Enabled() {
		return nil
	}
	if strings.TrimSpace(ev.GuildID) == "" {
		return fmt.Errorf("publish %s: guild id is required", ev.Type)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now().UTC()
	}
	ev.Source = source

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.GuildID),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
			{Key: "source", Value: []byte(source)},
		},
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", ev.Type, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}
