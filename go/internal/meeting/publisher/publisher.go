package publisher

import (
	"context"

	"github.com/mcdev12/standup/go/internal/meeting/events"
	"github.com/rs/zerolog/log"
)

// EventPublisher delivers meeting events to whoever listens outside the process.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
	Close() error
}

// LogPublisher only logs events. Used when no message bus is configured.
type LogPublisher struct{}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, event events.Event) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("meeting_id", event.MeetingID.String()).
		RawJSON("payload", event.Payload).
		Msg("meeting event")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
