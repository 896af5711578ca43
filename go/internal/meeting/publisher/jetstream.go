package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/standup/go/internal/meeting/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamConfig locates the meeting event stream.
type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	// Retention is how long the stream keeps events; Dedup is the Nats-Msg-Id window.
	Retention time.Duration
	Dedup     time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "MEETING_EVENTS",
		SubjectPrefix: "meeting.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Retention:     24 * time.Hour,
		Dedup:         2 * time.Minute,
	}
}

// Subject returns the subject an event type is published on.
func (c JetStreamConfig) Subject(eventType events.EventType) string {
	return c.SubjectPrefix + "." + string(eventType)
}

// connect dials NATS with reconnect logging and opens a JetStream context.
func (c JetStreamConfig) connect(name string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(c.URL,
		nats.Name(name),
		nats.MaxReconnects(c.MaxReconnects),
		nats.ReconnectWait(c.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Str("client", name).Msg("lost NATS connection")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("client", name).Str("url", nc.ConnectedUrl()).Msg("NATS connection restored")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS at %s: %w", c.URL, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("open JetStream: %w", err)
	}
	return nc, js, nil
}

// JetStreamPublisher writes meeting events to the stream, one subject per event type.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// NewJetStreamPublisher connects and makes sure the stream exists with the
// configured retention.
func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	nc, js, err := cfg.connect("standup-publisher")
	if err != nil {
		return nil, err
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   []string{cfg.SubjectPrefix + ".>"},
		MaxAge:     cfg.Retention,
		Duplicates: cfg.Dedup,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("declare stream %s: %w", cfg.StreamName, err)
	}
	log.Info().Str("stream", cfg.StreamName).Msg("meeting event stream ready")

	return &JetStreamPublisher{nc: nc, js: js, config: cfg}, nil
}

// Publish uses the event ID as Nats-Msg-Id so a retried publish is stored once.
func (p *JetStreamPublisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	msg := nats.NewMsg(p.config.Subject(event.Type))
	msg.Data = data
	msg.Header.Set("Meeting-ID", event.MeetingID.String())

	ack, err := p.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(event.ID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	if ack.Duplicate {
		log.Debug().Str("event_id", event.ID.String()).Msg("event already stored")
	}
	return nil
}

func (p *JetStreamPublisher) Close() error {
	return p.nc.Drain()
}
