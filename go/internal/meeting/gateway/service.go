package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/mcdev12/standup/go/internal/meeting"
	"github.com/mcdev12/standup/go/internal/meeting/events"
	"github.com/mcdev12/standup/go/internal/meeting/publisher"
	"github.com/mcdev12/standup/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Service exposes one meeting engine over HTTP and websockets and forwards its
// events to the publisher.
type Service struct {
	engine      *meeting.Engine
	publisher   publisher.EventPublisher
	connections *ConnectionManager
	config      Config

	mu    sync.RWMutex
	title string

	updates   <-chan meeting.Snapshot
	publishCh chan events.Event
}

// Config holds configuration for the meeting gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	PublishTimeout   time.Duration
	PublishBuffer    int
	UpdateBuffer     int
}

// DefaultConfig returns default configuration for the meeting gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		PublishTimeout:   5 * time.Second,
		PublishBuffer:    256,
		UpdateBuffer:     256,
	}
}

// NewService subscribes to engine transitions right away so none are missed
// before Run starts.
func NewService(config Config, engine *meeting.Engine, title string, pub publisher.EventPublisher) *Service {
	if config.PublishBuffer <= 0 {
		config.PublishBuffer = 256
	}
	if config.UpdateBuffer <= 0 {
		config.UpdateBuffer = 256
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 5 * time.Second
	}
	return &Service{
		engine:      engine,
		publisher:   pub,
		connections: NewConnectionManager(config.ConnectionConfig),
		config:      config,
		title:       title,
		updates:     engine.Subscribe(config.UpdateBuffer),
		publishCh:   make(chan events.Event, config.PublishBuffer),
	}
}

// Run broadcasts engine transitions to websocket clients until ctx is done.
// Lifecycle events go out right after the tick that produced them; publishing
// happens on a separate goroutine and never holds up the broadcast.
func (s *Service) Run(ctx context.Context) error {
	log.Info().Str("meeting_id", s.engine.ID().String()).Msg("starting meeting gateway service")

	go s.connections.Start(ctx)
	go s.publishLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("meeting gateway service shutting down")
			return nil
		case snap, ok := <-s.updates:
			if !ok {
				return nil
			}
			s.handleSnapshot(snap)
		}
	}
}

// Title returns the meeting title.
func (s *Service) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

// Snapshot returns the engine state.
func (s *Service) Snapshot() meeting.Snapshot {
	return s.engine.Snapshot()
}

func (s *Service) StartMeeting() error {
	return s.engine.Start()
}

func (s *Service) SkipSpeaker() error {
	return s.engine.Skip()
}

// StopMeeting stops the engine. The engine only reports the first stop.
func (s *Service) StopMeeting() {
	s.engine.Stop()
}

// ResetMeeting reconfigures the engine. An empty title keeps the current one.
func (s *Service) ResetMeeting(cfg models.MeetingConfig) {
	if cfg.Title != "" {
		s.mu.Lock()
		s.title = cfg.Title
		s.mu.Unlock()
	}
	s.engine.Reset(cfg.LengthInMinutes, cfg.Attendees)
}

// Stats returns statistics about the gateway service
func (s *Service) Stats() ConnectionStats {
	return s.connections.Stats()
}

// RegisterRoutes registers the HTTP and websocket routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	h := &handler{service: s}
	mux.HandleFunc("/api/meeting/state", h.handleState)
	mux.HandleFunc("/api/meeting/start", h.handleStart)
	mux.HandleFunc("/api/meeting/skip", h.handleSkip)
	mux.HandleFunc("/api/meeting/stop", h.handleStop)
	mux.HandleFunc("/api/meeting/reset", h.handleReset)
	mux.HandleFunc("/ws/meeting", h.handleWebSocket)
	mux.HandleFunc("/ws/stats", h.handleStats)
	log.Info().Msg("meeting gateway routes registered")
}

func (s *Service) handleSnapshot(snap meeting.Snapshot) {
	if event, err := tickEvent(snap); err != nil {
		log.Error().Err(err).Msg("failed to build timer tick")
	} else {
		s.connections.Broadcast(event)
	}

	for _, event := range s.lifecycleEvents(snap) {
		s.connections.Broadcast(event)
		select {
		case s.publishCh <- event:
		default:
			log.Warn().Str("event_type", string(event.Type)).Msg("publish queue full, dropping event")
		}
	}
}

// lifecycleEvents maps a transition to the events announced for it. Progress
// snapshots only produce the tick.
func (s *Service) lifecycleEvents(snap meeting.Snapshot) []events.Event {
	var out []events.Event
	add := func(eventType events.EventType, payload interface{}) {
		event, err := events.New(eventType, snap.MeetingID, snap.At, payload)
		if err != nil {
			log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
			return
		}
		out = append(out, event)
	}

	switch snap.Reason {
	case meeting.ReasonStarted:
		add(events.EventTypeMeetingStarted, events.MeetingStartedPayload{
			Title:             s.Title(),
			LengthInMinutes:   snap.LengthInMinutes,
			SecondsPerSpeaker: snap.SecondsPerSpeaker,
			Speakers:          speakerNames(snap.Speakers),
			StartedAt:         snap.At,
		})
	case meeting.ReasonSpeakerChanged:
		completed := snap.Status == models.MeetingStatusCompleted
		add(events.EventTypeSpeakerChanged, events.SpeakerChangedPayload{
			SpeakerIndex:     snap.SpeakerIndex,
			ActiveSpeaker:    snap.ActiveSpeaker,
			SecondsElapsed:   snap.SecondsElapsed,
			SecondsRemaining: snap.SecondsRemaining,
			Completed:        completed,
			ChangedAt:        snap.At,
		})
		if completed {
			add(events.EventTypeMeetingCompleted, events.MeetingCompletedPayload{
				CompletedAt:      snap.At,
				SecondsElapsed:   snap.SecondsElapsed,
				SecondsRemaining: snap.SecondsRemaining,
				TotalSpeakers:    len(snap.Speakers),
			})
		}
	case meeting.ReasonStopped:
		completedSpeakers := 0
		for _, sp := range snap.Speakers {
			if sp.IsCompleted {
				completedSpeakers++
			}
		}
		add(events.EventTypeMeetingStopped, events.MeetingStoppedPayload{
			StoppedAt:         snap.At,
			SpeakerIndex:      snap.SpeakerIndex,
			SecondsRemaining:  snap.SecondsRemaining,
			CompletedSpeakers: completedSpeakers,
		})
	case meeting.ReasonReset:
		add(events.EventTypeMeetingReset, events.MeetingResetPayload{
			LengthInMinutes: snap.LengthInMinutes,
			Speakers:        speakerNames(snap.Speakers),
			ResetAt:         snap.At,
		})
	}
	return out
}

func (s *Service) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.publishCh:
			s.publish(ctx, event)
		}
	}
}

// publish never lets a failure reach the engine or the websocket stream.
func (s *Service) publish(ctx context.Context, event events.Event) {
	publishCtx, cancel := context.WithTimeout(ctx, s.config.PublishTimeout)
	defer cancel()
	if err := s.publisher.Publish(publishCtx, event); err != nil {
		level := log.Error()
		if errors.Is(err, context.Canceled) {
			level = log.Warn()
		}
		level.Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.Type)).
			Msg("failed to publish meeting event")
	}
}

func speakerNames(speakers []models.Speaker) []string {
	names := make([]string, len(speakers))
	for i, sp := range speakers {
		names[i] = sp.Name
	}
	return names
}

func tickEvent(snap meeting.Snapshot) (events.Event, error) {
	return events.New(events.EventTypeTimerTick, snap.MeetingID, snap.At, events.TimerTickPayload{
		Status:           snap.Status,
		SpeakerIndex:     snap.SpeakerIndex,
		ActiveSpeaker:    snap.ActiveSpeaker,
		SecondsElapsed:   snap.SecondsElapsed,
		SecondsRemaining: snap.SecondsRemaining,
		Speakers:         snap.Speakers,
		TickedAt:         snap.At,
	})
}
