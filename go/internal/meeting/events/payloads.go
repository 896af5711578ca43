package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/standup/go/internal/models"
)

// EventType represents the type of meeting event
type EventType string

const (
	EventTypeMeetingStarted   EventType = "MeetingStarted"
	EventTypeSpeakerChanged   EventType = "SpeakerChanged"
	EventTypeMeetingCompleted EventType = "MeetingCompleted"
	EventTypeMeetingStopped   EventType = "MeetingStopped"
	EventTypeMeetingReset     EventType = "MeetingReset"
	EventTypeTimerTick        EventType = "TimerTick"
)

// Event is the envelope shared by the bus and the websocket stream.
type Event struct {
	ID        uuid.UUID       `json:"eventId"`
	Type      EventType       `json:"eventType"`
	MeetingID uuid.UUID       `json:"meetingId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// MeetingStartedPayload is the payload for a MeetingStarted event
type MeetingStartedPayload struct {
	Title             string    `json:"title,omitempty"`
	LengthInMinutes   int       `json:"length_in_minutes"`
	SecondsPerSpeaker int       `json:"seconds_per_speaker"`
	Speakers          []string  `json:"speakers"`
	StartedAt         time.Time `json:"started_at"`
}

// SpeakerChangedPayload is the payload for a SpeakerChanged event. Completed is
// set when the rotation ran past the last speaker.
type SpeakerChangedPayload struct {
	SpeakerIndex     int       `json:"speaker_index"`
	ActiveSpeaker    string    `json:"active_speaker"`
	SecondsElapsed   int       `json:"seconds_elapsed"`
	SecondsRemaining int       `json:"seconds_remaining"`
	Completed        bool      `json:"completed"`
	ChangedAt        time.Time `json:"changed_at"`
}

// MeetingCompletedPayload is the payload for a MeetingCompleted event
type MeetingCompletedPayload struct {
	CompletedAt      time.Time `json:"completed_at"`
	SecondsElapsed   int       `json:"seconds_elapsed"`
	SecondsRemaining int       `json:"seconds_remaining"`
	TotalSpeakers    int       `json:"total_speakers"`
}

// MeetingStoppedPayload is the payload for a MeetingStopped event
type MeetingStoppedPayload struct {
	StoppedAt         time.Time `json:"stopped_at"`
	SpeakerIndex      int       `json:"speaker_index"`
	SecondsRemaining  int       `json:"seconds_remaining"`
	CompletedSpeakers int       `json:"completed_speakers"`
}

// MeetingResetPayload is the payload for a MeetingReset event
type MeetingResetPayload struct {
	LengthInMinutes int       `json:"length_in_minutes"`
	Speakers        []string  `json:"speakers"`
	ResetAt         time.Time `json:"reset_at"`
}

// TimerTickPayload carries the live counters streamed to clients.
type TimerTickPayload struct {
	Status           models.MeetingStatus `json:"status"`
	SpeakerIndex     int                  `json:"speaker_index"`
	ActiveSpeaker    string               `json:"active_speaker"`
	SecondsElapsed   int                  `json:"seconds_elapsed"`
	SecondsRemaining int                  `json:"seconds_remaining"`
	Speakers         []models.Speaker     `json:"speakers"`
	TickedAt         time.Time            `json:"ticked_at"`
}

// New wraps payload in an Event with a fresh id.
func New(eventType EventType, meetingID uuid.UUID, at time.Time, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		MeetingID: meetingID,
		Timestamp: at.UTC(),
		Payload:   data,
	}, nil
}

// ParsePayload decodes the payload into the struct matching the event type.
func ParsePayload(event Event) (interface{}, error) {
	var target interface{}
	switch event.Type {
	case EventTypeMeetingStarted:
		target = &MeetingStartedPayload{}
	case EventTypeSpeakerChanged:
		target = &SpeakerChangedPayload{}
	case EventTypeMeetingCompleted:
		target = &MeetingCompletedPayload{}
	case EventTypeMeetingStopped:
		target = &MeetingStoppedPayload{}
	case EventTypeMeetingReset:
		target = &MeetingResetPayload{}
	case EventTypeTimerTick:
		target = &TimerTickPayload{}
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
	if err := json.Unmarshal(event.Payload, target); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", event.Type, err)
	}
	return target, nil
}
