package meeting

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/standup/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultFrequency is how often the engine samples the clock while a speaker talks.
// It only affects how smooth progress looks, never how long a speaker gets.
const DefaultFrequency = time.Second / 60

var (
	// ErrCannotStart is returned by Start unless the meeting is freshly built or reset.
	ErrCannotStart = errors.New("meeting can only be started once per reset")
	// ErrNotRunning is returned by Skip when no speaker is on the clock.
	ErrNotRunning = errors.New("meeting is not running")
)

// Reason names the transition that produced a snapshot pushed to subscribers.
type Reason string

const (
	ReasonStarted        Reason = "started"
	ReasonProgress       Reason = "progress"
	ReasonSpeakerChanged Reason = "speaker_changed"
	ReasonStopped        Reason = "stopped"
	ReasonReset          Reason = "reset"
)

// Snapshot is a read-only copy of the engine state handed to observers.
type Snapshot struct {
	MeetingID         uuid.UUID            `json:"meeting_id"`
	Status            models.MeetingStatus `json:"status"`
	ActiveSpeaker     string               `json:"active_speaker"`
	SpeakerIndex      int                  `json:"speaker_index"`
	SecondsElapsed    int                  `json:"seconds_elapsed"`
	SecondsRemaining  int                  `json:"seconds_remaining"`
	SecondsPerSpeaker int                  `json:"seconds_per_speaker"`
	LengthInMinutes   int                  `json:"length_in_minutes"`
	Speakers          []models.Speaker     `json:"speakers"`
	At                time.Time            `json:"at"`
	// Reason is only set on snapshots delivered through Subscribe.
	Reason            Reason               `json:"reason,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to measure elapsed time.
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithScheduler sets the scheduler that drives the periodic poll.
func WithScheduler(scheduler Scheduler) Option {
	return func(e *Engine) { e.scheduler = scheduler }
}

// WithFrequency sets the poll interval.
func WithFrequency(d time.Duration) Option {
	return func(e *Engine) { e.frequency = d }
}

// WithMeetingID sets the identifier used in snapshots and logs.
func WithMeetingID(id uuid.UUID) Option {
	return func(e *Engine) { e.id = id }
}

// Engine rotates through a roster of speakers, giving each an equal share of the
// meeting length and advancing automatically when a share is used up.
type Engine struct {
	mu        sync.Mutex
	id        uuid.UUID
	clock     Clock
	scheduler Scheduler
	frequency time.Duration

	lengthInMinutes int
	speakers        []models.Speaker
	alloc           Allocation

	status                   models.MeetingStatus
	stopped                  bool
	speakerIndex             int
	secondsElapsedForSpeaker int
	secondsElapsed           int
	secondsRemaining         int
	activeSpeaker            string
	startedAt                time.Time

	// generation is bumped whenever the active task is cancelled so that ticks
	// already in flight for an older task are ignored.
	task       Task
	generation uint64

	speakerChanged func()
	observers      []chan Snapshot
	closed         bool
}

// New creates an engine for a meeting of lengthInMinutes split among attendees.
// The engine does not tick until Start is called.
func New(lengthInMinutes int, attendees []string, opts ...Option) *Engine {
	e := &Engine{
		id:        uuid.New(),
		frequency: DefaultFrequency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	if e.scheduler == nil {
		e.scheduler = NewTickerScheduler(e.clock)
	}
	if e.frequency <= 0 {
		e.frequency = DefaultFrequency
	}

	e.resetLocked(lengthInMinutes, attendees)
	return e
}

// ID returns the meeting identifier.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// SetSpeakerChangedAction registers the single callback invoked whenever the
// active speaker changes, including when the rotation runs past the last speaker.
// The callback runs after the new state is visible through Snapshot.
func (e *Engine) SetSpeakerChangedAction(action func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speakerChanged = action
}

// Subscribe registers an observer channel. Snapshots are delivered without
// blocking, in the order the transitions happened; a full channel drops the update.
func (e *Engine) Subscribe(buffer int) <-chan Snapshot {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(ch)
		return ch
	}
	e.observers = append(e.observers, ch)
	return ch
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Start puts the first speaker on the clock.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.status != models.MeetingStatusNotStarted {
		return ErrCannotStart
	}
	e.changeToSpeakerLocked(0)
	e.emitLocked(ReasonStarted)

	log.Info().
		Str("meeting_id", e.id.String()).
		Int("speakers", len(e.speakers)).
		Int("seconds_per_speaker", e.alloc.SecondsPerSpeaker).
		Msg("meeting started")
	return nil
}

// Skip moves to the next speaker immediately. Skipping the last speaker completes
// the meeting.
func (e *Engine) Skip() error {
	e.mu.Lock()
	if e.status != models.MeetingStatusRunning {
		e.mu.Unlock()
		return ErrNotRunning
	}

	log.Debug().
		Str("meeting_id", e.id.String()).
		Int("speaker_index", e.speakerIndex).
		Msg("speaker skipped")

	e.changeToSpeakerLocked(e.speakerIndex + 1)
	e.emitLocked(ReasonSpeakerChanged)
	action := e.speakerChanged
	e.mu.Unlock()

	if action != nil {
		action()
	}
	return nil
}

// Stop cancels polling for good. Ticks that were already in flight are discarded.
// It reports false if the engine was already stopped.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return false
	}
	e.stopped = true
	e.cancelTaskLocked()
	if e.status != models.MeetingStatusCompleted {
		e.status = models.MeetingStatusStopped
	}
	e.emitLocked(ReasonStopped)

	log.Info().
		Str("meeting_id", e.id.String()).
		Str("status", string(e.status)).
		Int("seconds_remaining", e.secondsRemaining).
		Msg("meeting stopped")
	return true
}

// Reset replaces the meeting length and roster. Polling does not resume until
// Start is called again.
func (e *Engine) Reset(lengthInMinutes int, attendees []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked(lengthInMinutes, attendees)
	e.emitLocked(ReasonReset)

	log.Info().
		Str("meeting_id", e.id.String()).
		Int("length_in_minutes", e.lengthInMinutes).
		Int("speakers", len(e.speakers)).
		Msg("meeting reset")
}

// Close stops the engine and closes every subscriber channel.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.stopped = true
	e.cancelTaskLocked()
	for _, ch := range e.observers {
		close(ch)
	}
	e.observers = nil
}

func (e *Engine) resetLocked(lengthInMinutes int, attendees []string) {
	e.cancelTaskLocked()

	e.lengthInMinutes = max(lengthInMinutes, 0)
	e.speakers = BuildRoster(attendees)
	e.alloc = NewAllocation(TotalSeconds(e.lengthInMinutes), len(e.speakers))

	e.status = models.MeetingStatusNotStarted
	e.stopped = false
	e.speakerIndex = 0
	e.secondsElapsedForSpeaker = 0
	e.secondsElapsed = 0
	e.secondsRemaining = e.alloc.TotalSeconds
	e.activeSpeaker = e.speakerLabelLocked()
	e.startedAt = time.Time{}
}

// changeToSpeakerLocked completes the previous speaker and either puts index on
// the clock or, past the end of the roster, freezes the counters.
func (e *Engine) changeToSpeakerLocked(index int) {
	if index > 0 {
		e.speakers[index-1].IsCompleted = true
	}
	e.secondsElapsedForSpeaker = 0
	e.cancelTaskLocked()

	if index >= len(e.speakers) {
		e.status = models.MeetingStatusCompleted
		log.Info().
			Str("meeting_id", e.id.String()).
			Int("seconds_remaining", e.secondsRemaining).
			Msg("all speakers completed")
		return
	}

	e.speakerIndex = index
	e.activeSpeaker = e.speakerLabelLocked()
	e.secondsElapsed = e.alloc.ElapsedAt(index, 0)
	e.secondsRemaining = e.alloc.remaining(e.secondsElapsed)
	e.startedAt = e.clock.Now()
	e.status = models.MeetingStatusRunning

	generation := e.generation
	e.task = e.scheduler.Schedule(e.frequency, func() {
		e.onTick(generation)
	})

	log.Debug().
		Str("meeting_id", e.id.String()).
		Int("speaker_index", index).
		Str("speaker", e.speakers[index].Name).
		Int("seconds_remaining", e.secondsRemaining).
		Msg("speaker on the clock")
}

func (e *Engine) onTick(generation uint64) {
	e.mu.Lock()
	if e.stopped || generation != e.generation || e.status != models.MeetingStatusRunning {
		e.mu.Unlock()
		return
	}

	elapsed := int(e.clock.Now().Sub(e.startedAt) / time.Second)
	changed, advanced := e.updateLocked(elapsed)
	switch {
	case advanced:
		e.emitLocked(ReasonSpeakerChanged)
	case changed:
		e.emitLocked(ReasonProgress)
	}
	action := e.speakerChanged
	e.mu.Unlock()

	if advanced && action != nil {
		action()
	}
}

// updateLocked applies elapsed seconds for the current speaker. A speaker is
// advanced on the first tick where elapsed reaches the allotment, however far the
// tick overshoots; the overshoot itself is clamped away.
func (e *Engine) updateLocked(elapsed int) (changed, advanced bool) {
	perSpeaker := e.alloc.SecondsPerSpeaker
	elapsed = min(max(elapsed, 0), perSpeaker)
	if elapsed == e.secondsElapsedForSpeaker && elapsed < perSpeaker {
		return false, false
	}

	e.secondsElapsedForSpeaker = elapsed
	e.secondsElapsed = e.alloc.ElapsedAt(e.speakerIndex, elapsed)
	e.secondsRemaining = e.alloc.remaining(e.secondsElapsed)

	if elapsed >= perSpeaker {
		e.changeToSpeakerLocked(e.speakerIndex + 1)
		return true, true
	}
	return true, false
}

func (e *Engine) cancelTaskLocked() {
	if e.task != nil {
		e.task.Cancel()
		e.task = nil
	}
	e.generation++
}

func (e *Engine) speakerLabelLocked() string {
	return fmt.Sprintf("Speaker %d: %s", e.speakerIndex+1, e.speakers[e.speakerIndex].Name)
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		MeetingID:         e.id,
		Status:            e.status,
		ActiveSpeaker:     e.activeSpeaker,
		SpeakerIndex:      e.speakerIndex,
		SecondsElapsed:    e.secondsElapsed,
		SecondsRemaining:  e.secondsRemaining,
		SecondsPerSpeaker: e.alloc.SecondsPerSpeaker,
		LengthInMinutes:   e.lengthInMinutes,
		Speakers:          copySpeakers(e.speakers),
		At:                e.clock.Now(),
	}
}

func (e *Engine) emitLocked(reason Reason) {
	if len(e.observers) == 0 {
		return
	}
	snapshot := e.snapshotLocked()
	snapshot.Reason = reason
	for _, ch := range e.observers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
