package meeting_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/standup/go/internal/meeting"
	"github.com/mcdev12/standup/go/internal/meeting/meetingtest"
	"github.com/mcdev12/standup/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	engine    *meeting.Engine
	clock     *clockwork.FakeClock
	scheduler *meetingtest.Scheduler

	mu      sync.Mutex
	changes []meeting.Snapshot
}

func newHarness(t *testing.T, minutes int, attendees []string) *harness {
	t.Helper()
	h := &harness{
		clock:     clockwork.NewFakeClockAt(time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)),
		scheduler: meetingtest.NewScheduler(),
	}
	h.engine = meeting.New(minutes, attendees,
		meeting.WithClock(h.clock),
		meeting.WithScheduler(h.scheduler),
	)
	h.engine.SetSpeakerChangedAction(func() {
		snap := h.engine.Snapshot()
		h.mu.Lock()
		h.changes = append(h.changes, snap)
		h.mu.Unlock()
	})
	t.Cleanup(h.engine.Close)
	return h
}

// advance moves the clock forward and lets the poll run once.
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.scheduler.Tick()
}

func (h *harness) changeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.changes)
}

func TestEngine_NewIsNotStarted(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})

	snap := h.engine.Snapshot()
	assert.Equal(t, models.MeetingStatusNotStarted, snap.Status)
	assert.Equal(t, "Speaker 1: A", snap.ActiveSpeaker)
	assert.Equal(t, 60, snap.SecondsRemaining)
	assert.Equal(t, 30, snap.SecondsPerSpeaker)
	assert.Empty(t, h.scheduler.Tasks())
}

func TestEngine_EmptyAttendeesUsesDefaultSpeaker(t *testing.T) {
	h := newHarness(t, 5, nil)

	snap := h.engine.Snapshot()
	require.Len(t, snap.Speakers, 1)
	assert.Equal(t, "Speaker 1: Speaker 1", snap.ActiveSpeaker)
	assert.Equal(t, 300, snap.SecondsPerSpeaker)
}

func TestEngine_EndToEnd(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})

	require.NoError(t, h.engine.Start())
	snap := h.engine.Snapshot()
	assert.Equal(t, models.MeetingStatusRunning, snap.Status)
	assert.Equal(t, "Speaker 1: A", snap.ActiveSpeaker)
	assert.Equal(t, 60, snap.SecondsRemaining)
	assert.Len(t, h.scheduler.Active(), 1)
	assert.Equal(t, meeting.DefaultFrequency, h.scheduler.Active()[0].Interval)

	h.advance(30 * time.Second)
	snap = h.engine.Snapshot()
	assert.Equal(t, "Speaker 2: B", snap.ActiveSpeaker)
	assert.True(t, snap.Speakers[0].IsCompleted)
	assert.False(t, snap.Speakers[1].IsCompleted)
	assert.Equal(t, 30, snap.SecondsRemaining)
	assert.Equal(t, 1, h.changeCount())

	h.advance(30 * time.Second)
	snap = h.engine.Snapshot()
	assert.Equal(t, models.MeetingStatusCompleted, snap.Status)
	assert.Equal(t, 0, snap.SecondsRemaining)
	assert.True(t, snap.Speakers[1].IsCompleted)
	assert.Equal(t, 2, h.changeCount())
	assert.Empty(t, h.scheduler.Active())
}

func TestEngine_ProgressWithinSpeaker(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})
	require.NoError(t, h.engine.Start())

	h.advance(10 * time.Second)
	snap := h.engine.Snapshot()
	assert.Equal(t, 10, snap.SecondsElapsed)
	assert.Equal(t, 50, snap.SecondsRemaining)
	assert.Equal(t, "Speaker 1: A", snap.ActiveSpeaker)

	// Sub-second movement does not change whole-second counters.
	h.advance(500 * time.Millisecond)
	assert.Equal(t, 10, h.engine.Snapshot().SecondsElapsed)
	assert.Zero(t, h.changeCount())
}

func TestEngine_RemainingAfterEachSpeaker(t *testing.T) {
	h := newHarness(t, 10, []string{"A", "B", "C"})
	require.NoError(t, h.engine.Start())

	for _, want := range []int{400, 200, 0} {
		h.advance(200 * time.Second)
		assert.Equal(t, want, h.engine.Snapshot().SecondsRemaining)
	}
	assert.Equal(t, models.MeetingStatusCompleted, h.engine.Snapshot().Status)
	assert.Equal(t, 3, h.changeCount())
}

func TestEngine_FloorDivisionLeavesTimeUnassigned(t *testing.T) {
	attendees := []string{"A", "B", "C", "D", "E", "F", "G"}
	h := newHarness(t, 1, attendees)
	require.NoError(t, h.engine.Start())

	for range attendees {
		h.advance(8 * time.Second)
	}

	snap := h.engine.Snapshot()
	assert.Equal(t, models.MeetingStatusCompleted, snap.Status)
	assert.Equal(t, 56, snap.SecondsElapsed)
	assert.Equal(t, 4, snap.SecondsRemaining)
}

func TestEngine_AdvancesOnExactTick(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})
	require.NoError(t, h.engine.Start())

	h.advance(29 * time.Second)
	assert.Equal(t, "Speaker 1: A", h.engine.Snapshot().ActiveSpeaker)

	h.advance(time.Second)
	snap := h.engine.Snapshot()
	assert.Equal(t, "Speaker 2: B", snap.ActiveSpeaker)
	assert.Equal(t, 30, snap.SecondsElapsed)
	assert.Equal(t, 1, h.changeCount())
}

func TestEngine_AdvancesOnOvershootingTick(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})
	require.NoError(t, h.engine.Start())

	h.advance(45 * time.Second)
	snap := h.engine.Snapshot()
	assert.Equal(t, "Speaker 2: B", snap.ActiveSpeaker)
	assert.Equal(t, 30, snap.SecondsElapsed)
	assert.Equal(t, 30, snap.SecondsRemaining)
	assert.True(t, snap.Speakers[0].IsCompleted)

	// The next speaker starts counting from the overshooting tick.
	h.advance(29 * time.Second)
	snap = h.engine.Snapshot()
	assert.Equal(t, "Speaker 2: B", snap.ActiveSpeaker)
	assert.Equal(t, 59, snap.SecondsElapsed)
	assert.Equal(t, 1, snap.SecondsRemaining)

	h.advance(10 * time.Minute)
	snap = h.engine.Snapshot()
	assert.Equal(t, models.MeetingStatusCompleted, snap.Status)
	assert.Equal(t, 60, snap.SecondsElapsed)
	assert.Equal(t, 0, snap.SecondsRemaining)
}

func TestEngine_ZeroLengthCyclesToCompleted(t *testing.T) {
	h := newHarness(t, 0, []string{"A", "B"})
	require.NoError(t, h.engine.Start())

	h.scheduler.Tick()
	assert.Equal(t, "Speaker 2: B", h.engine.Snapshot().ActiveSpeaker)

	h.scheduler.Tick()
	snap := h.engine.Snapshot()
	assert.Equal(t, models.MeetingStatusCompleted, snap.Status)
	assert.Equal(t, 0, snap.SecondsRemaining)
	assert.Equal(t, 2, h.changeCount())
}

func TestEngine_SkipMarksOnlyPreviousSpeaker(t *testing.T) {
	h := newHarness(t, 3, []string{"A", "B", "C"})
	require.NoError(t, h.engine.Start())

	h.advance(5 * time.Second)
	require.NoError(t, h.engine.Skip())

	snap := h.engine.Snapshot()
	assert.Equal(t, "Speaker 2: B", snap.ActiveSpeaker)
	assert.Equal(t, 60, snap.SecondsElapsed)
	assert.Equal(t, 120, snap.SecondsRemaining)
	assert.True(t, snap.Speakers[0].IsCompleted)
	assert.False(t, snap.Speakers[1].IsCompleted)
	assert.False(t, snap.Speakers[2].IsCompleted)
	assert.Equal(t, 1, h.changeCount())
	assert.Len(t, h.scheduler.Active(), 1)
}

func TestEngine_SkipPastLastSpeakerIsTerminal(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})
	require.NoError(t, h.engine.Start())

	require.NoError(t, h.engine.Skip())
	require.NoError(t, h.engine.Skip())

	snap := h.engine.Snapshot()
	assert.Equal(t, models.MeetingStatusCompleted, snap.Status)
	assert.Equal(t, 1, snap.SpeakerIndex)
	assert.Equal(t, "Speaker 2: B", snap.ActiveSpeaker)
	assert.True(t, snap.Speakers[1].IsCompleted)
	assert.Equal(t, 30, snap.SecondsRemaining, "counters stay at their last values")
	assert.Equal(t, 2, h.changeCount())

	assert.ErrorIs(t, h.engine.Skip(), meeting.ErrNotRunning)

	// Neither live nor stale polls touch a completed meeting.
	h.clock.Advance(time.Minute)
	before := h.engine.Snapshot()
	assert.Zero(t, h.scheduler.Tick())
	for _, task := range h.scheduler.Tasks() {
		task.Fire()
	}
	assert.Equal(t, before, h.engine.Snapshot())
	assert.Equal(t, 2, h.changeCount())
}

func TestEngine_StopSuppressesQueuedTick(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})
	require.NoError(t, h.engine.Start())
	h.advance(10 * time.Second)

	h.clock.Advance(25 * time.Second)
	h.engine.Stop()
	before := h.engine.Snapshot()
	assert.Equal(t, models.MeetingStatusStopped, before.Status)

	tasks := h.scheduler.Tasks()
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Cancelled())
	tasks[0].Fire()

	assert.Equal(t, before, h.engine.Snapshot())
	assert.Equal(t, 10, before.SecondsElapsed)
	assert.Zero(t, h.changeCount())
}

func TestEngine_StopIsIdempotentAndFinal(t *testing.T) {
	h := newHarness(t, 1, []string{"A"})
	require.NoError(t, h.engine.Start())

	assert.True(t, h.engine.Stop())
	assert.False(t, h.engine.Stop())

	assert.Equal(t, models.MeetingStatusStopped, h.engine.Snapshot().Status)
	assert.ErrorIs(t, h.engine.Start(), meeting.ErrCannotStart)
	assert.ErrorIs(t, h.engine.Skip(), meeting.ErrNotRunning)
}

func TestEngine_StopAfterCompletionKeepsCompleted(t *testing.T) {
	h := newHarness(t, 1, []string{"A"})
	require.NoError(t, h.engine.Start())
	h.advance(time.Minute)

	assert.True(t, h.engine.Stop())

	assert.Equal(t, models.MeetingStatusCompleted, h.engine.Snapshot().Status)
}

func TestEngine_StartAfterClose(t *testing.T) {
	h := newHarness(t, 1, []string{"A"})
	h.engine.Close()

	assert.ErrorIs(t, h.engine.Start(), meeting.ErrCannotStart)
	assert.Empty(t, h.scheduler.Tasks())
}

func TestEngine_StartTwice(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})
	require.NoError(t, h.engine.Start())

	assert.ErrorIs(t, h.engine.Start(), meeting.ErrCannotStart)
	assert.Len(t, h.scheduler.Active(), 1)
}

func TestEngine_SkipBeforeStart(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})

	assert.ErrorIs(t, h.engine.Skip(), meeting.ErrNotRunning)
	assert.Zero(t, h.changeCount())
}

func TestEngine_StaleTickAfterSkipIsIgnored(t *testing.T) {
	h := newHarness(t, 2, []string{"A", "B", "C"})
	require.NoError(t, h.engine.Start())
	require.NoError(t, h.engine.Skip())

	h.clock.Advance(20 * time.Second)
	tasks := h.scheduler.Tasks()
	require.Len(t, tasks, 2)
	before := h.engine.Snapshot()
	tasks[0].Fire()
	assert.Equal(t, before, h.engine.Snapshot())

	tasks[1].Fire()
	snap := h.engine.Snapshot()
	assert.Equal(t, 60, snap.SecondsElapsed)
	assert.Equal(t, 60, snap.SecondsRemaining)
}

func TestEngine_ResetReplacesConfiguration(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})
	require.NoError(t, h.engine.Start())
	h.advance(30 * time.Second)
	h.engine.Stop()
	oldIDs := h.engine.Snapshot().Speakers

	h.engine.Reset(5, []string{"X", "Y", "Z"})

	snap := h.engine.Snapshot()
	assert.Equal(t, models.MeetingStatusNotStarted, snap.Status)
	assert.Equal(t, 300, snap.SecondsRemaining)
	assert.Equal(t, 0, snap.SpeakerIndex)
	assert.Equal(t, 0, snap.SecondsElapsed)
	assert.Equal(t, 100, snap.SecondsPerSpeaker)
	assert.Equal(t, "Speaker 1: X", snap.ActiveSpeaker)
	require.Len(t, snap.Speakers, 3)
	for _, s := range snap.Speakers {
		assert.False(t, s.IsCompleted)
		assert.NotEqual(t, oldIDs[0].ID, s.ID)
	}
	assert.Empty(t, h.scheduler.Active(), "reset does not start polling")

	// The stopped flag is cleared, so the new meeting runs normally.
	require.NoError(t, h.engine.Start())
	h.advance(100 * time.Second)
	assert.Equal(t, "Speaker 2: Y", h.engine.Snapshot().ActiveSpeaker)
}

func TestEngine_ResetWhileRunningCancelsPoll(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})
	require.NoError(t, h.engine.Start())

	h.engine.Reset(2, []string{"C"})

	assert.Empty(t, h.scheduler.Active())
	h.clock.Advance(time.Hour)
	for _, task := range h.scheduler.Tasks() {
		task.Fire()
	}
	snap := h.engine.Snapshot()
	assert.Equal(t, models.MeetingStatusNotStarted, snap.Status)
	assert.Equal(t, 120, snap.SecondsRemaining)
}

func TestEngine_NotificationSeesPostTransitionState(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})
	require.NoError(t, h.engine.Start())

	h.advance(30 * time.Second)

	require.Equal(t, 1, h.changeCount())
	seen := h.changes[0]
	assert.Equal(t, "Speaker 2: B", seen.ActiveSpeaker)
	assert.Equal(t, 1, seen.SpeakerIndex)
	assert.Equal(t, 30, seen.SecondsElapsed)
	assert.Equal(t, 30, seen.SecondsRemaining)
	assert.True(t, seen.Speakers[0].IsCompleted)
}

func TestEngine_SnapshotIsACopy(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})

	snap := h.engine.Snapshot()
	snap.Speakers[0].Name = "mutated"
	snap.Speakers[0].IsCompleted = true

	fresh := h.engine.Snapshot()
	assert.Equal(t, "A", fresh.Speakers[0].Name)
	assert.False(t, fresh.Speakers[0].IsCompleted)
}

func TestEngine_Subscribe(t *testing.T) {
	h := newHarness(t, 1, []string{"A", "B"})
	updates := h.engine.Subscribe(8)

	require.NoError(t, h.engine.Start())
	h.advance(3 * time.Second)
	h.advance(27 * time.Second)
	h.engine.Stop()

	var statuses []models.MeetingStatus
	var elapsed []int
	var reasons []meeting.Reason
	for i := 0; i < 4; i++ {
		snap := <-updates
		statuses = append(statuses, snap.Status)
		elapsed = append(elapsed, snap.SecondsElapsed)
		reasons = append(reasons, snap.Reason)
	}
	assert.Equal(t, []models.MeetingStatus{
		models.MeetingStatusRunning,
		models.MeetingStatusRunning,
		models.MeetingStatusRunning,
		models.MeetingStatusStopped,
	}, statuses)
	assert.Equal(t, []int{0, 3, 30, 30}, elapsed)
	assert.Equal(t, []meeting.Reason{
		meeting.ReasonStarted,
		meeting.ReasonProgress,
		meeting.ReasonSpeakerChanged,
		meeting.ReasonStopped,
	}, reasons)
	assert.Empty(t, h.engine.Snapshot().Reason)

	h.engine.Close()
	_, ok := <-updates
	assert.False(t, ok)
}

func TestEngine_SubscribeSkipAndReset(t *testing.T) {
	h := newHarness(t, 1, []string{"A"})
	updates := h.engine.Subscribe(8)

	require.NoError(t, h.engine.Start())
	require.NoError(t, h.engine.Skip())
	h.engine.Reset(2, []string{"A", "B"})

	var reasons []meeting.Reason
	for i := 0; i < 3; i++ {
		reasons = append(reasons, (<-updates).Reason)
	}
	assert.Equal(t, []meeting.Reason{
		meeting.ReasonStarted,
		meeting.ReasonSpeakerChanged,
		meeting.ReasonReset,
	}, reasons)
}

func TestEngine_SubscribeAfterClose(t *testing.T) {
	h := newHarness(t, 1, nil)
	h.engine.Close()

	_, ok := <-h.engine.Subscribe(1)
	assert.False(t, ok)
}
