// Package meetingtest provides a hand-driven scheduler for engine tests.
package meetingtest

import (
	"sync"
	"time"

	"github.com/mcdev12/standup/go/internal/meeting"
)

// Scheduler records scheduled tasks instead of running them. Tests advance a fake
// clock and then call Tick to run the poll once.
type Scheduler struct {
	mu    sync.Mutex
	tasks []*Task
}

var _ meeting.Scheduler = (*Scheduler)(nil)

// NewScheduler creates an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule implements meeting.Scheduler.
func (s *Scheduler) Schedule(interval time.Duration, fn func()) meeting.Task {
	t := &Task{Interval: interval, fn: fn}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return t
}

// Tick fires every task that has not been cancelled and reports how many ran.
func (s *Scheduler) Tick() int {
	fired := 0
	for _, t := range s.Tasks() {
		if !t.Cancelled() {
			t.Fire()
			fired++
		}
	}
	return fired
}

// Tasks returns every task ever scheduled, oldest first.
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Task(nil), s.tasks...)
}

// Active returns the tasks that have not been cancelled.
func (s *Scheduler) Active() []*Task {
	var active []*Task
	for _, t := range s.Tasks() {
		if !t.Cancelled() {
			active = append(active, t)
		}
	}
	return active
}

// Task is a recorded poll.
type Task struct {
	Interval time.Duration

	mu        sync.Mutex
	fn        func()
	cancelled bool
}

// Cancel implements meeting.Task.
func (t *Task) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
}

// Cancelled reports whether Cancel was called.
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Fire runs the poll even if the task was cancelled, the way a tick that was
// already queued would.
func (t *Task) Fire() {
	t.fn()
}
