// Package scheduler runs cancellable delayed tasks on a clock that tests
// can drive by hand.
package scheduler

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

type Scheduler struct {
	clock clock.Clock

	mu      sync.Mutex
	tasks   map[*Task]struct{}
	stopped bool
}

func New(c clock.Clock) *Scheduler {
	return &Scheduler{
		clock: c,
		tasks: make(map[*Task]struct{}),
	}
}

func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Task is a pending call. A task runs at most once and never after Cancel
// has returned.
type Task struct {
	s     *Scheduler
	fn    func()
	timer *clock.Timer

	mu   sync.Mutex
	done bool
}

// After runs fn once d has elapsed. After Stop it returns a task that
// never runs.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	t := &Task{s: s, fn: fn}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		t.done = true
		return t
	}
	s.tasks[t] = struct{}{}
	t.timer = s.clock.AfterFunc(d, t.run)
	return t
}

func (t *Task) run() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	t.mu.Unlock()

	t.s.forget(t)
	t.fn()
}

// Cancel reports whether the task was still pending.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return false
	}
	t.done = true
	t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.s.forget(t)
	return true
}

func (s *Scheduler) forget(t *Task) {
	s.mu.Lock()
	delete(s.tasks, t)
	s.mu.Unlock()
}

// Pending counts tasks that have neither run nor been canceled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every pending task and refuses new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	pending := make([]*Task, 0, len(s.tasks))
	for t := range s.tasks {
		pending = append(pending, t)
	}
	s.mu.Unlock()

	for _, t := range pending {
		t.Cancel()
	}
}
