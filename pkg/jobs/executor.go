// Package jobs implements the asynchronous job control subsystem: a single
// serialized command loop (the Controller) in front of a Manager that owns
// the pending queue and the running table, bounded by a configurable
// concurrency limit. Units of work are opaque Executors with cooperative
// cancel and pause checkpoints.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/vulntor/jobkit/pkg/event"
)

// Executor is the opaque unit-of-work capability the Manager schedules.
// The Manager never inspects the concrete kind behind this interface.
type Executor interface {
	// ID returns the stable unique identifier used as the job id.
	// Enqueueing two executors with the same ID is rejected.
	ID() string

	// Run performs the unit of work until it reaches a terminal result.
	// Implementations must call task.Checkpoint at bounded intervals so
	// cancellation and pause requests are observed; both are advisory,
	// never preemptive.
	Run(ctx context.Context, task *Task) error
}

// Describer is an optional extension of Executor. Executors that implement
// it get their kind recorded in the durable job record.
type Describer interface {
	Kind() string
}

// Task is the handle the Manager retains for a running job and the surface
// an Executor uses to cooperate with it. It carries the cancel and pause
// signals plus a progress reporter.
type Task struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	events *event.Manager

	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// NewTask builds a standalone task handle. The Manager creates one per
// admitted job; tests and executor authors can create their own to drive
// an Executor outside the controller. A nil events manager disables
// progress publishing.
func NewTask(id string, events *event.Manager) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		events: events,
	}
}

// ID returns the job id this task belongs to.
func (t *Task) ID() string { return t.id }

// Cancel raises the cooperative cancellation signal. It returns immediately;
// the job stops once its executor observes the signal at a checkpoint.
func (t *Task) Cancel() { t.cancel() }

// Cancelled reports whether cancellation has been requested.
func (t *Task) Cancelled() bool { return t.ctx.Err() != nil }

// Pause raises the pause signal. Idempotent.
func (t *Task) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused {
		t.paused = true
		t.resume = make(chan struct{})
	}
}

// Resume clears the pause signal, releasing any executor blocked in
// Checkpoint. Idempotent.
func (t *Task) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused {
		t.paused = false
		close(t.resume)
	}
}

// Paused reports whether the pause signal is currently raised.
func (t *Task) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Checkpoint is the executor's cooperation point. It returns ErrJobCancelled
// once cancellation has been requested, blocks while the job is paused, and
// otherwise returns nil. The ctx argument is the executor's run context and
// bounds the wait while paused.
func (t *Task) Checkpoint(ctx context.Context) error {
	for {
		// The cancel signal wins over the run context: when the job runs
		// under its own task context both fire together.
		if t.Cancelled() {
			return ErrJobCancelled
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		t.mu.Lock()
		paused, resume := t.paused, t.resume
		t.mu.Unlock()
		if !paused {
			return nil
		}

		select {
		case <-resume:
		case <-t.ctx.Done():
			return ErrJobCancelled
		case <-ctx.Done():
			if t.Cancelled() {
				return ErrJobCancelled
			}
			return ctx.Err()
		}
	}
}

// Progress publishes a progress event for this job. It never blocks on
// subscribers and is safe to call from the executor's goroutine.
func (t *Task) Progress(current, total int, message string) {
	if t.events == nil {
		return
	}
	t.events.Publish(t.ctx, Topic, Event{
		Kind:      EventProgress,
		JobID:     t.id,
		Current:   current,
		Total:     total,
		Message:   message,
		Timestamp: time.Now(),
	})
}
