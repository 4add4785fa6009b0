package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/jobkit/pkg/event"
	"github.com/vulntor/jobkit/pkg/store"
)

// DefaultShutdownGrace bounds how long Shutdown waits for running jobs to
// observe their cancellation signal before abandoning them.
const DefaultShutdownGrace = 30 * time.Second

// Manager owns the in-memory scheduling state: the FIFO queue of pending
// executors and the table of running jobs, bounded by the configured
// concurrency limit.
//
// The queue and running table are mutated only from the Controller's
// serialized goroutine. That single-writer property replaces any lock
// around this state; workers report back solely by sending CompleteJob
// through the command channel.
type Manager struct {
	maxConcurrency int
	shutdownGrace  time.Duration

	queue   []Executor
	running map[string]*runningJob

	send   func(Command) bool
	store  store.Store
	events *event.Manager
	log    zerolog.Logger
}

// runningJob is the handle the Manager retains once an Executor has been
// handed to its worker goroutine: the cooperative signal plus completion
// observability, never the Executor itself.
type runningJob struct {
	kind string
	task *Task
	done chan struct{}
	err  error // written by the worker before done is closed
}

func newManager(concurrency int, grace time.Duration, st store.Store, events *event.Manager, send func(Command) bool) *Manager {
	if concurrency < 1 {
		concurrency = 1
	}
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}
	return &Manager{
		maxConcurrency: concurrency,
		shutdownGrace:  grace,
		running:        make(map[string]*runningJob),
		send:           send,
		store:          st,
		events:         events,
		log:            log.With().Str("component", "JobManager").Logger(),
	}
}

// Admit accepts a new job. If capacity allows it is promoted to Running
// immediately, otherwise it joins the tail of the queue. Returns
// ErrDuplicateID if the id is already queued or running.
func (m *Manager) Admit(exec Executor) error {
	id := exec.ID()
	if id == "" {
		return fmt.Errorf("%w: executor has an empty id", ErrInvalidState)
	}
	if m.known(id) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	m.recordCreate(exec)

	if len(m.running) < m.maxConcurrency {
		m.start(exec)
		return nil
	}

	m.queue = append(m.queue, exec)
	m.log.Debug().Str("job_id", id).Int("queue_len", len(m.queue)).Msg("Job queued, concurrency limit reached")
	return nil
}

// Complete removes a finished job from the running table and promotes
// queued jobs while capacity remains. Unknown ids are tolerated with a
// warning; duplicate completion reports must not corrupt state.
func (m *Manager) Complete(id string, runErr error) {
	rj, ok := m.running[id]
	if !ok {
		m.log.Warn().Str("job_id", id).Msg("Completion report for a job that is not running, ignoring")
		return
	}
	delete(m.running, id)

	status := StatusCompleted
	switch {
	case rj.task.Cancelled():
		status = StatusCancelled
	case runErr != nil:
		status = StatusFailed
	}
	m.finalize(id, status, runErr)

	m.fillToCapacity()
}

// Cancel requests cooperative cancellation. A queued job is removed before
// it ever runs; a running job has its signal raised and stops once its
// executor observes it. Success means "cancellation requested", not
// "cancellation completed".
func (m *Manager) Cancel(id string) error {
	for i, exec := range m.queue {
		if exec.ID() != id {
			continue
		}
		m.queue = append(m.queue[:i], m.queue[i+1:]...)
		m.finalize(id, StatusCancelled, nil)
		m.log.Info().Str("job_id", id).Msg("Cancelled queued job before it started")
		return nil
	}

	if rj, ok := m.running[id]; ok {
		rj.task.Cancel()
		m.recordUpdate(id, StatusCancelling, nil, nil)
		m.log.Info().Str("job_id", id).Msg("Cancellation signal raised for running job")
		return nil
	}

	return fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

// Pause raises the pause signal for a running job. Queued jobs cannot be
// paused.
func (m *Manager) Pause(id string) error {
	if rj, ok := m.running[id]; ok {
		rj.task.Pause()
		m.log.Info().Str("job_id", id).Msg("Pause signal raised")
		return nil
	}
	if m.queued(id) {
		return fmt.Errorf("%w: job %s is queued, only running jobs can be paused", ErrInvalidState, id)
	}
	return fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

// Resume clears the pause signal for a running job.
func (m *Manager) Resume(id string) error {
	if rj, ok := m.running[id]; ok {
		rj.task.Resume()
		m.log.Info().Str("job_id", id).Msg("Pause signal cleared")
		return nil
	}
	if m.queued(id) {
		return fmt.Errorf("%w: job %s is queued, only running jobs can be resumed", ErrInvalidState, id)
	}
	return fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

// Shutdown cancels every running job, discards the queue without starting
// those jobs, and waits up to the grace period for running executors to
// observe cancellation. Executions that do not comply in time are
// abandoned; the tables are empty when Shutdown returns.
func (m *Manager) Shutdown() {
	m.log.Info().
		Int("running", len(m.running)).
		Int("queued", len(m.queue)).
		Dur("grace", m.shutdownGrace).
		Msg("Shutting down job manager")

	for _, rj := range m.running {
		rj.task.Cancel()
	}
	for _, exec := range m.queue {
		m.finalize(exec.ID(), StatusCancelled, nil)
	}
	m.queue = nil

	deadline := time.After(m.shutdownGrace)
	expired := false
	for id, rj := range m.running {
		if !expired {
			select {
			case <-rj.done:
			case <-deadline:
				expired = true
			}
		}
		select {
		case <-rj.done:
			m.finalize(id, StatusCancelled, rj.err)
		default:
			m.log.Warn().Str("job_id", id).Dur("grace", m.shutdownGrace).Msg("Job did not stop within the grace period, abandoning")
			m.finalize(id, StatusCancelled, fmt.Errorf("abandoned: shutdown grace period exceeded"))
		}
	}
	clear(m.running)

	m.log.Info().Msg("Job manager shut down")
}

// start promotes an executor to Running and hands it to a worker
// goroutine. The Manager keeps only the task handle and the done channel.
func (m *Manager) start(exec Executor) {
	id := exec.ID()
	task := NewTask(id, m.events)
	rj := &runningJob{
		kind: executorKind(exec),
		task: task,
		done: make(chan struct{}),
	}
	m.running[id] = rj
	m.recordStart(id)
	m.publish(EventStarted, id, "")
	m.log.Info().Str("job_id", id).Str("kind", rj.kind).Msg("Job started")

	go func() {
		err := runExecutor(task.ctx, exec, task)
		rj.err = err
		close(rj.done)
		if !m.send(CompleteJob{ID: id, Err: err}) {
			log.Debug().Str("job_id", id).Msg("Controller closed, completion report dropped")
		}
	}()
}

// fillToCapacity promotes queue-head entries while a slot is free.
func (m *Manager) fillToCapacity() {
	for len(m.running) < m.maxConcurrency && len(m.queue) > 0 {
		exec := m.queue[0]
		m.queue = m.queue[1:]
		m.start(exec)
	}
}

// finalize records a terminal transition: event, durable record, log. The
// job must already be out of both tables.
func (m *Manager) finalize(id string, status Status, runErr error) {
	kind := EventCompleted
	msg := ""
	switch status {
	case StatusFailed:
		kind = EventFailed
		if runErr != nil {
			msg = runErr.Error()
		}
	case StatusCancelled:
		kind = EventCancelled
	}
	m.publish(kind, id, msg)
	m.recordUpdate(id, status, runErr, timePtr(time.Now()))

	ev := m.log.Info()
	if status == StatusFailed {
		ev = m.log.Error().Err(runErr)
	}
	ev.Str("job_id", id).Str("status", string(status)).Msg("Job reached terminal state")
}

func (m *Manager) known(id string) bool {
	if _, ok := m.running[id]; ok {
		return true
	}
	return m.queued(id)
}

func (m *Manager) queued(id string) bool {
	for _, exec := range m.queue {
		if exec.ID() == id {
			return true
		}
	}
	return false
}

func (m *Manager) publish(kind EventKind, id, msg string) {
	if m.events == nil {
		return
	}
	m.events.Publish(context.Background(), Topic, Event{
		Kind:      kind,
		JobID:     id,
		Message:   msg,
		Timestamp: time.Now(),
	})
}

// recordCreate writes the initial durable record for an admitted job. The
// store is optional; persistence failures are logged and never block
// scheduling.
func (m *Manager) recordCreate(exec Executor) {
	if m.store == nil {
		return
	}
	rec := &store.Record{
		ID:         exec.ID(),
		Kind:       executorKind(exec),
		Status:     string(StatusQueued),
		EnqueuedAt: time.Now(),
	}
	if err := m.store.Create(context.Background(), rec); err != nil {
		m.log.Warn().Str("job_id", rec.ID).Err(err).Msg("Failed to create job record, continuing without persistence")
	}
}

func (m *Manager) recordStart(id string) {
	if m.store == nil {
		return
	}
	status := string(StatusRunning)
	updates := store.Updates{
		Status:    &status,
		StartedAt: timePtr(time.Now()),
	}
	if err := m.store.Update(context.Background(), id, updates); err != nil {
		m.log.Warn().Str("job_id", id).Err(err).Msg("Failed to update job record")
	}
}

func (m *Manager) recordUpdate(id string, status Status, runErr error, completedAt *time.Time) {
	if m.store == nil {
		return
	}
	s := string(status)
	updates := store.Updates{Status: &s}
	if runErr != nil {
		msg := runErr.Error()
		updates.ErrorMessage = &msg
	}
	if completedAt != nil {
		updates.CompletedAt = completedAt
	}
	if err := m.store.Update(context.Background(), id, updates); err != nil {
		m.log.Warn().Str("job_id", id).Err(err).Msg("Failed to update job record")
	}
}

func executorKind(exec Executor) string {
	if d, ok := exec.(Describer); ok {
		return d.Kind()
	}
	return ""
}

func timePtr(t time.Time) *time.Time { return &t }
