package jobs

import "time"

// Topic is the event bus topic job lifecycle transitions are published on.
const Topic = "job.lifecycle"

// EventKind identifies a lifecycle transition.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
)

// Terminal reports whether the kind marks the end of a job's lifecycle.
func (k EventKind) Terminal() bool {
	return k == EventCompleted || k == EventFailed || k == EventCancelled
}

// Event is the payload published for each lifecycle transition. It is an
// observability side-channel only; job status of record lives in the
// Manager's tables while active and in the job store afterwards.
type Event struct {
	Kind  EventKind
	JobID string

	// Message carries the failure cause for EventFailed and free-form
	// progress text for EventProgress.
	Message string

	// Current/Total are only meaningful for EventProgress. Total may be
	// zero when the executor cannot estimate the amount of work upfront.
	Current int
	Total   int

	Timestamp time.Time
}
