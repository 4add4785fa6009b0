package jobs

import "errors"

var (
	// ErrJobNotFound reports an operation that targeted a job id that is
	// neither queued nor running.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidState reports an operation that is not valid for the
	// job's current status, e.g. pausing a queued job.
	ErrInvalidState = errors.New("operation not valid for job state")

	// ErrDuplicateID reports an enqueue whose id collides with a job that
	// is already queued or running.
	ErrDuplicateID = errors.New("job id already queued or running")

	// ErrJobCancelled is returned from Task.Checkpoint once cancellation
	// has been requested. Executors should return it from Run.
	ErrJobCancelled = errors.New("job cancelled")

	// ErrReplyDropped is returned from Reply.Wait when the slot was
	// abandoned without a value.
	ErrReplyDropped = errors.New("reply slot dropped")

	// ErrControllerClosed reports a command submitted after shutdown.
	ErrControllerClosed = errors.New("job controller closed")
)
