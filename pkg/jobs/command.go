package jobs

// Command is the closed set of operations accepted by the Controller.
// Commands are immutable once constructed; ownership of an embedded
// Executor transfers to the Manager when the command is processed.
type Command interface {
	isCommand()
}

// EnqueueJob adds a job to the queue to be run. Fire-and-forget: the
// outcome is observable only through logs, events, and the job store.
type EnqueueJob struct {
	Executor Executor
}

// CompleteJob reports that a unit of work finished. Err carries the
// executor's failure, if any; workers send this back through the command
// channel instead of touching Manager state directly.
type CompleteJob struct {
	ID  string
	Err error
}

// CancelJob requests cooperative cancellation of a job by id. The
// Manager's result is always delivered through the reply slot, even on
// lookup failure.
type CancelJob struct {
	ID    string
	Reply *Reply[error]
}

// PauseJob raises the pause signal for a running job. Fire-and-forget.
type PauseJob struct {
	ID string
}

// ResumeJob clears the pause signal for a running job. Fire-and-forget.
type ResumeJob struct {
	ID string
}

// Shutdown cancels all running jobs, discards the queue, and fulfills the
// reply slot once the drain completes or the grace period expires.
type Shutdown struct {
	Reply *Reply[struct{}]
}

func (EnqueueJob) isCommand()  {}
func (CompleteJob) isCommand() {}
func (CancelJob) isCommand()   {}
func (PauseJob) isCommand()    {}
func (ResumeJob) isCommand()   {}
func (Shutdown) isCommand()    {}
