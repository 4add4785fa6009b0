package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/jobkit/pkg/event"
	"github.com/vulntor/jobkit/pkg/store"
)

// Options configures a Controller and the Manager it owns.
type Options struct {
	// Concurrency is the maximum number of jobs running at once.
	// Values below 1 are treated as 1.
	Concurrency int

	// ShutdownGrace bounds how long Shutdown waits for running jobs to
	// observe cancellation. Defaults to DefaultShutdownGrace.
	ShutdownGrace time.Duration

	// Store is the durable job-record repository. Optional; a nil store
	// disables persistence.
	Store store.Store

	// Events receives lifecycle transitions. Optional.
	Events *event.Manager
}

// Controller is the sole mutator-facing entry point to the Manager: a
// single serialized command loop fed by an unbounded mailbox. Commands are
// processed strictly in dequeue order, one at a time, while the jobs they
// schedule execute concurrently elsewhere.
type Controller struct {
	manager *Manager
	mail    *mailbox
	log     zerolog.Logger

	done chan struct{} // closed when the watch loop exits
}

// NewController builds the controller and starts its watch loop.
func NewController(opts Options) *Controller {
	c := &Controller{
		mail: newMailbox(),
		log:  log.With().Str("component", "JobController").Logger(),
		done: make(chan struct{}),
	}
	c.manager = newManager(opts.Concurrency, opts.ShutdownGrace, opts.Store, opts.Events, c.mail.Send)
	go c.watch()
	return c
}

// Submit pushes a command to the watch loop. It never blocks on the loop
// itself; it returns ErrControllerClosed once shutdown has completed.
// Callers of CancelJob and Shutdown own the embedded reply slot and should
// prefer the Cancel and Shutdown helpers, which guarantee the slot is
// always resolved.
func (c *Controller) Submit(cmd Command) error {
	if !c.mail.Send(cmd) {
		return ErrControllerClosed
	}
	return nil
}

// Enqueue submits a job for admission. Fire-and-forget: a rejected enqueue
// is only observable through logs, events, and the job store.
func (c *Controller) Enqueue(exec Executor) error {
	return c.Submit(EnqueueJob{Executor: exec})
}

// Cancel requests cancellation of the job and waits for the Manager's
// answer. Returns ErrJobNotFound if the id is neither queued nor running.
func (c *Controller) Cancel(ctx context.Context, id string) error {
	reply := NewReply[error]()
	if err := c.Submit(CancelJob{ID: id, Reply: reply}); err != nil {
		reply.Drop()
		return err
	}
	res, err := reply.Wait(ctx)
	if err != nil {
		return err
	}
	return res
}

// Pause requests a pause of the running job. Fire-and-forget.
func (c *Controller) Pause(id string) error {
	return c.Submit(PauseJob{ID: id})
}

// Resume clears a pause request. Fire-and-forget.
func (c *Controller) Resume(id string) error {
	return c.Submit(ResumeJob{ID: id})
}

// Shutdown drains the subsystem: all running jobs are cancelled, the queue
// is discarded, and the call returns once the Manager's shutdown sequence
// completes or ctx expires. After Shutdown no further command has any
// scheduling effect.
func (c *Controller) Shutdown(ctx context.Context) error {
	reply := NewReply[struct{}]()
	if err := c.Submit(Shutdown{Reply: reply}); err != nil {
		reply.Drop()
		return err
	}
	_, err := reply.Wait(ctx)
	return err
}

// Done is closed once the watch loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// watch is the serialization point for all Manager state. It owns the
// queue and running table for the lifetime of the controller.
func (c *Controller) watch() {
	defer close(c.done)

	closed := false
	for cmd := range c.mail.out {
		if closed {
			c.resolveAfterShutdown(cmd)
			continue
		}

		switch cmd := cmd.(type) {
		case EnqueueJob:
			c.log.Trace().Str("job_id", cmd.Executor.ID()).Msg("Received enqueue job command")
			if err := c.manager.Admit(cmd.Executor); err != nil {
				c.log.Error().Err(err).Msg("Failed to enqueue job")
			} else {
				c.log.Info().Str("job_id", cmd.Executor.ID()).Msg("Successfully enqueued job")
			}

		case CompleteJob:
			c.manager.Complete(cmd.ID, cmd.Err)

		case CancelJob:
			cmd.Reply.Fulfill(c.manager.Cancel(cmd.ID))
			c.log.Trace().Str("job_id", cmd.ID).Msg("Cancel confirmation sent")

		case PauseJob:
			if err := c.manager.Pause(cmd.ID); err != nil {
				c.log.Error().Err(err).Msg("Failed to pause job")
			} else {
				c.log.Info().Str("job_id", cmd.ID).Msg("Successfully issued pause request")
			}

		case ResumeJob:
			if err := c.manager.Resume(cmd.ID); err != nil {
				c.log.Error().Err(err).Msg("Failed to resume job")
			} else {
				c.log.Info().Str("job_id", cmd.ID).Msg("Successfully issued resume request")
			}

		case Shutdown:
			c.manager.Shutdown()
			closed = true
			// Close the mailbox before fulfilling the reply so no command
			// submitted after Shutdown returns is ever accepted.
			c.mail.Close()
			cmd.Reply.Fulfill(struct{}{})
			c.log.Trace().Msg("Shutdown confirmation sent")
		}
	}
}

// resolveAfterShutdown drains commands that were already in flight when
// shutdown completed. Reply slots are still resolved so no waiter hangs;
// everything else is dropped.
func (c *Controller) resolveAfterShutdown(cmd Command) {
	switch cmd := cmd.(type) {
	case CancelJob:
		cmd.Reply.Fulfill(ErrControllerClosed)
	case Shutdown:
		cmd.Reply.Fulfill(struct{}{})
	case CompleteJob:
		c.log.Debug().Str("job_id", cmd.ID).Msg("Completion report after shutdown, dropping")
	default:
		c.log.Debug().Msg("Command received after shutdown, dropping")
	}
}
