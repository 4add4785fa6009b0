package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vulntor/jobkit/pkg/event"
)

func TestTask_CheckpointPassesWhenIdle(t *testing.T) {
	task := NewTask("t", nil)
	require.NoError(t, task.Checkpoint(context.Background()))
}

func TestTask_CheckpointAfterCancel(t *testing.T) {
	task := NewTask("t", nil)
	task.Cancel()
	require.True(t, task.Cancelled())
	require.ErrorIs(t, task.Checkpoint(context.Background()), ErrJobCancelled)
}

func TestTask_CheckpointBlocksWhilePaused(t *testing.T) {
	task := NewTask("t", nil)
	task.Pause()
	require.True(t, task.Paused())

	unblocked := make(chan error, 1)
	go func() {
		unblocked <- task.Checkpoint(context.Background())
	}()

	select {
	case err := <-unblocked:
		t.Fatalf("checkpoint returned while paused: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	task.Resume()
	select {
	case err := <-unblocked:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("checkpoint did not return after resume")
	}
}

func TestTask_CancelReleasesPausedCheckpoint(t *testing.T) {
	task := NewTask("t", nil)
	task.Pause()

	unblocked := make(chan error, 1)
	go func() {
		unblocked <- task.Checkpoint(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	task.Cancel()

	select {
	case err := <-unblocked:
		require.ErrorIs(t, err, ErrJobCancelled)
	case <-time.After(time.Second):
		t.Fatal("checkpoint did not observe cancellation while paused")
	}
}

func TestTask_CheckpointHonorsRunContext(t *testing.T) {
	task := NewTask("t", nil)
	task.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	unblocked := make(chan error, 1)
	go func() {
		unblocked <- task.Checkpoint(ctx)
	}()

	cancel()
	select {
	case err := <-unblocked:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("checkpoint did not observe run context cancellation")
	}
}

func TestTask_PauseResumeIdempotent(t *testing.T) {
	task := NewTask("t", nil)
	task.Resume() // resume before any pause is a no-op
	task.Pause()
	task.Pause()
	require.True(t, task.Paused())
	task.Resume()
	task.Resume()
	require.False(t, task.Paused())
}

func TestTask_ProgressPublishes(t *testing.T) {
	bus := event.NewManager()
	defer bus.Close()
	stream, cancel := bus.Stream(Topic, 4)
	defer cancel()

	task := NewTask("prog", bus)
	task.Progress(3, 10, "hashing files")

	select {
	case ev := <-stream:
		payload, ok := ev.Data.(Event)
		require.True(t, ok)
		require.Equal(t, EventProgress, payload.Kind)
		require.Equal(t, "prog", payload.JobID)
		require.Equal(t, 3, payload.Current)
		require.Equal(t, 10, payload.Total)
		require.Equal(t, "hashing files", payload.Message)
	case <-time.After(time.Second):
		t.Fatal("progress event not published")
	}
}

func TestTask_ProgressWithoutBus(t *testing.T) {
	task := NewTask("quiet", nil)
	task.Progress(1, 2, "no bus attached") // must not panic
}
