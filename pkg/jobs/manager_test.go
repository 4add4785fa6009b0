package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManager_AdmitRespectsConcurrencyLimit(t *testing.T) {
	h := newManagerHarness(2, time.Second, nil)

	execs := []*fakeExecutor{
		newFakeExecutor("a"),
		newFakeExecutor("b"),
		newFakeExecutor("c"),
	}
	for _, exec := range execs {
		require.NoError(t, h.m.Admit(exec))
	}

	require.Len(t, h.m.running, 2)
	require.Len(t, h.m.queue, 1)
	require.Equal(t, "c", h.m.queue[0].ID())

	for _, exec := range execs {
		exec.finish()
	}
	for _, id := range []string{"a", "b", "c"} {
		h.applyCompletion(t, id)
	}
	require.Empty(t, h.m.running)
	require.Empty(t, h.m.queue)
}

func TestManager_AdmitDuplicateID(t *testing.T) {
	h := newManagerHarness(1, time.Second, nil)

	running := newFakeExecutor("a")
	queued := newFakeExecutor("b")
	require.NoError(t, h.m.Admit(running))
	require.NoError(t, h.m.Admit(queued))

	// Duplicate of a running id
	dup := newFakeExecutor("a")
	require.ErrorIs(t, h.m.Admit(dup), ErrDuplicateID)
	require.False(t, dup.ran.Load())

	// Duplicate of a queued id
	require.ErrorIs(t, h.m.Admit(newFakeExecutor("b")), ErrDuplicateID)

	// The existing jobs are untouched
	require.Len(t, h.m.running, 1)
	require.Len(t, h.m.queue, 1)

	running.finish()
	queued.finish()
	h.applyCompletion(t, "a")
	h.applyCompletion(t, "b")
}

func TestManager_AdmitEmptyID(t *testing.T) {
	h := newManagerHarness(1, time.Second, nil)
	require.ErrorIs(t, h.m.Admit(newFakeExecutor("")), ErrInvalidState)
}

func TestManager_FIFOPromotion(t *testing.T) {
	st := newMemStore()
	h := newManagerHarness(1, time.Second, st)

	a := newFakeExecutor("a")
	b := newFakeExecutor("b")
	c := newFakeExecutor("c")
	require.NoError(t, h.m.Admit(a))
	require.NoError(t, h.m.Admit(b))
	require.NoError(t, h.m.Admit(c))

	require.Contains(t, h.m.running, "a")
	require.Equal(t, []string{"b", "c"}, queuedIDs(h.m))
	require.False(t, b.ran.Load())
	require.False(t, c.ran.Load())

	a.finish()
	h.applyCompletion(t, "a")
	require.Contains(t, h.m.running, "b")
	require.Equal(t, []string{"c"}, queuedIDs(h.m))

	b.finish()
	h.applyCompletion(t, "b")
	require.Contains(t, h.m.running, "c")
	require.Empty(t, h.m.queue)

	c.finish()
	h.applyCompletion(t, "c")
	require.Empty(t, h.m.running)
	require.Empty(t, h.m.queue)

	for _, id := range []string{"a", "b", "c"} {
		require.Equal(t, string(StatusCompleted), st.status(id))
	}
	require.Equal(t, []string{"queued", "running", "completed"}, st.history("a"))
}

func TestManager_CompletePromotesExactlyOne(t *testing.T) {
	h := newManagerHarness(2, time.Second, nil)

	execs := make([]*fakeExecutor, 0, 5)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		exec := newFakeExecutor(id)
		execs = append(execs, exec)
		require.NoError(t, h.m.Admit(exec))
	}
	require.Len(t, h.m.running, 2)
	require.Len(t, h.m.queue, 3)

	execs[0].finish()
	h.applyCompletion(t, "a")

	// Fill-to-capacity, not fill-all-at-once
	require.Len(t, h.m.running, 2)
	require.Len(t, h.m.queue, 2)

	for _, exec := range execs[1:] {
		exec.finish()
	}
	for _, id := range []string{"b", "c", "d", "e"} {
		h.applyCompletion(t, id)
	}
}

func TestManager_CompleteUnknownID(t *testing.T) {
	h := newManagerHarness(1, time.Second, nil)

	// Duplicate or stale completion reports must not corrupt state
	h.m.Complete("ghost", nil)
	require.Empty(t, h.m.running)
}

func TestManager_FailedJobStatus(t *testing.T) {
	st := newMemStore()
	h := newManagerHarness(1, time.Second, st)

	exec := newFakeExecutor("boom")
	exec.runErr = errors.New("disk on fire")
	require.NoError(t, h.m.Admit(exec))

	exec.finish()
	h.applyCompletion(t, "boom")

	require.Equal(t, string(StatusFailed), st.status("boom"))
	rec, err := st.Get(context.Background(), "boom")
	require.NoError(t, err)
	require.Equal(t, "disk on fire", rec.ErrorMessage)
}

func TestManager_PanickingExecutor(t *testing.T) {
	st := newMemStore()
	h := newManagerHarness(1, time.Second, st)

	require.NoError(t, h.m.Admit(&panicExecutor{id: "p"}))
	h.applyCompletion(t, "p")

	require.Equal(t, string(StatusFailed), st.status("p"))
	require.Empty(t, h.m.running)
}

type panicExecutor struct{ id string }

func (p *panicExecutor) ID() string { return p.id }
func (p *panicExecutor) Run(ctx context.Context, task *Task) error {
	panic("unexpected state")
}

func TestManager_CancelQueued(t *testing.T) {
	st := newMemStore()
	h := newManagerHarness(1, time.Second, st)

	a := newFakeExecutor("a")
	b := newFakeExecutor("b")
	require.NoError(t, h.m.Admit(a))
	require.NoError(t, h.m.Admit(b))

	require.NoError(t, h.m.Cancel("b"))
	require.Empty(t, h.m.queue)
	require.False(t, b.ran.Load(), "cancelled queued job must never run")
	require.Equal(t, string(StatusCancelled), st.status("b"))

	// Completing a does not resurrect b
	a.finish()
	h.applyCompletion(t, "a")
	require.Empty(t, h.m.running)
	require.False(t, b.ran.Load())
}

func TestManager_CancelRunning(t *testing.T) {
	st := newMemStore()
	h := newManagerHarness(1, time.Second, st)

	a := newFakeExecutor("a")
	require.NoError(t, h.m.Admit(a))
	<-a.started

	// Success means "cancellation requested", not "cancellation completed"
	require.NoError(t, h.m.Cancel("a"))
	require.Contains(t, h.m.running, "a")
	require.Equal(t, string(StatusCancelling), st.status("a"))

	// The executor observes the signal at its next checkpoint
	h.applyCompletion(t, "a")
	require.Empty(t, h.m.running)
	require.Equal(t, string(StatusCancelled), st.status("a"))
}

func TestManager_CancelUnknown(t *testing.T) {
	h := newManagerHarness(1, time.Second, nil)
	require.ErrorIs(t, h.m.Cancel("ghost"), ErrJobNotFound)
}

func TestManager_PauseValidation(t *testing.T) {
	h := newManagerHarness(1, time.Second, nil)

	a := newFakeExecutor("a")
	b := newFakeExecutor("b")
	require.NoError(t, h.m.Admit(a))
	require.NoError(t, h.m.Admit(b))

	require.ErrorIs(t, h.m.Pause("ghost"), ErrJobNotFound)
	require.ErrorIs(t, h.m.Pause("b"), ErrInvalidState)
	require.ErrorIs(t, h.m.Resume("ghost"), ErrJobNotFound)
	require.ErrorIs(t, h.m.Resume("b"), ErrInvalidState)

	// Unrelated jobs are untouched by the failed operations
	require.Contains(t, h.m.running, "a")
	require.Equal(t, []string{"b"}, queuedIDs(h.m))

	a.finish()
	b.finish()
	h.applyCompletion(t, "a")
	h.applyCompletion(t, "b")
}

func TestManager_PauseAndResumeRunning(t *testing.T) {
	h := newManagerHarness(1, time.Second, nil)

	a := newFakeExecutor("a")
	require.NoError(t, h.m.Admit(a))
	<-a.started

	require.NoError(t, h.m.Pause("a"))
	require.True(t, h.m.running["a"].task.Paused())

	// While paused the executor is parked at its checkpoint; releasing it
	// must not let it finish.
	a.finish()
	select {
	case cmd := <-h.reports:
		t.Fatalf("paused job reported completion: %#v", cmd)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, h.m.Resume("a"))
	h.applyCompletion(t, "a")
	require.Empty(t, h.m.running)
}

func TestManager_ShutdownDrainsEverything(t *testing.T) {
	st := newMemStore()
	h := newManagerHarness(2, time.Second, st)

	running := []*fakeExecutor{newFakeExecutor("r1"), newFakeExecutor("r2")}
	queued := []*fakeExecutor{newFakeExecutor("q1"), newFakeExecutor("q2")}
	for _, exec := range running {
		require.NoError(t, h.m.Admit(exec))
	}
	for _, exec := range queued {
		require.NoError(t, h.m.Admit(exec))
	}
	for _, exec := range running {
		<-exec.started
	}

	h.m.Shutdown()

	require.Empty(t, h.m.running)
	require.Empty(t, h.m.queue)
	for _, exec := range queued {
		require.False(t, exec.ran.Load(), "queued job must never start during shutdown")
		require.Equal(t, string(StatusCancelled), st.status(exec.ID()))
	}
	for _, exec := range running {
		require.Equal(t, string(StatusCancelled), st.status(exec.ID()))
	}

	// Drain the stale completion reports so workers exit cleanly
	for range running {
		<-h.reports
	}
}

func TestManager_ShutdownGraceExceeded(t *testing.T) {
	st := newMemStore()
	h := newManagerHarness(1, 50*time.Millisecond, st)

	stubborn := &stubbornExecutor{id: "s", release: make(chan struct{})}
	require.NoError(t, h.m.Admit(stubborn))

	start := time.Now()
	h.m.Shutdown()
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	require.Less(t, elapsed, 2*time.Second, "shutdown must not block indefinitely")
	require.Empty(t, h.m.running)
	require.Equal(t, string(StatusCancelled), st.status("s"))

	rec, err := st.Get(context.Background(), "s")
	require.NoError(t, err)
	require.Contains(t, rec.ErrorMessage, "grace period")

	// Let the abandoned worker exit so the leak check stays green
	close(stubborn.release)
	<-h.reports
}

func queuedIDs(m *Manager) []string {
	ids := make([]string, 0, len(m.queue))
	for _, exec := range m.queue {
		ids = append(ids, exec.ID())
	}
	return ids
}
