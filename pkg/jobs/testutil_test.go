package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vulntor/jobkit/pkg/store"
)

// fakeExecutor runs until released, checkpointing on every loop iteration.
type fakeExecutor struct {
	id      string
	runErr  error
	release chan struct{}
	started chan struct{}
	ran     atomic.Bool
}

func newFakeExecutor(id string) *fakeExecutor {
	return &fakeExecutor{
		id:      id,
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
}

func (f *fakeExecutor) ID() string   { return f.id }
func (f *fakeExecutor) Kind() string { return "fake" }

func (f *fakeExecutor) Run(ctx context.Context, task *Task) error {
	f.ran.Store(true)
	close(f.started)
	for {
		if err := task.Checkpoint(ctx); err != nil {
			return err
		}
		select {
		case <-f.release:
			return f.runErr
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (f *fakeExecutor) finish() {
	close(f.release)
}

// stubbornExecutor never observes its cancellation signal; used to
// exercise the shutdown grace fallback.
type stubbornExecutor struct {
	id      string
	release chan struct{}
}

func (s *stubbornExecutor) ID() string { return s.id }

func (s *stubbornExecutor) Run(ctx context.Context, task *Task) error {
	<-s.release
	return nil
}

// memStore is an in-memory store.Store capturing every status transition.
type memStore struct {
	mu       sync.Mutex
	records  map[string]*store.Record
	statuses map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		records:  make(map[string]*store.Record),
		statuses: make(map[string][]string),
	}
}

func (s *memStore) Initialize(ctx context.Context) error { return nil }
func (s *memStore) Close() error                         { return nil }

func (s *memStore) Create(ctx context.Context, rec *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return &store.AlreadyExistsError{ID: rec.ID}
	}
	cp := *rec
	s.records[rec.ID] = &cp
	s.statuses[rec.ID] = append(s.statuses[rec.ID], rec.Status)
	return nil
}

func (s *memStore) Update(ctx context.Context, id string, updates store.Updates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return &store.NotFoundError{ID: id}
	}
	if updates.Status != nil {
		rec.Status = *updates.Status
		s.statuses[id] = append(s.statuses[id], rec.Status)
	}
	if updates.ErrorMessage != nil {
		rec.ErrorMessage = *updates.ErrorMessage
	}
	if updates.StartedAt != nil {
		rec.StartedAt = updates.StartedAt
	}
	if updates.CompletedAt != nil {
		rec.CompletedAt = updates.CompletedAt
	}
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, &store.NotFoundError{ID: id}
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) List(ctx context.Context, filter store.Filter) ([]*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.Record, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && rec.Kind != filter.Kind {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		return rec.Status
	}
	return ""
}

func (s *memStore) history(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses[id]...)
}

// managerHarness drives a Manager the way the controller goroutine would,
// capturing worker reports so tests can apply them deterministically.
type managerHarness struct {
	m       *Manager
	reports chan Command
}

func newManagerHarness(concurrency int, grace time.Duration, st store.Store) *managerHarness {
	h := &managerHarness{reports: make(chan Command, 64)}
	h.m = newManager(concurrency, grace, st, nil, func(cmd Command) bool {
		h.reports <- cmd
		return true
	})
	return h
}

// applyCompletion waits for the worker's CompleteJob report for id and
// feeds it to the manager, mimicking the controller loop.
func (h *managerHarness) applyCompletion(t *testing.T, id string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cmd := <-h.reports:
			complete, ok := cmd.(CompleteJob)
			require.True(t, ok, "expected CompleteJob report, got %T", cmd)
			h.m.Complete(complete.ID, complete.Err)
			if complete.ID == id {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for completion report for %s", id)
		}
	}
}
