package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// LocalStore implements Store using file-based storage.
//
// Storage layout:
//
//	{workspace}/
//	  jobs/
//	    {job-id}.json
//	  jobs.lock
//
// Thread-safety: in-process access is serialized with a mutex; a file lock
// guards against concurrent access from other processes (e.g. a CLI
// listing records while the daemon runs).
type LocalStore struct {
	root string
	lock *flock.Flock

	mu     sync.RWMutex
	closed bool
}

// NewLocalStore creates a file-based store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, &InvalidInputError{Field: "dir", Reason: "workspace root must not be empty"}
	}
	return &LocalStore{
		root: dir,
		lock: flock.New(filepath.Join(dir, "jobs.lock")),
	}, nil
}

// Initialize creates the workspace directory structure.
func (s *LocalStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := os.MkdirAll(filepath.Join(s.root, "jobs"), 0o755); err != nil {
		return fmt.Errorf("failed to create jobs directory: %w", err)
	}
	return nil
}

// Create persists a new record.
func (s *LocalStore) Create(ctx context.Context, rec *Record) error {
	if err := validateID(rec.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire file lock: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck

	path := s.recordPath(rec.ID)
	if _, err := os.Stat(path); err == nil {
		return &AlreadyExistsError{ID: rec.ID}
	}
	return s.write(path, rec)
}

// Update applies a partial update to an existing record.
func (s *LocalStore) Update(ctx context.Context, id string, updates Updates) error {
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire file lock: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck

	rec, err := s.read(id)
	if err != nil {
		return err
	}

	if updates.Status != nil {
		rec.Status = *updates.Status
	}
	if updates.ErrorMessage != nil {
		rec.ErrorMessage = *updates.ErrorMessage
	}
	if updates.StartedAt != nil {
		rec.StartedAt = updates.StartedAt
	}
	if updates.CompletedAt != nil {
		rec.CompletedAt = updates.CompletedAt
		if rec.StartedAt != nil {
			rec.Duration = int(rec.CompletedAt.Sub(*rec.StartedAt).Seconds())
		}
	}

	return s.write(s.recordPath(id), rec)
}

// Get returns the record for id.
func (s *LocalStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.read(id)
}

// List returns records matching the filter, newest first.
func (s *LocalStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	dir := filepath.Join(s.root, "jobs")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []*Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs directory: %w", err)
	}

	records := make([]*Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		rec, err := s.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// Skip unreadable records rather than failing the listing
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && rec.Kind != filter.Kind {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].EnqueuedAt.After(records[j].EnqueuedAt)
	})
	return records, nil
}

// Close marks the store closed. Further operations return ErrClosed.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *LocalStore) recordPath(id string) string {
	return filepath.Join(s.root, "jobs", id+".json")
}

func (s *LocalStore) read(id string) (*Record, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode job record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *LocalStore) write(path string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode job record: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write job record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move job record into place: %w", err)
	}
	return nil
}

func validateID(id string) error {
	if id == "" {
		return &InvalidInputError{Field: "id", Reason: "must not be empty"}
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return &InvalidInputError{Field: "id", Reason: "must not contain path separators"}
	}
	return nil
}
