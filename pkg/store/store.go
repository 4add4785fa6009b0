// Package store provides durable persistence for job records.
//
// The job control core keeps authoritative state in memory only while a
// job is active; this package is the external collaborator that receives
// admission and terminal transitions so history survives the process. The
// default implementation is file-based; alternative backends implement the
// same Store interface.
package store

import (
	"context"
	"time"
)

// Record is the durable view of one job.
type Record struct {
	ID     string `json:"id"`
	Kind   string `json:"kind,omitempty"`
	Status string `json:"status"`

	// ErrorMessage contains the failure cause if the job failed.
	ErrorMessage string `json:"error_message,omitempty"`

	EnqueuedAt  time.Time  `json:"enqueued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Duration is the wall-clock run time in seconds, set on completion.
	Duration int `json:"duration_seconds,omitempty"`
}

// Updates describes a partial update to a record. Only non-nil fields are
// applied.
type Updates struct {
	Status       *string
	ErrorMessage *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Filter narrows List results. Zero-value fields match everything.
type Filter struct {
	Status string
	Kind   string
}

// Store is the job-record repository interface.
//
// The job manager calls it only from its single-writer goroutine, but
// implementations must still be safe for concurrent use: other readers
// (CLI listings, API handlers) query it from their own goroutines.
type Store interface {
	// Initialize prepares the backend for use, e.g. creating the
	// workspace directory layout.
	Initialize(ctx context.Context) error

	// Create persists a new record. Returns AlreadyExistsError if a
	// record with the same id exists.
	Create(ctx context.Context, rec *Record) error

	// Update applies a partial update. Returns NotFoundError if the
	// record does not exist.
	Update(ctx context.Context, id string, updates Updates) error

	// Get returns the record for id, or NotFoundError.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Record, error)

	// Close releases resources held by the store.
	Close() error
}
