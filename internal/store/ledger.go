package store

import (
	"context"
	"time"

	"github.com/alexfaker/autoGenVideo/internal/domain"
)

// TaskLedger is the durable, mutable projection of every known task and its
// last observed state. Every mutation persists the full snapshot
// synchronously before returning, so a crash can never leave an acknowledged
// write unrecorded.
//
// Implementations must make Upsert idempotent and keyed by remote ID with
// last-write-wins-per-field merge semantics, so interleaved invocations
// (interactive path and trigger loop) converge without locking between
// processes.
type TaskLedger interface {
	// Get retrieves a task by its remote ID.
	// Returns ErrTaskNotFound when the ledger has no record of it.
	Get(ctx context.Context, remoteID string) (*domain.Task, error)

	// Upsert inserts or replaces the record for the task's remote ID.
	// A downloaded path already present in the ledger is never erased by an
	// incoming record that lacks one.
	Upsert(ctx context.Context, task *domain.Task) error

	// AllByStatus returns every task currently in one of the given statuses.
	AllByStatus(ctx context.Context, statuses ...domain.TaskStatus) ([]*domain.Task, error)

	// AllCreatedAfter returns every task created at or after the cutoff.
	AllCreatedAfter(ctx context.Context, cutoff time.Time) ([]*domain.Task, error)

	// All returns every known task.
	All(ctx context.Context) ([]*domain.Task, error)

	// Delete removes the record for the given remote ID. Deleting an absent
	// record is not an error.
	Delete(ctx context.Context, remoteID string) error

	// DeleteOlderThan removes every task created before the cutoff and
	// returns how many were removed. This is the explicit retention sweep;
	// nothing else ever deletes tasks.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// SubmissionLog is the append-only audit record of every task ever created.
// Records are written once and never mutated or deleted; the log is the
// authoritative local universe for history reconciliation even when the
// mutable ledger has been lost or edited.
type SubmissionLog interface {
	// Append writes one immutable record for a freshly created task.
	Append(ctx context.Context, rec domain.SubmissionRecord) error

	// Records returns every submission record in append order.
	Records(ctx context.Context) ([]domain.SubmissionRecord, error)
}
