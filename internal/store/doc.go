// Package store defines the persistence interfaces for the task ledger and
// the append-only submission log, together with the common store errors.
// Implementations live under internal/platform.
package store
