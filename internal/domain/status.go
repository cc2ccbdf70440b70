package domain

import "strings"

// TaskStatus represents the local processing state of a video generation task.
type TaskStatus string

// Possible task status values.
const (
	TaskStatusPending        TaskStatus = "pending"
	TaskStatusProcessing     TaskStatus = "processing"
	TaskStatusCompleted      TaskStatus = "completed"
	TaskStatusFailed         TaskStatus = "failed"
	TaskStatusCancelled      TaskStatus = "cancelled"
	TaskStatusWaitingOffPeak TaskStatus = "waiting_off_peak"
)

// remoteStateVocabulary maps every known remote state string to a local status.
// The remote service reports lifecycle states with inconsistent spellings
// ("cancelled" vs "canceled", "success" vs "completed"), so the table is kept
// total over the closed set of strings the service has been observed to emit.
var remoteStateVocabulary = map[string]TaskStatus{
	"success":    TaskStatusCompleted,
	"completed":  TaskStatusCompleted,
	"processing": TaskStatusProcessing,
	"pending":    TaskStatusPending,
	"waiting":    TaskStatusPending,
	"queued":     TaskStatusPending,
	"failed":     TaskStatusFailed,
	"error":      TaskStatusFailed,
	"cancelled":  TaskStatusCancelled,
	"canceled":   TaskStatusCancelled,
}

// MapRemoteState translates a raw remote state string into a local TaskStatus.
// Unrecognized values fall back to pending; the second return value reports
// whether the string was part of the known vocabulary so callers can log the
// fallback. Mapping never fails.
func MapRemoteState(raw string) (TaskStatus, bool) {
	status, ok := remoteStateVocabulary[strings.ToLower(raw)]
	if !ok {
		return TaskStatusPending, false
	}
	return status, true
}

// IsTerminal reports whether the status is a final state that a task can
// never leave.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the task is still awaiting a remote outcome.
func (s TaskStatus) IsActive() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusWaitingOffPeak:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a status change from one state to another is
// permitted. Transitions are monotonic: a terminal state never moves back to
// an active one. Re-asserting the current state is always allowed so repeated
// polls can refresh timestamps without error.
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	return true
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled, TaskStatusWaitingOffPeak:
		return true
	default:
		return false
	}
}
