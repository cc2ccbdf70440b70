package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// Callers check for these with errors.Is; the API layer maps them to HTTP
// status codes.
var (
	// ErrValidation indicates the caller's input was structurally invalid:
	// a missing directory, an empty prompts file, a blank task ID.
	// API layer should map this to HTTP 400 Bad Request.
	ErrValidation = errors.New("invalid input")

	// ErrInvalidState indicates the operation does not apply to the task's
	// current lifecycle state, such as downloading a task that has not
	// completed. API layer should map this to HTTP 409 Conflict.
	ErrInvalidState = errors.New("operation not valid for current task state")

	// ErrNoDownloadURL indicates a completed task has no cached artifact URL
	// yet. Running a reconciliation pass populates it.
	ErrNoDownloadURL = errors.New("no download URL cached for task")
)
