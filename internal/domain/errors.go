package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyTaskID is returned when a task's remote ID is empty.
	ErrEmptyTaskID = errors.New("task remote ID cannot be empty")

	// ErrEmptyImagePath is returned when a task's source image path is empty.
	ErrEmptyImagePath = errors.New("task image path cannot be empty")

	// ErrEmptyPrompt is returned when a task's prompt is empty.
	ErrEmptyPrompt = errors.New("task prompt cannot be empty")

	// ErrInvalidTaskStatus is returned when a task status is not a known value.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidTransition is returned when a status update would move a task
	// out of a terminal state back into an active one.
	ErrInvalidTransition = errors.New("invalid status transition")
)
