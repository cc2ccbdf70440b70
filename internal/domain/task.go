package domain

import (
	"time"
)

// Task represents one remote video generation job together with its local
// tracking record. The identity is the remote-assigned task ID; everything
// else is the local projection of what we know about the job.
type Task struct {
	RemoteID  string     `json:"remote_id"`
	ImagePath string     `json:"image_path"`
	Prompt    string     `json:"prompt"`
	OffPeak   bool       `json:"off_peak"`
	Status    TaskStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Download bookkeeping. Once DownloadedPath is set the artifact is never
	// re-downloaded and the path is never cleared.
	DownloadedPath string `json:"downloaded_path,omitempty"`
	DownloadURL    string `json:"download_url,omitempty"`
	DownloadSize   int64  `json:"download_size,omitempty"`
	CreationID     string `json:"creation_id,omitempty"`

	// Last raw remote state observed, kept for diagnostics.
	RemoteState string `json:"remote_state,omitempty"`
}

// NewTask creates a new Task in the pending state with the given remote ID
// and submission parameters. Returns an error if validation fails.
func NewTask(remoteID, imagePath, prompt string, offPeak bool) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		RemoteID:  remoteID,
		ImagePath: imagePath,
		Prompt:    prompt,
		OffPeak:   offPeak,
		Status:    TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.RemoteID == "" {
		return ErrEmptyTaskID
	}

	if t.ImagePath == "" {
		return ErrEmptyImagePath
	}

	if t.Prompt == "" {
		return ErrEmptyPrompt
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// UpdateStatus moves the task to the given status, stamping UpdatedAt and,
// on the transition into completed, CompletedAt. It enforces monotonic
// transitions: moving out of a terminal state returns ErrInvalidTransition
// and leaves the task unchanged.
func (t *Task) UpdateStatus(status TaskStatus) error {
	if !isValidTaskStatus(status) {
		return ErrInvalidTaskStatus
	}

	if !CanTransition(t.Status, status) {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	if status == TaskStatusCompleted && t.Status != TaskStatusCompleted {
		t.CompletedAt = &now
	}

	t.Status = status
	t.UpdatedAt = now
	return nil
}

// MarkDownloaded records a finished artifact download. The first recorded
// path wins; later calls refresh nothing and report false.
func (t *Task) MarkDownloaded(path, url string, size int64, creationID string) bool {
	if t.DownloadedPath != "" {
		return false
	}

	t.DownloadedPath = path
	t.DownloadURL = url
	t.DownloadSize = size
	t.CreationID = creationID
	t.UpdatedAt = time.Now().UTC()
	return true
}
