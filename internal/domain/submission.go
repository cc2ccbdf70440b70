package domain

import "time"

// SubmissionRecord is the immutable audit entry written once per created
// task. The append-only submission log built from these records is the
// authoritative local universe for history reconciliation, even if the
// mutable ledger is lost or hand-edited.
type SubmissionRecord struct {
	RemoteID      string     `json:"remote_id"`
	CreatedAt     time.Time  `json:"created_at"`
	Prompt        string     `json:"prompt"`
	ImagePath     string     `json:"image_path"`
	InitialStatus TaskStatus `json:"initial_status"`
	OffPeak       bool       `json:"off_peak"`
}

// NewSubmissionRecord builds the audit entry for a freshly created task.
func NewSubmissionRecord(task *Task) SubmissionRecord {
	return SubmissionRecord{
		RemoteID:      task.RemoteID,
		CreatedAt:     task.CreatedAt,
		Prompt:        task.Prompt,
		ImagePath:     task.ImagePath,
		InitialStatus: task.Status,
		OffPeak:       task.OffPeak,
	}
}
