package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/alexfaker/autoGenVideo/internal/config"
	"github.com/alexfaker/autoGenVideo/internal/domain"
	"github.com/alexfaker/autoGenVideo/internal/platform/vidu"
	"github.com/alexfaker/autoGenVideo/internal/store"
)

// RemoteClient is the remote task API surface the services depend on.
type RemoteClient interface {
	SubmitTask(ctx context.Context, spec vidu.JobSpec) (string, error)
	PollState(ctx context.Context, remoteID string) (vidu.StateSnapshot, error)
	FetchHistoryPage(ctx context.Context, page, pageSize int) (vidu.HistoryPage, error)
}

// MediaTransfer is the binary upload/download surface the services depend on.
type MediaTransfer interface {
	UploadImage(ctx context.Context, imagePath string) (vidu.UploadResult, error)
	DownloadVideo(ctx context.Context, videoURL, filename string) (string, int64, error)
}

// PollReport summarizes one poll sweep over the active tasks.
type PollReport struct {
	Checked      int
	CompletedNow int
	FailedNow    int
	StillActive  int
	// Failures holds a bounded sample of per-task poll errors.
	Failures []string
}

// StatusReport is the point-in-time summary of the ledger.
type StatusReport struct {
	Total      int
	Counts     map[domain.TaskStatus]int
	Downloaded int
	// CompletionRate is completed/(completed+failed) as a percentage, zero
	// when nothing has finished yet.
	CompletionRate float64
}

// maxReportedFailures bounds the error samples carried in reports.
const maxReportedFailures = 10

// Engine drives the task lifecycle: creation, state polling, artifact
// download, and retention cleanup. All remote access goes through the
// injected client and transfer.
type Engine struct {
	ledger   store.TaskLedger
	subLog   store.SubmissionLog
	client   RemoteClient
	transfer MediaTransfer
	remote   config.RemoteConfig
	behavior config.BehaviorConfig
	logger   *slog.Logger

	// pause inserts the randomized delay between consecutive remote calls.
	// Overridable in tests.
	pause func(ctx context.Context, min, max time.Duration) error
	now   func() time.Time
}

// NewEngine creates the lifecycle engine. All dependencies are required.
func NewEngine(
	ledger store.TaskLedger,
	subLog store.SubmissionLog,
	client RemoteClient,
	transfer MediaTransfer,
	remote config.RemoteConfig,
	behavior config.BehaviorConfig,
	logger *slog.Logger,
) (*Engine, error) {
	if ledger == nil {
		return nil, errors.New("task ledger cannot be nil")
	}
	if subLog == nil {
		return nil, errors.New("submission log cannot be nil")
	}
	if client == nil {
		return nil, errors.New("remote client cannot be nil")
	}
	if transfer == nil {
		return nil, errors.New("media transfer cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Engine{
		ledger:   ledger,
		subLog:   subLog,
		client:   client,
		transfer: transfer,
		remote:   remote,
		behavior: behavior,
		logger:   logger.With("component", "lifecycle_engine"),
		pause:    randomPause,
		now:      time.Now,
	}, nil
}

// Create submits one new video generation job: upload the source image,
// submit the job, then record it in the ledger and the submission log.
// Failures before submission leave no local record behind.
func (e *Engine) Create(ctx context.Context, imagePath, prompt string, offPeak bool) (*domain.Task, error) {
	if imagePath == "" {
		return nil, fmt.Errorf("%w: image path cannot be empty", ErrValidation)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", ErrValidation)
	}

	upload, err := e.transfer.UploadImage(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("image upload failed: %w", err)
	}

	spec := vidu.JobSpec{
		AssetRef:    upload.AssetRef,
		Prompt:      prompt,
		Width:       upload.Width,
		Height:      upload.Height,
		AspectRatio: domain.AspectRatio(upload.Width, upload.Height),
		OffPeak:     offPeak,
	}

	remoteID, err := e.client.SubmitTask(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("task submission failed: %w", err)
	}

	task, err := domain.NewTask(remoteID, imagePath, prompt, offPeak)
	if err != nil {
		return nil, err
	}

	if err := e.ledger.Upsert(ctx, task); err != nil {
		return nil, fmt.Errorf("task %s submitted but not recorded: %w", remoteID, err)
	}
	if err := e.subLog.Append(ctx, domain.NewSubmissionRecord(task)); err != nil {
		return nil, fmt.Errorf("task %s submitted but audit record failed: %w", remoteID, err)
	}

	if offPeak && !e.inOffPeakWindow() {
		if err := task.UpdateStatus(domain.TaskStatusWaitingOffPeak); err == nil {
			if err := e.ledger.Upsert(ctx, task); err != nil {
				return nil, fmt.Errorf("failed to record off-peak wait for task %s: %w", remoteID, err)
			}
		}
	}

	e.logger.Info("task created",
		"task_id", task.RemoteID,
		"image", imagePath,
		"off_peak", offPeak,
		"status", task.Status)
	return task, nil
}

// PollOne refreshes one task's state from the remote service. A snapshot
// with a missing or unknown state is logged and leaves the local state
// untouched. Non-monotonic remote transitions are ignored.
func (e *Engine) PollOne(ctx context.Context, remoteID string) (*domain.Task, error) {
	if remoteID == "" {
		return nil, fmt.Errorf("%w: task ID cannot be empty", ErrValidation)
	}

	task, err := e.ledger.Get(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		return task, nil
	}

	snapshot, err := e.client.PollState(ctx, remoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to poll task %s: %w", remoteID, err)
	}

	task.RemoteState = snapshot.RawState

	mapped, known := domain.MapRemoteState(snapshot.RawState)
	switch {
	case !known:
		e.logger.Warn("snapshot carried no usable state, keeping local state",
			"task_id", remoteID, "raw_state", snapshot.RawState)
	case task.Status == domain.TaskStatusWaitingOffPeak &&
		mapped == domain.TaskStatusPending && !e.inOffPeakWindow():
		// The remote queue reports deferred tasks as pending. Keep the
		// local off-peak marker until the window opens.
	case mapped != task.Status:
		if err := task.UpdateStatus(mapped); err != nil {
			e.logger.Warn("ignoring non-monotonic remote transition",
				"task_id", remoteID, "local", task.Status, "remote", mapped)
		}
	}

	if err := e.ledger.Upsert(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to persist poll result for task %s: %w", remoteID, err)
	}
	return task, nil
}

// PollAll sweeps every task in the given statuses, defaulting to all active
// ones. A randomized pause separates consecutive remote calls. Per-task
// failures are tallied and the sweep continues.
func (e *Engine) PollAll(ctx context.Context, statuses ...domain.TaskStatus) (PollReport, error) {
	if len(statuses) == 0 {
		statuses = []domain.TaskStatus{
			domain.TaskStatusPending,
			domain.TaskStatusProcessing,
			domain.TaskStatusWaitingOffPeak,
		}
	}

	tasks, err := e.ledger.AllByStatus(ctx, statuses...)
	if err != nil {
		return PollReport{}, err
	}

	report := PollReport{}
	for i, task := range tasks {
		if i > 0 {
			if err := e.pause(ctx, e.behavior.MinDelay, e.behavior.MaxDelay); err != nil {
				return report, err
			}
		}

		before := task.Status
		updated, err := e.PollOne(ctx, task.RemoteID)
		report.Checked++
		if err != nil {
			if len(report.Failures) < maxReportedFailures {
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", task.RemoteID, err))
			}
			continue
		}

		switch {
		case updated.Status == domain.TaskStatusCompleted && before != domain.TaskStatusCompleted:
			report.CompletedNow++
		case updated.Status == domain.TaskStatusFailed && before != domain.TaskStatusFailed:
			report.FailedNow++
		case updated.Status.IsActive():
			report.StillActive++
		}
	}

	e.logger.Info("poll sweep finished",
		"checked", report.Checked,
		"completed_now", report.CompletedNow,
		"failed_now", report.FailedNow,
		"still_active", report.StillActive,
		"failures", len(report.Failures))
	return report, nil
}

// DownloadCompleted fetches the artifact of one completed task using its
// cached download URL. A task already downloaded is a no-op success; a task
// without a cached URL needs a reconcile pass first.
func (e *Engine) DownloadCompleted(ctx context.Context, remoteID string) (*domain.Task, error) {
	task, err := e.ledger.Get(ctx, remoteID)
	if err != nil {
		return nil, err
	}

	if task.Status != domain.TaskStatusCompleted {
		return nil, fmt.Errorf("%w: task %s is %s", ErrInvalidState, remoteID, task.Status)
	}
	if task.DownloadedPath != "" {
		return task, nil
	}
	if task.DownloadURL == "" {
		return nil, fmt.Errorf("%w: task %s", ErrNoDownloadURL, remoteID)
	}

	path, size, err := e.transfer.DownloadVideo(ctx, task.DownloadURL, videoFilename(task.CreationID, task.RemoteID))
	if err != nil {
		return nil, fmt.Errorf("failed to download video for task %s: %w", remoteID, err)
	}

	task.MarkDownloaded(path, task.DownloadURL, size, task.CreationID)
	if err := e.ledger.Upsert(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to record download for task %s: %w", remoteID, err)
	}
	return task, nil
}

// CleanupOlderThan removes ledger records older than the given age and
// returns how many were removed. Downloaded files are untouched.
func (e *Engine) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	if age <= 0 {
		return 0, fmt.Errorf("%w: retention age must be positive", ErrValidation)
	}

	removed, err := e.ledger.DeleteOlderThan(ctx, e.now().Add(-age))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		e.logger.Info("retention sweep removed tasks", "count", removed, "age", age)
	}
	return removed, nil
}

// Report summarizes the ledger: per-status counts, downloads, completion rate.
func (e *Engine) Report(ctx context.Context) (StatusReport, error) {
	tasks, err := e.ledger.All(ctx)
	if err != nil {
		return StatusReport{}, err
	}

	report := StatusReport{
		Total:  len(tasks),
		Counts: make(map[domain.TaskStatus]int),
	}
	for _, task := range tasks {
		report.Counts[task.Status]++
		if task.DownloadedPath != "" {
			report.Downloaded++
		}
	}

	finished := report.Counts[domain.TaskStatusCompleted] + report.Counts[domain.TaskStatusFailed]
	if finished > 0 {
		report.CompletionRate = float64(report.Counts[domain.TaskStatusCompleted]) / float64(finished) * 100
	}
	return report, nil
}

// inOffPeakWindow reports whether the current local hour is one of the
// configured off-peak hours.
func (e *Engine) inOffPeakWindow() bool {
	hour := e.now().Hour()
	for _, h := range e.remote.OffPeakHours {
		if h == hour {
			return true
		}
	}
	return false
}

// videoFilename names a downloaded artifact after its creation ID, falling
// back to the task ID when the creation is unknown.
func videoFilename(creationID, remoteID string) string {
	id := creationID
	if id == "" {
		id = remoteID
	}
	return fmt.Sprintf("vidu-video-%s.mp4", id)
}

// randomPause sleeps for a uniformly random duration in [min, max],
// returning early when the context is cancelled.
func randomPause(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
