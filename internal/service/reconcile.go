package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexfaker/autoGenVideo/internal/config"
	"github.com/alexfaker/autoGenVideo/internal/domain"
	"github.com/alexfaker/autoGenVideo/internal/platform/vidu"
	"github.com/alexfaker/autoGenVideo/internal/store"
)

// DownloadEntry is one artifact the reconciler found ready to download.
type DownloadEntry struct {
	RemoteID   string
	CreationID string
	URL        string
	// ImagePath and Prompt come from the submission log and seed the ledger
	// record when the task is missing locally.
	ImagePath string
	Prompt    string
	OffPeak   bool
}

// MatchResult classifies the remote history against the local submission log.
type MatchResult struct {
	// MatchedIDs are remote tasks this installation submitted.
	MatchedIDs []string
	// CompletedIDs are matched tasks whose remote state maps to completed.
	CompletedIDs []string
	// Downloadable lists one entry per completed task with a usable
	// artifact URL.
	Downloadable []DownloadEntry
	// UnmatchedLocal are submitted task IDs the fetched history never showed.
	UnmatchedLocal []string
	// UnmatchedRemote are history task IDs this installation never submitted.
	UnmatchedRemote []string
}

// DownloadReport summarizes one download batch.
type DownloadReport struct {
	Attempted  int
	Downloaded int
	// Skipped counts entries whose artifact was already on disk.
	Skipped  int
	Failures []string
}

// ReconcileReport is the combined outcome of one reconciliation pass.
type ReconcileReport struct {
	FetchedRemote int
	Match         MatchResult
	Downloads     DownloadReport
}

// Reconciler recovers ground truth from the account's task history: it
// re-discovers completed work, repairs the ledger, and downloads finished
// artifacts the poll path cannot reach. A pass is re-entrant; everything it
// writes is deduplicated by the downloaded-path guard and the monotonic
// status transitions.
type Reconciler struct {
	ledger   store.TaskLedger
	subLog   store.SubmissionLog
	client   RemoteClient
	transfer MediaTransfer
	behavior config.BehaviorConfig
	logger   *slog.Logger

	pause func(ctx context.Context, min, max time.Duration) error
}

// NewReconciler creates the reconciliation engine. All dependencies are
// required.
func NewReconciler(
	ledger store.TaskLedger,
	subLog store.SubmissionLog,
	client RemoteClient,
	transfer MediaTransfer,
	behavior config.BehaviorConfig,
	logger *slog.Logger,
) (*Reconciler, error) {
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

	return &Reconciler{
		ledger:   ledger,
		subLog:   subLog,
		client:   client,
		transfer: transfer,
		behavior: behavior,
		logger:   logger.With("component", "reconciler"),
		pause:    randomPause,
	}, nil
}

// FetchHistory pages through the account's task history. Paging stops on a
// short page, when the accumulated items reach the remote total, or at
// maxPages. Any page failure aborts the whole fetch; a partial history
// would misclassify unmatched tasks.
func (r *Reconciler) FetchHistory(ctx context.Context, pageSize, maxPages int) ([]vidu.HistoryItem, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: page size must be positive", ErrValidation)
	}
	if maxPages <= 0 {
		return nil, fmt.Errorf("%w: max pages must be positive", ErrValidation)
	}

	// The remote pager is zero-indexed; the newest history lands on page 0.
	var items []vidu.HistoryItem
	for page := 0; page < maxPages; page++ {
		if page > 0 {
			if err := r.pause(ctx, r.behavior.MinDelay, r.behavior.MaxDelay); err != nil {
				return nil, err
			}
		}

		fetched, err := r.client.FetchHistoryPage(ctx, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("history fetch aborted at page %d: %w", page, err)
		}

		items = append(items, fetched.Items...)
		if len(fetched.Items) < pageSize {
			break
		}
		if fetched.Total > 0 && len(items) >= fetched.Total {
			break
		}
	}

	r.logger.Info("history fetched", "items", len(items))
	return items, nil
}

// Match classifies the fetched history against the submission log: which
// remote tasks are ours, which of ours completed, and which completed tasks
// carry a usable artifact URL. For each completed task the creations are
// scanned in order and the first one with a URL wins.
func (r *Reconciler) Match(ctx context.Context, remote []vidu.HistoryItem) (MatchResult, error) {
	records, err := r.subLog.Records(ctx)
	if err != nil {
		return MatchResult{}, err
	}

	local := make(map[string]domain.SubmissionRecord, len(records))
	for _, rec := range records {
		local[rec.RemoteID] = rec
	}

	result := MatchResult{}
	seen := make(map[string]bool, len(remote))
	for _, item := range remote {
		seen[item.ID] = true
		rec, ok := local[item.ID]
		if !ok {
			result.UnmatchedRemote = append(result.UnmatchedRemote, item.ID)
			continue
		}
		result.MatchedIDs = append(result.MatchedIDs, item.ID)

		status, known := domain.MapRemoteState(item.State)
		if !known || status != domain.TaskStatusCompleted {
			continue
		}
		result.CompletedIDs = append(result.CompletedIDs, item.ID)

		for _, creation := range item.Creations {
			if url := creation.PreferredURL(); url != "" {
				result.Downloadable = append(result.Downloadable, DownloadEntry{
					RemoteID:   item.ID,
					CreationID: creation.ID,
					URL:        url,
					ImagePath:  rec.ImagePath,
					Prompt:     rec.Prompt,
					OffPeak:    rec.OffPeak,
				})
				break
			}
		}
	}

	for _, rec := range records {
		if !seen[rec.RemoteID] {
			result.UnmatchedLocal = append(result.UnmatchedLocal, rec.RemoteID)
		}
	}

	return result, nil
}

// DownloadBatch downloads every entry whose artifact is not already on
// disk. A successful download marks the task completed and records the
// file; a task unknown to the ledger is recreated from the submission log
// data. One failed download never stops the rest.
func (r *Reconciler) DownloadBatch(ctx context.Context, entries []DownloadEntry) (DownloadReport, error) {
	report := DownloadReport{}
	for _, entry := range entries {
		task, err := r.ledger.Get(ctx, entry.RemoteID)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrTaskNotFound):
			task = r.resurrect(entry)
		default:
			return report, err
		}

		if task.DownloadedPath != "" {
			report.Skipped++
			continue
		}

		report.Attempted++
		path, size, err := r.transfer.DownloadVideo(ctx, entry.URL, videoFilename(entry.CreationID, entry.RemoteID))
		if err != nil {
			if len(report.Failures) < maxReportedFailures {
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", entry.RemoteID, err))
			}
			r.logger.Error("artifact download failed", "task_id", entry.RemoteID, "error", err)
			continue
		}

		r.forceCompleted(task)
		task.MarkDownloaded(path, entry.URL, size, entry.CreationID)
		if err := r.ledger.Upsert(ctx, task); err != nil {
			return report, fmt.Errorf("failed to record download for task %s: %w", entry.RemoteID, err)
		}
		report.Downloaded++
	}

	r.logger.Info("download batch finished",
		"attempted", report.Attempted,
		"downloaded", report.Downloaded,
		"skipped", report.Skipped,
		"failures", len(report.Failures))
	return report, nil
}

// ReconcilePass runs one full fetch, match, and download cycle.
func (r *Reconciler) ReconcilePass(ctx context.Context) (ReconcileReport, error) {
	items, err := r.FetchHistory(ctx, r.behavior.HistoryPageSize, r.behavior.HistoryMaxPages)
	if err != nil {
		return ReconcileReport{}, err
	}

	match, err := r.Match(ctx, items)
	if err != nil {
		return ReconcileReport{}, err
	}

	downloads, err := r.DownloadBatch(ctx, match.Downloadable)
	if err != nil {
		return ReconcileReport{}, err
	}

	return ReconcileReport{
		FetchedRemote: len(items),
		Match:         match,
		Downloads:     downloads,
	}, nil
}

// resurrect rebuilds a ledger record for a task known only to the
// submission log.
func (r *Reconciler) resurrect(entry DownloadEntry) *domain.Task {
	now := time.Now().UTC()
	return &domain.Task{
		RemoteID:  entry.RemoteID,
		ImagePath: entry.ImagePath,
		Prompt:    entry.Prompt,
		OffPeak:   entry.OffPeak,
		Status:    domain.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// forceCompleted moves the task to completed. A verified artifact on disk
// outranks whatever terminal state the ledger recorded, so a rejected
// transition is overridden rather than dropped.
func (r *Reconciler) forceCompleted(task *domain.Task) {
	if task.Status == domain.TaskStatusCompleted {
		return
	}
	if err := task.UpdateStatus(domain.TaskStatusCompleted); err != nil {
		r.logger.Warn("overriding terminal status after verified download",
			"task_id", task.RemoteID, "was", task.Status)
		now := time.Now().UTC()
		task.Status = domain.TaskStatusCompleted
		task.CompletedAt = &now
		task.UpdatedAt = now
	}
}
