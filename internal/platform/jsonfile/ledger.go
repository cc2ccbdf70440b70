package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/alexfaker/autoGenVideo/internal/domain"
	"github.com/alexfaker/autoGenVideo/internal/store"
)

// TaskLedger is a file-backed store.TaskLedger. The whole task set lives in
// one JSON document keyed by remote ID; every mutation rewrites the document
// through a temp file and an atomic rename.
type TaskLedger struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]*domain.Task
}

// NewTaskLedger opens (or initializes) the ledger file at path. A missing
// file yields an empty ledger; a corrupt file is an error, never silently
// discarded.
func NewTaskLedger(path string, logger *slog.Logger) (*TaskLedger, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	l := &TaskLedger{
		path:   path,
		logger: logger.With("component", "task_ledger"),
		tasks:  make(map[string]*domain.Task),
	}

	if err := l.load(); err != nil {
		return nil, err
	}

	return l, nil
}

// Get retrieves a task by its remote ID.
func (l *TaskLedger) Get(ctx context.Context, remoteID string) (*domain.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	task, ok := l.tasks[remoteID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	copied := *task
	return &copied, nil
}

// Upsert inserts or replaces the record for the task's remote ID and
// persists the full snapshot before returning. An already-recorded
// downloaded path is carried over when the incoming record lacks one.
func (l *TaskLedger) Upsert(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return store.NewStoreError("task", "upsert", "task cannot be nil", nil)
	}
	if task.RemoteID == "" {
		return store.NewStoreError("task", "upsert", "remote ID cannot be empty", nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	copied := *task
	if prev, ok := l.tasks[task.RemoteID]; ok && copied.DownloadedPath == "" && prev.DownloadedPath != "" {
		copied.DownloadedPath = prev.DownloadedPath
		copied.DownloadURL = prev.DownloadURL
		copied.DownloadSize = prev.DownloadSize
		copied.CreationID = prev.CreationID
	}

	l.tasks[copied.RemoteID] = &copied
	return l.persist()
}

// AllByStatus returns every task currently in one of the given statuses.
func (l *TaskLedger) AllByStatus(ctx context.Context, statuses ...domain.TaskStatus) ([]*domain.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wanted := make(map[domain.TaskStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var out []*domain.Task
	for _, task := range l.tasks {
		if wanted[task.Status] {
			copied := *task
			out = append(out, &copied)
		}
	}

	sortByCreation(out)
	return out, nil
}

// AllCreatedAfter returns every task created at or after the cutoff.
func (l *TaskLedger) AllCreatedAfter(ctx context.Context, cutoff time.Time) ([]*domain.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*domain.Task
	for _, task := range l.tasks {
		if !task.CreatedAt.Before(cutoff) {
			copied := *task
			out = append(out, &copied)
		}
	}

	sortByCreation(out)
	return out, nil
}

// All returns every known task.
func (l *TaskLedger) All(ctx context.Context) ([]*domain.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.Task, 0, len(l.tasks))
	for _, task := range l.tasks {
		copied := *task
		out = append(out, &copied)
	}

	sortByCreation(out)
	return out, nil
}

// Delete removes the record for the given remote ID.
func (l *TaskLedger) Delete(ctx context.Context, remoteID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.tasks[remoteID]; !ok {
		return nil
	}

	delete(l.tasks, remoteID)
	return l.persist()
}

// DeleteOlderThan removes every task created before the cutoff.
func (l *TaskLedger) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, task := range l.tasks {
		if task.CreatedAt.Before(cutoff) {
			delete(l.tasks, id)
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}

	if err := l.persist(); err != nil {
		return 0, err
	}

	l.logger.Info("retention sweep removed old tasks", "removed", removed, "cutoff", cutoff)
	return removed, nil
}

// load reads the ledger file into memory.
func (l *TaskLedger) load() error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read ledger %s: %v", store.ErrPersistence, l.path, err)
	}

	if len(data) == 0 {
		return nil
	}

	var tasks map[string]*domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return fmt.Errorf("%w: decode ledger %s: %v", store.ErrPersistence, l.path, err)
	}

	l.tasks = tasks
	return nil
}

// persist writes the full snapshot to a temp file in the ledger's directory
// and renames it into place. Callers hold l.mu.
func (l *TaskLedger) persist() error {
	data, err := json.MarshalIndent(l.tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode ledger: %v", store.ErrPersistence, err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create ledger dir %s: %v", store.ErrPersistence, dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp ledger file: %v", store.ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp ledger file: %v", store.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp ledger file: %v", store.ErrPersistence, err)
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace ledger file: %v", store.ErrPersistence, err)
	}

	return nil
}

// sortByCreation orders tasks oldest-first with the remote ID as tiebreaker
// so listings are stable across runs.
func sortByCreation(tasks []*domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].RemoteID < tasks[j].RemoteID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

// Compile-time interface check.
var _ store.TaskLedger = (*TaskLedger)(nil)
