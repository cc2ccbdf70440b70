package jsonfile

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexfaker/autoGenVideo/internal/domain"
	"github.com/alexfaker/autoGenVideo/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(t *testing.T) (*TaskLedger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")
	ledger, err := NewTaskLedger(path, testLogger())
	require.NoError(t, err)
	return ledger, path
}

func mustTask(t *testing.T, id string) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(id, "/images/"+id+".png", "prompt for "+id, false)
	require.NoError(t, err)
	return task
}

func TestTaskLedger_UpsertAndGet(t *testing.T) {
	t.Parallel()
	ledger, path := newTestLedger(t)
	ctx := context.Background()

	task := mustTask(t, "task-1")
	require.NoError(t, ledger.Upsert(ctx, task))

	got, err := ledger.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, task.RemoteID, got.RemoteID)
	assert.Equal(t, domain.TaskStatusPending, got.Status)

	// Missing task yields ErrTaskNotFound.
	_, err = ledger.Get(ctx, "no-such-task")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	// The snapshot is persisted synchronously: a fresh ledger instance sees it.
	reloaded, err := NewTaskLedger(path, testLogger())
	require.NoError(t, err)
	got, err = reloaded.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, task.Prompt, got.Prompt)
}

func TestTaskLedger_UpsertPreservesDownloadedPath(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	task := mustTask(t, "task-1")
	require.NoError(t, task.UpdateStatus(domain.TaskStatusCompleted))
	task.MarkDownloaded("/videos/vidu-video-c1.mp4", "https://cdn.example/c1.mp4", 4096, "c1")
	require.NoError(t, ledger.Upsert(ctx, task))

	// A later poll writes a record without download bookkeeping; the ledger
	// must not erase the recorded path.
	stale := mustTask(t, "task-1")
	require.NoError(t, stale.UpdateStatus(domain.TaskStatusCompleted))
	require.NoError(t, ledger.Upsert(ctx, stale))

	got, err := ledger.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "/videos/vidu-video-c1.mp4", got.DownloadedPath)
	assert.Equal(t, "c1", got.CreationID)
	assert.Equal(t, int64(4096), got.DownloadSize)
}

func TestTaskLedger_AllByStatus(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	pending := mustTask(t, "task-pending")
	processing := mustTask(t, "task-processing")
	require.NoError(t, processing.UpdateStatus(domain.TaskStatusProcessing))
	done := mustTask(t, "task-done")
	require.NoError(t, done.UpdateStatus(domain.TaskStatusCompleted))

	for _, task := range []*domain.Task{pending, processing, done} {
		require.NoError(t, ledger.Upsert(ctx, task))
	}

	active, err := ledger.AllByStatus(ctx, domain.TaskStatusPending, domain.TaskStatusProcessing)
	require.NoError(t, err)
	require.Len(t, active, 2)

	ids := []string{active[0].RemoteID, active[1].RemoteID}
	assert.Contains(t, ids, "task-pending")
	assert.Contains(t, ids, "task-processing")
}

func TestTaskLedger_DeleteOlderThan(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	old := mustTask(t, "task-old")
	old.CreatedAt = time.Now().UTC().Add(-45 * 24 * time.Hour)
	recent := mustTask(t, "task-recent")

	require.NoError(t, ledger.Upsert(ctx, old))
	require.NoError(t, ledger.Upsert(ctx, recent))

	removed, err := ledger.DeleteOlderThan(ctx, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = ledger.Get(ctx, "task-old")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	_, err = ledger.Get(ctx, "task-recent")
	assert.NoError(t, err)
}

func TestTaskLedger_FileIsHumanInspectable(t *testing.T) {
	t.Parallel()
	ledger, path := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Upsert(ctx, mustTask(t, "task-1")))

	// The on-disk format is a plain JSON object keyed by remote ID.
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "task-1")
	assert.Equal(t, "pending", decoded["task-1"]["status"])

	// No temp files left behind after the atomic replace.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTaskLedger_CorruptFileRejected(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewTaskLedger(path, testLogger())
	assert.ErrorIs(t, err, store.ErrPersistence)
}
