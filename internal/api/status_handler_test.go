package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexfaker/autoGenVideo/internal/config"
	"github.com/alexfaker/autoGenVideo/internal/domain"
	"github.com/alexfaker/autoGenVideo/internal/platform/jsonfile"
	"github.com/alexfaker/autoGenVideo/internal/platform/vidu"
	"github.com/alexfaker/autoGenVideo/internal/service"
)

type stubClient struct{}

func (stubClient) SubmitTask(context.Context, vidu.JobSpec) (string, error) {
	return "", nil
}

func (stubClient) PollState(context.Context, string) (vidu.StateSnapshot, error) {
	return vidu.StateSnapshot{}, nil
}

func (stubClient) FetchHistoryPage(context.Context, int, int) (vidu.HistoryPage, error) {
	return vidu.HistoryPage{}, nil
}

type stubTransfer struct{}

func (stubTransfer) UploadImage(context.Context, string) (vidu.UploadResult, error) {
	return vidu.UploadResult{}, nil
}

func (stubTransfer) DownloadVideo(context.Context, string, string) (string, int64, error) {
	return "", 0, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *jsonfile.TaskLedger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	ledger, err := jsonfile.NewTaskLedger(filepath.Join(dir, "tasks.json"), logger)
	require.NoError(t, err)
	subLog, err := jsonfile.NewSubmissionLog(filepath.Join(dir, "submissions.csv"), logger)
	require.NoError(t, err)

	engine, err := service.NewEngine(ledger, subLog, stubClient{}, stubTransfer{},
		config.RemoteConfig{}, config.BehaviorConfig{}, logger)
	require.NoError(t, err)

	handler, err := NewStatusHandler(ledger, engine, logger)
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)
	return server, ledger
}

func seedTask(t *testing.T, ledger *jsonfile.TaskLedger, id string, status domain.TaskStatus) {
	t.Helper()
	task, err := domain.NewTask(id, "/in/"+id+".png", "prompt", false)
	require.NoError(t, err)
	if status != domain.TaskStatusPending {
		require.NoError(t, task.UpdateStatus(status))
	}
	require.NoError(t, ledger.Upsert(context.Background(), task))
}

func TestGetHealth(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestListTasks(t *testing.T) {
	t.Parallel()

	server, ledger := newTestServer(t)
	seedTask(t, ledger, "task-1", domain.TaskStatusPending)
	seedTask(t, ledger, "task-2", domain.TaskStatusCompleted)

	resp, err := http.Get(server.URL + "/tasks")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tasks []domain.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tasks))
	assert.Len(t, tasks, 2)
}

func TestGetTask(t *testing.T) {
	t.Parallel()

	server, ledger := newTestServer(t)
	seedTask(t, ledger, "task-1", domain.TaskStatusProcessing)

	resp, err := http.Get(server.URL + "/tasks/task-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var task domain.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	assert.Equal(t, "task-1", task.RemoteID)
	assert.Equal(t, domain.TaskStatusProcessing, task.Status)
}

func TestGetTaskNotFound(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/tasks/absent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Task not found", body.Error)
}

func TestGetReport(t *testing.T) {
	t.Parallel()

	server, ledger := newTestServer(t)
	seedTask(t, ledger, "task-1", domain.TaskStatusCompleted)
	seedTask(t, ledger, "task-2", domain.TaskStatusFailed)

	resp, err := http.Get(server.URL + "/report")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report service.StatusReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 2, report.Total)
	assert.InDelta(t, 50.0, report.CompletionRate, 0.001)
}
