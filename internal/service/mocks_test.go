package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alexfaker/autoGenVideo/internal/config"
	"github.com/alexfaker/autoGenVideo/internal/domain"
	"github.com/alexfaker/autoGenVideo/internal/platform/vidu"
	"github.com/alexfaker/autoGenVideo/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memLedger is an in-memory TaskLedger for service tests.
type memLedger struct {
	mu        sync.Mutex
	tasks     map[string]*domain.Task
	upsertErr error
}

func newMemLedger() *memLedger {
	return &memLedger{tasks: make(map[string]*domain.Task)}
}

func (m *memLedger) Get(_ context.Context, remoteID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[remoteID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	clone := *task
	return &clone, nil
}

func (m *memLedger) Upsert(_ context.Context, task *domain.Task) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *task
	m.tasks[task.RemoteID] = &clone
	return nil
}

func (m *memLedger) AllByStatus(_ context.Context, statuses ...domain.TaskStatus) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, task := range m.tasks {
		for _, s := range statuses {
			if task.Status == s {
				clone := *task
				out = append(out, &clone)
				break
			}
		}
	}
	return out, nil
}

func (m *memLedger) AllCreatedAfter(_ context.Context, cutoff time.Time) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, task := range m.tasks {
		if !task.CreatedAt.Before(cutoff) {
			clone := *task
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memLedger) All(_ context.Context) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		clone := *task
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memLedger) Delete(_ context.Context, remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, remoteID)
	return nil
}

func (m *memLedger) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, task := range m.tasks {
		if task.CreatedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed, nil
}

// memSubLog is an in-memory SubmissionLog for service tests.
type memSubLog struct {
	mu        sync.Mutex
	records   []domain.SubmissionRecord
	appendErr error
}

func (m *memSubLog) Append(_ context.Context, rec domain.SubmissionRecord) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memSubLog) Records(_ context.Context) ([]domain.SubmissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SubmissionRecord(nil), m.records...), nil
}

// fakeClient scripts the remote API per test.
type fakeClient struct {
	submitFn  func(ctx context.Context, spec vidu.JobSpec) (string, error)
	pollFn    func(ctx context.Context, remoteID string) (vidu.StateSnapshot, error)
	historyFn func(ctx context.Context, page, pageSize int) (vidu.HistoryPage, error)

	mu           sync.Mutex
	submitCalls  int
	pollCalls    int
	historyCalls int
}

func (f *fakeClient) SubmitTask(ctx context.Context, spec vidu.JobSpec) (string, error) {
	f.mu.Lock()
	f.submitCalls++
	f.mu.Unlock()
	if f.submitFn == nil {
		return "task-1", nil
	}
	return f.submitFn(ctx, spec)
}

func (f *fakeClient) PollState(ctx context.Context, remoteID string) (vidu.StateSnapshot, error) {
	f.mu.Lock()
	f.pollCalls++
	f.mu.Unlock()
	if f.pollFn == nil {
		return vidu.StateSnapshot{RawState: "processing"}, nil
	}
	return f.pollFn(ctx, remoteID)
}

func (f *fakeClient) FetchHistoryPage(ctx context.Context, page, pageSize int) (vidu.HistoryPage, error) {
	f.mu.Lock()
	f.historyCalls++
	f.mu.Unlock()
	if f.historyFn == nil {
		return vidu.HistoryPage{}, nil
	}
	return f.historyFn(ctx, page, pageSize)
}

// fakeTransfer scripts uploads and downloads per test.
type fakeTransfer struct {
	uploadFn   func(ctx context.Context, imagePath string) (vidu.UploadResult, error)
	downloadFn func(ctx context.Context, videoURL, filename string) (string, int64, error)

	mu            sync.Mutex
	uploadCalls   int
	downloadCalls int
}

func (f *fakeTransfer) UploadImage(ctx context.Context, imagePath string) (vidu.UploadResult, error) {
	f.mu.Lock()
	f.uploadCalls++
	f.mu.Unlock()
	if f.uploadFn == nil {
		return vidu.UploadResult{AssetRef: "ssupload:?id=u1", UploadID: "u1", Width: 1920, Height: 1080}, nil
	}
	return f.uploadFn(ctx, imagePath)
}

func (f *fakeTransfer) DownloadVideo(ctx context.Context, videoURL, filename string) (string, int64, error) {
	f.mu.Lock()
	f.downloadCalls++
	f.mu.Unlock()
	if f.downloadFn == nil {
		return "/videos/" + filename, 2048, nil
	}
	return f.downloadFn(ctx, videoURL, filename)
}

// noPause removes inter-call delays in tests.
func noPause(context.Context, time.Duration, time.Duration) error { return nil }

func testBehavior() config.BehaviorConfig {
	return config.BehaviorConfig{
		MinDelay:          0,
		MaxDelay:          0,
		PollInterval:      time.Hour,
		ReconcileInterval: time.Hour,
		HistoryPageSize:   20,
		HistoryMaxPages:   5,
		RetentionDays:     30,
	}
}

func newTestEngine(t interface{ Fatalf(string, ...any) }, ledger store.TaskLedger, subLog store.SubmissionLog, client RemoteClient, transfer MediaTransfer) *Engine {
	engine, err := NewEngine(ledger, subLog, client, transfer,
		config.RemoteConfig{OffPeakHours: []int{0, 1, 2, 3, 4, 5, 6}},
		testBehavior(), testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	engine.pause = noPause
	return engine
}
