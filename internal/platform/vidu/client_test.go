package vidu

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexfaker/autoGenVideo/internal/config"
)

type staticTokens struct {
	token string
}

func (s staticTokens) Token() (string, bool) {
	return s.token, s.token != ""
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, server *httptest.Server, maxRetries int) *Client {
	t.Helper()
	cfg := config.RemoteConfig{
		BaseURL:        server.URL,
		APIBaseURL:     server.URL,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     maxRetries,
	}
	client, err := NewClient(cfg, staticTokens{token: "session-token"}, testLogger())
	require.NoError(t, err)
	client.retryDelay = func(int) time.Duration { return 0 }
	return client
}

func TestSubmitTask(t *testing.T) {
	t.Parallel()

	var captured createTaskRequest
	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/vidu/v1/tasks", r.URL.Path)
		assert.Equal(t, "web", r.Header.Get("X-Platform"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		if c, err := r.Cookie("JWT"); err == nil {
			gotCookie = c.Value
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]string{"id": "task-123"})
	}))
	defer server.Close()

	client := newTestClient(t, server, 0)
	id, err := client.SubmitTask(context.Background(), JobSpec{
		AssetRef:    "ssupload:?id=upload-1",
		Prompt:      "a cat walks",
		Width:       720,
		Height:      1122,
		AspectRatio: "720:1122",
		OffPeak:     true,
	})

	require.NoError(t, err)
	assert.Equal(t, "task-123", id)
	assert.Equal(t, "session-token", gotCookie)

	require.Len(t, captured.Input.Prompts, 2)
	assert.Equal(t, "text", captured.Input.Prompts[0].Type)
	assert.Equal(t, "[@图1]a cat walks", captured.Input.Prompts[0].Content)
	assert.Equal(t, []string{"ssupload:?id=upload-1"}, captured.Input.Prompts[1].SrcImgs)
	require.NotNil(t, captured.Input.Prompts[1].SelectedRegion)
	assert.Equal(t, 1122, captured.Input.Prompts[1].SelectedRegion.BottomRight.Y)

	assert.Equal(t, "nopeak", captured.Settings.ScheduleMode)
	assert.Equal(t, 5, captured.Settings.Duration)
	assert.Equal(t, "1080p", captured.Settings.Resolution)
	assert.Equal(t, "3.0", captured.Settings.ModelVersion)
	assert.Equal(t, "720:1122", captured.Settings.AspectRatio)
	assert.False(t, captured.Settings.UseTrial)
}

func TestSubmitTaskNormalSchedule(t *testing.T) {
	t.Parallel()

	var captured createTaskRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]string{"id": "task-9"})
	}))
	defer server.Close()

	client := newTestClient(t, server, 0)
	_, err := client.SubmitTask(context.Background(), JobSpec{
		AssetRef: "ssupload:?id=upload-2",
		Prompt:   "p",
	})

	require.NoError(t, err)
	assert.Equal(t, "normal", captured.Settings.ScheduleMode)
	// Unknown dimensions still produce a region with the default bounds.
	require.NotNil(t, captured.Input.Prompts[1].SelectedRegion)
	assert.Equal(t, 720, captured.Input.Prompts[1].SelectedRegion.BottomRight.X)
}

func TestSubmitTaskEmptyAssetRef(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := newTestClient(t, server, 0)
	_, err := client.SubmitTask(context.Background(), JobSpec{Prompt: "p"})

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, RemoteClient, re.Kind)
}

func TestPollState(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vidu/v1/tasks/state", r.URL.Path)
		assert.Equal(t, "task-5", r.URL.Query().Get("id"))
		json.NewEncoder(w).Encode(map[string]any{"state": "processing", "estimated_time_left": 120})
	}))
	defer server.Close()

	client := newTestClient(t, server, 0)
	snapshot, err := client.PollState(context.Background(), "task-5")

	require.NoError(t, err)
	assert.Equal(t, "processing", snapshot.RawState)
	assert.Equal(t, 120, snapshot.EstimatedTimeLeft)
}

func TestFetchHistoryPageQuery(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vidu/v1/tasks/history/me", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("pager.page"))
		assert.Equal(t, "20", r.URL.Query().Get("pager.pagesz"))
		types := r.URL.Query()["types"]
		assert.Len(t, types, 8)
		assert.Contains(t, types, "character2video")
		json.NewEncoder(w).Encode(map[string]any{
			"total": 3,
			"tasks": []map[string]any{
				{"id": "h1", "state": "success", "creations": []map[string]any{
					{"id": "c1", "uri": "https://cdn/video.mp4"},
				}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server, 0)
	page, err := client.FetchHistoryPage(context.Background(), 2, 20)

	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "h1", page.Items[0].ID)
	require.Len(t, page.Items[0].Creations, 1)
	assert.Equal(t, "https://cdn/video.mp4", page.Items[0].Creations[0].PreferredURL())
}

func TestRetryOnRateLimit(t *testing.T) {
	t.Parallel()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"state": "success"})
	}))
	defer server.Close()

	client := newTestClient(t, server, 3)
	snapshot, err := client.PollState(context.Background(), "task-1")

	require.NoError(t, err)
	assert.Equal(t, "success", snapshot.RawState)
	assert.Equal(t, 3, calls)
}

func TestRetriesExhausted(t *testing.T) {
	t.Parallel()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server, 2)
	_, err := client.PollState(context.Background(), "task-1")

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, RemoteServer, re.Kind)
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
}

func TestUnauthorizedNotRetried(t *testing.T) {
	t.Parallel()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "token expired"})
	}))
	defer server.Close()

	client := newTestClient(t, server, 3)
	_, err := client.PollState(context.Background(), "task-1")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsUnauthorized(err))

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "token expired", re.Message)
}

func TestErrorMessageBounded(t *testing.T) {
	t.Parallel()

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": string(long)})
	}))
	defer server.Close()

	client := newTestClient(t, server, 0)
	_, err := client.PollState(context.Background(), "task-1")

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.LessOrEqual(t, len(re.Message), 210)
}
