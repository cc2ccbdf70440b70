package vidu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/alexfaker/autoGenVideo/internal/config"
)

// Service endpoints, relative to the API base URL.
const (
	endpointCreateTask   = "/vidu/v1/tasks"
	endpointTaskState    = "/vidu/v1/tasks/state"
	endpointTasksHistory = "/vidu/v1/tasks/history/me"
)

// historyTaskTypes lists every task type the history feed is queried for.
var historyTaskTypes = []string{
	"img2video",
	"character2video",
	"text2video",
	"upscale",
	"extend",
	"headtailimg2video",
	"controlnet",
	"material2video",
}

// Fixed submission defaults the service expects.
const (
	defaultStyle        = "general"
	defaultDuration     = 5
	defaultResolution   = "1080p"
	defaultModelVersion = "3.0"
	defaultTaskType     = "character2video"
)

// TokenSource supplies the current session token for outgoing requests.
// The second return value is false when no valid token is available.
type TokenSource interface {
	Token() (string, bool)
}

// Client talks to the remote task API. It owns all transport concerns:
// timeouts, rate-limit retries with backoff, browser-profile headers, and
// error classification. Callers never see raw payloads on failure.
type Client struct {
	httpClient *http.Client
	cfg        config.RemoteConfig
	tokens     TokenSource
	logger     *slog.Logger

	// retryDelay computes the pause before retry attempt n (1-based).
	// Overridable in tests.
	retryDelay func(attempt int) time.Duration
}

// NewClient creates a remote task client from the given configuration.
func NewClient(cfg config.RemoteConfig, tokens TokenSource, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("API base URL cannot be empty")
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		tokens:     tokens,
		logger:     logger.With("component", "vidu_client"),
		retryDelay: defaultRetryDelay,
	}, nil
}

// defaultRetryDelay is an exponential backoff with jitter: 1s, 2s, 4s, ...
// plus up to 500ms of noise.
func defaultRetryDelay(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
	return base + jitter
}

// SubmitTask submits a new video generation job and returns the
// remote-assigned task ID.
func (c *Client) SubmitTask(ctx context.Context, spec JobSpec) (string, error) {
	if spec.AssetRef == "" {
		return "", &RemoteError{Op: "submit", Kind: RemoteClient, Message: "asset reference cannot be empty"}
	}

	scheduleMode := "normal"
	if spec.OffPeak {
		scheduleMode = "nopeak"
	}

	// The service expects the region even when dimensions are unknown.
	width, height := spec.Width, spec.Height
	if width <= 0 {
		width = 720
	}
	if height <= 0 {
		height = 1122
	}

	payload := createTaskRequest{
		Input: taskInput{
			Prompts: []promptEntry{
				{
					Type:    "text",
					Content: "[@图1]" + spec.Prompt,
				},
				{
					Type:    "image",
					Content: spec.AssetRef,
					SrcImgs: []string{spec.AssetRef},
					SelectedRegion: &selectedRegion{
						TopLeft:     point{X: 0, Y: 0},
						BottomRight: point{X: width, Y: height},
					},
					Name: "图1",
				},
			},
			EditorMode: "normal",
			Enhance:    true,
		},
		Type: defaultTaskType,
		Settings: taskSettings{
			Style:             defaultStyle,
			Duration:          defaultDuration,
			Resolution:        defaultResolution,
			MovementAmplitude: "auto",
			AspectRatio:       spec.AspectRatio,
			SampleCount:       1,
			ScheduleMode:      scheduleMode,
			ModelVersion:      defaultModelVersion,
			UseTrial:          false,
		},
	}

	body, err := c.doJSON(ctx, http.MethodPost, endpointCreateTask, nil, payload, "submit")
	if err != nil {
		return "", err
	}

	var resp createTaskResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &RemoteError{Op: "submit", Kind: RemoteServer, Message: "unparsable submission response", Err: err}
	}
	if resp.ID == "" {
		return "", &RemoteError{Op: "submit", Kind: RemoteServer, Message: "submission response missing task ID"}
	}

	c.logger.Info("task submitted", "task_id", resp.ID, "schedule_mode", scheduleMode)
	return resp.ID, nil
}

// PollState fetches the current remote state of one task.
func (c *Client) PollState(ctx context.Context, remoteID string) (StateSnapshot, error) {
	if remoteID == "" {
		return StateSnapshot{}, &RemoteError{Op: "poll_state", Kind: RemoteClient, Message: "task ID cannot be empty"}
	}

	query := url.Values{}
	query.Set("id", remoteID)

	body, err := c.doJSON(ctx, http.MethodGet, endpointTaskState, query, nil, "poll_state")
	if err != nil {
		return StateSnapshot{}, err
	}

	var snapshot StateSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return StateSnapshot{}, &RemoteError{Op: "poll_state", Kind: RemoteServer, Message: "unparsable state response", Err: err}
	}

	return snapshot, nil
}

// FetchHistoryPage fetches one page of the account's task history.
func (c *Client) FetchHistoryPage(ctx context.Context, page, pageSize int) (HistoryPage, error) {
	query := url.Values{}
	query.Set("pager.page", fmt.Sprintf("%d", page))
	query.Set("pager.pagesz", fmt.Sprintf("%d", pageSize))
	query.Set("scenes", "")
	for _, t := range historyTaskTypes {
		query.Add("types", t)
	}

	body, err := c.doJSON(ctx, http.MethodGet, endpointTasksHistory, query, nil, "fetch_history")
	if err != nil {
		return HistoryPage{}, err
	}

	var pageResp HistoryPage
	if err := json.Unmarshal(body, &pageResp); err != nil {
		return HistoryPage{}, &RemoteError{Op: "fetch_history", Kind: RemoteServer, Message: "unparsable history response", Err: err}
	}

	return pageResp, nil
}

// doJSON performs one API call with bounded retries. Rate-limited and server
// responses are retried with backoff up to MaxRetries; everything else
// surfaces immediately as a classified RemoteError.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload any, op string) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return nil, &RemoteError{Op: op, Kind: RemoteClient, Message: "cannot encode request", Err: err}
		}
	}

	attempts := c.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := c.retryDelay(attempt - 1)
			c.logger.Warn("retrying remote call",
				"op", op, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, &RemoteError{Op: op, Kind: RemoteClient, Message: "cancelled", Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		body, err := c.doOnce(ctx, method, path, query, encoded, op)
		if err == nil {
			return body, nil
		}

		lastErr = err
		var re *RemoteError
		if errors.As(err, &re) && (re.Kind == RemoteRateLimited || re.Kind == RemoteServer) {
			continue
		}
		return nil, err
	}

	return nil, lastErr
}

// doOnce performs a single HTTP round trip and classifies the outcome.
func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body []byte, op string) ([]byte, error) {
	target := c.cfg.APIBaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &RemoteError{Op: op, Kind: RemoteClient, Message: "cannot build request", Err: err}
	}

	c.applyHeaders(req, body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Op: op, Kind: RemoteServer, Message: "transport failure", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Op: op, Kind: RemoteServer, StatusCode: resp.StatusCode, Message: "cannot read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{
			Op:         op,
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    serviceMessage(data),
		}
	}

	return data, nil
}

// applyHeaders attaches the browser-profile headers, a correlation ID, and
// the session cookie to an outgoing request.
func (c *Client) applyHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "zh")
	req.Header.Set("Origin", c.cfg.BaseURL)
	req.Header.Set("Referer", c.cfg.BaseURL+"/")
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("X-App-Version", "-")
	req.Header.Set("X-Platform", "web")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.AddCookie(&http.Cookie{Name: "JWT", Value: token})
		}
	}
}

// serviceMessage extracts the service's error message from a failure body,
// bounded so raw payloads never reach callers.
func serviceMessage(data []byte) string {
	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Message != "" {
		return truncate(er.Message, 200)
	}
	return "request rejected"
}

// browserUserAgent matches the web client the service expects.
const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// truncate bounds s to at most n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
