package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient — клиент внешнего движка поверх его REST API.
//
// Один и тот же движок обслуживает и transformation jobs, и crawlers —
// различается только ресурс в пути. NewJobClient и NewCrawlerClient
// создают клиентов для соответствующих ресурсов.
type HTTPClient struct {
	baseURL  string
	resource string // "jobs" или "crawlers"
	http     *http.Client
}

// NewJobClient создаёт JobRunner поверх HTTP API движка.
func NewJobClient(baseURL string) *HTTPClient {
	return newHTTPClient(baseURL, "jobs")
}

// NewCrawlerClient создаёт CatalogRefresher поверх HTTP API движка.
func NewCrawlerClient(baseURL string) *HTTPClient {
	return newHTTPClient(baseURL, "crawlers")
}

func newHTTPClient(baseURL, resource string) *HTTPClient {
	return &HTTPClient{
		baseURL:  baseURL,
		resource: resource,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// startResponse — ответ движка на запуск job.
type startResponse struct {
	RunID string `json:"run_id"`
}

// pollResponse — ответ движка на опрос статуса.
type pollResponse struct {
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// Start запускает внешний job и возвращает его handle.
func (c *HTTPClient) Start(ctx context.Context, jobName string, params map[string]any) (JobHandle, error) {
	body, err := json.Marshal(map[string]any{"params": params})
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/%s/%s/runs", c.baseURL, c.resource, jobName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("start %s %s: %w", c.resource, jobName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("start %s %s: %s", c.resource, jobName, readError(resp))
	}

	var sr startResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decode start response: %w", err)
	}
	if sr.RunID == "" {
		return "", fmt.Errorf("start %s %s: empty run_id in response", c.resource, jobName)
	}

	return JobHandle(sr.RunID), nil
}

// Poll возвращает текущее состояние внешнего job.
// Для упавших jobs классифицирует причину (transient/permanent).
func (c *HTTPClient) Poll(ctx context.Context, handle JobHandle) (PollResult, error) {
	url := fmt.Sprintf("%s/api/v1/%s/runs/%s", c.baseURL, c.resource, handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PollResult{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return PollResult{}, fmt.Errorf("poll %s run %s: %w", c.resource, handle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PollResult{}, fmt.Errorf("poll %s run %s: %s", c.resource, handle, readError(resp))
	}

	var pr pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return PollResult{}, fmt.Errorf("decode poll response: %w", err)
	}

	result := PollResult{Reason: pr.Reason}
	switch pr.State {
	case "RUNNING", "STARTING", "STOPPING":
		result.State = StateRunning
	case "SUCCEEDED":
		result.State = StateSucceeded
	case "FAILED", "TIMEOUT", "CANCELLED":
		result.State = StateFailed
		if result.Reason == "" {
			result.Reason = "job ended in state " + pr.State
		}
		result.Class = Classify(result.Reason)
	default:
		return PollResult{}, fmt.Errorf("poll %s run %s: unknown state %q", c.resource, handle, pr.State)
	}

	return result, nil
}

// Cancel отправляет запрос на отмену внешнего job. Best-effort:
// движок может уже завершить job к моменту доставки.
func (c *HTTPClient) Cancel(ctx context.Context, handle JobHandle) error {
	url := fmt.Sprintf("%s/api/v1/%s/runs/%s/cancel", c.baseURL, c.resource, handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cancel %s run %s: %w", c.resource, handle, err)
	}
	defer resp.Body.Close()

	// 409 — job уже терминален, отменять нечего
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("cancel %s run %s: %s", c.resource, handle, readError(resp))
	}
	return nil
}

// readError извлекает текст ошибки из тела ответа.
func readError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))
}

// интерфейсные гарантии
var (
	_ JobRunner        = (*HTTPClient)(nil)
	_ CatalogRefresher = (*HTTPClient)(nil)
)
