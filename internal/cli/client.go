package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// PipelineResponse — определение pipeline из API.
type PipelineResponse struct {
	Name  string             `json:"name"`
	Tasks []PipelineTaskInfo `json:"tasks"`
}

// PipelineTaskInfo — задача определения pipeline.
type PipelineTaskInfo struct {
	ID        string   `json:"id"`
	Stage     string   `json:"stage"`
	Kind      string   `json:"kind"`
	Job       string   `json:"job"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID             string         `json:"id"`
	Pipeline       string         `json:"pipeline"`
	TriggerSource  string         `json:"trigger_source"`
	Status         string         `json:"status"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	StartedAt      string         `json:"started_at,omitempty"`
	FinishedAt     string         `json:"finished_at,omitempty"`
	Error          string         `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

// TaskResponse — task из API.
type TaskResponse struct {
	ID         string   `json:"id"`
	RunID      string   `json:"run_id"`
	StepID     string   `json:"step_id"`
	Stage      string   `json:"stage"`
	Kind       string   `json:"kind"`
	JobName    string   `json:"job_name"`
	DependsOn  []string `json:"depends_on,omitempty"`
	Attempt    int      `json:"attempt"`
	Status     string   `json:"status"`
	JobHandle  string   `json:"job_handle,omitempty"`
	Error      string   `json:"error,omitempty"`
	StartedAt  string   `json:"started_at,omitempty"`
	FinishedAt string   `json:"finished_at,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

// LedgerEntryResponse — запись ledger из API.
type LedgerEntryResponse struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	TaskID     string `json:"task_id"`
	StepID     string `json:"step_id"`
	Stage      string `json:"stage"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	Attempt    int    `json:"attempt"`
	JobHandle  string `json:"job_handle,omitempty"`
	Error      string `json:"error,omitempty"`
	RecordedAt string `json:"recorded_at"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID          string         `json:"id"`
	Pipeline    string         `json:"pipeline"`
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	NextDueAt   string         `json:"next_due_at,omitempty"`
	LastRunAt   string         `json:"last_run_at,omitempty"`
	LastRunID   string         `json:"last_run_id,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// QueryResult — результат запроса к curated-данным из API.
type QueryResult struct {
	Query *StructuredQuery    `json:"query"`
	Rows  []map[string]string `json:"rows"`
}

// StructuredQuery — нормализованный запрос (зеркало domain.StructuredQuery).
type StructuredQuery struct {
	Metrics    []string      `json:"metrics"`
	GroupBy    string        `json:"group_by,omitempty"`
	Filters    []QueryFilter `json:"filters,omitempty"`
	OrderBy    string        `json:"order_by,omitempty"`
	Descending bool          `json:"descending,omitempty"`
	Limit      int           `json:"limit,omitempty"`
}

// QueryFilter — предикат фильтрации.
type QueryFilter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// --- Request types ---

// CreateRunRequest — запуск pipeline.
type CreateRunRequest struct {
	Inputs         map[string]any `json:"inputs,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// QueryRequest — запрос к curated-данным.
type QueryRequest struct {
	Text  string           `json:"text,omitempty"`
	Query *StructuredQuery `json:"query,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Inputs      map[string]any `json:"inputs,omitempty"`
}

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Pipeline string
	Status   string
	Limit    int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field,omitempty"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Lakerunner API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// waitClient — для синхронного запуска (wait=true): сервер держит
	// соединение до терминального статуса run
	waitClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		waitClient: &http.Client{
			Timeout: 3 * time.Minute,
		},
	}
}

// --- Pipelines ---

// ListPipelines возвращает загруженные определения pipelines.
func (c *Client) ListPipelines() ([]PipelineResponse, error) {
	var pipelines []PipelineResponse
	err := c.list("/api/v1/pipelines", nil, &pipelines)
	return pipelines, err
}

// GetPipeline возвращает определение pipeline по имени.
func (c *Client) GetPipeline(name string) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.get("/api/v1/pipelines/"+name, &pipeline)
	return &pipeline, err
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Pipeline != "" {
		params.Set("pipeline", opts.Pipeline)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// CreateRun запускает pipeline. С wait=true блокируется до
// терминального статуса.
func (c *Client) CreateRun(pipeline string, req CreateRunRequest, wait bool) (*RunResponse, error) {
	path := "/api/v1/pipelines/" + pipeline + "/runs"

	var run RunResponse
	if wait {
		err := c.doDataWith(c.waitClient, http.MethodPost, path+"?wait=true", req, &run)
		return &run, err
	}

	err := c.post(path, req, &run)
	return &run, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// CancelRun отменяет run.
func (c *Client) CancelRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/cancel", nil, &run)
	return &run, err
}

// ListTasks возвращает tasks для run.
func (c *Client) ListTasks(runID string) ([]TaskResponse, error) {
	var tasks []TaskResponse
	err := c.list("/api/v1/runs/"+runID+"/tasks", nil, &tasks)
	return tasks, err
}

// GetLedger возвращает ledger-записи run.
func (c *Client) GetLedger(runID string) ([]LedgerEntryResponse, error) {
	var entries []LedgerEntryResponse
	err := c.list("/api/v1/runs/"+runID+"/ledger", nil, &entries)
	return entries, err
}

// --- Query ---

// ExecuteQuery выполняет запрос к curated-данным.
func (c *Client) ExecuteQuery(req QueryRequest) (*QueryResult, error) {
	var result QueryResult
	err := c.post("/api/v1/query", req, &result)
	return &result, err
}

// --- Schedules ---

// ListSchedules возвращает schedules. Если pipeline не пустой — фильтрует.
func (c *Client) ListSchedules(pipeline string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if pipeline != "" {
		params.Set("pipeline", pipeline)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для pipeline.
func (c *Client) CreateSchedule(pipeline string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/pipelines/"+pipeline+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	return c.doDataWith(c.httpClient, method, path, body, result)
}

func (c *Client) doDataWith(httpClient *http.Client, method, path string, body any, result any) error {
	resp, err := c.doWith(httpClient, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	return c.doWith(c.httpClient, method, path, body)
}

func (c *Client) doWith(httpClient *http.Client, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	if er.Error.Field != "" {
		return fmt.Errorf("%s: %s (field: %s)", er.Error.Code, er.Error.Message, er.Error.Field)
	}
	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
