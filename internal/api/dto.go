package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Lakerunner/internal/domain"
)

// Pipeline DTOs

// PipelineResponse — ответ с определением pipeline.
type PipelineResponse struct {
	Name  string             `json:"name"`
	Tasks []PipelineTaskInfo `json:"tasks"`
}

// PipelineTaskInfo — задача в определении pipeline.
type PipelineTaskInfo struct {
	ID        string   `json:"id"`
	Stage     string   `json:"stage"`
	Kind      string   `json:"kind"`
	Job       string   `json:"job"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// PipelineFromDomain конвертирует domain.PipelineSpec в PipelineResponse.
func PipelineFromDomain(s *domain.PipelineSpec) PipelineResponse {
	tasks := make([]PipelineTaskInfo, len(s.Tasks))
	for i, def := range s.Tasks {
		tasks[i] = PipelineTaskInfo{
			ID:        def.ID,
			Stage:     string(def.Stage),
			Kind:      string(def.Kind),
			Job:       def.JobName,
			DependsOn: def.DependsOn,
		}
	}
	return PipelineResponse{Name: s.Name, Tasks: tasks}
}

// Run DTOs

// CreateRunRequest — запрос на запуск pipeline.
type CreateRunRequest struct {
	Inputs         map[string]any `json:"inputs,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID             uuid.UUID      `json:"id"`
	Pipeline       string         `json:"pipeline"`
	TriggerSource  string         `json:"trigger_source"`
	Status         string         `json:"status"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	Error          string         `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// RunFromDomain конвертирует domain.PipelineRun в RunResponse.
func RunFromDomain(r domain.PipelineRun) RunResponse {
	return RunResponse{
		ID:             r.ID,
		Pipeline:       r.Pipeline,
		TriggerSource:  r.TriggerSource,
		Status:         string(r.Status),
		Inputs:         r.Inputs,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      r.CreatedAt,
	}
}

// Task DTOs

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID         uuid.UUID  `json:"id"`
	RunID      uuid.UUID  `json:"run_id"`
	StepID     string     `json:"step_id"`
	Stage      string     `json:"stage"`
	Kind       string     `json:"kind"`
	JobName    string     `json:"job_name"`
	DependsOn  []string   `json:"depends_on,omitempty"`
	Attempt    int        `json:"attempt"`
	Status     string     `json:"status"`
	JobHandle  string     `json:"job_handle,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TaskFromDomain конвертирует domain.StageTask в TaskResponse.
func TaskFromDomain(t domain.StageTask) TaskResponse {
	return TaskResponse{
		ID:         t.ID,
		RunID:      t.RunID,
		StepID:     t.StepID,
		Stage:      string(t.Stage),
		Kind:       string(t.Kind),
		JobName:    t.JobName,
		DependsOn:  t.DependsOn,
		Attempt:    t.Attempt,
		Status:     string(t.Status),
		JobHandle:  t.JobHandle,
		Error:      t.LastError,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
		CreatedAt:  t.CreatedAt,
	}
}

// Ledger DTOs

// LedgerEntryResponse — ответ с записью ledger.
type LedgerEntryResponse struct {
	ID         uuid.UUID `json:"id"`
	RunID      uuid.UUID `json:"run_id"`
	TaskID     uuid.UUID `json:"task_id"`
	StepID     string    `json:"step_id"`
	Stage      string    `json:"stage"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Attempt    int       `json:"attempt"`
	JobHandle  string    `json:"job_handle,omitempty"`
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// LedgerEntryFromDomain конвертирует domain.RunLedgerEntry в LedgerEntryResponse.
func LedgerEntryFromDomain(e domain.RunLedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:         e.ID,
		RunID:      e.RunID,
		TaskID:     e.TaskID,
		StepID:     e.StepID,
		Stage:      string(e.Stage),
		Kind:       string(e.Kind),
		Status:     string(e.Status),
		Attempt:    e.Attempt,
		JobHandle:  e.JobHandle,
		Error:      e.Error,
		RecordedAt: e.RecordedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Inputs      map[string]any `json:"inputs,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string         `json:"name,omitempty"`
	CronExpr    *string         `json:"cron_expr,omitempty"`
	IntervalSec *int            `json:"interval_sec,omitempty"`
	Timezone    *string         `json:"timezone,omitempty"`
	Inputs      *map[string]any `json:"inputs,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID          uuid.UUID      `json:"id"`
	Pipeline    string         `json:"pipeline"`
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	NextDueAt   *time.Time     `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time     `json:"last_run_at,omitempty"`
	LastRunID   *uuid.UUID     `json:"last_run_id,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:          s.ID,
		Pipeline:    s.Pipeline,
		Name:        s.Name,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastRunID:   s.LastRunID,
		Inputs:      s.Inputs,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
