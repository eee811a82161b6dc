package domain

import (
	"time"

	"github.com/google/uuid"
)

// StageTask — единица работы внутри run: один запуск внешнего
// transform- или discover-job для конкретной стадии.
//
// Tasks материализуются оркестратором из PipelineSpec при старте run.
// Task ID стабилен между попытками; Attempt увеличивается при retry.
type StageTask struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// StepID — ID задачи из PipelineSpec (соответствует TaskDef.ID).
	StepID string `json:"step_id"`

	// Stage — целевая стадия задачи.
	Stage Stage `json:"stage"`

	// Kind — вид задачи: transform или discover.
	Kind TaskKind `json:"kind"`

	// JobName — имя внешнего job.
	JobName string `json:"job_name"`

	// DependsOn — StepID задач, которые должны быть Succeeded до запуска.
	DependsOn []string `json:"depends_on,omitempty"`

	// Attempt — номер попытки (начиная с 1, после первого запуска).
	Attempt int `json:"attempt"`

	// Status — текущий статус task.
	Status TaskStatus `json:"status"`

	// JobHandle — внешний идентификатор запущенного job (run id движка).
	// Обновляется при каждой попытке.
	JobHandle string `json:"job_handle,omitempty"`

	// LastError — текст последней ошибки.
	LastError string `json:"last_error,omitempty"`

	// StartedAt — время начала текущей попытки.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время терминального завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания task.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
func (t *StageTask) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если task завершён.
func (t *StageTask) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning переводит task в статус RUNNING с новым job handle.
// Attempt увеличивается — каждая попытка получает свою ledger-запись.
func (t *StageTask) MarkRunning(handle string) {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.JobHandle = handle
	t.StartedAt = &now
	t.Attempt++
}

// MarkSucceeded переводит task в статус SUCCEEDED.
func (t *StageTask) MarkSucceeded() {
	now := time.Now()
	t.Status = TaskStatusSucceeded
	t.FinishedAt = &now
}

// MarkFailed переводит task в терминальный статус FAILED.
func (t *StageTask) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.LastError = err
}

// MarkRetrying переводит task в статус RETRYING после transient-ошибки.
// Следующий MarkRunning начнёт новую попытку.
func (t *StageTask) MarkRetrying(err string) {
	t.Status = TaskStatusRetrying
	t.LastError = err
	t.StartedAt = nil
	t.FinishedAt = nil
}

// MarkCancelled переводит task в статус CANCELLED.
func (t *StageTask) MarkCancelled() {
	now := time.Now()
	t.Status = TaskStatusCancelled
	t.FinishedAt = &now
}

// CanRetry проверяет, можно ли сделать ещё одну попытку.
func (t *StageTask) CanRetry(maxAttempts int) bool {
	return t.Attempt < maxAttempts
}
