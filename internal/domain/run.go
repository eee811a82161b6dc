package domain

import (
	"time"

	"github.com/google/uuid"
)

// PipelineRun — экземпляр выполнения pipeline.
//
// Run создаётся когда:
// - Пользователь запускает pipeline вручную (через API/CLI)
// - Scheduler создаёт run по расписанию
// - Внешнее событие публикует trigger в очередь
//
// Run становится неизменяемым после перехода в терминальный статус.
type PipelineRun struct {
	// ID — уникальный идентификатор run. Генерируется при создании.
	ID uuid.UUID `json:"id"`

	// Pipeline — имя pipeline-определения, которое выполняется.
	Pipeline string `json:"pipeline"`

	// TriggerSource — источник запуска: "api", "cli", "schedule", "event".
	TriggerSource string `json:"trigger_source"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Inputs — произвольные параметры запуска, передаются внешним jobs.
	Inputs map[string]any `json:"inputs,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения. Nil, пока run не терминален.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился неуспешно.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Для scheduled runs: "{schedule_id}_{next_due_at}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *PipelineRun) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *PipelineRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *PipelineRun) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *PipelineRun) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *PipelineRun) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// MarkPartiallyFailed переводит run в статус PARTIALLY_FAILED.
func (r *PipelineRun) MarkPartiallyFailed(err string) {
	now := time.Now()
	r.Status = RunStatusPartiallyFailed
	r.FinishedAt = &now
	r.Error = err
}

// MarkCancelling переводит run в статус CANCELLING.
// Внешние jobs ещё выполняются, оркестратор отменяет их best-effort.
func (r *PipelineRun) MarkCancelling() {
	r.Status = RunStatusCancelling
}

// MarkCancelled переводит run в статус CANCELLED.
func (r *PipelineRun) MarkCancelled() {
	now := time.Now()
	r.Status = RunStatusCancelled
	r.FinishedAt = &now
}
