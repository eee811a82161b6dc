package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunLedgerEntry — неизменяемая запись аудита о задаче run.
//
// Запись добавляется каждый раз, когда task достигает стабильного
// статуса (запущен, завершён, ушёл в retry, отменён). Ledger
// append-only: записи никогда не изменяются и не удаляются —
// это единственный надёжный источник истории выполнения,
// по которому восстанавливается состояние run после рестарта.
type RunLedgerEntry struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// RunID — run, к которому относится запись.
	RunID uuid.UUID `json:"run_id"`

	// TaskID — task, к которому относится запись.
	TaskID uuid.UUID `json:"task_id"`

	// StepID — ID задачи из PipelineSpec.
	StepID string `json:"step_id"`

	// Stage — стадия задачи.
	Stage Stage `json:"stage"`

	// Kind — вид задачи.
	Kind TaskKind `json:"kind"`

	// Status — статус task на момент записи.
	Status TaskStatus `json:"status"`

	// Attempt — номер попытки, к которой относится запись.
	Attempt int `json:"attempt"`

	// JobHandle — внешний идентификатор job (если попытка была запущена).
	JobHandle string `json:"job_handle,omitempty"`

	// Error — текст ошибки (для FAILED и RETRYING записей).
	Error string `json:"error,omitempty"`

	// RecordedAt — время записи.
	RecordedAt time.Time `json:"recorded_at"`
}

// NewLedgerEntry создаёт запись ledger из текущего состояния task.
func NewLedgerEntry(t *StageTask) *RunLedgerEntry {
	return &RunLedgerEntry{
		ID:         uuid.New(),
		RunID:      t.RunID,
		TaskID:     t.ID,
		StepID:     t.StepID,
		Stage:      t.Stage,
		Kind:       t.Kind,
		Status:     t.Status,
		Attempt:    t.Attempt,
		JobHandle:  t.JobHandle,
		Error:      t.LastError,
		RecordedAt: time.Now(),
	}
}
