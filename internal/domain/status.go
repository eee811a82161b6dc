package domain

// RunStatus — статус выполнения pipeline run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	                  ↘ PARTIALLY_FAILED
//	          (или) → CANCELLING → CANCELLED
type RunStatus string

const (
	// RunStatusPending — run создан, но оркестратор ещё не начал обработку.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все задачи run завершились успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — хотя бы одна задача упала окончательно
	// и ни одна независимая ветка не завершилась целиком.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusPartiallyFailed — часть независимых веток завершилась успешно,
	// часть упала. Для линейного pipeline схлопывается в FAILED.
	RunStatusPartiallyFailed RunStatus = "PARTIALLY_FAILED"

	// RunStatusCancelling — запрошена отмена, внешние jobs отменяются.
	RunStatusCancelling RunStatus = "CANCELLING"

	// RunStatusCancelled — run отменён.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusPartiallyFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskStatus — статус выполнения stage task.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ RETRYING → RUNNING (новая попытка)
//	                  ↘ FAILED (после всех retry или permanent failure)
//	PENDING → CANCELLED (при отмене run)
type TaskStatus string

const (
	// TaskStatusPending — задача ждёт выполнения зависимостей.
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusRunning — внешний job запущен, оркестратор опрашивает статус.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusRetrying — попытка упала transient-ошибкой,
	// задача ждёт backoff перед повторным запуском.
	TaskStatusRetrying TaskStatus = "RETRYING"

	// TaskStatusSucceeded — внешний job завершился успешно.
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"

	// TaskStatusFailed — задача упала окончательно (permanent или retry исчерпаны).
	TaskStatusFailed TaskStatus = "FAILED"

	// TaskStatusCancelled — задача отменена, не начав выполняться.
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// FailureClass — классификация ошибки внешнего job.
type FailureClass string

const (
	// FailureTransient — ошибка, которая может исчезнуть при retry
	// (timeout, throttling, временная недоступность).
	FailureTransient FailureClass = "TRANSIENT"

	// FailurePermanent — ошибка, которую retry не исправит
	// (невалидное определение job, отказ в доступе).
	FailurePermanent FailureClass = "PERMANENT"
)
