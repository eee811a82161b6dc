package runner

import (
	"context"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// JobHandle — внешний идентификатор запущенного job.
type JobHandle string

// PollState — состояние внешнего job при опросе.
type PollState string

const (
	// StateRunning — job ещё выполняется.
	StateRunning PollState = "RUNNING"

	// StateSucceeded — job завершился успешно.
	StateSucceeded PollState = "SUCCEEDED"

	// StateFailed — job завершился с ошибкой.
	StateFailed PollState = "FAILED"
)

// PollResult — результат опроса внешнего job.
type PollResult struct {
	// State — текущее состояние job.
	State PollState

	// Reason — текст ошибки для StateFailed.
	Reason string

	// Class — классификация ошибки (transient/permanent) для StateFailed.
	Class domain.FailureClass
}

// JobRunner — клиент внешнего движка трансформаций.
//
// Start запускает job по имени и возвращает handle для опроса.
// Poll возвращает текущее состояние; для упавших jobs Reason и Class
// позволяют оркестратору решить, делать ли retry.
// Cancel — best-effort отмена выполняющегося job.
type JobRunner interface {
	Start(ctx context.Context, jobName string, params map[string]any) (JobHandle, error)
	Poll(ctx context.Context, handle JobHandle) (PollResult, error)
	Cancel(ctx context.Context, handle JobHandle) error
}

// CatalogRefresher — клиент сервиса schema discovery (crawler).
//
// Та же двухоперационная форма, что и у JobRunner, но запускаются
// crawler-проходы по области хранения, обновляющие каталог схем.
type CatalogRefresher interface {
	Start(ctx context.Context, crawlerName string, params map[string]any) (JobHandle, error)
	Poll(ctx context.Context, handle JobHandle) (PollResult, error)
	Cancel(ctx context.Context, handle JobHandle) error
}
