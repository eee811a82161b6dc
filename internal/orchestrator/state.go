package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Lakerunner/internal/domain"
	"github.com/shaiso/Lakerunner/internal/engine"
)

// RunState — состояние выполнения одного run в памяти.
//
// RunState создаётся, когда Orchestrator начинает обработку run,
// и удаляется при переходе run в терминальный статус. Это кэш поверх
// БД и ledger, не источник истины: после рестарта состояние целиком
// восстанавливается из task-строк и ledger-записей.
type RunState struct {
	// Run — данные run из БД.
	Run *domain.PipelineRun

	// tasks — tasks по stepID.
	tasks map[string]*domain.StageTask

	// statuses — текущий статус каждого шага (stepID → status).
	statuses map[string]domain.TaskStatus

	// retryAt — не раньше какого времени можно делать следующую
	// попытку шага в статусе RETRYING.
	retryAt map[string]time.Time

	mu sync.RWMutex
}

// NewRunState создаёт RunState с PENDING-статусами для всех шагов графа.
func NewRunState(run *domain.PipelineRun, graph *engine.Graph) *RunState {
	statuses := make(map[string]domain.TaskStatus, graph.Size())
	for id := range graph.Nodes {
		statuses[id] = domain.TaskStatusPending
	}

	return &RunState{
		Run:      run,
		tasks:    make(map[string]*domain.StageTask, graph.Size()),
		statuses: statuses,
		retryAt:  make(map[string]time.Time),
	}
}

// RunID возвращает ID run.
func (s *RunState) RunID() uuid.UUID {
	return s.Run.ID
}

// Statuses возвращает копию текущих статусов шагов.
func (s *RunState) Statuses() map[string]domain.TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.TaskStatus, len(s.statuses))
	for id, st := range s.statuses {
		out[id] = st
	}
	return out
}

// Task возвращает task шага.
func (s *RunState) Task(stepID string) *domain.StageTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks[stepID]
}

// SetTask сохраняет task и синхронизирует статус шага.
func (s *RunState) SetTask(task *domain.StageTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.StepID] = task
	s.statuses[task.StepID] = task.Status
}

// SyncStatus обновляет статус шага по текущему состоянию task.
func (s *RunState) SyncStatus(task *domain.StageTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[task.StepID] = task.Status
}

// ScheduleRetry запоминает время следующей попытки шага.
func (s *RunState) ScheduleRetry(stepID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryAt[stepID] = at
}

// RetryDue возвращает шаги в статусе RETRYING, чьё время пришло.
func (s *RunState) RetryDue(now time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []string
	for stepID, st := range s.statuses {
		if st != domain.TaskStatusRetrying {
			continue
		}
		if at, ok := s.retryAt[stepID]; !ok || !now.Before(at) {
			due = append(due, stepID)
		}
	}
	return due
}

// RunningSteps возвращает шаги в статусе RUNNING.
func (s *RunState) RunningSteps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var running []string
	for stepID, st := range s.statuses {
		if st == domain.TaskStatusRunning {
			running = append(running, stepID)
		}
	}
	return running
}

// RestoreFromTasks восстанавливает состояние из task-строк (после рестарта).
func (s *RunState) RestoreFromTasks(tasks []domain.StageTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range tasks {
		task := &tasks[i]
		s.tasks[task.StepID] = task
		s.statuses[task.StepID] = task.Status

		// RETRYING-шаги после рестарта готовы к попытке сразу:
		// момент исходного backoff утерян вместе с процессом
		if task.Status == domain.TaskStatusRetrying {
			s.retryAt[task.StepID] = time.Time{}
		}
	}
}

// ReconcileLedger сверяет статусы с ledger — единственным надёжным
// источником истории. Для шагов, у которых есть ledger-записи,
// статус из replay перекрывает статус task-строки.
func (s *RunState) ReconcileLedger(spec *domain.PipelineSpec, entries []domain.RunLedgerEntry) {
	if len(entries) == 0 {
		return
	}

	replayed := engine.ReplayLedger(spec, entries)

	recorded := make(map[string]bool)
	for i := range entries {
		recorded[entries[i].StepID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for stepID, st := range replayed {
		if !recorded[stepID] {
			continue
		}
		s.statuses[stepID] = st
		if task, ok := s.tasks[stepID]; ok {
			task.Status = st
		}
	}
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RunStats{Total: len(s.statuses)}
	for _, st := range s.statuses {
		switch st {
		case domain.TaskStatusSucceeded:
			stats.Succeeded++
		case domain.TaskStatusFailed:
			stats.Failed++
		case domain.TaskStatusRunning, domain.TaskStatusRetrying:
			stats.InFlight++
		case domain.TaskStatusCancelled:
			stats.Cancelled++
		default:
			stats.Pending++
		}
	}
	return stats
}

// RunStats — статистика выполнения run.
type RunStats struct {
	Total     int
	Succeeded int
	Failed    int
	InFlight  int
	Cancelled int
	Pending   int
}
