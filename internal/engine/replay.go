package engine

import (
	"sort"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// ReplayLedger восстанавливает статусы задач run из записей ledger.
//
// Записи проигрываются в порядке (attempt, recorded_at): статус задачи —
// статус её последней записи. Функция детерминирована и идемпотентна:
// повторное восстановление по тем же записям даёт тот же результат.
//
// Задачи без записей остаются PENDING — это задачи, которые оркестратор
// ещё не запускал (или которые навсегда заблокированы упавшей зависимостью).
func ReplayLedger(spec *domain.PipelineSpec, entries []domain.RunLedgerEntry) map[string]domain.TaskStatus {
	statuses := make(map[string]domain.TaskStatus, len(spec.Tasks))
	for i := range spec.Tasks {
		statuses[spec.Tasks[i].ID] = domain.TaskStatusPending
	}

	// Сортируем копию — вход не модифицируем
	ordered := make([]domain.RunLedgerEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Attempt != ordered[j].Attempt {
			return ordered[i].Attempt < ordered[j].Attempt
		}
		return ordered[i].RecordedAt.Before(ordered[j].RecordedAt)
	})

	for i := range ordered {
		e := &ordered[i]
		if _, known := statuses[e.StepID]; !known {
			// Запись о задаче, которой нет в определении — игнорируем
			// (определение могло измениться между версиями)
			continue
		}
		statuses[e.StepID] = e.Status
	}

	return statuses
}

// LastAttempts возвращает номер последней попытки каждой задачи
// по записям ledger. Задачи без записей отсутствуют в результате.
func LastAttempts(entries []domain.RunLedgerEntry) map[string]int {
	attempts := make(map[string]int)
	for i := range entries {
		e := &entries[i]
		if e.Attempt > attempts[e.StepID] {
			attempts[e.StepID] = e.Attempt
		}
	}
	return attempts
}
