package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// LedgerRepo — репозиторий append-only журнала выполнения.
//
// Таблица run_ledger не имеет UPDATE и DELETE операций: записи только
// добавляются. Уникальность (run_id, task_id, attempt, status) на уровне
// схемы делает повторный append той же записи безопасным — ON CONFLICT
// DO NOTHING превращает дубликат в no-op.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

// NewLedgerRepo создаёт новый LedgerRepo.
func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append добавляет запись в ledger. Идемпотентен по
// (run_id, task_id, attempt, status).
func (r *LedgerRepo) Append(ctx context.Context, entry *domain.RunLedgerEntry) error {
	query := `
		INSERT INTO run_ledger (id, run_id, task_id, step_id, stage, kind,
		                        status, attempt, job_handle, error, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, task_id, attempt, status) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.RunID,
		entry.TaskID,
		entry.StepID,
		entry.Stage,
		entry.Kind,
		entry.Status,
		entry.Attempt,
		nullString(entry.JobHandle),
		nullString(entry.Error),
		entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// ListByRun возвращает все записи ledger для run в порядке записи.
func (r *LedgerRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RunLedgerEntry, error) {
	query := `
		SELECT id, run_id, task_id, step_id, stage, kind, status, attempt,
		       job_handle, error, recorded_at
		FROM run_ledger
		WHERE run_id = $1
		ORDER BY recorded_at ASC, attempt ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list ledger by run: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// ListByStageStatus возвращает записи по стадии и статусу — срез
// истории для операционных запросов ("все упавшие curated-задачи").
func (r *LedgerRepo) ListByStageStatus(ctx context.Context, stage domain.Stage, status domain.TaskStatus, limit int) ([]domain.RunLedgerEntry, error) {
	query := `
		SELECT id, run_id, task_id, step_id, stage, kind, status, attempt,
		       job_handle, error, recorded_at
		FROM run_ledger
		WHERE stage = $1 AND status = $2
		ORDER BY recorded_at DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, stage, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger by stage/status: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *LedgerRepo) collect(rows pgx.Rows) ([]domain.RunLedgerEntry, error) {
	var entries []domain.RunLedgerEntry
	for rows.Next() {
		var e domain.RunLedgerEntry
		var jobHandle, entryError *string

		err := rows.Scan(
			&e.ID,
			&e.RunID,
			&e.TaskID,
			&e.StepID,
			&e.Stage,
			&e.Kind,
			&e.Status,
			&e.Attempt,
			&jobHandle,
			&entryError,
			&e.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}

		if jobHandle != nil {
			e.JobHandle = *jobHandle
		}
		if entryError != nil {
			e.Error = *entryError
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}
