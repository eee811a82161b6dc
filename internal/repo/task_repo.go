package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// TaskRepo — репозиторий для работы со stage tasks.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Create создаёт новый task.
func (r *TaskRepo) Create(ctx context.Context, task *domain.StageTask) error {
	query := `
		INSERT INTO stage_tasks (id, run_id, step_id, stage, kind, job_name,
		                         depends_on, attempt, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.RunID,
		task.StepID,
		task.Stage,
		task.Kind,
		task.JobName,
		task.DependsOn,
		task.Attempt,
		task.Status,
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID возвращает task по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.StageTask, error) {
	query := `
		SELECT id, run_id, step_id, stage, kind, job_name, depends_on, attempt,
		       status, job_handle, last_error, started_at, finished_at, created_at
		FROM stage_tasks
		WHERE id = $1
	`
	return r.scanTask(r.pool.QueryRow(ctx, query, id))
}

// ListByRunID возвращает все tasks для run.
func (r *TaskRepo) ListByRunID(ctx context.Context, runID uuid.UUID) ([]domain.StageTask, error) {
	query := `
		SELECT id, run_id, step_id, stage, kind, job_name, depends_on, attempt,
		       status, job_handle, last_error, started_at, finished_at, created_at
		FROM stage_tasks
		WHERE run_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by run_id: %w", err)
	}
	defer rows.Close()

	var tasks []domain.StageTask
	for rows.Next() {
		task, err := r.scanTaskFromRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// GetByRunAndStepID возвращает task по run_id и step_id.
func (r *TaskRepo) GetByRunAndStepID(ctx context.Context, runID uuid.UUID, stepID string) (*domain.StageTask, error) {
	query := `
		SELECT id, run_id, step_id, stage, kind, job_name, depends_on, attempt,
		       status, job_handle, last_error, started_at, finished_at, created_at
		FROM stage_tasks
		WHERE run_id = $1 AND step_id = $2
	`
	return r.scanTask(r.pool.QueryRow(ctx, query, runID, stepID))
}

// Update обновляет task.
func (r *TaskRepo) Update(ctx context.Context, task *domain.StageTask) error {
	query := `
		UPDATE stage_tasks
		SET attempt = $2, status = $3, job_handle = $4, last_error = $5,
		    started_at = $6, finished_at = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Attempt,
		task.Status,
		nullString(task.JobHandle),
		nullString(task.LastError),
		task.StartedAt,
		task.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUnfinished возвращает tasks в нетерминальных статусах для run.
func (r *TaskRepo) ListUnfinished(ctx context.Context, runID uuid.UUID) ([]domain.StageTask, error) {
	query := `
		SELECT id, run_id, step_id, stage, kind, job_name, depends_on, attempt,
		       status, job_handle, last_error, started_at, finished_at, created_at
		FROM stage_tasks
		WHERE run_id = $1
		  AND status IN ('PENDING', 'RUNNING', 'RETRYING')
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list unfinished tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.StageTask
	for rows.Next() {
		task, err := r.scanTaskFromRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// CountByRunAndStatus возвращает количество tasks по статусу для run.
func (r *TaskRepo) CountByRunAndStatus(ctx context.Context, runID uuid.UUID, status domain.TaskStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM stage_tasks WHERE run_id = $1 AND status = $2
	`, runID, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

// --- Helpers ---

func (r *TaskRepo) scanTask(row pgx.Row) (*domain.StageTask, error) {
	var task domain.StageTask
	var jobHandle, lastError *string

	err := row.Scan(
		&task.ID,
		&task.RunID,
		&task.StepID,
		&task.Stage,
		&task.Kind,
		&task.JobName,
		&task.DependsOn,
		&task.Attempt,
		&task.Status,
		&jobHandle,
		&lastError,
		&task.StartedAt,
		&task.FinishedAt,
		&task.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if jobHandle != nil {
		task.JobHandle = *jobHandle
	}
	if lastError != nil {
		task.LastError = *lastError
	}

	return &task, nil
}

func (r *TaskRepo) scanTaskFromRows(rows pgx.Rows) (*domain.StageTask, error) {
	var task domain.StageTask
	var jobHandle, lastError *string

	err := rows.Scan(
		&task.ID,
		&task.RunID,
		&task.StepID,
		&task.Stage,
		&task.Kind,
		&task.JobName,
		&task.DependsOn,
		&task.Attempt,
		&task.Status,
		&jobHandle,
		&lastError,
		&task.StartedAt,
		&task.FinishedAt,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if jobHandle != nil {
		task.JobHandle = *jobHandle
	}
	if lastError != nil {
		task.LastError = *lastError
	}

	return &task, nil
}
