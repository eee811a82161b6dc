package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Lakerunner/internal/domain"
	"github.com/shaiso/Lakerunner/internal/mq"
	"github.com/shaiso/Lakerunner/internal/repo"
	"github.com/shaiso/Lakerunner/internal/runner"
	"github.com/shaiso/Lakerunner/internal/telemetry"
)

// jobClient — общая форма клиентов внешних исполнителей.
// JobRunner и CatalogRefresher совпадают по сигнатурам.
type jobClient interface {
	Start(ctx context.Context, jobName string, params map[string]any) (runner.JobHandle, error)
	Poll(ctx context.Context, handle runner.JobHandle) (runner.PollResult, error)
	Cancel(ctx context.Context, handle runner.JobHandle) error
}

// clientFor возвращает клиент для вида задачи.
func (o *Orchestrator) clientFor(kind domain.TaskKind) (jobClient, error) {
	switch kind {
	case domain.KindTransform:
		return o.jobs, nil
	case domain.KindDiscover:
		return o.crawlers, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskKind, kind)
	}
}

// processRun начинает обработку нового pending run.
func (o *Orchestrator) processRun(ctx context.Context, runID uuid.UUID) error {
	run, err := o.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}

	if run.Status != domain.RunStatusPending {
		return ErrRunNotPending
	}

	// Guard: пустая raw-область — запускать трансформации не на чем
	if o.lake != nil {
		hasData, err := o.lake.HasData(ctx, domain.StageRaw)
		if err != nil {
			o.logger.Warn("raw area check failed, proceeding anyway",
				"run_id", runID,
				"error", err,
			)
		} else if !hasData {
			o.failRunEarly(ctx, run, ErrRawAreaEmpty.Error())
			return nil
		}
	}

	state := NewRunState(run, o.graph)

	if err := o.addActiveRun(state); err != nil {
		return err
	}

	if err := o.materializeTasks(ctx, state); err != nil {
		o.removeActiveRun(runID)
		o.failRunEarly(ctx, run, fmt.Sprintf("materialize tasks: %v", err))
		return nil
	}

	run.MarkRunning()
	if err := o.runStore.Update(ctx, run); err != nil {
		o.removeActiveRun(runID)
		return fmt.Errorf("update run to running: %w", err)
	}

	telemetry.RunsStarted.Inc()
	o.logger.Info("run started",
		"run_id", runID,
		"pipeline", run.Pipeline,
		"trigger", run.TriggerSource,
		"tasks", o.graph.Size(),
	)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.driveRun(ctx, state)
	}()

	return nil
}

// materializeTasks создаёт StageTask для каждого узла графа.
func (o *Orchestrator) materializeTasks(ctx context.Context, state *RunState) error {
	for _, node := range o.graph.Order {
		task := &domain.StageTask{
			ID:        uuid.New(),
			RunID:     state.RunID(),
			StepID:    node.ID,
			Stage:     node.Def.Stage,
			Kind:      node.Def.Kind,
			JobName:   node.Def.JobName,
			DependsOn: append([]string(nil), node.Def.DependsOn...),
			Status:    domain.TaskStatusPending,
			CreatedAt: time.Now(),
		}

		if err := o.taskStore.Create(ctx, task); err != nil {
			return fmt.Errorf("create task %s: %w", node.ID, err)
		}
		state.SetTask(task)
	}
	return nil
}

// restoreRun восстанавливает run после рестарта и продолжает его выполнение.
func (o *Orchestrator) restoreRun(ctx context.Context, run *domain.PipelineRun) error {
	state := NewRunState(run, o.graph)

	tasks, err := o.taskStore.ListByRunID(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	state.RestoreFromTasks(tasks)

	entries, err := o.ledgerStore.ListByRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list ledger: %w", err)
	}
	state.ReconcileLedger(o.spec, entries)

	if err := o.addActiveRun(state); err != nil {
		return err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.driveRun(ctx, state)
	}()

	return nil
}

// driveRun — независимый цикл выполнения одного run.
// Завершается, когда run достигает терминального статуса.
func (o *Orchestrator) driveRun(ctx context.Context, state *RunState) {
	defer o.removeActiveRun(state.RunID())

	if o.tick(ctx, state) {
		return
	}

	ticker := time.NewTicker(o.taskPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if o.tick(ctx, state) {
				return
			}
		}
	}
}

// tick — одна итерация цикла: наблюдение отмены, запуск готовых задач,
// опрос выполняющихся, проверка завершения.
// Возвращает true, когда run терминален и цикл можно остановить.
func (o *Orchestrator) tick(ctx context.Context, state *RunState) bool {
	telemetry.PollCycles.Inc()

	// Перечитываем run: отмена и внешняя финализация приходят через БД
	run, err := o.runStore.GetByID(ctx, state.RunID())
	if err != nil {
		o.logger.Error("failed to reload run", "run_id", state.RunID(), "error", err)
		return false
	}
	if run.IsFinished() {
		return true
	}
	if run.Status == domain.RunStatusCancelling {
		state.Run.MarkCancelling()
		return o.cancelActiveRun(ctx, state)
	}

	if err := o.dispatchRunnable(ctx, state); err != nil {
		return o.abortRun(ctx, state, err)
	}
	if err := o.pollRunning(ctx, state); err != nil {
		return o.abortRun(ctx, state, err)
	}

	statuses := state.Statuses()
	if o.graph.IsComplete(statuses) || o.graph.IsStalled(statuses) {
		return o.finalize(ctx, state)
	}
	return false
}

// dispatchRunnable запускает задачи, готовые к выполнению:
// PENDING с выполненными зависимостями и RETRYING с истёкшим backoff.
func (o *Orchestrator) dispatchRunnable(ctx context.Context, state *RunState) error {
	for _, node := range o.graph.NextRunnable(state.Statuses()) {
		task := state.Task(node.ID)
		if task == nil {
			continue
		}
		if err := o.startAttempt(ctx, state, task); err != nil {
			return err
		}
	}

	for _, stepID := range state.RetryDue(time.Now()) {
		task := state.Task(stepID)
		if task == nil {
			continue
		}
		if err := o.startAttempt(ctx, state, task); err != nil {
			return err
		}
	}

	return nil
}

// startAttempt запускает одну попытку задачи во внешнем движке.
// Возвращает ошибку только при недоступности ledger.
func (o *Orchestrator) startAttempt(ctx context.Context, state *RunState, task *domain.StageTask) error {
	client, err := o.clientFor(task.Kind)
	if err != nil {
		return err
	}

	def := o.spec.TaskDefByID(task.StepID)
	params := mergedParams(def, state.Run.Inputs)

	handle, startErr := client.Start(ctx, task.JobName, params)
	if startErr != nil {
		// Попытка состоялась, но job не стартовал — классифицируем
		// как обычный сбой попытки
		task.MarkRunning("")
		state.SyncStatus(task)
		reason := startErr.Error()
		return o.failAttempt(ctx, state, task, reason, runner.Classify(reason))
	}

	task.MarkRunning(string(handle))
	state.SyncStatus(task)

	if err := o.taskStore.Update(ctx, task); err != nil {
		o.logger.Error("failed to persist running task",
			"run_id", state.RunID(),
			"step_id", task.StepID,
			"error", err,
		)
	}

	if err := o.appendLedger(ctx, domain.NewLedgerEntry(task)); err != nil {
		return err
	}

	telemetry.TaskAttempts.WithLabelValues(string(task.Stage), string(task.Kind), "started").Inc()
	o.logger.Info("task attempt started",
		"run_id", state.RunID(),
		"step_id", task.StepID,
		"job", task.JobName,
		"handle", task.JobHandle,
		"attempt", task.Attempt,
	)

	return nil
}

// pollRunning опрашивает внешние jobs всех RUNNING-задач.
func (o *Orchestrator) pollRunning(ctx context.Context, state *RunState) error {
	for _, stepID := range state.RunningSteps() {
		task := state.Task(stepID)
		if task == nil {
			continue
		}

		// Handle утерян (рестарт в момент запуска) — повторяем попытку
		if task.JobHandle == "" {
			if err := o.failAttempt(ctx, state, task,
				"job handle lost", domain.FailureTransient); err != nil {
				return err
			}
			continue
		}

		client, err := o.clientFor(task.Kind)
		if err != nil {
			return err
		}

		result, pollErr := client.Poll(ctx, runner.JobHandle(task.JobHandle))
		if pollErr != nil {
			// Сбой самого опроса — не сбой job; попробуем в следующем tick
			o.logger.Warn("poll failed",
				"run_id", state.RunID(),
				"step_id", stepID,
				"error", pollErr,
			)
			continue
		}

		switch result.State {
		case runner.StateRunning:
			// ещё выполняется

		case runner.StateSucceeded:
			task.MarkSucceeded()
			state.SyncStatus(task)
			if err := o.taskStore.Update(ctx, task); err != nil {
				o.logger.Error("failed to persist succeeded task",
					"run_id", state.RunID(), "step_id", stepID, "error", err)
			}
			if err := o.appendLedger(ctx, domain.NewLedgerEntry(task)); err != nil {
				return err
			}
			telemetry.TaskAttempts.WithLabelValues(string(task.Stage), string(task.Kind), "succeeded").Inc()
			o.logger.Info("task succeeded",
				"run_id", state.RunID(),
				"step_id", stepID,
				"attempt", task.Attempt,
				"duration", task.Duration(),
			)

		case runner.StateFailed:
			if err := o.failAttempt(ctx, state, task, result.Reason, result.Class); err != nil {
				return err
			}
		}
	}

	return nil
}

// failAttempt обрабатывает сбой попытки: transient-ошибки ниже потолка
// попыток уходят в RETRYING с backoff, остальное — терминальный FAILED.
func (o *Orchestrator) failAttempt(ctx context.Context, state *RunState, task *domain.StageTask, reason string, class domain.FailureClass) error {
	def := o.spec.TaskDefByID(task.StepID)
	policy := o.spec.RetryFor(def)

	maxAttempts := defaultMaxAttempts
	if policy != nil && policy.MaxAttempts > 0 {
		maxAttempts = policy.MaxAttempts
	}

	if class == domain.FailureTransient && task.CanRetry(maxAttempts) {
		task.MarkRetrying(reason)
		state.SyncStatus(task)

		delay := calculateBackoff(task.Attempt, policy)
		state.ScheduleRetry(task.StepID, time.Now().Add(delay))

		if err := o.taskStore.Update(ctx, task); err != nil {
			o.logger.Error("failed to persist retrying task",
				"run_id", state.RunID(), "step_id", task.StepID, "error", err)
		}
		if err := o.appendLedger(ctx, domain.NewLedgerEntry(task)); err != nil {
			return err
		}

		telemetry.TaskAttempts.WithLabelValues(string(task.Stage), string(task.Kind), "retrying").Inc()
		o.logger.Warn("task attempt failed, will retry",
			"run_id", state.RunID(),
			"step_id", task.StepID,
			"attempt", task.Attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"reason", reason,
		)
		return nil
	}

	task.MarkFailed(reason)
	state.SyncStatus(task)

	if err := o.taskStore.Update(ctx, task); err != nil {
		o.logger.Error("failed to persist failed task",
			"run_id", state.RunID(), "step_id", task.StepID, "error", err)
	}
	if err := o.appendLedger(ctx, domain.NewLedgerEntry(task)); err != nil {
		return err
	}

	telemetry.TaskAttempts.WithLabelValues(string(task.Stage), string(task.Kind), "failed").Inc()
	o.logger.Error("task failed permanently",
		"run_id", state.RunID(),
		"step_id", task.StepID,
		"attempt", task.Attempt,
		"class", class,
		"reason", reason,
	)
	return nil
}

// finalize переводит run в терминальный статус по итогам задач.
func (o *Orchestrator) finalize(ctx context.Context, state *RunState) bool {
	statuses := state.Statuses()
	run := state.Run

	var failedSteps []string
	for _, node := range o.graph.Order {
		if statuses[node.ID] == domain.TaskStatusFailed {
			failedSteps = append(failedSteps, node.ID)
		}
	}

	if len(failedSteps) == 0 {
		run.MarkSucceeded()
	} else {
		blocked := o.graph.BlockedBy(statuses)
		msg := fmt.Sprintf("tasks failed: %v", failedSteps)
		if len(blocked) > 0 {
			msg += fmt.Sprintf("; blocked: %v", blocked)
		}

		// PARTIALLY_FAILED — только когда независимая ветка дошла
		// до конца; в линейной цепочке сбой всегда даёт FAILED
		if o.hasSucceededLeaf(statuses) {
			run.MarkPartiallyFailed(msg)
		} else {
			run.MarkFailed(msg)
		}
	}

	if err := o.runStore.Update(ctx, run); err != nil {
		o.logger.Error("failed to persist terminal run, will retry",
			"run_id", run.ID, "error", err)
		return false
	}

	telemetry.RunsFinished.WithLabelValues(string(run.Status)).Inc()
	o.notifyCompleted(ctx, run)

	o.logger.Info("run finished",
		"run_id", run.ID,
		"status", run.Status,
		"duration", run.Duration(),
		"stats", state.Stats(),
	)
	return true
}

// hasSucceededLeaf проверяет, дошла ли до успешного конца хотя бы одна
// независимая ветка (лист графа без зависимых).
func (o *Orchestrator) hasSucceededLeaf(statuses map[string]domain.TaskStatus) bool {
	for _, node := range o.graph.Order {
		if len(node.Dependents) == 0 && statuses[node.ID] == domain.TaskStatusSucceeded {
			return true
		}
	}
	return false
}

// cancelActiveRun отменяет run: выполняющиеся jobs отменяются
// best-effort, незапущенные задачи переходят в CANCELLED сразу.
func (o *Orchestrator) cancelActiveRun(ctx context.Context, state *RunState) bool {
	for _, node := range o.graph.Order {
		task := state.Task(node.ID)
		if task == nil || task.Status.IsTerminal() {
			continue
		}

		if task.Status == domain.TaskStatusRunning && task.JobHandle != "" {
			client, err := o.clientFor(task.Kind)
			if err == nil {
				if cancelErr := client.Cancel(ctx, runner.JobHandle(task.JobHandle)); cancelErr != nil {
					o.logger.Warn("failed to cancel external job",
						"run_id", state.RunID(),
						"step_id", task.StepID,
						"handle", task.JobHandle,
						"error", cancelErr,
					)
				}
			}
		}

		task.MarkCancelled()
		state.SyncStatus(task)
		if err := o.taskStore.Update(ctx, task); err != nil {
			o.logger.Error("failed to persist cancelled task",
				"run_id", state.RunID(), "step_id", task.StepID, "error", err)
		}
		if err := o.appendLedger(ctx, domain.NewLedgerEntry(task)); err != nil {
			return o.abortRun(ctx, state, err)
		}
		telemetry.TaskAttempts.WithLabelValues(string(task.Stage), string(task.Kind), "cancelled").Inc()
	}

	run := state.Run
	run.MarkCancelled()
	if err := o.runStore.Update(ctx, run); err != nil {
		o.logger.Error("failed to persist cancelled run, will retry",
			"run_id", run.ID, "error", err)
		return false
	}

	telemetry.RunsFinished.WithLabelValues(string(run.Status)).Inc()
	o.notifyCompleted(ctx, run)

	o.logger.Info("run cancelled", "run_id", run.ID)
	return true
}

// abortRun останавливает run из-за недоступности ledger.
// Без ledger история выполнения невосстановима — продолжать нельзя.
func (o *Orchestrator) abortRun(ctx context.Context, state *RunState, cause error) bool {
	run := state.Run
	run.MarkFailed(fmt.Sprintf("run halted: %v", cause))

	if err := o.runStore.Update(ctx, run); err != nil {
		o.logger.Error("failed to persist halted run",
			"run_id", run.ID, "error", err)
	}

	telemetry.RunsFinished.WithLabelValues(string(run.Status)).Inc()
	o.notifyCompleted(ctx, run)

	o.logger.Error("run halted",
		"run_id", run.ID,
		"error", cause,
	)
	return true
}

// failRunEarly проваливает run до начала выполнения задач.
func (o *Orchestrator) failRunEarly(ctx context.Context, run *domain.PipelineRun, msg string) {
	run.MarkFailed(msg)
	if err := o.runStore.Update(ctx, run); err != nil {
		o.logger.Error("failed to persist early-failed run",
			"run_id", run.ID, "error", err)
		return
	}

	telemetry.RunsFinished.WithLabelValues(string(run.Status)).Inc()
	o.notifyCompleted(ctx, run)

	o.logger.Warn("run failed early",
		"run_id", run.ID,
		"error", msg,
	)
}

// appendLedger пишет запись с независимыми повторами.
// Ledger durability отделена от retry задач: исчерпание повторов здесь —
// фатальная ошибка run.
func (o *Orchestrator) appendLedger(ctx context.Context, entry *domain.RunLedgerEntry) error {
	var lastErr error
	for attempt := 1; attempt <= ledgerAppendAttempts; attempt++ {
		if err := o.ledgerStore.Append(ctx, entry); err != nil {
			lastErr = err
			telemetry.LedgerAppends.WithLabelValues("error").Inc()
			o.logger.Warn("ledger append failed",
				"run_id", entry.RunID,
				"step_id", entry.StepID,
				"attempt", attempt,
				"error", err,
			)

			select {
			case <-time.After(ledgerRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		telemetry.LedgerAppends.WithLabelValues("ok").Inc()
		return nil
	}

	return fmt.Errorf("%w: %v", ErrLedgerUnavailable, lastErr)
}

// notifyCompleted публикует run.completed, если настроен notifier.
func (o *Orchestrator) notifyCompleted(ctx context.Context, run *domain.PipelineRun) {
	if o.notifier == nil {
		return
	}

	err := o.notifier.PublishRunCompleted(ctx, mq.RunCompletedPayload{
		RunID:    run.ID,
		Pipeline: run.Pipeline,
		Status:   string(run.Status),
		Error:    run.Error,
	})
	if err != nil {
		o.logger.Warn("failed to publish run.completed",
			"run_id", run.ID,
			"error", err,
		)
	}
}

// mergedParams собирает параметры запуска job: параметры из определения
// задачи, поверх — inputs конкретного run.
func mergedParams(def *domain.TaskDef, inputs map[string]any) map[string]any {
	if def == nil || len(def.Params) == 0 {
		if len(inputs) == 0 {
			return nil
		}
		params := make(map[string]any, len(inputs))
		for k, v := range inputs {
			params[k] = v
		}
		return params
	}

	params := make(map[string]any, len(def.Params)+len(inputs))
	for k, v := range def.Params {
		params[k] = v
	}
	for k, v := range inputs {
		params[k] = v
	}
	return params
}

// calculateBackoff вычисляет задержку перед повторной попыткой.
func calculateBackoff(attempt int, policy *domain.RetryPolicy) time.Duration {
	if policy == nil {
		return time.Second
	}

	initialDelay := time.Duration(policy.InitialDelayMs) * time.Millisecond
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	maxDelay := time.Duration(policy.MaxDelayMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch policy.Backoff {
	case "exponential":
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
				break
			}
		}
	default:
		// "fixed" или неизвестный — используем initialDelay
		delay = initialDelay
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
