package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Lakerunner/internal/domain"
	"github.com/shaiso/Lakerunner/internal/mq"
	"github.com/shaiso/Lakerunner/internal/repo"
)

// handleRunPending обрабатывает событие run.pending из очереди.
func (o *Orchestrator) handleRunPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunPendingPayload](&delivery.Message)
	if err != nil {
		// Некорректное сообщение — в DLQ, повторять бессмысленно
		o.logger.Error("invalid run.pending payload", "error", err)
		return fmt.Errorf("parse payload: %w", err)
	}

	o.logger.Debug("received run.pending", "run_id", payload.RunID)

	if o.isRunActive(payload.RunID) {
		return nil
	}

	if err := o.processRun(ctx, payload.RunID); err != nil {
		// Poll уже подхватил run или статус изменился — не ошибка
		if errors.Is(err, ErrRunNotPending) || errors.Is(err, ErrRunAlreadyActive) {
			return nil
		}
		if errors.Is(err, ErrRunNotFound) {
			o.logger.Warn("run.pending for unknown run", "run_id", payload.RunID)
			return nil
		}
		return err
	}

	return nil
}

// CancelRun запрашивает отмену run.
//
// PENDING run отменяется сразу. RUNNING run переводится в CANCELLING:
// цикл выполнения заметит смену статуса, отменит внешние jobs и
// финализирует run как CANCELLED.
func (o *Orchestrator) CancelRun(ctx context.Context, runID uuid.UUID) error {
	run, err := o.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}

	switch run.Status {
	case domain.RunStatusPending:
		run.MarkCancelled()
		if err := o.runStore.Update(ctx, run); err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		o.notifyCompleted(ctx, run)
		o.logger.Info("pending run cancelled", "run_id", runID)
		return nil

	case domain.RunStatusRunning:
		run.MarkCancelling()
		if err := o.runStore.Update(ctx, run); err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		o.logger.Info("run cancellation requested", "run_id", runID)
		return nil

	case domain.RunStatusCancelling:
		// Отмена уже запрошена
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrRunFinished, run.Status)
	}
}
