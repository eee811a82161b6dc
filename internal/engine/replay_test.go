package engine

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Lakerunner/internal/domain"
)

func TestReplayLedger_RetriesThenSuccess(t *testing.T) {
	spec := chainSpec()
	runID := uuid.New()
	taskID := uuid.New()
	base := time.Now()

	entry := func(attempt int, status domain.TaskStatus, offset time.Duration) domain.RunLedgerEntry {
		return domain.RunLedgerEntry{
			ID:         uuid.New(),
			RunID:      runID,
			TaskID:     taskID,
			StepID:     "transform-1",
			Stage:      domain.StageCleaned,
			Kind:       domain.KindTransform,
			Status:     status,
			Attempt:    attempt,
			RecordedAt: base.Add(offset),
		}
	}

	// Две transient-попытки, успех с третьей
	entries := []domain.RunLedgerEntry{
		entry(1, domain.TaskStatusRunning, 0),
		entry(1, domain.TaskStatusRetrying, time.Second),
		entry(2, domain.TaskStatusRunning, 2*time.Second),
		entry(2, domain.TaskStatusRetrying, 3*time.Second),
		entry(3, domain.TaskStatusRunning, 4*time.Second),
		entry(3, domain.TaskStatusSucceeded, 5*time.Second),
	}

	statuses := ReplayLedger(spec, entries)

	if statuses["transform-1"] != domain.TaskStatusSucceeded {
		t.Errorf("transform-1 should be SUCCEEDED, got %s", statuses["transform-1"])
	}
	if statuses["discover-1"] != domain.TaskStatusPending {
		t.Errorf("discover-1 without entries should be PENDING, got %s", statuses["discover-1"])
	}

	attempts := LastAttempts(entries)
	if attempts["transform-1"] != 3 {
		t.Errorf("expected 3 attempts for transform-1, got %d", attempts["transform-1"])
	}
}

func TestReplayLedger_Idempotent(t *testing.T) {
	spec := chainSpec()
	runID := uuid.New()
	base := time.Now()

	entries := []domain.RunLedgerEntry{
		{ID: uuid.New(), RunID: runID, TaskID: uuid.New(), StepID: "transform-1",
			Status: domain.TaskStatusRunning, Attempt: 1, RecordedAt: base},
		{ID: uuid.New(), RunID: runID, TaskID: uuid.New(), StepID: "transform-1",
			Status: domain.TaskStatusSucceeded, Attempt: 1, RecordedAt: base.Add(time.Second)},
		{ID: uuid.New(), RunID: runID, TaskID: uuid.New(), StepID: "discover-1",
			Status: domain.TaskStatusRunning, Attempt: 1, RecordedAt: base.Add(2 * time.Second)},
	}

	first := ReplayLedger(spec, entries)

	// Многократное восстановление даёт тот же результат
	for i := 0; i < 5; i++ {
		again := ReplayLedger(spec, entries)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("replay %d diverged: %v vs %v", i, first, again)
		}
	}

	if first["transform-1"] != domain.TaskStatusSucceeded {
		t.Errorf("transform-1 should be SUCCEEDED, got %s", first["transform-1"])
	}
	if first["discover-1"] != domain.TaskStatusRunning {
		t.Errorf("discover-1 should be RUNNING, got %s", first["discover-1"])
	}
}

func TestReplayLedger_UnknownStepIgnored(t *testing.T) {
	spec := chainSpec()

	entries := []domain.RunLedgerEntry{
		{ID: uuid.New(), StepID: "legacy-step", Status: domain.TaskStatusSucceeded,
			Attempt: 1, RecordedAt: time.Now()},
	}

	statuses := ReplayLedger(spec, entries)
	if _, exists := statuses["legacy-step"]; exists {
		t.Error("unknown step must not appear in reconstructed state")
	}
	if len(statuses) != 4 {
		t.Errorf("expected 4 known tasks, got %d", len(statuses))
	}
}
