package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Lakerunner/internal/domain"
	"github.com/shaiso/Lakerunner/internal/repo"
)

// waitPollInterval — интервал опроса статуса при синхронном запуске.
const waitPollInterval = 500 * time.Millisecond

// defaultWaitTimeout — предел ожидания терминального статуса для wait=true.
const defaultWaitTimeout = 2 * time.Minute

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?pipeline=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{
		Pipeline: r.URL.Query().Get("pipeline"),
		Status:   domain.RunStatus(r.URL.Query().Get("status")),
		Limit:    parseIntParam(r.URL.Query().Get("limit"), 50),
		Offset:   parseIntParam(r.URL.Query().Get("offset"), 0),
	}

	runs, err := h.runRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// CreateRun запускает pipeline.
// POST /api/v1/pipelines/{name}/runs?wait=true|false
//
// По умолчанию ответ асинхронный: 201 с run в статусе PENDING.
// С wait=true обработчик блокируется до терминального статуса
// (ограниченно по времени) и возвращает завершённый run.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := h.pipelines[name]; !ok {
		NotFound(w, "pipeline not found")
		return
	}

	var req CreateRunRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	// Idempotency: при повторном запросе с тем же ключом возвращаем
	// существующий run
	if req.IdempotencyKey != "" {
		existingRun, err := h.runRepo.GetByIdempotencyKey(r.Context(), name, req.IdempotencyKey)
		if err == nil && existingRun != nil {
			Success(w, RunFromDomain(*existingRun))
			return
		}
	}

	run := &domain.PipelineRun{
		ID:             uuid.New(),
		Pipeline:       name,
		TriggerSource:  "api",
		Status:         domain.RunStatusPending,
		Inputs:         req.Inputs,
		IdempotencyKey: req.IdempotencyKey,
	}

	if err := h.runRepo.Create(r.Context(), run); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Публикуем событие в очередь
	if h.publisher != nil {
		if err := h.publisher.PublishRunPending(r.Context(), run.ID); err != nil {
			h.logger.Warn("failed to publish run.pending", "run_id", run.ID, "error", err)
		}
	}

	if r.URL.Query().Get("wait") == "true" {
		h.waitForRun(w, r, run.ID)
		return
	}

	Created(w, RunFromDomain(*run))
}

// waitForRun блокируется до терминального статуса run.
// По истечении предела возвращает run как есть (202).
func (h *Handler) waitForRun(w http.ResponseWriter, r *http.Request, runID uuid.UUID) {
	deadline := time.Now().Add(defaultWaitTimeout)
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		run, err := h.runRepo.GetByID(r.Context(), runID)
		if HandleRepoError(w, h.logger, err, "run not found") {
			return
		}

		if run.IsFinished() {
			Success(w, RunFromDomain(*run))
			return
		}

		if time.Now().After(deadline) {
			JSON(w, http.StatusAccepted, DataResponse{Data: RunFromDomain(*run)})
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// CancelRun запрашивает отмену run.
// POST /api/v1/runs/{id}/cancel
//
// PENDING run отменяется сразу. RUNNING run переводится в CANCELLING —
// orchestrator заметит смену статуса, отменит внешние jobs и
// финализирует run.
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	switch run.Status {
	case domain.RunStatusPending:
		run.MarkCancelled()
	case domain.RunStatusRunning:
		run.MarkCancelling()
	case domain.RunStatusCancelling:
		// Отмена уже запрошена — идемпотентно
		Success(w, RunFromDomain(*run))
		return
	default:
		InvalidState(w, "run is already finished")
		return
	}

	if err := h.runRepo.Update(r.Context(), run); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, RunFromDomain(*run))
}

// ListRunTasks возвращает задачи run.
// GET /api/v1/runs/{id}/tasks
func (h *Handler) ListRunTasks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует
	_, err = h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	tasks, err := h.taskRepo.ListByRunID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t)
	}

	List(w, result, len(result))
}

// GetRunLedger возвращает ledger-записи run в порядке записи.
// GET /api/v1/runs/{id}/ledger
func (h *Handler) GetRunLedger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	_, err = h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	entries, err := h.ledgerRepo.ListByRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]LedgerEntryResponse, len(entries))
	for i, e := range entries {
		result[i] = LedgerEntryFromDomain(e)
	}

	List(w, result, len(result))
}

// SearchLedger возвращает ledger-записи по стадии и статусу.
// GET /api/v1/ledger?stage=cleaned&status=FAILED&limit=100
func (h *Handler) SearchLedger(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	status := r.URL.Query().Get("status")
	if stage == "" || status == "" {
		BadRequest(w, "stage and status query parameters are required")
		return
	}

	limit := parseIntParam(r.URL.Query().Get("limit"), 100)

	entries, err := h.ledgerRepo.ListByStageStatus(
		r.Context(), domain.Stage(stage), domain.TaskStatus(status), limit,
	)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]LedgerEntryResponse, len(entries))
	for i, e := range entries {
		result[i] = LedgerEntryFromDomain(e)
	}

	List(w, result, len(result))
}

// parseIntParam парсит числовой query-параметр с дефолтным значением.
func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
