package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Lakerunner/internal/domain"
	"github.com/shaiso/Lakerunner/internal/engine"
	"github.com/shaiso/Lakerunner/internal/mq"
	"github.com/shaiso/Lakerunner/internal/runner"
	"github.com/shaiso/Lakerunner/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval     = 10 * time.Second
	defaultTaskPollInterval = 5 * time.Second
	defaultBatchSize        = 100
	defaultMaxAttempts      = 3

	ledgerAppendAttempts = 3
	ledgerRetryDelay     = 500 * time.Millisecond
)

// RunStore — хранилище pipeline runs.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error)
	Update(ctx context.Context, run *domain.PipelineRun) error
	ListPending(ctx context.Context, limit int) ([]domain.PipelineRun, error)
	ListUnfinished(ctx context.Context) ([]domain.PipelineRun, error)
}

// TaskStore — хранилище stage tasks.
type TaskStore interface {
	Create(ctx context.Context, task *domain.StageTask) error
	Update(ctx context.Context, task *domain.StageTask) error
	ListByRunID(ctx context.Context, runID uuid.UUID) ([]domain.StageTask, error)
}

// LedgerStore — append-only журнал попыток.
type LedgerStore interface {
	Append(ctx context.Context, entry *domain.RunLedgerEntry) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RunLedgerEntry, error)
}

// DataGuard — проверка наличия данных в области lake перед стартом run.
type DataGuard interface {
	HasData(ctx context.Context, stage domain.Stage) (bool, error)
}

// CompletionNotifier — публикация события о завершённом run.
type CompletionNotifier interface {
	PublishRunCompleted(ctx context.Context, payload mq.RunCompletedPayload) error
}

// Orchestrator управляет выполнением pipeline runs.
//
// Orchestrator — центральный компонент системы, который:
//   - Получает новые runs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending runs в БД (polling fallback)
//   - Материализует tasks из определения pipeline
//   - Запускает внешние jobs и опрашивает их статусы
//   - Ведёт ledger каждой попытки
//   - Финализирует runs (SUCCEEDED/FAILED/PARTIALLY_FAILED/CANCELLED)
type Orchestrator struct {
	// Stores
	runStore    RunStore
	taskStore   TaskStore
	ledgerStore LedgerStore

	// Клиенты внешних исполнителей
	jobs     runner.JobRunner
	crawlers runner.CatalogRefresher

	// Определение pipeline и его граф (цикл отвергается при создании)
	spec  *domain.PipelineSpec
	graph *engine.Graph

	// Guard raw-области (может быть nil — проверка отключена)
	lake DataGuard

	// Уведомления о завершении (может быть nil)
	notifier CompletionNotifier

	// MQ (может быть nil — остаётся только polling)
	conn        *mq.Connection
	runConsumer *mq.Consumer

	// Active runs — runs в процессе выполнения (runID → state)
	activeRuns map[uuid.UUID]*RunState
	mu         sync.RWMutex

	// Configuration
	pollInterval     time.Duration
	taskPollInterval time.Duration
	batchSize        int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Stores
	RunStore    RunStore
	TaskStore   TaskStore
	LedgerStore LedgerStore

	// Клиенты внешних исполнителей
	Jobs     runner.JobRunner
	Crawlers runner.CatalogRefresher

	// Spec — определение pipeline, который выполняет этот оркестратор.
	Spec *domain.PipelineSpec

	// Lake — guard raw-области (опционально).
	Lake DataGuard

	// Notifier — публикация run.completed (опционально).
	Notifier CompletionNotifier

	// Conn — соединение с RabbitMQ (опционально).
	Conn *mq.Connection

	// Polling configuration
	PollInterval     time.Duration // интервал поиска pending runs (default: 10s)
	TaskPollInterval time.Duration // интервал опроса внешних jobs (default: 5s)
	BatchSize        int           // количество runs за один poll (default: 100)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
//
// Граф зависимостей строится здесь же: циклическое или невалидное
// определение pipeline — фатальная ошибка старта, не рантайма.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Spec == nil {
		return nil, fmt.Errorf("pipeline spec is required")
	}
	if err := engine.Validate(cfg.Spec); err != nil {
		return nil, fmt.Errorf("validate pipeline spec: %w", err)
	}

	graph, err := engine.BuildGraph(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("build pipeline graph: %w", err)
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	taskPollInterval := cfg.TaskPollInterval
	if taskPollInterval <= 0 {
		taskPollInterval = defaultTaskPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		runStore:         cfg.RunStore,
		taskStore:        cfg.TaskStore,
		ledgerStore:      cfg.LedgerStore,
		jobs:             cfg.Jobs,
		crawlers:         cfg.Crawlers,
		spec:             cfg.Spec,
		graph:            graph,
		lake:             cfg.Lake,
		notifier:         cfg.Notifier,
		conn:             cfg.Conn,
		activeRuns:       make(map[uuid.UUID]*RunState),
		pollInterval:     pollInterval,
		taskPollInterval: taskPollInterval,
		batchSize:        batchSize,
		logger:           logger,
	}, nil
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Восстановление незавершённых runs из БД и ledger
//   - Consumer для runs.pending (если настроен MQ)
//   - Polling горутину для fallback
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"pipeline", o.spec.Name,
		"tasks", o.graph.Size(),
		"poll_interval", o.pollInterval,
		"task_poll_interval", o.taskPollInterval,
	)

	// Восстанавливаем runs, прерванные рестартом
	if err := o.recoverRuns(ctx); err != nil {
		o.logger.Error("failed to recover unfinished runs", "error", err)
		// Не фатально: poll подхватит pending runs, а застрявшие
		// RUNNING runs восстановятся при следующем рестарте
	}

	if o.conn != nil {
		o.runConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsPending),
			Handler:  o.handleRunPending,
			Prefetch: 10,
		})

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.runConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	if o.runConsumer != nil {
		o.runConsumer.Stop()
	}

	o.wg.Wait()

	o.logger.Info("orchestrator stopped",
		"active_runs", len(o.activeRuns),
	)
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs, созданные пока были выключены)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (o *Orchestrator) poll(ctx context.Context) {
	runs, err := o.runStore.ListPending(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list pending runs", "error", err)
		return
	}

	if len(runs) == 0 {
		return
	}

	o.logger.Debug("poll found pending runs", "count", len(runs))

	for i := range runs {
		run := &runs[i]

		if o.isRunActive(run.ID) {
			continue
		}

		if err := o.processRun(ctx, run.ID); err != nil {
			if errors.Is(err, ErrRunNotPending) || errors.Is(err, ErrRunAlreadyActive) {
				continue
			}
			o.logger.Error("failed to process run from poll",
				"run_id", run.ID,
				"error", err,
			)
		}
	}
}

// recoverRuns восстанавливает незавершённые runs после рестарта.
// Состояние каждого run реконструируется из task-строк и ledger.
func (o *Orchestrator) recoverRuns(ctx context.Context) error {
	runs, err := o.runStore.ListUnfinished(ctx)
	if err != nil {
		return fmt.Errorf("list unfinished runs: %w", err)
	}

	for i := range runs {
		run := &runs[i]
		if o.isRunActive(run.ID) {
			continue
		}

		if err := o.restoreRun(ctx, run); err != nil {
			o.logger.Error("failed to restore run",
				"run_id", run.ID,
				"error", err,
			)
			continue
		}

		o.logger.Info("run restored after restart", "run_id", run.ID)
	}

	return nil
}

// isRunActive проверяет, находится ли run в обработке.
func (o *Orchestrator) isRunActive(runID uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, exists := o.activeRuns[runID]
	return exists
}

// getActiveRun возвращает активный RunState.
func (o *Orchestrator) getActiveRun(runID uuid.UUID) *RunState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.activeRuns[runID]
}

// addActiveRun добавляет run в активные.
func (o *Orchestrator) addActiveRun(state *RunState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.activeRuns[state.RunID()]; exists {
		return ErrRunAlreadyActive
	}

	o.activeRuns[state.RunID()] = state
	telemetry.ActiveRuns.Set(float64(len(o.activeRuns)))
	return nil
}

// removeActiveRun удаляет run из активных.
func (o *Orchestrator) removeActiveRun(runID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeRuns, runID)
	telemetry.ActiveRuns.Set(float64(len(o.activeRuns)))
}

// ActiveRunsCount возвращает количество активных runs.
func (o *Orchestrator) ActiveRunsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeRuns)
}

// GetActiveRunStats возвращает статистику по активному run.
func (o *Orchestrator) GetActiveRunStats(runID uuid.UUID) (RunStats, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	state, exists := o.activeRuns[runID]
	if !exists {
		return RunStats{}, false
	}

	return state.Stats(), true
}
