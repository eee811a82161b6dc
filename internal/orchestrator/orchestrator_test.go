package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Lakerunner/internal/domain"
	"github.com/shaiso/Lakerunner/internal/mq"
	"github.com/shaiso/Lakerunner/internal/repo"
	"github.com/shaiso/Lakerunner/internal/runner"
)

// --- In-memory stores ---

type memRunStore struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*domain.PipelineRun
}

func newMemRunStore() *memRunStore {
	return &memRunStore{runs: make(map[uuid.UUID]*domain.PipelineRun)}
}

func (s *memRunStore) put(run *domain.PipelineRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *run
	s.runs[run.ID] = &c
}

func (s *memRunStore) GetByID(_ context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	c := *run
	return &c, nil
}

func (s *memRunStore) Update(_ context.Context, run *domain.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return repo.ErrNotFound
	}
	c := *run
	s.runs[run.ID] = &c
	return nil
}

func (s *memRunStore) ListPending(_ context.Context, limit int) ([]domain.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PipelineRun
	for _, run := range s.runs {
		if run.Status == domain.RunStatusPending && len(out) < limit {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (s *memRunStore) ListUnfinished(_ context.Context) ([]domain.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PipelineRun
	for _, run := range s.runs {
		if run.Status == domain.RunStatusRunning || run.Status == domain.RunStatusCancelling {
			out = append(out, *run)
		}
	}
	return out, nil
}

type memTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.StageTask
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*domain.StageTask)}
}

func (s *memTaskStore) Create(_ context.Context, task *domain.StageTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *task
	s.tasks[task.ID] = &c
	return nil
}

func (s *memTaskStore) Update(_ context.Context, task *domain.StageTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return repo.ErrNotFound
	}
	c := *task
	s.tasks[task.ID] = &c
	return nil
}

func (s *memTaskStore) ListByRunID(_ context.Context, runID uuid.UUID) ([]domain.StageTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StageTask
	for _, task := range s.tasks {
		if task.RunID == runID {
			out = append(out, *task)
		}
	}
	return out, nil
}

func (s *memTaskStore) byStep(runID uuid.UUID, stepID string) *domain.StageTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.RunID == runID && task.StepID == stepID {
			c := *task
			return &c
		}
	}
	return nil
}

// memLedgerStore воспроизводит идемпотентность БД: повторная запись
// с тем же (run, task, attempt, status) игнорируется.
type memLedgerStore struct {
	mu      sync.Mutex
	entries []domain.RunLedgerEntry
	failN   int // сколько ближайших Append должны упасть
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{}
}

func (s *memLedgerStore) Append(_ context.Context, entry *domain.RunLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failN > 0 {
		s.failN--
		return fmt.Errorf("ledger unavailable")
	}
	for i := range s.entries {
		e := &s.entries[i]
		if e.RunID == entry.RunID && e.TaskID == entry.TaskID &&
			e.Attempt == entry.Attempt && e.Status == entry.Status {
			return nil
		}
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *memLedgerStore) ListByRun(_ context.Context, runID uuid.UUID) ([]domain.RunLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RunLedgerEntry
	for i := range s.entries {
		if s.entries[i].RunID == runID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *memLedgerStore) countByStepStatus(stepID string, status domain.TaskStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.entries {
		if s.entries[i].StepID == stepID && s.entries[i].Status == status {
			n++
		}
	}
	return n
}

// --- Fake внешнего движка ---

// fakeEngine разыгрывает сценарии внешних jobs: очередь результатов
// опроса по имени job; без сценария job успешен с первого опроса.
type fakeEngine struct {
	mu        sync.Mutex
	seq       int
	starts    []string
	handles   map[runner.JobHandle]string
	scripts   map[string][]runner.PollResult
	stuck     map[string]bool // job висит в RUNNING навсегда
	cancelled []runner.JobHandle
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		handles: make(map[runner.JobHandle]string),
		scripts: make(map[string][]runner.PollResult),
		stuck:   make(map[string]bool),
	}
}

func (f *fakeEngine) script(jobName string, results ...runner.PollResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[jobName] = append(f.scripts[jobName], results...)
}

func (f *fakeEngine) Start(_ context.Context, jobName string, _ map[string]any) (runner.JobHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	handle := runner.JobHandle(fmt.Sprintf("h-%d", f.seq))
	f.handles[handle] = jobName
	f.starts = append(f.starts, jobName)
	return handle, nil
}

func (f *fakeEngine) Poll(_ context.Context, handle runner.JobHandle) (runner.PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	jobName, ok := f.handles[handle]
	if !ok {
		return runner.PollResult{}, fmt.Errorf("unknown handle: %s", handle)
	}
	if f.stuck[jobName] {
		return runner.PollResult{State: runner.StateRunning}, nil
	}
	if queue := f.scripts[jobName]; len(queue) > 0 {
		result := queue[0]
		f.scripts[jobName] = queue[1:]
		return result, nil
	}
	return runner.PollResult{State: runner.StateSucceeded}, nil
}

func (f *fakeEngine) Cancel(_ context.Context, handle runner.JobHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, handle)
	return nil
}

func (f *fakeEngine) startOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.starts...)
}

func (f *fakeEngine) startCount(jobName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, name := range f.starts {
		if name == jobName {
			n++
		}
	}
	return n
}

type staticGuard struct {
	hasData bool
}

func (g staticGuard) HasData(_ context.Context, _ domain.Stage) (bool, error) {
	return g.hasData, nil
}

// --- Helpers ---

func chainSpec() *domain.PipelineSpec {
	return &domain.PipelineSpec{
		Name: "chain",
		Defaults: &domain.TaskDefaults{
			Retry: &domain.RetryPolicy{MaxAttempts: 3, Backoff: "fixed", InitialDelayMs: 1},
		},
		Tasks: []domain.TaskDef{
			{ID: "clean", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "clean-job"},
			{ID: "crawl_cleaned", Stage: domain.StageCleaned, Kind: domain.KindDiscover, JobName: "cleaned-crawler", DependsOn: []string{"clean"}},
			{ID: "curate", Stage: domain.StageCurated, Kind: domain.KindTransform, JobName: "curate-job", DependsOn: []string{"crawl_cleaned"}},
			{ID: "crawl_curated", Stage: domain.StageCurated, Kind: domain.KindDiscover, JobName: "curated-crawler", DependsOn: []string{"curate"}},
		},
	}
}

func fanOutSpec() *domain.PipelineSpec {
	return &domain.PipelineSpec{
		Name: "fanout",
		Defaults: &domain.TaskDefaults{
			Retry: &domain.RetryPolicy{MaxAttempts: 3, Backoff: "fixed", InitialDelayMs: 1},
		},
		Tasks: []domain.TaskDef{
			{ID: "clean", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "clean-job"},
			{ID: "curate_a", Stage: domain.StageCurated, Kind: domain.KindTransform, JobName: "curate-a-job", DependsOn: []string{"clean"}},
			{ID: "curate_b", Stage: domain.StageCurated, Kind: domain.KindTransform, JobName: "curate-b-job", DependsOn: []string{"clean"}},
		},
	}
}

type testEnv struct {
	orch    *Orchestrator
	runs    *memRunStore
	tasks   *memTaskStore
	ledger  *memLedgerStore
	engine  *fakeEngine
}

func newTestEnv(t *testing.T, spec *domain.PipelineSpec) *testEnv {
	t.Helper()

	runs := newMemRunStore()
	tasks := newMemTaskStore()
	ledger := newMemLedgerStore()
	eng := newFakeEngine()

	orch, err := New(Config{
		RunStore:         runs,
		TaskStore:        tasks,
		LedgerStore:      ledger,
		Jobs:             eng,
		Crawlers:         eng,
		Spec:             spec,
		TaskPollInterval: 5 * time.Millisecond,
		PollInterval:     time.Hour,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testEnv{orch: orch, runs: runs, tasks: tasks, ledger: ledger, engine: eng}
}

func newPendingRun(env *testEnv, pipeline string) *domain.PipelineRun {
	run := &domain.PipelineRun{
		ID:            uuid.New(),
		Pipeline:      pipeline,
		TriggerSource: "api",
		Status:        domain.RunStatusPending,
		CreatedAt:     time.Now(),
	}
	env.runs.put(run)
	return run
}

func waitForStatus(t *testing.T, env *testEnv, runID uuid.UUID, want domain.RunStatus) *domain.PipelineRun {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		run, err := env.runs.GetByID(context.Background(), runID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if run.Status == want {
			return run
		}
		if run.IsFinished() && run.Status != want {
			t.Fatalf("run finished with status %s, want %s (error: %q)", run.Status, want, run.Error)
		}
		time.Sleep(5 * time.Millisecond)
	}

	run, _ := env.runs.GetByID(context.Background(), runID)
	t.Fatalf("timeout waiting for status %s, got %s", want, run.Status)
	return nil
}

// --- Tests ---

func TestOrchestrator_ChainRunsInOrder(t *testing.T) {
	env := newTestEnv(t, chainSpec())
	run := newPendingRun(env, "chain")

	if err := env.orch.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("processRun() error = %v", err)
	}

	waitForStatus(t, env, run.ID, domain.RunStatusSucceeded)

	wantOrder := []string{"clean-job", "cleaned-crawler", "curate-job", "curated-crawler"}
	gotOrder := env.engine.startOrder()
	if len(gotOrder) != len(wantOrder) {
		t.Fatalf("starts = %v, want %v", gotOrder, wantOrder)
	}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Errorf("start[%d] = %s, want %s", i, gotOrder[i], wantOrder[i])
		}
	}

	// У каждого шага — запись о запуске и запись об успехе
	for _, stepID := range []string{"clean", "crawl_cleaned", "curate", "crawl_curated"} {
		if n := env.ledger.countByStepStatus(stepID, domain.TaskStatusRunning); n != 1 {
			t.Errorf("step %s: RUNNING entries = %d, want 1", stepID, n)
		}
		if n := env.ledger.countByStepStatus(stepID, domain.TaskStatusSucceeded); n != 1 {
			t.Errorf("step %s: SUCCEEDED entries = %d, want 1", stepID, n)
		}
	}
}

func TestOrchestrator_TransientFailureRetriesAndSucceeds(t *testing.T) {
	env := newTestEnv(t, chainSpec())
	env.engine.script("clean-job",
		runner.PollResult{State: runner.StateFailed, Reason: "throttling: rate exceeded", Class: domain.FailureTransient},
		runner.PollResult{State: runner.StateFailed, Reason: "timeout waiting for resources", Class: domain.FailureTransient},
	)

	run := newPendingRun(env, "chain")
	if err := env.orch.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("processRun() error = %v", err)
	}

	waitForStatus(t, env, run.ID, domain.RunStatusSucceeded)

	if n := env.engine.startCount("clean-job"); n != 3 {
		t.Errorf("clean-job starts = %d, want 3", n)
	}

	task := env.tasks.byStep(run.ID, "clean")
	if task == nil {
		t.Fatal("clean task not found")
	}
	if task.Attempt != 3 {
		t.Errorf("clean attempt = %d, want 3", task.Attempt)
	}
	if task.Status != domain.TaskStatusSucceeded {
		t.Errorf("clean status = %s, want SUCCEEDED", task.Status)
	}

	if n := env.ledger.countByStepStatus("clean", domain.TaskStatusRetrying); n != 2 {
		t.Errorf("clean RETRYING entries = %d, want 2", n)
	}
	if n := env.ledger.countByStepStatus("clean", domain.TaskStatusRunning); n != 3 {
		t.Errorf("clean RUNNING entries = %d, want 3", n)
	}
}

func TestOrchestrator_PermanentFailureBlocksDependents(t *testing.T) {
	env := newTestEnv(t, chainSpec())
	env.engine.script("clean-job",
		runner.PollResult{State: runner.StateFailed, Reason: "validation error: bad schema", Class: domain.FailurePermanent},
	)

	run := newPendingRun(env, "chain")
	if err := env.orch.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("processRun() error = %v", err)
	}

	got := waitForStatus(t, env, run.ID, domain.RunStatusFailed)

	// Permanent-ошибка — без retry
	if n := env.engine.startCount("clean-job"); n != 1 {
		t.Errorf("clean-job starts = %d, want 1", n)
	}

	// Зависимые никогда не запускались и остались PENDING
	for _, stepID := range []string{"crawl_cleaned", "curate", "crawl_curated"} {
		task := env.tasks.byStep(run.ID, stepID)
		if task == nil {
			t.Fatalf("task %s not found", stepID)
		}
		if task.Status != domain.TaskStatusPending {
			t.Errorf("task %s status = %s, want PENDING", stepID, task.Status)
		}
	}
	if len(env.engine.startOrder()) != 1 {
		t.Errorf("starts = %v, want only clean-job", env.engine.startOrder())
	}

	if !strings.Contains(got.Error, "clean") {
		t.Errorf("run error = %q, want mention of failed step", got.Error)
	}
	if !strings.Contains(got.Error, "blocked") {
		t.Errorf("run error = %q, want mention of blocked steps", got.Error)
	}
}

func TestOrchestrator_RetryCeiling(t *testing.T) {
	env := newTestEnv(t, chainSpec())
	// Больше сбоев, чем попыток: четвёртой попытки быть не должно
	fail := runner.PollResult{State: runner.StateFailed, Reason: "timeout", Class: domain.FailureTransient}
	env.engine.script("clean-job", fail, fail, fail, fail, fail)

	run := newPendingRun(env, "chain")
	if err := env.orch.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("processRun() error = %v", err)
	}

	waitForStatus(t, env, run.ID, domain.RunStatusFailed)

	if n := env.engine.startCount("clean-job"); n != 3 {
		t.Errorf("clean-job starts = %d, want 3", n)
	}

	task := env.tasks.byStep(run.ID, "clean")
	if task.Status != domain.TaskStatusFailed {
		t.Errorf("clean status = %s, want FAILED", task.Status)
	}
	if n := env.ledger.countByStepStatus("clean", domain.TaskStatusRetrying); n != 2 {
		t.Errorf("clean RETRYING entries = %d, want 2", n)
	}
	if n := env.ledger.countByStepStatus("clean", domain.TaskStatusFailed); n != 1 {
		t.Errorf("clean FAILED entries = %d, want 1", n)
	}
}

func TestOrchestrator_PartialFailureOnFanOut(t *testing.T) {
	env := newTestEnv(t, fanOutSpec())
	env.engine.script("curate-a-job",
		runner.PollResult{State: runner.StateFailed, Reason: "validation error", Class: domain.FailurePermanent},
	)

	run := newPendingRun(env, "fanout")
	if err := env.orch.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("processRun() error = %v", err)
	}

	// Одна ветка дошла до конца — PARTIALLY_FAILED, не FAILED
	waitForStatus(t, env, run.ID, domain.RunStatusPartiallyFailed)

	if task := env.tasks.byStep(run.ID, "curate_b"); task.Status != domain.TaskStatusSucceeded {
		t.Errorf("curate_b status = %s, want SUCCEEDED", task.Status)
	}
	if task := env.tasks.byStep(run.ID, "curate_a"); task.Status != domain.TaskStatusFailed {
		t.Errorf("curate_a status = %s, want FAILED", task.Status)
	}
}

func TestOrchestrator_CancelRunningRun(t *testing.T) {
	env := newTestEnv(t, chainSpec())
	env.engine.stuck["clean-job"] = true

	run := newPendingRun(env, "chain")
	if err := env.orch.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("processRun() error = %v", err)
	}

	waitForStatus(t, env, run.ID, domain.RunStatusRunning)

	// Дожидаемся запуска внешнего job, затем отменяем
	deadline := time.Now().Add(time.Second)
	for env.engine.startCount("clean-job") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := env.orch.CancelRun(context.Background(), run.ID); err != nil {
		t.Fatalf("CancelRun() error = %v", err)
	}

	waitForStatus(t, env, run.ID, domain.RunStatusCancelled)

	env.engine.mu.Lock()
	cancelledJobs := len(env.engine.cancelled)
	env.engine.mu.Unlock()
	if cancelledJobs == 0 {
		t.Error("external job was not cancelled")
	}

	// Незапущенные задачи тоже отменены
	for _, stepID := range []string{"crawl_cleaned", "curate", "crawl_curated"} {
		task := env.tasks.byStep(run.ID, stepID)
		if task.Status != domain.TaskStatusCancelled {
			t.Errorf("task %s status = %s, want CANCELLED", stepID, task.Status)
		}
	}
}

func TestOrchestrator_CancelPendingRun(t *testing.T) {
	env := newTestEnv(t, chainSpec())
	run := newPendingRun(env, "chain")

	if err := env.orch.CancelRun(context.Background(), run.ID); err != nil {
		t.Fatalf("CancelRun() error = %v", err)
	}

	got, _ := env.runs.GetByID(context.Background(), run.ID)
	if got.Status != domain.RunStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
	if len(env.engine.startOrder()) != 0 {
		t.Error("no jobs should have been started")
	}
}

func TestOrchestrator_CancelFinishedRun(t *testing.T) {
	env := newTestEnv(t, chainSpec())
	run := newPendingRun(env, "chain")

	if err := env.orch.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("processRun() error = %v", err)
	}
	waitForStatus(t, env, run.ID, domain.RunStatusSucceeded)

	err := env.orch.CancelRun(context.Background(), run.ID)
	if err == nil {
		t.Fatal("expected error cancelling finished run")
	}
}

func TestOrchestrator_RestoreSkipsCompletedSteps(t *testing.T) {
	env := newTestEnv(t, chainSpec())

	// Run был прерван рестартом: clean уже завершился,
	// остальные ещё не запускались
	run := &domain.PipelineRun{
		ID:            uuid.New(),
		Pipeline:      "chain",
		TriggerSource: "api",
		Status:        domain.RunStatusRunning,
		CreatedAt:     time.Now(),
	}
	run.MarkRunning()
	env.runs.put(run)

	cleanTask := &domain.StageTask{
		ID:        uuid.New(),
		RunID:     run.ID,
		StepID:    "clean",
		Stage:     domain.StageCleaned,
		Kind:      domain.KindTransform,
		JobName:   "clean-job",
		Status:    domain.TaskStatusPending,
		CreatedAt: time.Now(),
	}
	cleanTask.MarkRunning("h-old")
	env.ledger.Append(context.Background(), domain.NewLedgerEntry(cleanTask))
	cleanTask.MarkSucceeded()
	env.ledger.Append(context.Background(), domain.NewLedgerEntry(cleanTask))
	env.tasks.Create(context.Background(), cleanTask)

	for _, def := range chainSpec().Tasks[1:] {
		env.tasks.Create(context.Background(), &domain.StageTask{
			ID:        uuid.New(),
			RunID:     run.ID,
			StepID:    def.ID,
			Stage:     def.Stage,
			Kind:      def.Kind,
			JobName:   def.JobName,
			DependsOn: def.DependsOn,
			Status:    domain.TaskStatusPending,
			CreatedAt: time.Now(),
		})
	}

	stored, _ := env.runs.GetByID(context.Background(), run.ID)
	if err := env.orch.restoreRun(context.Background(), stored); err != nil {
		t.Fatalf("restoreRun() error = %v", err)
	}

	waitForStatus(t, env, run.ID, domain.RunStatusSucceeded)

	// Завершённый шаг не перезапускался
	if n := env.engine.startCount("clean-job"); n != 0 {
		t.Errorf("clean-job restarted %d times, want 0", n)
	}
	for _, jobName := range []string{"cleaned-crawler", "curate-job", "curated-crawler"} {
		if n := env.engine.startCount(jobName); n != 1 {
			t.Errorf("%s starts = %d, want 1", jobName, n)
		}
	}
}

func TestOrchestrator_EmptyRawAreaFailsEarly(t *testing.T) {
	env := newTestEnv(t, chainSpec())
	env.orch.lake = staticGuard{hasData: false}

	run := newPendingRun(env, "chain")
	if err := env.orch.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("processRun() error = %v", err)
	}

	got, _ := env.runs.GetByID(context.Background(), run.ID)
	if got.Status != domain.RunStatusFailed {
		t.Fatalf("status = %s, want FAILED", got.Status)
	}
	if !strings.Contains(got.Error, "raw area") {
		t.Errorf("error = %q, want raw area message", got.Error)
	}
	if len(env.engine.startOrder()) != 0 {
		t.Error("no jobs should have been started")
	}
}

func TestOrchestrator_LedgerOutageHaltsRun(t *testing.T) {
	env := newTestEnv(t, chainSpec())
	// Все повторы append исчерпаются
	env.ledger.mu.Lock()
	env.ledger.failN = 100
	env.ledger.mu.Unlock()

	run := newPendingRun(env, "chain")
	if err := env.orch.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("processRun() error = %v", err)
	}

	got := waitForStatus(t, env, run.ID, domain.RunStatusFailed)
	if !strings.Contains(got.Error, "halted") {
		t.Errorf("error = %q, want halted message", got.Error)
	}
}

func TestOrchestrator_ProcessRunRejectsNonPending(t *testing.T) {
	env := newTestEnv(t, chainSpec())

	run := newPendingRun(env, "chain")
	stored, _ := env.runs.GetByID(context.Background(), run.ID)
	stored.MarkRunning()
	env.runs.Update(context.Background(), stored)

	err := env.orch.processRun(context.Background(), run.ID)
	if err != ErrRunNotPending {
		t.Errorf("processRun() error = %v, want ErrRunNotPending", err)
	}
}

func TestOrchestrator_HandleRunPendingDrivesRun(t *testing.T) {
	env := newTestEnv(t, chainSpec())
	run := newPendingRun(env, "chain")

	delivery := &mq.Delivery{Message: mq.Message{
		ID:      uuid.NewString(),
		Type:    mq.MessageTypeRunPending,
		Payload: mq.RunPendingPayload{RunID: run.ID},
	}}

	if err := env.orch.handleRunPending(context.Background(), delivery); err != nil {
		t.Fatalf("handleRunPending() error = %v", err)
	}

	waitForStatus(t, env, run.ID, domain.RunStatusSucceeded)
}

func TestOrchestrator_HandleRunPendingRejectsMalformedPayload(t *testing.T) {
	env := newTestEnv(t, chainSpec())

	delivery := &mq.Delivery{Message: mq.Message{
		ID:      uuid.NewString(),
		Type:    mq.MessageTypeRunPending,
		Payload: map[string]any{"run_id": "not-a-uuid"},
	}}

	if err := env.orch.handleRunPending(context.Background(), delivery); err == nil {
		t.Fatal("handleRunPending() error = nil, want parse error")
	}
}

func TestCalculateBackoff(t *testing.T) {
	exp := &domain.RetryPolicy{Backoff: "exponential", InitialDelayMs: 1000, MaxDelayMs: 10000}

	tests := []struct {
		name    string
		attempt int
		policy  *domain.RetryPolicy
		want    time.Duration
	}{
		{"nil policy", 1, nil, time.Second},
		{"exponential first", 1, exp, time.Second},
		{"exponential second", 2, exp, 2 * time.Second},
		{"exponential fourth", 4, exp, 8 * time.Second},
		{"exponential capped", 10, exp, 10 * time.Second},
		{"fixed", 5, &domain.RetryPolicy{Backoff: "fixed", InitialDelayMs: 500}, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateBackoff(tt.attempt, tt.policy); got != tt.want {
				t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}
