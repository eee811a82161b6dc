package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики оркестратора.
var (
	// RunsStarted — количество запущенных runs.
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lakerunner_runs_started_total",
		Help: "Number of pipeline runs started.",
	})

	// RunsFinished — завершённые runs по терминальному статусу.
	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lakerunner_runs_finished_total",
		Help: "Number of pipeline runs finished, by terminal status.",
	}, []string{"status"})

	// TaskAttempts — попытки задач по стадии, виду и исходу.
	TaskAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lakerunner_task_attempts_total",
		Help: "Number of task attempts, by stage, kind and outcome.",
	}, []string{"stage", "kind", "outcome"})

	// LedgerAppends — записи в ledger по исходу.
	LedgerAppends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lakerunner_ledger_appends_total",
		Help: "Number of ledger append operations, by outcome.",
	}, []string{"outcome"})

	// PollCycles — циклы опроса внешних jobs.
	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lakerunner_poll_cycles_total",
		Help: "Number of external job poll cycles.",
	})

	// ActiveRuns — количество runs в обработке.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lakerunner_active_runs",
		Help: "Number of pipeline runs currently being driven.",
	})

	// QueriesExecuted — запросы через Query Router по исходу.
	QueriesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lakerunner_queries_total",
		Help: "Number of queries executed, by outcome.",
	}, []string{"outcome"})
)
