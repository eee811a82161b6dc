// Lakerunner Orchestrator — управляет выполнением pipeline runs.
//
// Orchestrator:
//   - Получает новые runs из RabbitMQ (с polling-fallback)
//   - Материализует tasks из определения pipeline
//   - Запускает jobs и crawlers во внешнем движке и опрашивает их
//   - Ведёт ledger попыток и финализирует runs
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Lakerunner/internal/domain"
	"github.com/shaiso/Lakerunner/internal/engine"
	"github.com/shaiso/Lakerunner/internal/mq"
	"github.com/shaiso/Lakerunner/internal/orchestrator"
	"github.com/shaiso/Lakerunner/internal/repo"
	"github.com/shaiso/Lakerunner/internal/runner"
	"github.com/shaiso/Lakerunner/internal/storage"
	"github.com/shaiso/Lakerunner/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting lakerunner-orchestrator")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	runRepo := repo.NewRunRepo(pool)
	taskRepo := repo.NewTaskRepo(pool)
	ledgerRepo := repo.NewLedgerRepo(pool)

	// Определение pipeline, который выполняет этот оркестратор
	var spec *domain.PipelineSpec
	if path := os.Getenv("PIPELINE_SPEC"); path != "" {
		spec, err = engine.LoadSpec(path)
		if err != nil {
			logger.Error("failed to load pipeline spec", "path", path, "error", err)
			os.Exit(1)
		}
	} else {
		spec = engine.DefaultSpec()
	}
	logger.Info("pipeline loaded", "name", spec.Name, "tasks", len(spec.Tasks))

	// Клиенты внешнего движка
	engineURL := os.Getenv("ENGINE_URL")
	if engineURL == "" {
		engineURL = "http://localhost:8085"
	}
	jobs := runner.NewJobClient(engineURL)
	crawlers := runner.NewCrawlerClient(engineURL)

	// Lake — guard raw-области: run без данных падает сразу
	var lake *storage.Lake
	lakeCfg, err := storage.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid lake configuration", "error", err)
		os.Exit(1)
	}
	lake, err = storage.NewLake(lakeCfg)
	if err != nil {
		logger.Warn("lake not available, raw-area guard disabled", "error", err)
		lake = nil
	} else if err := lake.EnsureAreas(ctx); err != nil {
		logger.Warn("failed to ensure lake areas", "error", err)
	}

	// RabbitMQ
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Создаём orchestrator
	cfg := orchestrator.Config{
		RunStore:    runRepo,
		TaskStore:   taskRepo,
		LedgerStore: ledgerRepo,
		Jobs:        jobs,
		Crawlers:    crawlers,
		Spec:        spec,
		Conn:        mqConn,
		Logger:      logger,
	}
	// Типизированный nil в интерфейсном поле обходит проверки на nil,
	// поэтому опциональные зависимости присваиваются только при наличии.
	if lake != nil {
		cfg.Lake = lake
	}
	if publisher != nil {
		cfg.Notifier = publisher
	}

	orch, err := orchestrator.New(cfg)
	if err != nil {
		logger.Error("failed to create orchestrator", "error", err)
		os.Exit(1)
	}

	// Запускаем orchestrator
	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("ORCH_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем orchestrator
	orch.Stop()
	logger.Info("lakerunner-orchestrator stopped")
}
