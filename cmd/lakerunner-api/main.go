// Lakerunner API — HTTP-сервер управления data-pipeline.
//
// API обслуживает:
//   - Запуск и наблюдение за pipeline runs
//   - Запросы к curated-данным (текстовые и структурированные)
//   - Управление расписаниями
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Lakerunner/internal/api"
	"github.com/shaiso/Lakerunner/internal/domain"
	"github.com/shaiso/Lakerunner/internal/engine"
	"github.com/shaiso/Lakerunner/internal/mq"
	"github.com/shaiso/Lakerunner/internal/query"
	"github.com/shaiso/Lakerunner/internal/repo"
	"github.com/shaiso/Lakerunner/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lakerunner_api_http_requests_total",
		Help: "Total HTTP requests handled by lakerunner_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting lakerunner-api")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	runRepo := repo.NewRunRepo(pool)
	taskRepo := repo.NewTaskRepo(pool)
	ledgerRepo := repo.NewLedgerRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	// Загружаем определения pipelines
	pipelines := loadPipelines(logger)

	// RabbitMQ — опционально: без него orchestrator подхватит runs polling'ом
	var publisher *mq.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	if mqConn, err := mq.NewConnection(mqURL, logger); err != nil {
		logger.Warn("RabbitMQ not available, runs will be picked up by polling", "error", err)
	} else {
		defer mqConn.Close()
		publisher = mq.NewPublisher(mqConn, logger)
		logger.Info("RabbitMQ connected")
	}

	// Query router — опционально: без curated-таблицы /query отвечает 503
	var queryRouter *query.Router
	table := os.Getenv("QUERY_TABLE")
	if table == "" {
		table = "curated_sales"
	}
	if pgEngine, err := query.NewPGEngine(context.Background(), pool, table); err != nil {
		logger.Warn("query engine unavailable", "table", table, "error", err)
	} else {
		translatorURL := os.Getenv("TRANSLATOR_URL")
		if translatorURL == "" {
			translatorURL = "http://localhost:8090"
		}
		queryRouter = query.NewRouter(query.NewHTTPTranslator(translatorURL), pgEngine)
		logger.Info("query router ready", "table", table)
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		RunRepo:      runRepo,
		TaskRepo:     taskRepo,
		LedgerRepo:   ledgerRepo,
		ScheduleRepo: scheduleRepo,
		Publisher:    publisher,
		QueryRouter:  queryRouter,
		Pipelines:    pipelines,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// loadPipelines читает определения pipelines: PIPELINE_SPEC может
// содержать несколько YAML-файлов через запятую. Без переменной
// используется встроенное определение по умолчанию.
func loadPipelines(logger *slog.Logger) map[string]*domain.PipelineSpec {
	pipelines := make(map[string]*domain.PipelineSpec)

	paths := os.Getenv("PIPELINE_SPEC")
	if paths == "" {
		spec := engine.DefaultSpec()
		pipelines[spec.Name] = spec
		return pipelines
	}

	for _, path := range strings.Split(paths, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		spec, err := engine.LoadSpec(path)
		if err != nil {
			logger.Error("failed to load pipeline spec", "path", path, "error", err)
			os.Exit(1)
		}
		pipelines[spec.Name] = spec
		logger.Info("pipeline loaded", "name", spec.Name, "tasks", len(spec.Tasks))
	}

	return pipelines
}
