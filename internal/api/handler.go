package api

import (
	"log/slog"

	"github.com/shaiso/Lakerunner/internal/domain"
	"github.com/shaiso/Lakerunner/internal/mq"
	"github.com/shaiso/Lakerunner/internal/query"
	"github.com/shaiso/Lakerunner/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runRepo      *repo.RunRepo
	taskRepo     *repo.TaskRepo
	ledgerRepo   *repo.LedgerRepo
	scheduleRepo *repo.ScheduleRepo
	publisher    *mq.Publisher
	queryRouter  *query.Router
	pipelines    map[string]*domain.PipelineSpec
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	RunRepo      *repo.RunRepo
	TaskRepo     *repo.TaskRepo
	LedgerRepo   *repo.LedgerRepo
	ScheduleRepo *repo.ScheduleRepo

	// Publisher — публикация run.pending (опционально,
	// без него orchestrator подхватывает runs через polling).
	Publisher *mq.Publisher

	// QueryRouter — выполнение запросов к curated-данным
	// (опционально, без него /query возвращает 503).
	QueryRouter *query.Router

	// Pipelines — загруженные определения pipelines по имени.
	Pipelines map[string]*domain.PipelineSpec

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		runRepo:      cfg.RunRepo,
		taskRepo:     cfg.TaskRepo,
		ledgerRepo:   cfg.LedgerRepo,
		scheduleRepo: cfg.ScheduleRepo,
		publisher:    cfg.Publisher,
		queryRouter:  cfg.QueryRouter,
		pipelines:    cfg.Pipelines,
		logger:       cfg.Logger,
	}
}
