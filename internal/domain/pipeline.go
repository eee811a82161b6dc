package domain

// Stage — уровень готовности данных в data lake.
//
// Данные проходят стадии последовательно:
//
//	raw → cleaned → curated
type Stage string

const (
	// StageRaw — сырые данные, как они пришли от источников.
	StageRaw Stage = "raw"

	// StageCleaned — очищенные и дедуплицированные данные.
	StageCleaned Stage = "cleaned"

	// StageCurated — агрегированные данные, готовые к запросам.
	StageCurated Stage = "curated"
)

// TaskKind — вид задачи внутри стадии.
type TaskKind string

const (
	// KindTransform — запуск внешнего transformation job
	// (читает из исходной области, пишет в целевую).
	KindTransform TaskKind = "transform"

	// KindDiscover — запуск внешнего schema-discovery job (crawler),
	// обновляющего каталог целевой области.
	KindDiscover TaskKind = "discover"
)

// PipelineSpec — определение pipeline: набор задач с зависимостями.
//
// Это "программа" для Lakerunner — какие внешние jobs запускать
// и в каком порядке. Граф зависимостей фиксирован на время жизни
// определения; циклы отвергаются при загрузке, не в рантайме.
type PipelineSpec struct {
	// Name — имя pipeline (например, "default", "sales-lake").
	Name string `json:"name" yaml:"name"`

	// Tasks — список определений задач.
	Tasks []TaskDef `json:"tasks" yaml:"tasks"`

	// Defaults — настройки по умолчанию для всех задач.
	Defaults *TaskDefaults `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// TaskDef — определение одной задачи pipeline.
type TaskDef struct {
	// ID — уникальный идентификатор задачи в рамках pipeline.
	// Используется в depends_on и как ключ в ledger.
	ID string `json:"id" yaml:"id"`

	// Stage — целевая стадия задачи (cleaned, curated).
	Stage Stage `json:"stage" yaml:"stage"`

	// Kind — вид задачи: transform или discover.
	Kind TaskKind `json:"kind" yaml:"kind"`

	// JobName — имя внешнего job, который запускает эта задача.
	JobName string `json:"job" yaml:"job"`

	// DependsOn — ID задач, которые должны завершиться Succeeded
	// до запуска этой задачи.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// Params — параметры, передаваемые внешнему job при запуске.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// Retry — политика повторных попыток. Переопределяет defaults.
	Retry *RetryPolicy `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// TaskDefaults — настройки по умолчанию для задач pipeline.
type TaskDefaults struct {
	// Retry — политика повторных попыток по умолчанию.
	Retry *RetryPolicy `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// RetryPolicy — политика повторных попыток задачи.
//
// Retry применяется только к transient-ошибкам (timeout, throttling).
// Permanent-ошибки проваливают задачу с первой попытки.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`

	// Backoff — стратегия задержки: "fixed", "exponential".
	Backoff string `json:"backoff,omitempty" yaml:"backoff,omitempty"`

	// InitialDelayMs — начальная задержка в миллисекундах.
	InitialDelayMs int `json:"initial_delay_ms,omitempty" yaml:"initial_delay_ms,omitempty"`

	// MaxDelayMs — максимальная задержка в миллисекундах.
	MaxDelayMs int `json:"max_delay_ms,omitempty" yaml:"max_delay_ms,omitempty"`
}

// RetryFor возвращает действующую политику retry для задачи:
// свою, либо из defaults, либо nil.
func (s *PipelineSpec) RetryFor(def *TaskDef) *RetryPolicy {
	if def.Retry != nil {
		return def.Retry
	}
	if s.Defaults != nil {
		return s.Defaults.Retry
	}
	return nil
}

// TaskDefByID возвращает определение задачи по ID.
func (s *PipelineSpec) TaskDefByID(id string) *TaskDef {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}
