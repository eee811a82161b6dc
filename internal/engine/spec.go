package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// LoadSpec читает и валидирует PipelineSpec из YAML-файла.
// Циклическое или невалидное определение — ошибка загрузки,
// pipeline с таким определением не стартует никогда.
func LoadSpec(path string) (*domain.PipelineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline spec: %w", err)
	}
	return ParseSpec(data)
}

// ParseSpec парсит и валидирует PipelineSpec из YAML.
func ParseSpec(data []byte) (*domain.PipelineSpec, error) {
	var spec domain.PipelineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse pipeline spec: %w", err)
	}

	if err := Validate(&spec); err != nil {
		return nil, err
	}

	return &spec, nil
}

// Validate проверяет корректность PipelineSpec.
//
// Проверяет:
//   - наличие задач, непустые ID и имена jobs, уникальность ID
//   - известные stage и kind
//   - существование зависимостей, отсутствие self-dependency
//   - отсутствие циклов (через построение графа)
//   - discover-задача стадии видит все transform-задачи своей стадии
//     в транзитивном замыкании зависимостей
func Validate(spec *domain.PipelineSpec) error {
	if len(spec.Tasks) == 0 {
		return ErrEmptyTasks
	}

	seen := make(map[string]bool)
	for i := range spec.Tasks {
		def := &spec.Tasks[i]

		if def.ID == "" {
			return NewValidationError("", "id", "task has empty ID", ErrEmptyTaskID)
		}
		if seen[def.ID] {
			return NewValidationError(def.ID, "id",
				fmt.Sprintf("duplicate task ID: %s", def.ID), ErrDuplicateTaskID)
		}
		seen[def.ID] = true

		if def.JobName == "" {
			return NewValidationError(def.ID, "job", "task has empty job name", ErrEmptyJobName)
		}

		switch def.Stage {
		case domain.StageRaw, domain.StageCleaned, domain.StageCurated:
		default:
			return NewValidationError(def.ID, "stage",
				fmt.Sprintf("unknown stage: %s", def.Stage), ErrUnknownStage)
		}

		switch def.Kind {
		case domain.KindTransform, domain.KindDiscover:
		default:
			return NewValidationError(def.ID, "kind",
				fmt.Sprintf("unknown task kind: %s", def.Kind), ErrUnknownKind)
		}

		for _, depID := range def.DependsOn {
			if depID == def.ID {
				return NewValidationError(def.ID, "depends_on",
					"task depends on itself", ErrSelfDependency)
			}
		}
	}

	// Построение графа проверяет существование зависимостей и циклы
	graph, err := BuildGraph(spec)
	if err != nil {
		return err
	}

	return validateDiscoverOrdering(spec, graph)
}

// validateDiscoverOrdering проверяет, что discover-задача стадии
// зависит (транзитивно) от каждой transform-задачи той же стадии.
// Иначе каталог может обновиться по частично записанной области.
func validateDiscoverOrdering(spec *domain.PipelineSpec, graph *Graph) error {
	for i := range spec.Tasks {
		def := &spec.Tasks[i]
		if def.Kind != domain.KindDiscover {
			continue
		}

		upstream := transitiveDeps(graph.GetNode(def.ID))

		for j := range spec.Tasks {
			other := &spec.Tasks[j]
			if other.Kind != domain.KindTransform || other.Stage != def.Stage {
				continue
			}
			if !upstream[other.ID] {
				return NewValidationError(def.ID, "depends_on",
					fmt.Sprintf("discover task must depend on transform task %s of stage %s",
						other.ID, def.Stage),
					ErrMissingDependency)
			}
		}
	}
	return nil
}

// transitiveDeps возвращает транзитивное замыкание зависимостей узла.
func transitiveDeps(node *Node) map[string]bool {
	result := make(map[string]bool)

	var walk func(n *Node)
	walk = func(n *Node) {
		for _, dep := range n.DependsOn {
			if !result[dep.ID] {
				result[dep.ID] = true
				walk(dep)
			}
		}
	}
	walk(node)

	return result
}

// DefaultSpec возвращает встроенное определение двухстадийного pipeline:
//
//	transform-cleaned → discover-cleaned → transform-curated → discover-curated
//
// Имена jobs соответствуют внешнему движку по умолчанию.
func DefaultSpec() *domain.PipelineSpec {
	return &domain.PipelineSpec{
		Name: "default",
		Defaults: &domain.TaskDefaults{
			Retry: &domain.RetryPolicy{
				MaxAttempts:    3,
				Backoff:        "exponential",
				InitialDelayMs: 2000,
				MaxDelayMs:     60000,
			},
		},
		Tasks: []domain.TaskDef{
			{
				ID:      "transform-cleaned",
				Stage:   domain.StageCleaned,
				Kind:    domain.KindTransform,
				JobName: "raw-to-cleaned-etl",
			},
			{
				ID:        "discover-cleaned",
				Stage:     domain.StageCleaned,
				Kind:      domain.KindDiscover,
				JobName:   "cleaned-crawler",
				DependsOn: []string{"transform-cleaned"},
			},
			{
				ID:        "transform-curated",
				Stage:     domain.StageCurated,
				Kind:      domain.KindTransform,
				JobName:   "cleaned-to-curated-etl",
				DependsOn: []string{"discover-cleaned"},
			},
			{
				ID:        "discover-curated",
				Stage:     domain.StageCurated,
				Kind:      domain.KindDiscover,
				JobName:   "curated-crawler",
				DependsOn: []string{"transform-curated"},
			},
		},
	}
}
