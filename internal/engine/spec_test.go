package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Lakerunner/internal/domain"
)

func TestParseSpec_YAML(t *testing.T) {
	data := []byte(`
name: sales-lake
defaults:
  retry:
    max_attempts: 5
    backoff: exponential
    initial_delay_ms: 1000
tasks:
  - id: transform-cleaned
    stage: cleaned
    kind: transform
    job: raw-to-cleaned-etl
  - id: discover-cleaned
    stage: cleaned
    kind: discover
    job: cleaned-crawler
    depends_on: [transform-cleaned]
`)

	spec, err := ParseSpec(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spec.Name != "sales-lake" {
		t.Errorf("expected name sales-lake, got %s", spec.Name)
	}
	if len(spec.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(spec.Tasks))
	}
	if spec.Tasks[1].DependsOn[0] != "transform-cleaned" {
		t.Error("discover-cleaned should depend on transform-cleaned")
	}

	policy := spec.RetryFor(&spec.Tasks[0])
	if policy == nil || policy.MaxAttempts != 5 {
		t.Error("default retry policy should apply")
	}
}

func TestValidate_EmptyTasks(t *testing.T) {
	err := Validate(&domain.PipelineSpec{})
	if !errors.Is(err, ErrEmptyTasks) {
		t.Errorf("expected ErrEmptyTasks, got %v", err)
	}
}

func TestValidate_DuplicateID(t *testing.T) {
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "a", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "j"},
			{ID: "a", Stage: domain.StageCleaned, Kind: domain.KindDiscover, JobName: "j"},
		},
	}
	err := Validate(spec)
	if !errors.Is(err, ErrDuplicateTaskID) {
		t.Errorf("expected ErrDuplicateTaskID, got %v", err)
	}
}

func TestValidate_UnknownStage(t *testing.T) {
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "a", Stage: "bronze", Kind: domain.KindTransform, JobName: "j"},
		},
	}
	err := Validate(spec)
	if !errors.Is(err, ErrUnknownStage) {
		t.Errorf("expected ErrUnknownStage, got %v", err)
	}
}

func TestValidate_SelfDependency(t *testing.T) {
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "a", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "j", DependsOn: []string{"a"}},
		},
	}
	err := Validate(spec)
	if !errors.Is(err, ErrSelfDependency) {
		t.Errorf("expected ErrSelfDependency, got %v", err)
	}
}

func TestValidate_CycleRejectedAtLoad(t *testing.T) {
	// Цикл отвергается при загрузке, не в рантайме
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "a", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "j", DependsOn: []string{"c"}},
			{ID: "b", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "j", DependsOn: []string{"a"}},
			{ID: "c", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "j", DependsOn: []string{"b"}},
		},
	}
	err := Validate(spec)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestValidate_DiscoverMustFollowTransform(t *testing.T) {
	// discover без зависимости от transform своей стадии —
	// каталог мог бы обновиться по частично записанной области
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "transform-cleaned", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "etl"},
			{ID: "discover-cleaned", Stage: domain.StageCleaned, Kind: domain.KindDiscover, JobName: "crawler"},
		},
	}
	err := Validate(spec)
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("expected ErrMissingDependency, got %v", err)
	}
}

func TestValidate_DiscoverTransitiveDependency(t *testing.T) {
	// Транзитивная зависимость discover → transform достаточна
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "t1", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "etl"},
			{ID: "mid", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "etl2", DependsOn: []string{"t1"}},
			{ID: "d1", Stage: domain.StageCleaned, Kind: domain.KindDiscover, JobName: "crawler", DependsOn: []string{"mid"}},
		},
	}
	if err := Validate(spec); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDefaultSpec_Valid(t *testing.T) {
	spec := DefaultSpec()
	if err := Validate(spec); err != nil {
		t.Fatalf("default spec must be valid: %v", err)
	}
	if len(spec.Tasks) != 4 {
		t.Errorf("expected 4 tasks in default spec, got %d", len(spec.Tasks))
	}
}
