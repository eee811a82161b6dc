package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Lakerunner/internal/domain"
)

func chainSpec() *domain.PipelineSpec {
	// transform-1 → discover-1 → transform-2 → discover-2
	return &domain.PipelineSpec{
		Name: "chain",
		Tasks: []domain.TaskDef{
			{ID: "transform-1", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "etl-1"},
			{ID: "discover-1", Stage: domain.StageCleaned, Kind: domain.KindDiscover, JobName: "crawl-1", DependsOn: []string{"transform-1"}},
			{ID: "transform-2", Stage: domain.StageCurated, Kind: domain.KindTransform, JobName: "etl-2", DependsOn: []string{"discover-1"}},
			{ID: "discover-2", Stage: domain.StageCurated, Kind: domain.KindDiscover, JobName: "crawl-2", DependsOn: []string{"transform-2"}},
		},
	}
}

func TestBuildGraph_Chain(t *testing.T) {
	graph, err := BuildGraph(chainSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if graph.Size() != 4 {
		t.Errorf("expected 4 nodes, got %d", graph.Size())
	}

	if len(graph.RootNodes) != 1 {
		t.Fatalf("expected 1 root node, got %d", len(graph.RootNodes))
	}
	if graph.RootNodes[0].ID != "transform-1" {
		t.Errorf("expected root transform-1, got %s", graph.RootNodes[0].ID)
	}

	// Проверяем зависимости
	node := graph.GetNode("transform-2")
	if len(node.DependsOn) != 1 || node.DependsOn[0].ID != "discover-1" {
		t.Error("transform-2 should depend on discover-1")
	}
	if node.InDegree != 1 {
		t.Errorf("transform-2 should have inDegree 1, got %d", node.InDegree)
	}
}

func TestBuildGraph_Cycle(t *testing.T) {
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "a", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "j1", DependsOn: []string{"b"}},
			{ID: "b", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "j2", DependsOn: []string{"a"}},
		},
	}

	_, err := BuildGraph(spec)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestBuildGraph_MissingDependency(t *testing.T) {
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "a", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "j1", DependsOn: []string{"ghost"}},
		},
	}

	_, err := BuildGraph(spec)
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("expected ErrMissingDependency, got %v", err)
	}
}

func TestNextRunnable_Chain(t *testing.T) {
	graph, err := BuildGraph(chainSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := map[string]domain.TaskStatus{
		"transform-1": domain.TaskStatusPending,
		"discover-1":  domain.TaskStatusPending,
		"transform-2": domain.TaskStatusPending,
		"discover-2":  domain.TaskStatusPending,
	}

	// Первый вызов — только transform-1
	runnable := graph.NextRunnable(statuses)
	if len(runnable) != 1 || runnable[0].ID != "transform-1" {
		t.Fatalf("expected only transform-1 runnable, got %v", nodeIDs(runnable))
	}

	// После успеха transform-1 — только discover-1
	statuses["transform-1"] = domain.TaskStatusSucceeded
	runnable = graph.NextRunnable(statuses)
	if len(runnable) != 1 || runnable[0].ID != "discover-1" {
		t.Fatalf("expected only discover-1 runnable, got %v", nodeIDs(runnable))
	}

	// Running зависимость не открывает зависимых
	statuses["discover-1"] = domain.TaskStatusRunning
	runnable = graph.NextRunnable(statuses)
	if len(runnable) != 0 {
		t.Fatalf("expected nothing runnable while discover-1 is running, got %v", nodeIDs(runnable))
	}
}

func TestNextRunnable_Diamond_CompletenessAndSoundness(t *testing.T) {
	// a → b → d
	// a → c → d
	spec := &domain.PipelineSpec{
		Tasks: []domain.TaskDef{
			{ID: "a", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "j"},
			{ID: "b", Stage: domain.StageCleaned, Kind: domain.KindTransform, JobName: "j", DependsOn: []string{"a"}},
			{ID: "c", Stage: domain.StageCurated, Kind: domain.KindTransform, JobName: "j", DependsOn: []string{"a"}},
			{ID: "d", Stage: domain.StageCurated, Kind: domain.KindTransform, JobName: "j", DependsOn: []string{"b", "c"}},
		},
	}

	graph, err := BuildGraph(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := map[string]domain.TaskStatus{
		"a": domain.TaskStatusSucceeded,
		"b": domain.TaskStatusPending,
		"c": domain.TaskStatusPending,
		"d": domain.TaskStatusPending,
	}

	// Полнота: обе открытые задачи возвращаются
	runnable := graph.NextRunnable(statuses)
	if len(runnable) != 2 {
		t.Fatalf("expected b and c runnable, got %v", nodeIDs(runnable))
	}

	// Корректность: d не возвращается, пока c не Succeeded
	statuses["b"] = domain.TaskStatusSucceeded
	runnable = graph.NextRunnable(statuses)
	if len(runnable) != 1 || runnable[0].ID != "c" {
		t.Fatalf("expected only c runnable, got %v", nodeIDs(runnable))
	}

	statuses["c"] = domain.TaskStatusSucceeded
	runnable = graph.NextRunnable(statuses)
	if len(runnable) != 1 || runnable[0].ID != "d" {
		t.Fatalf("expected only d runnable, got %v", nodeIDs(runnable))
	}
}

func TestIsStalled(t *testing.T) {
	graph, err := BuildGraph(chainSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// discover-1 упал — transform-2 и discover-2 навсегда PENDING
	statuses := map[string]domain.TaskStatus{
		"transform-1": domain.TaskStatusSucceeded,
		"discover-1":  domain.TaskStatusFailed,
		"transform-2": domain.TaskStatusPending,
		"discover-2":  domain.TaskStatusPending,
	}

	if !graph.IsStalled(statuses) {
		t.Error("pipeline should be stalled")
	}
	if graph.IsComplete(statuses) {
		t.Error("pipeline should not be complete")
	}

	blocked := graph.BlockedBy(statuses)
	if len(blocked) != 2 {
		t.Fatalf("expected 2 blocked tasks, got %v", blocked)
	}
	if blocked[0] != "transform-2" || blocked[1] != "discover-2" {
		t.Errorf("expected [transform-2 discover-2], got %v", blocked)
	}
}

func TestIsStalled_NotWhileRunning(t *testing.T) {
	graph, err := BuildGraph(chainSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := map[string]domain.TaskStatus{
		"transform-1": domain.TaskStatusRunning,
		"discover-1":  domain.TaskStatusPending,
		"transform-2": domain.TaskStatusPending,
		"discover-2":  domain.TaskStatusPending,
	}

	if graph.IsStalled(statuses) {
		t.Error("pipeline with a running task is not stalled")
	}
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
