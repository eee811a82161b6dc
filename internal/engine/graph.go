package engine

import (
	"fmt"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// Node — узел графа зависимостей.
type Node struct {
	// Def — определение задачи из PipelineSpec.
	Def *domain.TaskDef

	// ID — идентификатор узла (совпадает с Def.ID).
	ID string

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// Graph — направленный ациклический граф задач pipeline.
//
// Строится один раз при загрузке определения. Циклическое определение
// отвергается здесь же — в рантайме циклы невозможны.
type Graph struct {
	// Nodes — все узлы графа (taskID → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей (точки входа).
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// BuildGraph строит граф зависимостей из PipelineSpec.
// Возвращает ErrCyclicDependency, если определение содержит цикл.
func BuildGraph(spec *domain.PipelineSpec) (*Graph, error) {
	g := &Graph{
		Nodes:     make(map[string]*Node),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы
	for i := range spec.Tasks {
		def := &spec.Tasks[i]
		g.Nodes[def.ID] = &Node{
			Def:        def,
			ID:         def.ID,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
	}

	// Второй проход: связываем узлы по зависимостям
	for i := range spec.Tasks {
		def := &spec.Tasks[i]
		node := g.Nodes[def.ID]

		for _, depID := range def.DependsOn {
			depNode, exists := g.Nodes[depID]
			if !exists {
				return nil, NewValidationError(def.ID, "depends_on",
					fmt.Sprintf("depends on unknown task: %s", depID), ErrMissingDependency)
			}
			g.addEdge(depNode, node)
		}
	}

	// Находим корневые узлы
	for _, node := range g.Nodes {
		if node.InDegree == 0 {
			g.RootNodes = append(g.RootNodes, node)
		}
	}

	// Проверяем на циклы и строим топологический порядок
	order, err := g.topologicalSort()
	if err != nil {
		return nil, err
	}
	g.Order = order

	return g, nil
}

// addEdge добавляет ребро между узлами.
// Дубликаты игнорируются, чтобы избежать двойного учёта InDegree.
func (g *Graph) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.ID == from.ID {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (g *Graph) topologicalSort() ([]*Node, error) {
	inDegree := make(map[string]int)
	for id, node := range g.Nodes {
		inDegree[id] = node.InDegree
	}

	queue := make([]*Node, len(g.RootNodes))
	copy(queue, g.RootNodes)

	order := make([]*Node, 0, len(g.Nodes))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, dependent := range node.Dependents {
			inDegree[dependent.ID]--
			if inDegree[dependent.ID] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(g.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// NextRunnable возвращает задачи, готовые к запуску.
//
// Задача готова, если её собственный статус PENDING и все зависимости
// в статусе SUCCEEDED. Чистая функция от statuses — без side effects.
//
// statuses — map taskID → текущий статус задачи.
func (g *Graph) NextRunnable(statuses map[string]domain.TaskStatus) []*Node {
	runnable := make([]*Node, 0)

	for _, node := range g.Order {
		if statuses[node.ID] != domain.TaskStatusPending {
			continue
		}

		ready := true
		for _, dep := range node.DependsOn {
			if statuses[dep.ID] != domain.TaskStatusSucceeded {
				ready = false
				break
			}
		}

		if ready {
			runnable = append(runnable, node)
		}
	}

	return runnable
}

// IsComplete проверяет, все ли задачи в терминальном статусе.
func (g *Graph) IsComplete(statuses map[string]domain.TaskStatus) bool {
	for id := range g.Nodes {
		if !statuses[id].IsTerminal() {
			return false
		}
	}
	return true
}

// IsStalled проверяет, застрял ли pipeline: ничего не выполняется,
// ничего не готово к запуску, но не все задачи терминальны.
// Возможно только когда упавшая задача навсегда заблокировала зависимых.
func (g *Graph) IsStalled(statuses map[string]domain.TaskStatus) bool {
	if g.IsComplete(statuses) {
		return false
	}
	for id, st := range statuses {
		if _, ok := g.Nodes[id]; !ok {
			continue
		}
		if st == domain.TaskStatusRunning || st == domain.TaskStatusRetrying {
			return false
		}
	}
	return len(g.NextRunnable(statuses)) == 0
}

// BlockedBy возвращает задачи, транзитивно зависящие от упавших.
// Эти задачи никогда не выйдут из PENDING.
func (g *Graph) BlockedBy(statuses map[string]domain.TaskStatus) []string {
	blocked := make(map[string]bool)

	var markDependents func(node *Node)
	markDependents = func(node *Node) {
		for _, dep := range node.Dependents {
			if !blocked[dep.ID] {
				blocked[dep.ID] = true
				markDependents(dep)
			}
		}
	}

	for id, st := range statuses {
		if st == domain.TaskStatusFailed {
			if node, ok := g.Nodes[id]; ok {
				markDependents(node)
			}
		}
	}

	result := make([]string, 0, len(blocked))
	for _, node := range g.Order {
		if blocked[node.ID] {
			result = append(result, node.ID)
		}
	}
	return result
}

// GetNode возвращает узел по ID.
func (g *Graph) GetNode(id string) *Node {
	return g.Nodes[id]
}

// Size возвращает количество узлов в графе.
func (g *Graph) Size() int {
	return len(g.Nodes)
}
