// Package engine содержит stage sequencer — чистую логику порядка
// выполнения задач pipeline.
//
// Включает:
//   - spec.go   — загрузка и валидация PipelineSpec из YAML
//   - graph.go  — построение графа зависимостей, проверка циклов, NextRunnable
//   - replay.go — восстановление статусов задач из записей ledger
//
// Engine не делает I/O: граф строится один раз при загрузке определения,
// NextRunnable — чистая функция от статусов задач.
package engine
