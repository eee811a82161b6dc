// Package orchestrator — движок выполнения pipeline runs.
//
// Оркестратор не выполняет работу сам: он запускает внешние jobs
// (через клиентов из internal/runner), опрашивает их статусы и ведёт
// append-only ledger каждой попытки. Всё состояние run живёт в БД и
// ledger, не в памяти процесса — после рестарта любой run
// восстанавливается целиком из этих записей.
//
// Каждый активный run обслуживается собственной горутиной с
// независимым циклом опроса; runs не блокируют друг друга.
//
//   - orchestrator.go — Orchestrator, конфигурация, lifecycle
//   - state.go        — состояние одного run в памяти
//   - drive.go        — цикл выполнения run: dispatch, poll, retry, финализация
//   - handlers.go     — обработка событий очереди и отмена runs
//   - errors.go       — ошибки оркестратора
package orchestrator
