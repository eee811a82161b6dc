// Package runner содержит клиентов внешних исполнителей.
//
// Оркестратор не выполняет трансформации сам — он запускает jobs
// во внешнем движке и опрашивает их статус:
//   - runner.go   — интерфейсы JobRunner и CatalogRefresher
//   - classify.go — классификация ошибок (transient/permanent)
//   - http.go     — HTTP-реализация поверх REST API движка
//
// Оба клиента имеют одинаковую двухоперационную форму:
// Start возвращает асинхронный handle, Poll — терминальный статус.
package runner
