// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go           — Handler с DI (репозитории, publisher, query router, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery)
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - dto.go               — Data Transfer Objects (request/response)
//   - pipeline_handler.go  — обработчики для /pipelines
//   - run_handler.go       — обработчики для /runs
//   - schedule_handler.go  — обработчики для /schedules
//   - query_handler.go     — обработчик для /query
//
// API предоставляет REST endpoints для запуска pipelines, наблюдения
// за runs, управления расписаниями и запросов к curated-данным.
package api
