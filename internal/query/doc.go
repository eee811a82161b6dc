// Package query — маршрутизация аналитических запросов к curated-данным.
//
// Router принимает либо готовый StructuredQuery, либо текст на
// естественном языке. Текст проходит через Translator; его отказ
// понять запрос (UnderstandingError) отличим от ошибки выполнения
// (ExecutionError) — вызывающая сторона всегда знает, что именно
// пошло не так: "не понял" или "понял, но запрос к данным упал".
//
//   - router.go     — Router и контракты Translator/Engine
//   - errors.go     — типизированные ошибки двух классов
//   - sql.go        — сборка SQL из StructuredQuery с проверкой схемы
//   - pg.go         — выполнение через PostgreSQL
//   - translator.go — HTTP-клиент транслятора
package query
