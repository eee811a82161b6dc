// Package cli реализует инструмент командной строки Lakerunner.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Lakerunner API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для запуска pipelines, наблюдения за runs,
// запросов к curated-данным и управления расписаниями.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Lakerunner API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns(cli.ListRunsOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: lakerunner run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - pipeline: list, show
//   - run: list, start, show, cancel, tasks, ledger
//   - query: запрос к curated-данным (текст или структурированные флаги)
//   - schedule: list, create, show, update, delete, enable, disable
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
