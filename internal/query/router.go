package query

import (
	"context"
	"errors"
	"sort"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// Translator — контракт транслятора естественного языка.
//
// Translate возвращает *UnderstandingError, если текст не удалось
// однозначно превратить в StructuredQuery. Угадывание запрещено.
type Translator interface {
	Translate(ctx context.Context, text string) (*domain.StructuredQuery, error)
}

// Engine — контракт движка выполнения запросов к curated-данным.
type Engine interface {
	Execute(ctx context.Context, q *domain.StructuredQuery) ([]domain.QueryRow, error)
}

// ErrEmptyRequest — запрос не содержит ни текста, ни StructuredQuery.
var ErrEmptyRequest = errors.New("query request is empty")

// Request — входной запрос: либо текст, либо готовый StructuredQuery.
// Если заданы оба, используется Query, текст игнорируется.
type Request struct {
	Text  string                  `json:"text,omitempty"`
	Query *domain.StructuredQuery `json:"query,omitempty"`
}

// Result — результат выполнения запроса.
type Result struct {
	// Query — фактически выполненный StructuredQuery (полезно, когда
	// запрос пришёл текстом: вызывающая сторона видит интерпретацию).
	Query *domain.StructuredQuery `json:"query"`

	// Rows — строки результата после дедупликации.
	Rows []domain.QueryRow `json:"rows"`
}

// Router — маршрутизатор запросов.
type Router struct {
	translator Translator
	engine     Engine
}

// NewRouter создаёт Router.
func NewRouter(translator Translator, engine Engine) *Router {
	return &Router{translator: translator, engine: engine}
}

// Execute выполняет запрос.
//
// Текстовый запрос сначала транслируется; ошибка трансляции
// возвращается как есть (*UnderstandingError) без попытки выполнения.
// Выполнение синхронное, ошибки выполнения — *ExecutionError.
func (r *Router) Execute(ctx context.Context, req Request) (*Result, error) {
	sq := req.Query
	if sq == nil {
		if req.Text == "" {
			return nil, ErrEmptyRequest
		}

		translated, err := r.translator.Translate(ctx, req.Text)
		if err != nil {
			return nil, err
		}
		sq = translated
	}

	if len(sq.Metrics) == 0 {
		return nil, &ExecutionError{Message: "query has no metrics"}
	}

	rows, err := r.engine.Execute(ctx, sq)
	if err != nil {
		return nil, err
	}

	return &Result{Query: sq, Rows: dedupeRows(rows)}, nil
}

// dedupeRows убирает полностью совпадающие строки, сохраняя порядок.
func dedupeRows(rows []domain.QueryRow) []domain.QueryRow {
	if len(rows) < 2 {
		return rows
	}

	seen := make(map[string]struct{}, len(rows))
	result := make([]domain.QueryRow, 0, len(rows))
	for _, row := range rows {
		key := rowKey(row)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, row)
	}
	return result
}

func rowKey(row domain.QueryRow) string {
	// Колонки в отсортированном порядке, чтобы ключ был стабилен
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b []byte
	for _, k := range keys {
		b = append(b, k...)
		b = append(b, 0x1)
		b = append(b, row[k]...)
		b = append(b, 0x2)
	}
	return string(b)
}
