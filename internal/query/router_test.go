package query

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// fakeTranslator возвращает заранее заданный результат.
type fakeTranslator struct {
	query *domain.StructuredQuery
	err   error
	calls int
}

func (f *fakeTranslator) Translate(ctx context.Context, text string) (*domain.StructuredQuery, error) {
	f.calls++
	return f.query, f.err
}

// fakeEngine записывает выполненные запросы.
type fakeEngine struct {
	rows  []domain.QueryRow
	err   error
	calls int
	last  *domain.StructuredQuery
}

func (f *fakeEngine) Execute(ctx context.Context, q *domain.StructuredQuery) ([]domain.QueryRow, error) {
	f.calls++
	f.last = q
	return f.rows, f.err
}

func TestRouter_StructuredQueryBypassesTranslator(t *testing.T) {
	translator := &fakeTranslator{}
	engine := &fakeEngine{rows: []domain.QueryRow{{"city": "Kazan", "profit": "100"}}}
	router := NewRouter(translator, engine)

	result, err := router.Execute(context.Background(), Request{
		Query: &domain.StructuredQuery{Metrics: []string{"sum(profit)"}, GroupBy: "city"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if translator.calls != 0 {
		t.Error("translator must not be called for structured query")
	}
	if len(result.Rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(result.Rows))
	}
}

func TestRouter_TextGoesThroughTranslator(t *testing.T) {
	translated := &domain.StructuredQuery{
		Metrics: []string{"sum(profit)"},
		GroupBy: "city",
		Limit:   5,
	}
	translator := &fakeTranslator{query: translated}
	engine := &fakeEngine{rows: []domain.QueryRow{{"city": "Kazan"}}}
	router := NewRouter(translator, engine)

	result, err := router.Execute(context.Background(), Request{Text: "top 5 cities by profit"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if translator.calls != 1 {
		t.Errorf("translator calls = %d", translator.calls)
	}
	if engine.last != translated {
		t.Error("engine must receive the translated query")
	}
	if result.Query != translated {
		t.Error("result must expose the executed query")
	}
}

// Непонятый текст возвращает UnderstandingError и никогда не доходит
// до движка — никакого запроса по умолчанию.
func TestRouter_UnderstandingErrorNeverExecutes(t *testing.T) {
	translator := &fakeTranslator{
		err: &UnderstandingError{Text: "top sellers", Reason: "unknown field: sellers"},
	}
	engine := &fakeEngine{}
	router := NewRouter(translator, engine)

	_, err := router.Execute(context.Background(), Request{Text: "top sellers"})

	var ue *UnderstandingError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnderstandingError, got %v", err)
	}
	if engine.calls != 0 {
		t.Error("engine must not be called after translation failure")
	}
}

func TestRouter_ExecutionErrorDistinct(t *testing.T) {
	engine := &fakeEngine{
		err: &ExecutionError{Field: "sellers", Message: "column not present in curated schema"},
	}
	router := NewRouter(&fakeTranslator{}, engine)

	_, err := router.Execute(context.Background(), Request{
		Query: &domain.StructuredQuery{Metrics: []string{"sellers"}},
	})

	var ee *ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if ee.Field != "sellers" {
		t.Errorf("failing field = %q", ee.Field)
	}

	var ue *UnderstandingError
	if errors.As(err, &ue) {
		t.Error("execution error must not be mistaken for understanding error")
	}
}

func TestRouter_EmptyRequest(t *testing.T) {
	router := NewRouter(&fakeTranslator{}, &fakeEngine{})

	_, err := router.Execute(context.Background(), Request{})
	if !errors.Is(err, ErrEmptyRequest) {
		t.Fatalf("expected ErrEmptyRequest, got %v", err)
	}
}

func TestRouter_DeduplicatesRows(t *testing.T) {
	engine := &fakeEngine{rows: []domain.QueryRow{
		{"city": "Kazan", "profit": "100"},
		{"city": "Moscow", "profit": "200"},
		{"city": "Kazan", "profit": "100"},
	}}
	router := NewRouter(&fakeTranslator{}, engine)

	result, err := router.Execute(context.Background(), Request{
		Query: &domain.StructuredQuery{Metrics: []string{"profit"}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Errorf("expected 2 rows after dedup, got %d", len(result.Rows))
	}
	if result.Rows[0]["city"] != "Kazan" || result.Rows[1]["city"] != "Moscow" {
		t.Error("dedup must preserve first-seen order")
	}
}
