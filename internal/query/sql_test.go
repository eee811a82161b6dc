package query

import (
	"errors"
	"testing"

	"github.com/shaiso/Lakerunner/internal/domain"
)

func curatedSchema() *Schema {
	return NewSchema("curated_sales", "city", "category", "profit", "sales", "order_date")
}

func TestBuildSQL_Full(t *testing.T) {
	sq := &domain.StructuredQuery{
		Metrics:    []string{"sum(profit)"},
		GroupBy:    "city",
		Filters:    []domain.QueryFilter{{Field: "category", Op: "=", Value: "Furniture"}},
		OrderBy:    "sum(profit)",
		Descending: true,
		Limit:      5,
	}

	sql, args, err := BuildSQL(sq, curatedSchema())
	if err != nil {
		t.Fatalf("BuildSQL: %v", err)
	}

	want := "SELECT city, sum(profit) FROM curated_sales WHERE category = $1 GROUP BY city ORDER BY sum(profit) DESC LIMIT 5"
	if sql != want {
		t.Errorf("sql = %q\nwant %q", sql, want)
	}
	if len(args) != 1 || args[0] != "Furniture" {
		t.Errorf("args = %v", args)
	}
}

func TestBuildSQL_UnknownColumnReportsField(t *testing.T) {
	sq := &domain.StructuredQuery{Metrics: []string{"sum(revenue)"}}

	_, _, err := BuildSQL(sq, curatedSchema())

	var ee *ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if ee.Field != "revenue" {
		t.Errorf("failing field = %q, want revenue", ee.Field)
	}
}

func TestBuildSQL_UnknownFilterField(t *testing.T) {
	sq := &domain.StructuredQuery{
		Metrics: []string{"count(*)"},
		Filters: []domain.QueryFilter{{Field: "sellers", Op: "=", Value: "x"}},
	}

	_, _, err := BuildSQL(sq, curatedSchema())

	var ee *ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if ee.Field != "sellers" {
		t.Errorf("failing field = %q, want sellers", ee.Field)
	}
}

func TestBuildSQL_UnsupportedOperator(t *testing.T) {
	sq := &domain.StructuredQuery{
		Metrics: []string{"count(*)"},
		Filters: []domain.QueryFilter{{Field: "city", Op: "regex", Value: ".*"}},
	}

	if _, _, err := BuildSQL(sq, curatedSchema()); err == nil {
		t.Fatal("expected error for unsupported operator")
	}
}

func TestBuildSQL_InjectionRejected(t *testing.T) {
	sq := &domain.StructuredQuery{
		Metrics: []string{"profit; DROP TABLE curated_sales"},
	}

	var ee *ExecutionError
	_, _, err := BuildSQL(sq, curatedSchema())
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
}

func TestBuildSQL_CountStar(t *testing.T) {
	sq := &domain.StructuredQuery{Metrics: []string{"count(*)"}, GroupBy: "category"}

	sql, _, err := BuildSQL(sq, curatedSchema())
	if err != nil {
		t.Fatalf("BuildSQL: %v", err)
	}
	want := "SELECT category, count(*) FROM curated_sales GROUP BY category"
	if sql != want {
		t.Errorf("sql = %q", sql)
	}
}

func TestBuildSQL_NoMetrics(t *testing.T) {
	if _, _, err := BuildSQL(&domain.StructuredQuery{}, curatedSchema()); err == nil {
		t.Fatal("expected error for query without metrics")
	}
}
