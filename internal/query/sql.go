package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// Schema — известные колонки curated-таблицы.
type Schema struct {
	// Table — имя таблицы с curated-данными.
	Table string

	// Columns — допустимые имена колонок.
	Columns map[string]struct{}
}

// NewSchema создаёт Schema из списка колонок.
func NewSchema(table string, columns ...string) *Schema {
	set := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		set[c] = struct{}{}
	}
	return &Schema{Table: table, Columns: set}
}

// HasColumn проверяет, известна ли колонка схеме.
func (s *Schema) HasColumn(name string) bool {
	_, ok := s.Columns[name]
	return ok
}

// допустимые операторы фильтров
var validOps = map[string]string{
	"=":    "=",
	"!=":   "<>",
	"<":    "<",
	"<=":   "<=",
	">":    ">",
	">=":   ">=",
	"like": "LIKE",
}

// метрика вида "sum(profit)", "count(*)", "avg(sales)"
var aggregateRe = regexp.MustCompile(`^(sum|count|avg|min|max)\((\*|[a-z_][a-z0-9_]*)\)$`)

// идентификатор колонки
var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// BuildSQL собирает SQL-запрос из StructuredQuery, проверяя каждую
// колонку против схемы. Неизвестная колонка — *ExecutionError с её
// именем; запрос с такой ошибкой никогда не доходит до БД.
func BuildSQL(sq *domain.StructuredQuery, schema *Schema) (string, []any, error) {
	if len(sq.Metrics) == 0 {
		return "", nil, &ExecutionError{Message: "query has no metrics"}
	}

	selectParts := make([]string, 0, len(sq.Metrics)+1)
	if sq.GroupBy != "" {
		if err := checkColumn(sq.GroupBy, schema); err != nil {
			return "", nil, err
		}
		selectParts = append(selectParts, sq.GroupBy)
	}

	for _, metric := range sq.Metrics {
		rendered, err := renderMetric(metric, schema)
		if err != nil {
			return "", nil, err
		}
		selectParts = append(selectParts, rendered)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selectParts, ", "))
	b.WriteString(" FROM ")
	b.WriteString(schema.Table)

	var args []any
	if len(sq.Filters) > 0 {
		conds := make([]string, 0, len(sq.Filters))
		for _, f := range sq.Filters {
			if err := checkColumn(f.Field, schema); err != nil {
				return "", nil, err
			}
			op, ok := validOps[strings.ToLower(f.Op)]
			if !ok {
				return "", nil, &ExecutionError{
					Field:   f.Field,
					Message: fmt.Sprintf("unsupported operator %q", f.Op),
				}
			}
			args = append(args, f.Value)
			conds = append(conds, fmt.Sprintf("%s %s $%d", f.Field, op, len(args)))
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	if sq.GroupBy != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(sq.GroupBy)
	}

	if sq.OrderBy != "" {
		rendered, err := renderOrderBy(sq, schema)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(rendered)
		if sq.Descending {
			b.WriteString(" DESC")
		}
	}

	if sq.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", sq.Limit)
	}

	return b.String(), args, nil
}

// renderMetric проверяет метрику: либо агрегат над известной колонкой,
// либо сама известная колонка.
func renderMetric(metric string, schema *Schema) (string, error) {
	m := strings.ToLower(strings.TrimSpace(metric))

	if match := aggregateRe.FindStringSubmatch(m); match != nil {
		col := match[2]
		if col != "*" && !schema.HasColumn(col) {
			return "", &ExecutionError{
				Field:   col,
				Message: "column not present in curated schema",
			}
		}
		return m, nil
	}

	if err := checkColumn(m, schema); err != nil {
		return "", err
	}
	return m, nil
}

// renderOrderBy — OrderBy может ссылаться на колонку или на метрику.
func renderOrderBy(sq *domain.StructuredQuery, schema *Schema) (string, error) {
	o := strings.ToLower(strings.TrimSpace(sq.OrderBy))

	// Сортировка по одной из заявленных метрик допустима как есть
	for _, metric := range sq.Metrics {
		if strings.ToLower(strings.TrimSpace(metric)) == o {
			return o, nil
		}
	}

	if err := checkColumn(o, schema); err != nil {
		return "", err
	}
	return o, nil
}

func checkColumn(name string, schema *Schema) error {
	if !identRe.MatchString(name) {
		return &ExecutionError{
			Field:   name,
			Message: "invalid column name",
		}
	}
	if !schema.HasColumn(name) {
		return &ExecutionError{
			Field:   name,
			Message: "column not present in curated schema",
		}
	}
	return nil
}
