package query

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// PGEngine — выполнение StructuredQuery через PostgreSQL.
//
// Схема curated-таблицы загружается один раз при создании движка:
// все ошибки "нет такой колонки" ловятся в BuildSQL до обращения к БД.
type PGEngine struct {
	pool   *pgxpool.Pool
	schema *Schema
}

// NewPGEngine создаёт движок, прочитав схему таблицы из catalog.
func NewPGEngine(ctx context.Context, pool *pgxpool.Pool, table string) (*PGEngine, error) {
	rows, err := pool.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, fmt.Errorf("load schema for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read schema rows: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns in catalog", table)
	}

	return &PGEngine{pool: pool, schema: NewSchema(table, columns...)}, nil
}

// NewPGEngineWithSchema создаёт движок с заранее известной схемой.
func NewPGEngineWithSchema(pool *pgxpool.Pool, schema *Schema) *PGEngine {
	return &PGEngine{pool: pool, schema: schema}
}

// Execute выполняет запрос синхронно и возвращает строки.
func (e *PGEngine) Execute(ctx context.Context, sq *domain.StructuredQuery) ([]domain.QueryRow, error) {
	sql, args, err := BuildSQL(sq, e.schema)
	if err != nil {
		return nil, err
	}

	rows, err := e.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &ExecutionError{Message: "query failed", Err: err}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var result []domain.QueryRow
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, &ExecutionError{Message: "read row", Err: err}
		}

		row := make(domain.QueryRow, len(fields))
		for i, fd := range fields {
			if values[i] == nil {
				row[fd.Name] = ""
				continue
			}
			row[fd.Name] = fmt.Sprintf("%v", values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Message: "iterate rows", Err: err}
	}

	return result, nil
}

var _ Engine = (*PGEngine)(nil)
