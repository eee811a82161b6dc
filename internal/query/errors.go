package query

import "fmt"

// UnderstandingError — транслятор не смог превратить текст в запрос.
//
// Это НЕ ошибка выполнения: запрос к данным не выполнялся вообще.
// Router никогда не подменяет непонятый текст запросом по умолчанию.
type UnderstandingError struct {
	// Text — исходный текст запроса.
	Text string

	// Reason — почему текст не удалось понять.
	Reason string
}

func (e *UnderstandingError) Error() string {
	return fmt.Sprintf("cannot understand query %q: %s", e.Text, e.Reason)
}

// ExecutionError — запрос понят, но его выполнение упало.
//
// Field заполняется, когда причина привязана к конкретной колонке
// (колонка отсутствует в curated-схеме, неподдерживаемый оператор).
type ExecutionError struct {
	// Field — имя колонки, из-за которой упал запрос. Может быть пустым.
	Field string

	// Message — описание ошибки.
	Message string

	// Err — исходная ошибка, если была.
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("query execution failed on field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("query execution failed: %s", e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
