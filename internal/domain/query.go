package domain

// StructuredQuery — нормализованный аналитический запрос к curated-данным.
//
// Формируется либо напрямую вызывающей стороной, либо транслятором
// из текста на естественном языке.
type StructuredQuery struct {
	// Metrics — запрашиваемые метрики (имена колонок или агрегаты
	// вида "sum(profit)", "count(*)").
	Metrics []string `json:"metrics"`

	// GroupBy — колонка группировки. Пустая строка — без группировки.
	GroupBy string `json:"group_by,omitempty"`

	// Filters — предикаты фильтрации, объединяются через AND.
	Filters []QueryFilter `json:"filters,omitempty"`

	// OrderBy — колонка или метрика сортировки.
	OrderBy string `json:"order_by,omitempty"`

	// Descending — направление сортировки.
	Descending bool `json:"descending,omitempty"`

	// Limit — top-N ограничение. 0 — без ограничения.
	Limit int `json:"limit,omitempty"`
}

// QueryFilter — один предикат фильтрации.
type QueryFilter struct {
	// Field — имя колонки.
	Field string `json:"field"`

	// Op — оператор: "=", "!=", "<", "<=", ">", ">=", "like".
	Op string `json:"op"`

	// Value — значение для сравнения.
	Value any `json:"value"`
}

// QueryRow — одна строка результата: колонка → строковое значение.
type QueryRow map[string]string
