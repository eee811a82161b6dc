package runner

import (
	"strings"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// transientMarkers — фрагменты текста ошибок, указывающие на
// временный характер сбоя. Сравнение без учёта регистра.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"throttl",
	"too many requests",
	"rate exceeded",
	"rate limit",
	"temporarily unavailable",
	"service unavailable",
	"connection reset",
	"connection refused",
	"internal server error",
	"concurrent runs exceeded",
}

// Classify относит текст ошибки внешнего движка к transient или permanent.
//
// Transient-ошибки (timeout, throttling) имеет смысл повторять с backoff.
// Всё остальное — permanent: невалидное определение job, отказ в доступе,
// ошибки в данных. Неизвестные ошибки считаются permanent, чтобы retry
// не маскировал реальную проблему.
func Classify(reason string) domain.FailureClass {
	lower := strings.ToLower(reason)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return domain.FailureTransient
		}
	}
	return domain.FailurePermanent
}
