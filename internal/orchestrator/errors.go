package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotPending — run не в статусе PENDING.
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrRunAlreadyActive — run уже обрабатывается.
	ErrRunAlreadyActive = errors.New("run already being processed")

	// ErrRunFinished — run уже в терминальном статусе.
	ErrRunFinished = errors.New("run already finished")

	// ErrUnknownTaskKind — вид задачи не transform и не discover.
	ErrUnknownTaskKind = errors.New("unknown task kind")

	// ErrLedgerUnavailable — запись в ledger не удалась после всех
	// повторов. Без ledger продолжать нельзя: история выполнения
	// станет невосстановимой.
	ErrLedgerUnavailable = errors.New("ledger write failed after retries")

	// ErrRawAreaEmpty — raw-область пуста, запускать pipeline не на чем.
	ErrRawAreaEmpty = errors.New("raw area has no data")
)
