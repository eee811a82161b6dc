package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/Lakerunner/internal/query"
	"github.com/shaiso/Lakerunner/internal/telemetry"
)

// ExecuteQuery выполняет запрос к curated-данным.
// POST /api/v1/query
//
// Тело — query.Request: либо text (естественный язык, уходит в
// транслятор), либо query (готовый StructuredQuery). Ошибка понимания
// текста возвращается как 422 TRANSLATION_ERROR и никогда не
// превращается в угаданный запрос.
func (h *Handler) ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	if h.queryRouter == nil {
		Unavailable(w, "query engine is not configured")
		return
	}

	var req query.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	result, err := h.queryRouter.Execute(r.Context(), req)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	telemetry.QueriesExecuted.WithLabelValues("ok").Inc()
	Success(w, result)
}

// writeQueryError переводит ошибки query-пакета в HTTP ответы.
func (h *Handler) writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrEmptyRequest) {
		telemetry.QueriesExecuted.WithLabelValues("bad_request").Inc()
		BadRequest(w, err.Error())
		return
	}

	var ue *query.UnderstandingError
	if errors.As(err, &ue) {
		telemetry.QueriesExecuted.WithLabelValues("translation_error").Inc()
		Error(w, http.StatusUnprocessableEntity, ErrCodeTranslation, ue.Reason)
		return
	}

	var ee *query.ExecutionError
	if errors.As(err, &ee) {
		telemetry.QueriesExecuted.WithLabelValues("query_error").Inc()
		JSON(w, http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    ErrCodeQuery,
				Message: ee.Message,
				Field:   ee.Field,
			},
		})
		return
	}

	telemetry.QueriesExecuted.WithLabelValues("error").Inc()
	InternalError(w, h.logger, err)
}
