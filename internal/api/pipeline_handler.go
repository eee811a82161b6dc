package api

import (
	"net/http"
	"sort"
)

// ListPipelines возвращает загруженные определения pipelines.
// GET /api/v1/pipelines
//
// Определения загружаются при старте сервиса и неизменяемы:
// API только читает их.
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.pipelines))
	for name := range h.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]PipelineResponse, len(names))
	for i, name := range names {
		result[i] = PipelineFromDomain(h.pipelines[name])
	}

	List(w, result, len(result))
}

// GetPipeline возвращает определение pipeline по имени.
// GET /api/v1/pipelines/{name}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.pipelines[r.PathValue("name")]
	if !ok {
		NotFound(w, "pipeline not found")
		return
	}

	Success(w, PipelineFromDomain(spec))
}
