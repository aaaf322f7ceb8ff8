package api

import (
	"encoding/json"
	"net/http"

	"github.com/GoCodeAlone/marketplace/plugin"
)

// envelope is a standard JSON response wrapper.
type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// paginatedEnvelope wraps a list response with pagination metadata.
type paginatedEnvelope struct {
	Data     any `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: message})
}

// WritePaginated writes a paginated JSON response.
func WritePaginated(w http.ResponseWriter, items any, total, page, pageSize int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(paginatedEnvelope{
		Data:     items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// WriteResult writes a lifecycle result with a status matching its kind.
// The body always carries the result so clients can read the kind.
func WriteResult(w http.ResponseWriter, res plugin.Result) {
	WriteJSON(w, resultStatus(res.Kind), res)
}

func resultStatus(k plugin.Kind) int {
	switch k {
	case plugin.KindOK:
		return http.StatusOK
	case plugin.KindNotFound:
		return http.StatusNotFound
	case plugin.KindNetwork, plugin.KindArchiveCorrupt:
		return http.StatusBadGateway
	case plugin.KindCanceled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
