package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/ragd/internal/domain"
)

// ErrorCode is the machine-readable error code in JSON error bodies.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeNotFound          ErrorCode = "not_found"
	CodeAlreadyExists     ErrorCode = "already_exists"
	CodeInvalidName       ErrorCode = "invalid_name"
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeTooLarge          ErrorCode = "too_large"
	CodeEmptyQuestion     ErrorCode = "empty_question"
	CodeBusy              ErrorCode = "pipeline_busy"
	CodeStepOrder         ErrorCode = "step_order"
	CodeNoDocuments       ErrorCode = "no_documents"
	CodeNotReady          ErrorCode = "not_ready"
	CodeProviderError     ErrorCode = "provider_error"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type sentinelMapping struct {
	err    error
	status int
	code   ErrorCode
}

// sentinels is checked in order; the first match wins.
var sentinels = []sentinelMapping{
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{domain.ErrIndexNotFound, http.StatusNotFound, CodeNotFound},
	{domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists},
	{domain.ErrInvalidName, http.StatusBadRequest, CodeInvalidName},
	{domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, CodeUnsupportedFormat},
	{domain.ErrTooLarge, http.StatusRequestEntityTooLarge, CodeTooLarge},
	{domain.ErrEmptyQuestion, http.StatusBadRequest, CodeEmptyQuestion},
	{domain.ErrBusy, http.StatusConflict, CodeBusy},
	{domain.ErrStepOrder, http.StatusConflict, CodeStepOrder},
	{domain.ErrNoDocuments, http.StatusConflict, CodeNoDocuments},
	{domain.ErrNotReady, http.StatusServiceUnavailable, CodeNotReady},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeProviderError},
	{domain.ErrLLMProviderError, http.StatusBadGateway, CodeProviderError},
	{domain.ErrModelNotFound, http.StatusBadGateway, CodeProviderError},
}

// mapError returns the HTTP status, code and client-safe message for err.
func mapError(err error) (int, ErrorCode, string) {
	for _, m := range sentinels {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.err.Error()
		}
	}
	return http.StatusInternalServerError, CodeInternalError, "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
