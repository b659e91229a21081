package ragd

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/ragd/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound          = domain.ErrNotFound
	ErrAlreadyExists     = domain.ErrAlreadyExists
	ErrInvalidName       = domain.ErrInvalidName
	ErrUnsupportedFormat = domain.ErrUnsupportedFormat
	ErrTooLarge          = domain.ErrTooLarge
	ErrEmptyQuestion     = domain.ErrEmptyQuestion
	ErrNotReady          = domain.ErrNotReady
	ErrPipelineBusy      = domain.ErrBusy
	ErrStepOrder         = domain.ErrStepOrder
	ErrNoDocuments       = domain.ErrNoDocuments
)

var (
	// ErrServerBusy is returned when the question server is at its connection limit.
	ErrServerBusy = errors.New("server busy")
	// ErrUnauthorized is returned when the admin API rejects the token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoAdminURL is returned by admin calls on a client built without WithAdminURL.
	ErrNoAdminURL = errors.New("admin url not configured")
)

var codeSentinels = map[string]error{
	"not_found":          ErrNotFound,
	"already_exists":     ErrAlreadyExists,
	"invalid_name":       ErrInvalidName,
	"unsupported_format": ErrUnsupportedFormat,
	"too_large":          ErrTooLarge,
	"empty_question":     ErrEmptyQuestion,
	"not_ready":          ErrNotReady,
	"pipeline_busy":      ErrPipelineBusy,
	"step_order":         ErrStepOrder,
	"no_documents":       ErrNoDocuments,
	"unauthorized":       ErrUnauthorized,
}

// APIError is an error body returned by the admin API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ragd: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap maps the error code to its sentinel, so errors.Is works across the wire.
func (e *APIError) Unwrap() error {
	return codeSentinels[e.Code]
}

// ReplyError is an error reply from the question server.
type ReplyError struct {
	Message string
	kind    error
}

func (e *ReplyError) Error() string { return "ragd: " + e.Message }

// Unwrap returns ErrEmptyQuestion, ErrNotReady or ErrServerBusy for the fixed replies.
func (e *ReplyError) Unwrap() error { return e.kind }
