package domain

import "errors"

var (
	// ErrNotFound signals a missing document.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate document name.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnsupportedFormat signals a file extension the loader cannot read.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrInvalidName signals a document name with path components.
	ErrInvalidName = errors.New("invalid document name")
	// ErrTooLarge signals an upload over the extraction size limit.
	ErrTooLarge = errors.New("document too large")

	// ErrEmptyQuestion signals a blank question.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrNotReady signals that models or the index are not loaded yet.
	ErrNotReady = errors.New("not ready")

	// ErrBusy signals that a pipeline step is already running.
	ErrBusy = errors.New("pipeline busy")
	// ErrStepOrder signals that a step ran before its predecessor completed.
	ErrStepOrder = errors.New("pipeline step out of order")
	// ErrNoDocuments signals that there is nothing to process.
	ErrNoDocuments = errors.New("no documents")

	// ErrIndexNotFound signals a missing persisted index.
	ErrIndexNotFound = errors.New("index not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMProviderError signals a generation failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrModelNotFound signals that the configured model is not installed.
	ErrModelNotFound = errors.New("model not found")
)
