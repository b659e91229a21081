package tcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/kailas-cloud/ragd/internal/usecase/pipeline"
)

// Reply statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Commands accepted in the "command" field.
const (
	CommandPing   = "ping"
	CommandStatus = "status"
)

// Fixed reply messages.
const (
	MsgEmptyQuestion = "Empty question received."
	MsgNotReady      = "System is still loading models. Please wait."
	MsgBusy          = "Server is busy. Please try again later."
	MsgTooLarge      = "Request too large."
	MsgUnknownCmd    = "Unknown command."
	msgInternalError = "Internal Error: "
)

// Request is the JSON request frame. Exactly one of Question or Command is used.
type Request struct {
	Question string `json:"question,omitempty"`
	Command  string `json:"command,omitempty"`
}

// Response is the JSON reply frame.
type Response struct {
	Status   string           `json:"status"`
	Answer   string           `json:"answer"`
	Time     *float64         `json:"time,omitempty"`
	Ready    *bool            `json:"ready,omitempty"`
	Pipeline *pipeline.Status `json:"pipeline,omitempty"`
}

// ErrRequestTooLarge is returned when a request exceeds the read buffer.
var ErrRequestTooLarge = errors.New("request too large")

// parsedRequest is a decoded request plus how it was framed.
type parsedRequest struct {
	Request
	plain bool
}

// parseRequest decodes a JSON frame. Anything that is not a JSON object is a plaintext question.
func parseRequest(raw []byte) parsedRequest {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var req Request
		if err := json.Unmarshal(trimmed, &req); err == nil {
			return parsedRequest{Request: req}
		}
	}
	return parsedRequest{Request: Request{Question: string(trimmed)}, plain: true}
}

// complete reports whether buf already holds a whole request frame. Input that
// opens like JSON but can no longer become valid JSON is framed by newline.
func complete(buf []byte) bool {
	trimmed := bytes.TrimSpace(buf)
	if len(trimmed) == 0 {
		return false
	}
	hasNewline := bytes.IndexByte(buf, '\n') >= 0
	if trimmed[0] == '{' {
		if json.Valid(trimmed) {
			return true
		}
		return hasNewline && !truncatedJSON(trimmed)
	}
	return hasNewline
}

// truncatedJSON reports whether b is a valid prefix of a JSON value.
func truncatedJSON(b []byte) bool {
	var v json.RawMessage
	err := json.NewDecoder(bytes.NewReader(b)).Decode(&v)
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// plainFrame reports whether buf will be answered in plaintext. A frame that
// opens with '{' gets a JSON reply even when it is cut short.
func plainFrame(buf []byte) bool {
	trimmed := bytes.TrimSpace(buf)
	return len(trimmed) > 0 && trimmed[0] != '{'
}
