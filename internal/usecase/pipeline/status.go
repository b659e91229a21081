package pipeline

import (
	"fmt"
	"time"
)

// Step names a pipeline stage.
type Step string

// Pipeline steps in execution order.
const (
	StepChunk Step = "chunk"
	StepEmbed Step = "embed"
	StepIndex Step = "index"
)

// Steps lists the steps in execution order.
var Steps = []Step{StepChunk, StepEmbed, StepIndex}

// ParseStep validates a step name.
func ParseStep(s string) (Step, error) {
	for _, st := range Steps {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown pipeline step %q", s)
}

// State is the lifecycle of one step.
type State string

// Step states.
const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// StepStatus reports one step.
type StepStatus struct {
	Step       Step       `json:"step"`
	State      State      `json:"state"`
	Done       int        `json:"done"`
	Total      int        `json:"total"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Status is a snapshot of the whole pipeline.
type Status struct {
	Steps         []StepStatus `json:"steps"`
	Documents     int          `json:"documents"`
	FailedDocs    []string     `json:"failed_documents,omitempty"`
	Chunks        int          `json:"chunks"`
	Vectors       int          `json:"vectors"`
	EmbedTokens   int          `json:"embedding_tokens"`
	IndexBackend  string       `json:"index_backend"`
	IndexedChunks int          `json:"indexed_chunks"`
}

// Step returns the status of s.
func (st Status) Step(s Step) StepStatus {
	for _, ss := range st.Steps {
		if ss.Step == s {
			return ss
		}
	}
	return StepStatus{Step: s, State: StatePending}
}
