package ragd

import (
	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/usecase/health"
	"github.com/kailas-cloud/ragd/internal/usecase/pipeline"
)

// Pipeline step names accepted by RunStep.
const (
	StepChunk = string(pipeline.StepChunk)
	StepEmbed = string(pipeline.StepEmbed)
	StepIndex = string(pipeline.StepIndex)
)

type (
	// DocumentInfo is a document listing entry.
	DocumentInfo = domain.DocumentInfo
	// PipelineStatus is the per-step pipeline report.
	PipelineStatus = pipeline.Status
	// HealthReport is the aggregated component health.
	HealthReport = health.Report
)

// Answer is a reply to a question.
type Answer struct {
	Text     string
	Time     float64 // seconds, as measured by the server
	Sources  []string
	Cached   bool
	TimedOut bool
}

// ServerStatus is the question server's readiness report.
type ServerStatus struct {
	Ready    bool
	Version  string
	Commit   string
	Pipeline *PipelineStatus
}

// RemoveResult describes a removed document.
type RemoveResult struct {
	Name    string `json:"name"`
	MovedTo string `json:"moved_to"`
}
