// Package chi is the admin HTTP API.
package chi

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	logpkg "github.com/kailas-cloud/ragd/internal/logger"
	"github.com/kailas-cloud/ragd/internal/usecase/chat"
	"github.com/kailas-cloud/ragd/internal/usecase/health"
	"github.com/kailas-cloud/ragd/internal/usecase/pipeline"
	"github.com/kailas-cloud/ragd/internal/version"
)

const maxQuestionBody = 64 << 10

// Library manages the documents directory.
type Library interface {
	List(ctx context.Context) ([]domain.DocumentInfo, error)
	Upload(ctx context.Context, name string, r io.Reader, overwrite bool) (domain.DocumentInfo, error)
	Remove(ctx context.Context, name string) (string, error)
}

// Pipeline runs the processing steps.
type Pipeline interface {
	Run(ctx context.Context, step pipeline.Step) (pipeline.Status, error)
	Process(ctx context.Context) (pipeline.Status, error)
	Reset()
	Status() pipeline.Status
}

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string) (chat.Answer, error)
	Ready() bool
}

// HealthChecker aggregates component checks.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Server holds the admin API handlers.
type Server struct {
	library  Library
	pipeline Pipeline
	asker    Asker
	health   HealthChecker
	logger   *zap.Logger
}

// NewServer creates the admin API.
func NewServer(library Library, pipe Pipeline, asker Asker, hc HealthChecker, logger *zap.Logger) *Server {
	return &Server{
		library:  library,
		pipeline: pipe,
		asker:    asker,
		health:   hc,
		logger:   logger,
	}
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.Health)
	r.Get("/metrics", s.Metrics)
	r.Get("/status", s.Status)

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.ListDocuments)
		r.Put("/{name}", s.UploadDocument)
		r.Delete("/{name}", s.RemoveDocument)
	})

	r.Route("/pipeline", func(r chi.Router) {
		r.Post("/reset", s.ResetPipeline)
		r.Post("/{step}", s.RunPipeline)
	})

	r.Post("/ask", s.Ask)
}

// StatusResponse is the GET /status body.
type StatusResponse struct {
	Ready    bool            `json:"ready"`
	Version  string          `json:"version"`
	Commit   string          `json:"commit"`
	Pipeline pipeline.Status `json:"pipeline"`
}

// DocumentsResponse is the GET /documents body.
type DocumentsResponse struct {
	Items []domain.DocumentInfo `json:"items"`
	Count int                   `json:"count"`
}

// RemoveResponse is the DELETE /documents/{name} body.
type RemoveResponse struct {
	Name    string `json:"name"`
	MovedTo string `json:"moved_to"`
}

// AskRequest is the POST /ask body.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the POST /ask reply.
type AskResponse struct {
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources,omitempty"`
	Cached   bool     `json:"cached"`
	TimedOut bool     `json:"timed_out"`
	Time     float64  `json:"time"`
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// Status handles GET /status.
func (s *Server) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Ready:    s.asker.Ready(),
		Version:  version.Version,
		Commit:   version.Commit,
		Pipeline: s.pipeline.Status(),
	})
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.library.List(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if docs == nil {
		docs = []domain.DocumentInfo{}
	}
	writeJSON(w, http.StatusOK, DocumentsResponse{Items: docs, Count: len(docs)})
}

// UploadDocument handles PUT /documents/{name}. The body is the raw file.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	overwrite := false
	if v := r.URL.Query().Get("overwrite"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "overwrite must be a boolean")
			return
		}
		overwrite = b
	}

	info, err := s.library.Upload(r.Context(), name, r.Body, overwrite)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// RemoveDocument handles DELETE /documents/{name}.
func (s *Server) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	movedTo, err := s.library.Remove(r.Context(), name)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RemoveResponse{Name: name, MovedTo: movedTo})
}

// RunPipeline handles POST /pipeline/{step}, where step is a step name or "process".
func (s *Server) RunPipeline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "step")

	var (
		st  pipeline.Status
		err error
	)
	if name == "process" {
		st, err = s.pipeline.Process(r.Context())
	} else {
		step, perr := pipeline.ParseStep(name)
		if perr != nil {
			writeError(w, http.StatusNotFound, CodeNotFound, perr.Error())
			return
		}
		st, err = s.pipeline.Run(r.Context(), step)
	}
	if err != nil {
		s.handleStepError(w, r, err)
		return
	}
	s.logger.Info("Pipeline run via admin API",
		zap.String("step", name),
		zap.Int("chunks", st.Chunks),
		zap.Int("indexed_chunks", st.IndexedChunks),
	)
	writeJSON(w, http.StatusOK, st)
}

// ResetPipeline handles POST /pipeline/reset.
func (s *Server) ResetPipeline(w http.ResponseWriter, _ *http.Request) {
	s.pipeline.Reset()
	writeJSON(w, http.StatusOK, s.pipeline.Status())
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxQuestionBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ans, err := s.asker.Ask(r.Context(), req.Question)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:   ans.Text,
		Sources:  ans.Sources,
		Cached:   ans.Cached,
		TimedOut: ans.TimedOut,
		Time:     math.Round(ans.Duration.Seconds()*100) / 100,
	})
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	s.logError(r, status, err)
	writeError(w, status, code, msg)
}

// handleStepError is handleError, except step failures keep their message
// since only operators call the pipeline endpoints.
func (s *Server) handleStepError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status == http.StatusInternalServerError {
		msg = err.Error()
	}
	s.logError(r, status, err)
	writeError(w, status, code, msg)
}

func (s *Server) logError(r *http.Request, status int, err error) {
	log := logpkg.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("internal error", zap.Error(err))
		return
	}
	log.Warn("domain error", zap.Error(err))
}
