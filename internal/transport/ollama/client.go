// Package ollama adapts the Ollama HTTP API to the domain generation and embedding contracts.
package ollama

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

const providerName = "ollama"

// Options holds generation parameters sent with every request.
type Options struct {
	Temperature   float64
	NumPredict    int
	NumCtx        int
	TopK          int
	TopP          float64
	RepeatPenalty float64
	RepeatLastN   int
	NumThread     int
}

func (o Options) toMap() map[string]any {
	m := map[string]any{
		"temperature": o.Temperature,
		"num_predict": o.NumPredict,
		"num_ctx":     o.NumCtx,
		"top_k":       o.TopK,
		"top_p":       o.TopP,
	}
	if o.RepeatPenalty > 0 {
		m["repeat_penalty"] = o.RepeatPenalty
	}
	if o.RepeatLastN > 0 {
		m["repeat_last_n"] = o.RepeatLastN
	}
	if o.NumThread > 0 {
		m["num_thread"] = o.NumThread
	}
	return m
}

// Config holds Ollama client settings.
type Config struct {
	Host           string // empty = OLLAMA_HOST or http://127.0.0.1:11434
	Model          string
	EmbeddingModel string // defaults to Model
	Options        Options
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client talks to a single Ollama server for both generation and embeddings.
type Client struct {
	api      *api.Client
	model    string
	embModel string
	options  map[string]any
	logger   *zap.Logger
}

// New creates an Ollama client.
func New(cfg *Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("ollama model is required")
	}

	var client *api.Client
	if cfg.Host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create client from environment: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
		}
		httpClient := cfg.HTTPClient
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		client = api.NewClient(u, httpClient)
	}

	embModel := cfg.EmbeddingModel
	if embModel == "" {
		embModel = cfg.Model
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		api:      client,
		model:    cfg.Model,
		embModel: embModel,
		options:  cfg.Options.toMap(),
		logger:   logger,
	}, nil
}

// Model returns the generation model name.
func (c *Client) Model() string { return c.model }

// apiErrorMessage extracts the server-side message from an Ollama error.
func apiErrorMessage(err error) string {
	var se api.StatusError
	if errors.As(err, &se) {
		if se.ErrorMessage != "" {
			return fmt.Sprintf("%d: %s", se.StatusCode, se.ErrorMessage)
		}
		return fmt.Sprintf("%d: %s", se.StatusCode, se.Status)
	}
	return err.Error()
}
