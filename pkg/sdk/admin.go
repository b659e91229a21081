package ragd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

type adminClient struct {
	base  string
	token string
	http  *http.Client
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do sends a request and decodes a 2xx body into out. Listed extra statuses
// are decoded into out as well.
func (a *adminClient) do(
	ctx context.Context, method, path string, body io.Reader, out any, okStatus ...int,
) error {
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return fmt.Errorf("ragd: build request: %w", err)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	switch {
	case body == nil:
	case method == http.MethodPut:
		req.Header.Set("Content-Type", "application/octet-stream")
	default:
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("ragd: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	for _, s := range okStatus {
		if resp.StatusCode == s {
			ok = true
		}
	}
	if !ok {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Code == "" {
			return &APIError{StatusCode: resp.StatusCode, Code: "unknown", Message: http.StatusText(resp.StatusCode)}
		}
		return &APIError{StatusCode: resp.StatusCode, Code: eb.Code, Message: eb.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ragd: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) adminCall(
	ctx context.Context, op, method, path string, body io.Reader, out any, okStatus ...int,
) (err error) {
	defer c.obs.begin(op, viaHTTP).end(&err)

	if c.admin == nil {
		return ErrNoAdminURL
	}
	return c.admin.do(ctx, method, path, body, out, okStatus...)
}

// Health returns the component health report. A degraded server is not an error.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	var r HealthReport
	err := c.adminCall(ctx, "health", http.MethodGet, "/health", nil, &r, http.StatusServiceUnavailable)
	return r, err
}

// Status returns readiness, build info and pipeline state from the admin API.
func (c *Client) Status(ctx context.Context) (ServerStatus, error) {
	var body struct {
		Ready    bool           `json:"ready"`
		Version  string         `json:"version"`
		Commit   string         `json:"commit"`
		Pipeline PipelineStatus `json:"pipeline"`
	}
	if err := c.adminCall(ctx, "status", http.MethodGet, "/status", nil, &body); err != nil {
		return ServerStatus{}, err
	}
	return ServerStatus{
		Ready:    body.Ready,
		Version:  body.Version,
		Commit:   body.Commit,
		Pipeline: &body.Pipeline,
	}, nil
}

// AskWithSources asks through the admin API, which also reports sources and cache state.
func (c *Client) AskWithSources(ctx context.Context, question string) (Answer, error) {
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return Answer{}, fmt.Errorf("ragd: marshal question: %w", err)
	}
	var body struct {
		Answer   string   `json:"answer"`
		Sources  []string `json:"sources"`
		Cached   bool     `json:"cached"`
		TimedOut bool     `json:"timed_out"`
		Time     float64  `json:"time"`
	}
	if err := c.adminCall(ctx, "ask", http.MethodPost, "/ask", bytes.NewReader(payload), &body); err != nil {
		return Answer{}, err
	}
	return Answer{
		Text:     body.Answer,
		Time:     body.Time,
		Sources:  body.Sources,
		Cached:   body.Cached,
		TimedOut: body.TimedOut,
	}, nil
}

// Documents lists the documents directory.
func (c *Client) Documents(ctx context.Context) ([]DocumentInfo, error) {
	var body struct {
		Items []DocumentInfo `json:"items"`
	}
	if err := c.adminCall(ctx, "list_documents", http.MethodGet, "/documents", nil, &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

// Upload stores a document under name. An existing document is replaced only when overwrite is set.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader, overwrite bool) (DocumentInfo, error) {
	path := "/documents/" + url.PathEscape(name)
	if overwrite {
		path += "?overwrite=" + strconv.FormatBool(overwrite)
	}
	var info DocumentInfo
	err := c.adminCall(ctx, "upload_document", http.MethodPut, path, r, &info)
	return info, err
}

// UploadFile uploads a local file under its base name.
func (c *Client) UploadFile(ctx context.Context, path string, overwrite bool) (DocumentInfo, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return DocumentInfo{}, fmt.Errorf("ragd: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return c.Upload(ctx, filepath.Base(path), f, overwrite)
}

// Remove moves a document out of the documents directory.
func (c *Client) Remove(ctx context.Context, name string) (RemoveResult, error) {
	var res RemoveResult
	err := c.adminCall(ctx, "remove_document", http.MethodDelete, "/documents/"+url.PathEscape(name), nil, &res)
	return res, err
}

// RunStep runs one pipeline step: StepChunk, StepEmbed or StepIndex.
func (c *Client) RunStep(ctx context.Context, step string) (PipelineStatus, error) {
	var st PipelineStatus
	err := c.adminCall(ctx, "pipeline_"+step, http.MethodPost, "/pipeline/"+url.PathEscape(step), nil, &st)
	return st, err
}

// Process runs every pipeline step in order.
func (c *Client) Process(ctx context.Context) (PipelineStatus, error) {
	return c.RunStep(ctx, "process")
}

// ResetPipeline discards pipeline results. The installed index keeps serving.
func (c *Client) ResetPipeline(ctx context.Context) (PipelineStatus, error) {
	var st PipelineStatus
	err := c.adminCall(ctx, "pipeline_reset", http.MethodPost, "/pipeline/reset", nil, &st)
	return st, err
}
