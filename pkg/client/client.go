// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package client is the HTTP transport to the research backend.
//
// # Routes
//
//	POST /api/investigate   {query, history} -> text/event-stream
//	GET  /api/documents     -> ["a.pdf", ...]
//	POST /api/index         {path?} -> {status, message}
//	POST /api/upload        multipart file + reindex -> {status, filename, reindexed}
//	GET  /health            -> {status}
//
// # Errors
//
// Every failure to reach the backend, and every non-2xx answer, wraps
// ErrTransportUnavailable. Non-2xx answers are a *StatusError carrying the
// code and the backend's detail text. Context cancellation is preserved in
// the chain so errors.Is(err, context.Canceled) holds.
//
// Streaming requests carry no client-side timeout; callers bound them with
// their context. All other requests use Config.Timeout.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/sovereign/pkg/conversation"
	"github.com/AleutianAI/sovereign/pkg/logging"
)

const (
	// DefaultBaseURL is where the backend listens by default.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 2 * time.Minute

	// RequestIDHeader carries a per-request id for backend log correlation.
	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 4096
)

// Routes.
const (
	PathInvestigate = "/api/investigate"
	PathDocuments   = "/api/documents"
	PathIndex       = "/api/index"
	PathUpload      = "/api/upload"
	PathHealth      = "/health"
)

// ErrTransportUnavailable means the backend could not be reached or did not
// answer with success.
var ErrTransportUnavailable = errors.New("backend unavailable")

// StatusError is a non-2xx backend answer.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: backend returned %d: %s", e.Method, e.Path, e.StatusCode, e.Detail())
}

// Unwrap makes errors.Is(err, ErrTransportUnavailable) hold.
func (e *StatusError) Unwrap() error {
	return ErrTransportUnavailable
}

// Detail returns the backend's "detail" field when the body is a JSON
// error object, otherwise the raw body.
func (e *StatusError) Detail() string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(e.Body), &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return http.StatusText(e.StatusCode)
}

// =============================================================================
// Wire Types
// =============================================================================

// Message is one history entry as the backend accepts it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InvestigateRequest is the body of POST /api/investigate.
type InvestigateRequest struct {
	Query   string    `json:"query"`
	History []Message `json:"history"`
}

// IndexRequest is the body of POST /api/index. An empty Path indexes the
// backend's default document directory.
type IndexRequest struct {
	Path string `json:"path,omitempty"`
}

// IndexResponse is the answer of POST /api/index.
type IndexResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// UploadResponse is the answer of POST /api/upload.
type UploadResponse struct {
	Status    string `json:"status"`
	Filename  string `json:"filename"`
	Reindexed bool   `json:"reindexed"`
}

// HealthResponse is the answer of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// =============================================================================
// Client
// =============================================================================

// Config configures a Client.
type Config struct {
	// BaseURL of the backend. Default: DefaultBaseURL.
	BaseURL string

	// Timeout bounds non-streaming requests. Default: DefaultTimeout.
	Timeout time.Duration

	// HTTPClient is used for all requests. It must not set its own
	// Timeout, which would cut off long streams. Default: a fresh client.
	HTTPClient *http.Client

	// Logger receives request diagnostics. Default: discard.
	Logger *logging.Logger
}

// Client talks to one research backend. Safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *logging.Logger
}

// New creates a Client. Returns an error when BaseURL is not an absolute
// http(s) URL.
func New(cfg Config) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be an absolute http(s) url", raw)
	}

	c := &Client{
		baseURL: base,
		http:    cfg.HTTPClient,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	return c, nil
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Investigate opens the research event stream for query. history is sent
// as role/content pairs; callers filter it beforehand.
//
// The returned body must be closed. It is bounded only by ctx.
func (c *Client) Investigate(ctx context.Context, query string, history []conversation.Turn) (io.ReadCloser, error) {
	payload := InvestigateRequest{Query: query, History: make([]Message, 0, len(history))}
	for _, t := range history {
		payload.History = append(payload.History, Message{Role: string(t.Role), Content: t.Content})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal investigate request: %w", err)
	}

	req, requestID, err := c.newRequest(ctx, http.MethodPost, PathInvestigate, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("opening investigate stream",
		"request_id", requestID,
		"query_len", len(query),
		"history_len", len(payload.History),
	)

	resp, err := c.do(req, requestID)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ListDocuments returns the document names the backend can index.
func (c *Client) ListDocuments(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.doJSON(ctx, http.MethodGet, PathDocuments, nil, &names); err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Reindex rebuilds the backend index. An empty path uses the backend's
// default document directory.
func (c *Client) Reindex(ctx context.Context, path string) (*IndexResponse, error) {
	var out IndexResponse
	err := c.doJSON(ctx, http.MethodPost, PathIndex, IndexRequest{Path: path}, &out)
	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		// Success is decided by the status code; the body is informational.
		c.logger.Warn("ignoring unreadable index response", "error", err)
		return &IndexResponse{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends one file as multipart form data with fields "file" and
// "reindex". The content is streamed, not buffered.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader, reindex bool) (*UploadResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, filename, content, reindex))
	}()

	req, requestID, err := c.newRequest(ctx, http.MethodPost, PathUpload, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Debug("uploading document", "request_id", requestID, "filename", filename, "reindex", reindex)

	resp, err := c.do(req, requestID)
	pr.Close()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Warn("ignoring unreadable upload response", "request_id", requestID, "error", err)
		return &UploadResponse{}, nil
	}
	return &out, nil
}

func writeUploadForm(mw *multipart.Writer, filename string, content io.Reader, reindex bool) error {
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.WriteField("reindex", fmt.Sprintf("%t", reindex)); err != nil {
		return err
	}
	return mw.Close()
}

// Health checks that the backend is up.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, PathHealth, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// Request Plumbing
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, string, error) {
	target := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, "", fmt.Errorf("build %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	return req, requestID, nil
}

// do sends req and returns the response when it is 2xx. Otherwise the body
// is drained into a *StatusError.
func (c *Client) do(req *http.Request, requestID string) (*http.Response, error) {
	path := req.URL.Path
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("backend request failed",
			"request_id", requestID,
			"method", req.Method,
			"path", path,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransportUnavailable, req.Method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{
			Method:     req.Method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
		c.logger.Error("backend returned error",
			"request_id", requestID,
			"method", req.Method,
			"path", path,
			"status_code", resp.StatusCode,
			"detail", statusErr.Detail(),
		)
		return nil, statusErr
	}
	return resp, nil
}

// doJSON runs a bounded request with an optional JSON body and decodes a
// JSON answer into out.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, requestID, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(req, requestID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{Path: path, Err: err}
	}
	return nil
}

// decodeError is a 2xx answer whose body could not be decoded.
type decodeError struct {
	Path string
	Err  error
}

func (e *decodeError) Error() string { return fmt.Sprintf("decode %s response: %v", e.Path, e.Err) }

func (e *decodeError) Unwrap() error { return e.Err }
