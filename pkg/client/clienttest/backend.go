// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package clienttest provides a scriptable fake research backend for tests.
//
// The fake serves the same routes as the real backend from a gin engine
// behind an httptest.Server:
//
//	b := clienttest.New(t)
//	b.SetStream(clienttest.Status("检索中"), clienttest.Done)
//	c, _ := client.New(client.Config{BaseURL: b.URL()})
package clienttest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/sovereign/pkg/client"
)

// Done is the end-of-stream frame.
const Done = "data: [DONE]\n\n"

// Frame encodes v as one SSE frame.
func Frame(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return "data: " + string(data) + "\n\n"
}

// Status builds a status frame.
func Status(content string) string {
	return Frame(map[string]any{"type": "status", "content": content})
}

// Thought builds a thought frame.
func Thought(content string) string {
	return Frame(map[string]any{"type": "thought", "content": content})
}

// Meta is one evidence metadata entry. Nil fields are omitted.
type Meta struct {
	Source any `json:"source,omitempty"`
	Page   any `json:"page,omitempty"`
}

// Evidence builds an evidence frame.
func Evidence(docs []string, metas []Meta) string {
	return Frame(map[string]any{"type": "evidence", "docs": docs, "metas": metas})
}

// Upload is a file the fake received.
type Upload struct {
	Filename string
	Content  string
	Reindex  bool
}

// Failure scripts a non-2xx answer for a route.
type Failure struct {
	Status int
	Detail string
}

// Backend is the fake. All setters are safe to call while requests run.
type Backend struct {
	server *httptest.Server

	mu             sync.Mutex
	chunks         []string
	hold           chan struct{}
	documents      []string
	failures       map[string]Failure
	investigations []client.InvestigateRequest
	indexRequests  []client.IndexRequest
	uploads        []Upload
	requestIDs     []string
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &Backend{
		documents: []string{},
		failures:  make(map[string]Failure),
	}

	r := gin.New()
	r.Use(gin.Recovery(), b.recordRequestID)
	r.POST(client.PathInvestigate, b.investigate)
	r.GET(client.PathDocuments, b.listDocuments)
	r.POST(client.PathIndex, b.index)
	r.POST(client.PathUpload, b.upload)
	r.GET(client.PathHealth, func(c *gin.Context) {
		if b.fail(c, client.PathHealth) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	b.server = httptest.NewServer(r)
	t.Cleanup(b.Close)
	return b
}

// URL is the base URL of the fake.
func (b *Backend) URL() string {
	return b.server.URL
}

// Close releases a held stream and stops the server.
func (b *Backend) Close() {
	b.Release()
	b.server.CloseClientConnections()
	b.server.Close()
}

// SetStream scripts the investigate response. Each chunk is written and
// flushed separately, so a chunk may hold a partial frame.
func (b *Backend) SetStream(chunks ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append([]string(nil), chunks...)
}

// Hold keeps investigate streams open after the scripted chunks until
// Release is called or the client goes away.
func (b *Backend) Hold() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hold == nil {
		b.hold = make(chan struct{})
	}
}

// Release ends held streams.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hold != nil {
		close(b.hold)
		b.hold = nil
	}
}

// SetDocuments scripts the document listing.
func (b *Backend) SetDocuments(names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.documents = append([]string{}, names...)
}

// Fail makes route answer with status and a FastAPI style detail body.
func (b *Backend) Fail(route string, status int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = Failure{Status: status, Detail: detail}
}

// Recover clears a scripted failure.
func (b *Backend) Recover(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, route)
}

// Investigations returns the received investigate bodies.
func (b *Backend) Investigations() []client.InvestigateRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]client.InvestigateRequest(nil), b.investigations...)
}

// IndexRequests returns the received index bodies.
func (b *Backend) IndexRequests() []client.IndexRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]client.IndexRequest(nil), b.indexRequests...)
}

// Uploads returns the received files.
func (b *Backend) Uploads() []Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Upload(nil), b.uploads...)
}

// RequestIDs returns the X-Request-ID header of every request.
func (b *Backend) RequestIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requestIDs...)
}

// =============================================================================
// Handlers
// =============================================================================

func (b *Backend) recordRequestID(c *gin.Context) {
	b.mu.Lock()
	b.requestIDs = append(b.requestIDs, c.GetHeader(client.RequestIDHeader))
	b.mu.Unlock()
	c.Next()
}

func (b *Backend) fail(c *gin.Context, route string) bool {
	b.mu.Lock()
	f, ok := b.failures[route]
	b.mu.Unlock()
	if !ok {
		return false
	}
	c.JSON(f.Status, gin.H{"detail": f.Detail})
	return true
}

func (b *Backend) investigate(c *gin.Context) {
	var req client.InvestigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	b.mu.Lock()
	b.investigations = append(b.investigations, req)
	chunks := append([]string(nil), b.chunks...)
	hold := b.hold
	b.mu.Unlock()

	if b.fail(c, client.PathInvestigate) {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	for _, chunk := range chunks {
		if _, err := io.WriteString(c.Writer, chunk); err != nil {
			return
		}
		c.Writer.Flush()
	}

	if hold != nil {
		select {
		case <-hold:
		case <-c.Request.Context().Done():
		}
	}
}

func (b *Backend) listDocuments(c *gin.Context) {
	if b.fail(c, client.PathDocuments) {
		return
	}
	b.mu.Lock()
	docs := append([]string{}, b.documents...)
	b.mu.Unlock()
	c.JSON(http.StatusOK, docs)
}

func (b *Backend) index(c *gin.Context) {
	var req client.IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	b.mu.Lock()
	b.indexRequests = append(b.indexRequests, req)
	b.mu.Unlock()

	if b.fail(c, client.PathIndex) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Indexing complete"})
}

func (b *Backend) upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	reindex := true
	if raw := c.PostForm("reindex"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			reindex = v
		}
	}

	if b.fail(c, client.PathUpload) {
		return
	}

	b.mu.Lock()
	b.uploads = append(b.uploads, Upload{Filename: fileHeader.Filename, Content: string(content), Reindex: reindex})
	b.documents = append(b.documents, fileHeader.Filename)
	b.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "success", "filename": fileHeader.Filename, "reindexed": reindex})
}
