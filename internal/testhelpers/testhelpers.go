// Package testhelpers provides reusable testing utilities for Fleetwatch.
//
// This package contains:
// - HTTP test helpers (creating test requests, executing handlers)
// - An in-memory database setup helper
// - A capturing event publisher
package testhelpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/database"
)

// ========================================
// Database Test Helpers
// ========================================

// SetupTestDB opens an in-memory SQLite database with all models migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := database.AutoMigrateDB(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// ========================================
// Event Capture
// ========================================

// CapturedEvent is one event recorded by CapturePublisher.
type CapturedEvent struct {
	Subject string
	Payload []byte
}

// CapturePublisher implements events.Publisher and records every publish
// for assertions.
type CapturePublisher struct {
	mu     sync.Mutex
	events []CapturedEvent
}

// NewCapturePublisher creates a new capturing publisher
func NewCapturePublisher() *CapturePublisher {
	return &CapturePublisher{}
}

// Publish marshals and records the event.
func (p *CapturePublisher) Publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, CapturedEvent{Subject: subject, Payload: data})
	return nil
}

// Close is a no-op.
func (p *CapturePublisher) Close() {}

// Events returns a copy of all captured events.
func (p *CapturePublisher) Events() []CapturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CapturedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// EventsFor returns the captured events published to a subject.
func (p *CapturePublisher) EventsFor(subject string) []CapturedEvent {
	var out []CapturedEvent
	for _, e := range p.Events() {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out
}

// ========================================
// HTTP Test Helpers
// ========================================

// HTTPTestContext holds components for HTTP handler testing
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

// NewHTTPTestContext creates a new HTTP test context
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  req,
	}
}

// WithHeader adds a header to the request
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// WithJSONBody sets JSON body on the request
func (ctx *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("failed to marshal JSON body: %v", err)
	}
	ctx.Request = httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), bytes.NewReader(body))
	ctx.Request.Header.Set("Content-Type", "application/json")
	return ctx
}

// Execute runs the handler and returns the response
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus fails the test if the response status differs
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// DecodeResponse decodes the response body into dst
func (ctx *HTTPTestContext) DecodeResponse(dst interface{}) {
	ctx.T.Helper()
	if err := json.Unmarshal(ctx.Recorder.Body.Bytes(), dst); err != nil {
		ctx.T.Fatalf("failed to decode response body: %v", err)
	}
}
