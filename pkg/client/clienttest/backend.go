// Package clienttest provides an in-process fake of the RAG backend for tests.
package clienttest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Request is a recorded call to the fake backend.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Backend is an httptest server that routes "METHOD /path" keys to handlers
// and records every request it receives. Unrouted calls get a 404 with the
// backend's structured error body.
type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []Request
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{routes: map[string]http.HandlerFunc{}}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

func routeKey(method, path string) string { return method + " " + path }

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()
	// handlers may want to read the body again
	r.Body = io.NopCloser(bytes.NewReader(body))

	b.mu.Lock()
	b.requests = append(b.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	h, ok := b.routes[routeKey(r.Method, r.URL.Path)]
	b.mu.Unlock()

	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":      "Not Found",
			"message":    "no route for " + r.Method + " " + r.URL.Path,
			"statusCode": http.StatusNotFound,
		})
		return
	}
	h(w, r)
}

// Handle registers h for method and path, replacing any previous handler.
func (b *Backend) Handle(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[routeKey(method, path)] = h
}

// HandleJSON registers a handler that always answers with status and v.
func (b *Backend) HandleJSON(method, path string, status int, v interface{}) {
	b.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, v)
	})
}

// Requests returns a copy of every recorded request, oldest first.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// Count returns how many requests hit method and path.
func (b *Backend) Count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
