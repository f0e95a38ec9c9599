package testutil

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// InstanceServer is a fake service instance. Its health endpoint answers
// with HealthStatus; every other path answers with the configured response.
type InstanceServer struct {
	*httptest.Server

	mu           sync.Mutex
	healthPath   string
	healthStatus int
	status       int
	body         any
	handler      http.HandlerFunc
	hits         map[string]int
	requests     []*http.Request
}

// NewInstanceServer starts a server that is healthy on /health and answers
// 200 {"ok":true} elsewhere. It is closed during test cleanup.
func NewInstanceServer(t testing.TB) *InstanceServer {
	s := &InstanceServer{
		healthPath:   "/health",
		healthStatus: http.StatusOK,
		status:       http.StatusOK,
		body:         map[string]any{"ok": true},
		hits:         make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *InstanceServer) Host() string {
	host, _, _ := net.SplitHostPort(s.Listener.Addr().String())
	return host
}

func (s *InstanceServer) Port() int {
	_, port, _ := net.SplitHostPort(s.Listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

func (s *InstanceServer) SetHealth(status int) {
	s.mu.Lock()
	s.healthStatus = status
	s.mu.Unlock()
}

// Respond sets the status and JSON body of non-health requests. A string
// body is written as text/plain.
func (s *InstanceServer) Respond(status int, body any) {
	s.mu.Lock()
	s.status, s.body, s.handler = status, body, nil
	s.mu.Unlock()
}

// Handle replaces the canned response with h.
func (s *InstanceServer) Handle(h http.HandlerFunc) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Hits counts the requests received for path.
func (s *InstanceServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// LastRequest is the most recent non-health request, or nil.
func (s *InstanceServer) LastRequest() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func (s *InstanceServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	if r.URL.Path == s.healthPath {
		status := s.healthStatus
		s.mu.Unlock()
		w.WriteHeader(status)
		return
	}
	s.requests = append(s.requests, r.Clone(r.Context()))
	status, body, handler := s.status, s.body, s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}
	if text, ok := body.(string); ok {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(text))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
