// Package testutil provides an in-memory stand-in for the CMS backend.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
)

var filterPattern = regexp.MustCompile(`^filters\[(.+)\]\[(\$\w+)\]$`)

// FakeBackend emulates the backend's REST surface: filtered GET, POST
// create, PUT update, bearer auth, the {"data": ...} envelope. It counts
// every request so tests can assert that short-circuit paths touch the
// backend zero times.
type FakeBackend struct {
	t *testing.T

	mu         sync.Mutex
	resources  map[string][]map[string]any
	nextID     int
	calls      int
	failMethod string
	failPath   string
}

func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	return &FakeBackend{
		t:         t,
		resources: make(map[string][]map[string]any),
		nextID:    1,
	}
}

// Server starts an httptest server backed by this fake, closed with the
// test.
func (f *FakeBackend) Server() *httptest.Server {
	srv := httptest.NewServer(f)
	f.t.Cleanup(srv.Close)
	return srv
}

// Token is the bearer token the fake accepts.
const Token = "test-token"

// Seed inserts an entry directly, bypassing the call counter.
func (f *FakeBackend) Seed(resource string, attrs map[string]any) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := make(map[string]any, len(attrs)+1)
	for key, value := range attrs {
		entry[key] = value
	}
	entry["id"] = f.nextID
	f.nextID++
	f.resources[resource] = append(f.resources[resource], entry)
	return entry["id"].(int)
}

// FailOn makes requests of the given method whose path contains the fragment
// return a 500 with a backend-style error envelope. An empty method matches
// every method.
func (f *FakeBackend) FailOn(method, pathFragment string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failMethod = method
	f.failPath = pathFragment
}

// Calls returns how many requests the fake has served.
func (f *FakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ResetCalls zeroes the call counter.
func (f *FakeBackend) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = 0
}

// Count returns how many entries a resource holds.
func (f *FakeBackend) Count(resource string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resources[resource])
}

// First returns the first entry of a resource, failing the test when empty.
func (f *FakeBackend) First(resource string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.resources[resource]) == 0 {
		f.t.Fatalf("no %s entries", resource)
	}
	return f.resources[resource][0]
}

// All returns every entry of a resource.
func (f *FakeBackend) All(resource string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.resources[resource]...)
}

func (f *FakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if r.Header.Get("Authorization") != "Bearer "+Token {
		writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
		return
	}
	if f.failPath != "" && strings.Contains(r.URL.Path, f.failPath) &&
		(f.failMethod == "" || f.failMethod == r.Method) {
		writeError(w, http.StatusInternalServerError, "simulated backend failure")
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "unknown path")
		return
	}
	resource := parts[1]

	switch {
	case r.Method == http.MethodGet:
		f.handleGet(w, r, resource)
	case r.Method == http.MethodPost:
		f.handlePost(w, r, resource)
	case r.Method == http.MethodPut && len(parts) == 3:
		f.handlePut(w, r, resource, parts[2])
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (f *FakeBackend) handleGet(w http.ResponseWriter, r *http.Request, resource string) {
	entries := f.resources[resource]
	for key, values := range r.URL.Query() {
		match := filterPattern.FindStringSubmatch(key)
		if match == nil || len(values) == 0 {
			continue
		}
		field, op, want := match[1], match[2], values[0]
		var filtered []map[string]any
		for _, entry := range entries {
			have := fmt.Sprint(entry[field])
			switch op {
			case "$eq":
				if have == want {
					filtered = append(filtered, entry)
				}
			case "$eqi":
				if strings.EqualFold(have, want) {
					filtered = append(filtered, entry)
				}
			}
		}
		entries = filtered
	}
	if entries == nil {
		entries = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (f *FakeBackend) handlePost(w http.ResponseWriter, r *http.Request, resource string) {
	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Data == nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	entry := body.Data
	entry["id"] = f.nextID
	f.nextID++
	f.resources[resource] = append(f.resources[resource], entry)
	writeJSON(w, http.StatusOK, map[string]any{"data": entry})
}

func (f *FakeBackend) handlePut(w http.ResponseWriter, r *http.Request, resource, rawID string) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Data == nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	for _, entry := range f.resources[resource] {
		if fmt.Sprint(entry["id"]) == fmt.Sprint(id) {
			for key, value := range body.Data {
				entry[key] = value
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": entry})
			return
		}
	}
	writeError(w, http.StatusNotFound, resource+" not found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": msg},
	})
}
