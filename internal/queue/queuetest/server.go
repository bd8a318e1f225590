// Package queuetest provides an in-memory fake of the LIMBOPET API for tests:
// the brain job queue plus the dev-login and pet-creation endpoints used by
// onboarding.
package queuetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/limbopet/brain/internal/model"
)

// Submitted is one recorded call to the submit endpoint.
type Submitted struct {
	JobID      string
	Submission model.Submission
}

// Server is a fake LIMBOPET API backed by httptest.
type Server struct {
	srv    *httptest.Server
	apiKey string

	mu            sync.Mutex
	pending       []model.Job
	known         map[string]model.Job
	pulls         int
	pullFailures  []int
	submitFailure []int
	submitted     []Submitted
	logins        []string
	pets          []map[string]string
	agentKey      string
}

// New starts a fake API that requires "Authorization: Bearer apiKey" on queue
// routes. The server is closed when the test ends.
func New(t testing.TB, apiKey string) *Server {
	t.Helper()
	s := &Server{
		apiKey:   apiKey,
		known:    make(map[string]model.Job),
		agentKey: "agent-key",
	}

	r := chi.NewRouter()
	r.Post("/auth/dev", s.handleDevLogin)
	r.Post("/pets/create", s.handleCreatePet)
	r.Route("/brains/jobs", func(r chi.Router) {
		r.Use(s.bearerAuth)
		r.Post("/pull", s.handlePull)
		r.Get("/{id}", s.handleGet)
		r.Post("/{id}/submit", s.handleSubmit)
	})

	s.srv = httptest.NewServer(r)
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the API base URL to hand to clients.
func (s *Server) URL() string { return s.srv.URL }

// Client returns an HTTP client wired to the test server.
func (s *Server) Client() *http.Client { return s.srv.Client() }

// Enqueue appends jobs to the pending queue.
func (s *Server) Enqueue(jobs ...model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range jobs {
		s.pending = append(s.pending, j)
		s.known[j.ID] = j
	}
}

// FailPulls makes the next len(statuses) pulls answer with those statuses.
func (s *Server) FailPulls(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pullFailures = append(s.pullFailures, statuses...)
}

// FailSubmits makes the next len(statuses) submissions answer with those
// statuses. Failed submissions are not recorded.
func (s *Server) FailSubmits(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitFailure = append(s.submitFailure, statuses...)
}

// SetAgentKey sets the api_key returned by pet creation; empty omits it.
func (s *Server) SetAgentKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentKey = key
}

// Pulls reports how many pull requests reached the server.
func (s *Server) Pulls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulls
}

// Submitted returns the accepted submissions in arrival order.
func (s *Server) Submitted() []Submitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submitted(nil), s.submitted...)
}

// Logins returns the emails used for dev login.
func (s *Server) Logins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logins...)
}

// Pets returns the name/description pairs of created pets.
func (s *Server) Pets() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]string(nil), s.pets...)
}

func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.apiKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.pulls++
	if len(s.pullFailures) > 0 {
		status := s.pullFailures[0]
		s.pullFailures = s.pullFailures[1:]
		s.mu.Unlock()
		writeJSON(w, status, map[string]string{"error": "pull failed"})
		return
	}
	var job *model.Job
	if len(s.pending) > 0 {
		j := s.pending[0]
		s.pending = s.pending[1:]
		job = &j
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	job, ok := s.known[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var sub model.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	s.mu.Lock()
	if len(s.submitFailure) > 0 {
		status := s.submitFailure[0]
		s.submitFailure = s.submitFailure[1:]
		s.mu.Unlock()
		writeJSON(w, status, map[string]string{"error": "submit failed"})
		return
	}
	s.submitted = append(s.submitted, Submitted{JobID: id, Submission: sub})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDevLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email required"})
		return
	}
	s.mu.Lock()
	s.logins = append(s.logins, req.Email)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"token": "user-token"})
}

func (s *Server) handleCreatePet(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer user-token" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	s.mu.Lock()
	s.pets = append(s.pets, req)
	agent := map[string]string{}
	if s.agentKey != "" {
		agent["api_key"] = s.agentKey
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"agent": agent,
		"pet":   map[string]string{"id": "pet-1", "name": req["name"]},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
