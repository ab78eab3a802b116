package fakebackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dayahead/daocfg/internal/backend"
	"github.com/dayahead/daocfg/internal/logging"
)

const secretsDocument = "secrets"

var documentNameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Server answers the DAO configuration API from a Fixture.
type Server struct {
	mu      sync.RWMutex
	fixture *Fixture

	failing        atomic.Bool
	entityRequests atomic.Int64
	searchRequests atomic.Int64

	lastMu     sync.Mutex
	lastSearch [2]string
}

// New creates a server over a private copy of fixture.
func New(fixture *Fixture) *Server {
	return &Server{fixture: fixture.Clone()}
}

// SetFailing makes every entity endpoint answer 500 with an error payload.
func (s *Server) SetFailing(failing bool) {
	s.failing.Store(failing)
}

// EntityRequests counts GET /api/ha/entities.
func (s *Server) EntityRequests() int64 {
	return s.entityRequests.Load()
}

// SearchRequests counts GET /api/ha/entities/search.
func (s *Server) SearchRequests() int64 {
	return s.searchRequests.Load()
}

// LastSearch returns the domain filter and pattern of the latest search.
func (s *Server) LastSearch() (domain, pattern string) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastSearch[0], s.lastSearch[1]
}

// Document returns the stored settings document.
func (s *Server) Document(name string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.fixture.Documents[name]
	return doc, ok
}

// Handler returns the chi router serving the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/schema", s.handleSchema)
		r.Route("/ha/entities", func(r chi.Router) {
			r.Get("/", s.handleEntities)
			r.Get("/search", s.handleSearch)
		})
		r.Get("/settings/{name}.json", s.handleGetSettings)
		r.Post("/settings/{name}.json", s.handleSaveSettings)
	})
	return r
}

// Start listens on addr and serves in the background. It returns the base
// URL and a shutdown function.
func (s *Server) Start(addr string) (string, func(context.Context) error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Fixture server stopped", zap.Error(err))
		}
	}()

	url := "http://" + ln.Addr().String()
	logging.Info("Fixture server listening", zap.String("url", url))
	return url, srv.Shutdown, nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			logging.Debug("Fixture request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeRaw(w, http.StatusOK, s.fixture.Schema)
}

func (s *Server) handleEntities(w http.ResponseWriter, _ *http.Request) {
	s.entityRequests.Add(1)
	if s.failing.Load() {
		writeError(w, http.StatusInternalServerError, "Home Assistant is not reachable")
		return
	}

	s.mu.RLock()
	entities := append([]backend.Entity(nil), s.fixture.Entities...)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, entities)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.searchRequests.Add(1)

	domain := r.URL.Query().Get("domain")
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = r.URL.Query().Get("q")
	}

	s.lastMu.Lock()
	s.lastSearch = [2]string{domain, pattern}
	s.lastMu.Unlock()

	if s.failing.Load() {
		writeError(w, http.StatusInternalServerError, "Home Assistant is not reachable")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, searchEntities(s.fixture.Entities, domain, pattern))
}

// searchEntities keeps entities in one of the listed domains whose id or
// friendly name contains pattern, ignoring case.
func searchEntities(entities []backend.Entity, domainFilter, pattern string) []backend.Entity {
	domains := backend.ParseDomainFilter(domainFilter)
	needle := strings.ToLower(pattern)

	out := make([]backend.Entity, 0)
	for _, e := range entities {
		if !e.MatchesDomain(domains) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(e.ID), needle) &&
			!strings.Contains(strings.ToLower(e.DisplayName), needle) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !documentNameRe.MatchString(name) {
		writeError(w, http.StatusBadRequest, "invalid document name")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if name == secretsDocument {
		writeJSON(w, http.StatusOK, s.fixture.Secrets)
		return
	}
	doc, ok := s.fixture.Documents[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s.json not found", name))
		return
	}
	writeRaw(w, http.StatusOK, doc)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !documentNameRe.MatchString(name) {
		writeError(w, http.StatusBadRequest, "invalid document name")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if name == secretsDocument {
		var secrets map[string]string
		if err := json.Unmarshal(body, &secrets); err != nil {
			writeError(w, http.StatusBadRequest, "secrets.json must map keys to strings")
			return
		}
		s.fixture.Secrets = secrets
	} else {
		s.fixture.Documents[name] = append(json.RawMessage(nil), body...)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeRaw(w, status, body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(map[string]string{"error": message})
	writeRaw(w, status, body)
}
