package api

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"rafyaudit/internal/backend"
)

// Server serves the audit REST API from a Store.
type Server struct {
	store  *Store
	logger *zap.Logger

	mu    sync.Mutex
	calls map[string]int
}

func NewServer(store *Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: store, logger: logger, calls: make(map[string]int)}
}

// Store returns the backing store.
func (s *Server) Store() *Store { return s.store }

// NewRouter mounts the API under prefix, e.g. "/api".
func (s *Server) NewRouter(prefix string) *mux.Router {
	root := mux.NewRouter()
	root.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK\n"))
	}).Methods("GET")

	r := root
	if p := strings.TrimRight(prefix, "/"); p != "" {
		r = root.PathPrefix(p).Subrouter()
	}
	r.Use(s.count)
	r.HandleFunc("/auth/login", s.LoginHandler).Methods("POST").Name(backend.EndpointLogin)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.requireToken)
	authed.HandleFunc("/auth/me", s.MeHandler).Methods("GET").Name(backend.EndpointMe)
	authed.HandleFunc("/audits", s.ListAuditsHandler).Methods("GET").Name(backend.EndpointListAudits)
	authed.HandleFunc("/audits", s.CreateAuditHandler).Methods("POST").Name(backend.EndpointCreateAudit)
	authed.HandleFunc("/audits/{id}", s.GetAuditHandler).Methods("GET").Name(backend.EndpointGetAudit)
	authed.HandleFunc("/audits/{id}", s.DeleteAuditHandler).Methods("DELETE").Name(backend.EndpointDeleteAudit)
	authed.HandleFunc("/audits/{id}/pdf", s.AuditPDFHandler).Methods("GET").Name(backend.EndpointAuditPDF)
	authed.HandleFunc("/users/commercials", s.CommercialsHandler).Methods("GET").Name(backend.EndpointCommercials)
	authed.HandleFunc("/users/controllers", s.ControllersHandler).Methods("GET").Name(backend.EndpointControllers)
	return root
}

// Calls returns how many requests hit the named endpoint.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// TotalCalls returns the number of API requests served so far.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := "unknown"
		if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
			name = route.GetName()
		}
		s.mu.Lock()
		s.calls[name]++
		s.mu.Unlock()
		s.logger.Debug("api request", zap.String("endpoint", name), zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			writeDetail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if _, ok := s.store.Authenticate(strings.TrimSpace(tok)); !ok {
			writeDetail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
