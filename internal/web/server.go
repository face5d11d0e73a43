// Package web renders the audit application and routes browser requests.
package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"rafyaudit/internal/backend"
	"rafyaudit/internal/checklist"
	"rafyaudit/internal/crypto"
	"rafyaudit/internal/files"
	"rafyaudit/internal/metrics"
)

// CookieName is the browser session cookie.
const CookieName = "rafy_session"

// Options wires a Server. Backend, Cookies and Drafts are required.
type Options struct {
	Backend *backend.Client
	Cookies sessions.Store
	Drafts  *files.DraftStore
	Schema  *checklist.Schema
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

type Server struct {
	client  *backend.Client
	cookies sessions.Store
	drafts  *files.DraftStore
	schema  *checklist.Schema
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	pages   templates
}

func New(o Options) (*Server, error) {
	if o.Backend == nil || o.Cookies == nil || o.Drafts == nil {
		return nil, errors.New("web: backend, cookies and drafts are required")
	}
	s := &Server{
		client:  o.Backend,
		cookies: o.Cookies,
		drafts:  o.Drafts,
		schema:  o.Schema,
		logger:  o.Logger,
		metrics: o.Metrics,
		now:     o.Now,
	}
	if s.schema == nil {
		s.schema = checklist.Default()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.client = s.client.ObservedBy(s.metrics)
	pages, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	s.pages = pages
	return s, nil
}

// NewCookieStore builds the encrypted cookie store from the session secret.
func NewCookieStore(secret []byte, secure bool, maxAge int) (*sessions.CookieStore, error) {
	hashKey, blockKey, err := crypto.CookieKeys(secret)
	if err != nil {
		return nil, err
	}
	cs := sessions.NewCookieStore(hashKey, blockKey)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return cs, nil
}

// NewRouter returns the application handler.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests, s.metrics.Middleware)
	r.NotFoundHandler = s.logRequests(http.HandlerFunc(s.notFound))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK\n"))
	}).Methods("GET")
	r.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	app := r.NewRoute().Subrouter()
	app.Use(s.withSession)
	app.HandleFunc("/login", s.public(s.loginPage)).Methods("GET")
	app.HandleFunc("/login", s.public(s.loginSubmit)).Methods("POST")
	app.HandleFunc("/logout", s.logout).Methods("POST")
	app.HandleFunc("/", s.protected(s.dashboard)).Methods("GET")
	app.HandleFunc("/audit/new", s.protected(s.formPage)).Methods("GET")
	app.HandleFunc("/audit/new/{action}", s.protected(s.formAction)).Methods("POST")
	app.HandleFunc("/audit/{id}", s.protected(s.detail)).Methods("GET")
	app.HandleFunc("/audit/{id}/pdf", s.protected(s.downloadPDF)).Methods("GET")
	app.HandleFunc("/audit/{id}/delete", s.protected(s.confirmDelete)).Methods("GET")
	app.HandleFunc("/audit/{id}/delete", s.protected(s.deleteAudit)).Methods("POST")
	return r
}

// PurgeDrafts removes expired drafts until stop is closed.
func (s *Server) PurgeDrafts(every time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			n, err := s.drafts.Purge()
			if err != nil {
				s.logger.Warn("purge drafts", zap.Error(err))
				continue
			}
			if n > 0 {
				s.metrics.DraftsPurged(n)
				s.logger.Info("purged drafts", zap.Int("count", n))
			}
		}
	}
}
