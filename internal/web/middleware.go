package web

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"rafyaudit/internal/auth"
	"rafyaudit/internal/backend"
	"rafyaudit/internal/guard"
)

type ctxKey int

const stateKey ctxKey = iota

// requestState is the per page load view of the browser session.
type requestState struct {
	id      string
	cookie  *sessions.Session
	client  *backend.Client
	session *auth.Session
	logger  *zap.Logger
}

func stateFrom(r *http.Request) *requestState {
	st, _ := r.Context().Value(stateKey).(*requestState)
	return st
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		s.logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Int("bytes", sw.bytes),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type requestIDKey struct{}

// withSession opens the cookie session and binds a session store and client to it.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := r.Context().Value(requestIDKey{}).(string)
		logger := s.logger.With(zap.String("request_id", id))
		cookie, err := s.cookies.Get(r, CookieName)
		if err != nil {
			// tampered or rotated keys: start over with the fresh session Get returned
			logger.Info("discarding unreadable session cookie", zap.Error(err))
		}
		if cookie == nil {
			cookie = sessions.NewSession(s.cookies, CookieName)
		}
		storage := auth.NewCookieStorage(cookie, r, w)
		client := s.client.WithTokenSource(storage)
		st := &requestState{
			id:      id,
			cookie:  cookie,
			client:  client,
			session: auth.New(client, storage, logger),
			logger:  logger,
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), stateKey, st)))
	})
}

func (s *Server) protected(h http.HandlerFunc) http.HandlerFunc {
	return s.guarded(guard.Protected, h)
}

func (s *Server) public(h http.HandlerFunc) http.HandlerFunc {
	return s.guarded(guard.Public, h)
}

// guarded validates the stored token, then lets the guard pick the outcome.
func (s *Server) guarded(kind guard.Kind, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := stateFrom(r)
		if err := st.session.Restore(r.Context()); err != nil {
			st.logger.Info("session not restored", zap.Error(err))
		}
		d := guard.Decide(st.session, kind)
		switch d.Outcome {
		case guard.Wait:
			s.render(w, r, http.StatusOK, "loading", "Chargement", nil)
		case guard.Redirect:
			http.Redirect(w, r, d.Target, http.StatusSeeOther)
		default:
			h(w, r)
		}
	}
}
