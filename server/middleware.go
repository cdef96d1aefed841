package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/randalmurphal/storyflow/auth"
	sfcontext "github.com/randalmurphal/storyflow/context"
	"github.com/randalmurphal/storyflow/workflow"
)

// RequestIDHeader is echoed on every response.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID returns the request ID stored by the middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID keeps a caller-supplied ID or assigns a UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
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

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.HTTPRequest(route, strconv.Itoa(sw.status))

		s.logger.Info("http request",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"route", route,
			"status", sw.status,
			"bytes", sw.bytes,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("handler panic", "request_id", RequestID(r.Context()), "panic", v)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		p, err := s.auth.Authenticate(r.Header)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, auth.ErrNoCredentials) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="storyflow"`)
			}
			s.logger.Warn("authentication failed", "request_id", RequestID(r.Context()), "error", err)
			writeError(w, status, "unauthorized")
			return
		}
		if p.Project != "" && p.Project != s.services.Site.ProjectKey {
			writeError(w, http.StatusForbidden, "token is not valid for this project")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// inject puts the services, a request-scoped logger and a timeout on the
// request context.
func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()

		ctx = s.services.InjectAll(ctx)
		ctx = sfcontext.WithLogger(ctx, s.logger.With("request_id", RequestID(ctx)))
		if s.fanOut > 0 {
			ctx = workflow.WithFanOutLimit(ctx, s.fanOut)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
