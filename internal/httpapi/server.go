// Package httpapi exposes the treasury engine over HTTP. Each route maps
// onto one engine operation; request and response bodies are JSON.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	treasury "github.com/xraph/treasury"
	"github.com/xraph/treasury/internal/auth"
)

// Server serves the treasury API.
type Server struct {
	engine *treasury.Treasury
	auth   *auth.Authenticator
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAuth requires bearer tokens on every /v1 route. A token may only act
// on the account named by its subject.
func WithAuth(a *auth.Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a Server over engine.
func New(engine *treasury.Treasury, opts ...Option) *Server {
	s := &Server{engine: engine, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRouter returns a router with every route of the API.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.HandleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	if s.auth != nil {
		v1.Use(s.auth.RequireOwner, s.requireSameOwner)
	}

	v1.HandleFunc("/accounts/{owner}", s.HandleGetAccount).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{owner}", s.HandleOpenAccount).Methods(http.MethodPut)
	v1.HandleFunc("/accounts/{owner}", s.HandleDeleteAccount).Methods(http.MethodDelete)
	v1.HandleFunc("/accounts/{owner}/traces", s.HandleTraces).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{owner}/traces/{trace_id}", s.HandleGetTrace).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{owner}/analytics", s.HandleAnalytics).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{owner}/transfer", s.HandleTransfer).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{owner}/batch_transfer", s.HandleBatchTransfer).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{owner}/{operation}", s.HandleMutation).Methods(http.MethodPost)

	return r
}

// requireSameOwner rejects tokens acting on another owner's account.
func (s *Server) requireSameOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, _ := auth.OwnerFrom(r.Context())
		if path := mux.Vars(r)["owner"]; path != "" && path != owner {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleHealth pings the store.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Store().Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, treasury.ErrInvalidAmount),
		errors.Is(err, treasury.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, treasury.ErrInsufficientBalance),
		errors.Is(err, treasury.ErrDuplicateTraceID):
		return http.StatusConflict
	case errors.Is(err, treasury.ErrAccountNotFound),
		errors.Is(err, treasury.ErrTraceNotFound):
		return http.StatusNotFound
	case errors.Is(err, treasury.ErrAccountDeleted):
		return http.StatusGone
	case errors.Is(err, treasury.ErrExternalCall):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server errors are logged and
// their detail is hidden from the caller.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
