// Package devserver is a local implementation of the marketplace REST API.
//
// It speaks the same contract as the production backend closely enough for
// the client to be exercised end to end: accounts, subscriber preferences,
// the store directory and photo uploads answered by a stub detector. It does
// not store images and never notifies anyone.
package devserver

import (
	"log/slog"
	"net/http"

	"github.com/mmynk/foodguardian/internal/auth"
	"github.com/mmynk/foodguardian/internal/middleware"
	"github.com/mmynk/foodguardian/internal/storage"
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	store         storage.Store
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	detector      Detector
	metrics       *middleware.Metrics
	logger        *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithDetector replaces the stub detector used by /upload-test.
func WithDetector(d Detector) Option {
	return func(s *Server) { s.detector = d }
}

// WithAuthenticator replaces the bcrypt authenticator built on the store.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(s *Server) { s.authenticator = a }
}

// WithMetrics instruments every route.
func WithMetrics(m *middleware.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the logger used by the handlers.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server backed by store.
func New(store storage.Store, jwtManager *auth.JWTManager, opts ...Option) *Server {
	s := &Server{
		store:         store,
		authenticator: auth.NewPasswordAuthenticator(store),
		jwtManager:    jwtManager,
		detector:      StubDetector{},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API with logging and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	requireAuth := middleware.RequireAuth(s.jwtManager)

	s.route(mux, "GET /health", http.HandlerFunc(s.handleHealth))
	s.route(mux, "POST /auth/signup", http.HandlerFunc(s.handleSignup))
	s.route(mux, "POST /auth/login", http.HandlerFunc(s.handleLogin))
	s.route(mux, "GET /me", requireAuth(http.HandlerFunc(s.handleMe)))
	s.route(mux, "POST /prefs", requireAuth(http.HandlerFunc(s.handlePrefs)))
	s.route(mux, "POST /stores", http.HandlerFunc(s.handleCreateStore))
	s.route(mux, "GET /stores", http.HandlerFunc(s.handleListStores))
	s.route(mux, "POST /upload-test", http.HandlerFunc(s.handleUpload))

	return middleware.Logging(middleware.CORS(mux))
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.Handler) {
	if s.metrics != nil {
		h = s.metrics.Instrument(pattern, h)
	}
	mux.Handle(pattern, h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	middleware.JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
