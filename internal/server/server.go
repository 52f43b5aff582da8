// Package server exposes the auth core over HTTP: login and MFA completion,
// refresh, logout, authorization checks, JWKS, and the internal credential
// fetch endpoint.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"trading-platform/authcore/internal/authz/engine"
	sessionsvc "trading-platform/authcore/internal/session/service"
	"trading-platform/authcore/internal/token"
)

// Server wires the session manager, authorization engine, and token service
// into an HTTP handler.
type Server struct {
	sessions *sessionsvc.Manager
	engine   *engine.Engine
	tokens   *token.Service
	vault    sessionsvc.SecretVault
	log      zerolog.Logger
	handler  http.Handler
}

// Options configures optional server behavior.
type Options struct {
	AllowedOrigins []string
}

// New builds the Server and its route table.
func New(sessions *sessionsvc.Manager, eng *engine.Engine, tokens *token.Service, vault sessionsvc.SecretVault, log zerolog.Logger, opts Options) *Server {
	s := &Server{
		sessions: sessions,
		engine:   eng,
		tokens:   tokens,
		vault:    vault,
		log:      log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/.well-known/jwks.json", s.handleJWKS).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	v1.HandleFunc("/auth/mfa/complete", s.handleMFAComplete).Methods(http.MethodPost)
	v1.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	v1.HandleFunc("/auth/introspect", s.requireAuth(s.handleIntrospect)).Methods(http.MethodPost)
	v1.HandleFunc("/auth/logout", s.requireAuth(s.handleLogout)).Methods(http.MethodPost)
	v1.HandleFunc("/auth/mfa/enroll", s.requireAuth(s.handleMFAEnroll)).Methods(http.MethodPost)
	v1.HandleFunc("/auth/mfa/activate", s.requireAuth(s.handleMFAActivate)).Methods(http.MethodPost)
	v1.HandleFunc("/authz/check", s.requireAuth(s.handleAuthzCheck)).Methods(http.MethodPost)

	internal := r.PathPrefix("/internal/v1").Subrouter()
	internal.HandleFunc("/credentials/fetch", s.requireScope("credentials:read", s.handleCredentialFetch)).Methods(http.MethodPost)

	var handler http.Handler = r
	handler = requestLogger(log)(handler)
	if len(opts.AllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler(handler)
	}
	s.handler = otelhttp.NewHandler(handler, "authcore")
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
