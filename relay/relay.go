// Package relay implements the one-shot token relay: a small HTTP service
// that exchanges a valid session's bearer credential for a single-use token
// the desktop shell can redeem. It is the only server-side piece of the
// desktop handoff.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// AdminAPI is the backend capability the relay needs: resolving the email
// behind a session token and minting a magic-link token for that email.
// Implemented over the backend's admin surface with a service key.
type AdminAPI interface {
	UserEmailFromToken(ctx context.Context, accessToken string) (string, error)
	GenerateMagicLink(ctx context.Context, email string) (string, error)
}

// Server handles POST /api/generate-magic-link per the handoff contract:
// 200 {hashed_token}, 401 for a missing/invalid bearer, 400 when no email
// can be resolved, 500 on backend failure. One-shot tokens are sensitive
// and are never logged.
type Server struct {
	admin  AdminAPI
	logger *slog.Logger
	parser *jwt.Parser
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the relay logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a relay server over the given admin API.
func New(admin AdminAPI, opts ...Option) *Server {
	s := &Server{
		admin:  admin,
		logger: slog.Default(),
		parser: jwt.NewParser(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the relay's HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/generate-magic-link", s.handleGenerateMagicLink).Methods(http.MethodPost)
	return r
}

func (s *Server) handleGenerateMagicLink(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized: missing or invalid token", "")
		return
	}

	// Reject obviously malformed tokens before spending a backend call.
	// Signature verification belongs to the backend; this only checks shape
	// and expiry claims.
	if _, _, err := s.parser.ParseUnverified(token, jwt.MapClaims{}); err != nil {
		s.writeError(w, http.StatusUnauthorized, "unauthorized: missing or invalid token", "")
		return
	}

	email, err := s.admin.UserEmailFromToken(r.Context(), token)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "unauthorized: invalid user token", err.Error())
		return
	}
	if email == "" {
		s.writeError(w, http.StatusBadRequest, "user email not found", "")
		return
	}

	s.logger.Info("generating magic link", "email", email)
	hashedToken, err := s.admin.GenerateMagicLink(r.Context(), email)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to generate magic link", err.Error())
		return
	}
	if hashedToken == "" {
		s.writeError(w, http.StatusInternalServerError, "could not extract token from magic link", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"hashed_token": hashedToken})
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"error": msg}
	if details != "" {
		body["details"] = details
	}
	json.NewEncoder(w).Encode(body)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
