// Package devserver is an in-memory, GoTrue-compatible auth backend for
// local development and integration tests. It implements the REST surface
// the library's gateway talks to: password and social sign-in, signup,
// logout, user read/update, password recovery, magic-link verification, the
// admin generate-link endpoint the relay depends on, and a toy storage
// bucket. Nothing persists across restarts.
package devserver

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const oneShotTokenTTL = 10 * time.Minute

// Config carries the dev server's keys and addresses.
type Config struct {
	// AnonKey is the public API key clients send in the apikey header.
	AnonKey string

	// ServiceKey is the privileged key for admin endpoints. Must differ
	// from AnonKey.
	ServiceKey string

	// JWTSecret signs access tokens. Defaults to a fixed dev secret.
	JWTSecret string

	// ExternalURL is the base URL links in emails point at, e.g.
	// "http://localhost:9999".
	ExternalURL string

	// Mail delivers recovery and magic-link emails. Defaults to
	// ConsoleEmailSender.
	Mail EmailSender

	Logger *slog.Logger
}

func (c *Config) ensureDefaults() {
	if c.AnonKey == "" {
		c.AnonKey = "dev-anon-key"
	}
	if c.ServiceKey == "" {
		c.ServiceKey = "dev-service-key"
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "dev-jwt-secret-not-for-production"
	}
	if c.ExternalURL == "" {
		c.ExternalURL = "http://localhost:9999"
	}
	if c.Mail == nil {
		c.Mail = &ConsoleEmailSender{Logger: c.Logger}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server is the dev backend. Create one with New and mount Router.
type Server struct {
	config    Config
	users     *userStore
	oneShot   *oneShotStore
	providers *providerRegistry
	logger    *slog.Logger

	storageMu sync.Mutex
	storage   map[string][]byte
}

// New builds a dev server. Zero-value config fields get dev defaults.
func New(config Config) *Server {
	config.ensureDefaults()
	return &Server{
		config:    config,
		users:     newUserStore(),
		oneShot:   newOneShotStore(),
		providers: newProviderRegistry(strings.TrimSuffix(config.ExternalURL, "/") + "/auth/v1/callback"),
		logger:    config.Logger,
		storage:   map[string][]byte{},
	}
}

// Seed creates a user directly, for tests and demo fixtures.
func (s *Server) Seed(email, password string, metadata map[string]any) (string, error) {
	acct, err := s.users.Create(email, password, metadata)
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}

// Router returns the server's HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	auth := r.PathPrefix("/auth/v1").Subrouter()
	auth.HandleFunc("/token", s.requireAPIKey(s.handleToken)).Methods(http.MethodPost)
	auth.HandleFunc("/signup", s.requireAPIKey(s.handleSignup)).Methods(http.MethodPost)
	auth.HandleFunc("/logout", s.requireAPIKey(s.handleLogout)).Methods(http.MethodPost)
	auth.HandleFunc("/user", s.requireAPIKey(s.handleGetUser)).Methods(http.MethodGet)
	auth.HandleFunc("/user", s.requireAPIKey(s.handlePutUser)).Methods(http.MethodPut)
	auth.HandleFunc("/recover", s.requireAPIKey(s.handleRecover)).Methods(http.MethodPost)
	auth.HandleFunc("/verify", s.requireAPIKey(s.handleVerify)).Methods(http.MethodPost)
	auth.HandleFunc("/admin/generate_link", s.handleGenerateLink).Methods(http.MethodPost)

	// Browser-facing: no apikey header on redirects.
	auth.HandleFunc("/authorize", s.handleAuthorize).Methods(http.MethodGet)
	auth.HandleFunc("/callback", s.handleCallback).Methods(http.MethodGet)

	r.HandleFunc("/storage/v1/object/{bucket}/{path:.+}", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/storage/v1/object/public/{bucket}/{path:.+}", s.handleDownload).Methods(http.MethodGet)

	r.HandleFunc("/api/first-time-check", s.handleFirstTimeCheck).Methods(http.MethodGet)

	return r
}

func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("apikey")
		if key != s.config.AnonKey && key != s.config.ServiceKey {
			s.writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "No API key found in request"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("grant_type") != "password" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error_description": "unsupported grant type"})
		return
	}

	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error_description": "invalid request body"})
		return
	}

	acct, err := s.users.Authenticate(creds.Email, creds.Password)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error_description": "Invalid login credentials"})
		return
	}
	s.writeSession(w, acct)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string         `json:"email"`
		Password string         `json:"password"`
		Data     map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "invalid request body"})
		return
	}

	acct, err := s.users.Create(body.Email, body.Password, body.Data)
	if err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"msg": err.Error()})
		return
	}
	s.users.TouchSignIn(acct.ID)
	s.writeSession(w, acct)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Access tokens are stateless, so there is nothing to revoke here.
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authenticatedUser(r)
	if !ok {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}
	s.writeJSON(w, http.StatusOK, userPayload(acct))
}

func (s *Server) handlePutUser(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authenticatedUser(r)
	if !ok {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}

	var body struct {
		Password string         `json:"password"`
		Data     map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "invalid request body"})
		return
	}

	if body.Password != "" {
		if err := s.users.SetPassword(acct.ID, body.Password); err != nil {
			s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"msg": err.Error()})
			return
		}
	}
	if len(body.Data) > 0 {
		updated, err := s.users.MergeMetadata(acct.ID, body.Data)
		if err != nil {
			s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"msg": err.Error()})
			return
		}
		acct = updated
	}
	s.writeJSON(w, http.StatusOK, userPayload(acct))
}

// handleRecover always answers 200 so the endpoint does not reveal whether
// an email is registered.
func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "email required"})
		return
	}

	if acct, ok := s.users.GetByEmail(body.Email); ok {
		token, err := s.oneShot.Issue(acct.ID, oneShotTokenTTL)
		if err == nil {
			link := fmt.Sprintf("%s/auth/v1/verify?token_hash=%s&type=recovery", s.config.ExternalURL, token)
			if err := s.config.Mail.SendPasswordRecovery(acct.Email, link); err != nil {
				s.logger.Warn("recovery mail failed", "err", err)
			}
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type      string `json:"type"`
		TokenHash string `json:"token_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TokenHash == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error_description": "token_hash required"})
		return
	}

	userID, err := s.oneShot.Consume(body.TokenHash)
	if err != nil {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error_description": "Token has expired or is invalid"})
		return
	}
	acct, ok := s.users.GetByID(userID)
	if !ok {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error_description": "Token has expired or is invalid"})
		return
	}
	s.users.TouchSignIn(acct.ID)
	s.writeSession(w, acct)
}

// handleGenerateLink is the admin surface the relay calls. It requires the
// service key and returns the hashed one-shot token a later /verify call
// will consume.
func (s *Server) handleGenerateLink(w http.ResponseWriter, r *http.Request) {
	bearer, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if bearer != s.config.ServiceKey {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "service key required"})
		return
	}

	var body struct {
		Type  string `json:"type"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "email required"})
		return
	}
	if body.Type != "magiclink" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"msg": fmt.Sprintf("unsupported link type %q", body.Type)})
		return
	}

	acct, ok := s.users.GetByEmail(body.Email)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"msg": "user not found"})
		return
	}

	token, err := s.oneShot.Issue(acct.ID, oneShotTokenTTL)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"hashed_token":      token,
		"verification_type": "magiclink",
		"action_link":       fmt.Sprintf("%s/auth/v1/verify?token_hash=%s&type=magiclink", s.config.ExternalURL, token),
	})
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("provider")
	provider, ok := s.providers.Get(name)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"msg": fmt.Sprintf("unknown provider %q", name)})
		return
	}

	state := randomState()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		MaxAge:   300,
		HttpOnly: true,
		Path:     "/",
	})
	http.SetCookie(w, &http.Cookie{
		Name:   "oauthredirect",
		Value:  url.QueryEscape(r.URL.Query().Get("redirect_to")),
		MaxAge: 300,
		Path:   "/",
	})
	// All providers share one callback URL, so remember which one we sent
	// the browser to.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauthprovider",
		Value:  name,
		MaxAge: 300,
		Path:   "/",
	})
	http.Redirect(w, r, provider.Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauthstate")
	if err != nil || r.URL.Query().Get("state") != stateCookie.Value {
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}

	providerCookie, err := r.Cookie("oauthprovider")
	if err != nil {
		http.Error(w, "missing provider", http.StatusBadRequest)
		return
	}
	name := providerCookie.Value
	provider, ok := s.providers.Get(name)
	if !ok {
		http.Error(w, "unknown provider", http.StatusBadRequest)
		return
	}

	profile, err := provider.FetchProfile(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.logger.Warn("oauth callback failed", "provider", name, "err", err)
		http.Error(w, "oauth exchange failed", http.StatusBadGateway)
		return
	}

	email, _ := profile["email"].(string)
	acct, err := s.users.EnsureSocialUser(email, name, profile)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := issueAccessToken([]byte(s.config.JWTSecret), acct.ID, acct.Email)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	redirectTo := "/"
	if c, err := r.Cookie("oauthredirect"); err == nil && c.Value != "" {
		if unescaped, err := url.QueryUnescape(c.Value); err == nil {
			redirectTo = unescaped
		}
	}
	// Token travels in the fragment so it never hits server logs.
	http.Redirect(w, r, redirectTo+"#access_token="+token, http.StatusFound)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticatedUser(r); !ok {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}

	vars := mux.Vars(r)
	key := vars["bucket"] + "/" + vars["path"]

	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "could not read upload body"})
		return
	}

	s.storageMu.Lock()
	s.storage[key] = data
	s.storageMu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]string{"Key": key})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := vars["bucket"] + "/" + vars["path"]

	s.storageMu.Lock()
	data, ok := s.storage[key]
	s.storageMu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(data)
}

// handleFirstTimeCheck reports whether the user still needs to complete
// their profile, keyed off the profile_completed metadata flag.
func (s *Server) handleFirstTimeCheck(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	acct, ok := s.users.GetByID(userID)
	if !ok {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	completed, _ := acct.UserMetadata["profile_completed"].(bool)
	s.writeJSON(w, http.StatusOK, !completed)
}

func (s *Server) authenticatedUser(r *http.Request) (*account, bool) {
	bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || bearer == "" {
		return nil, false
	}
	userID, err := parseAccessToken([]byte(s.config.JWTSecret), bearer)
	if err != nil {
		return nil, false
	}
	return s.users.GetByID(userID)
}

func (s *Server) writeSession(w http.ResponseWriter, acct *account) {
	token, err := issueAccessToken([]byte(s.config.JWTSecret), acct.ID, acct.Email)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int64(accessTokenTTL.Seconds()),
		"user":         userPayload(acct),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("writing response failed", "err", err)
	}
}

func userPayload(acct *account) map[string]any {
	payload := map[string]any{
		"id":            acct.ID,
		"email":         acct.Email,
		"created_at":    acct.CreatedAt.Format(timeFormat),
		"user_metadata": acct.UserMetadata,
		"app_metadata":  acct.AppMetadata,
	}
	if acct.Phone != "" {
		payload["phone"] = acct.Phone
	}
	if !acct.LastSignInAt.IsZero() {
		payload["last_sign_in_at"] = acct.LastSignInAt.Format(timeFormat)
	}
	return payload
}

const timeFormat = time.RFC3339

func randomState() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
