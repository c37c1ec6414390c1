package authbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// RemoteGateway implements Gateway over a GoTrue-style REST backend. It owns
// the current session token the way the hosted client SDK would: sign-in and
// verification install a session, sign-out and verification failure drop it.
type RemoteGateway struct {
	mu         sync.Mutex
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	accessToken string
	user        *User
}

// GatewayOption configures a RemoteGateway.
type GatewayOption func(*RemoteGateway)

// WithHTTPClient sets a custom HTTP client (timeouts, TLS, proxies).
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *RemoteGateway) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithLogger sets the logger used for request-level diagnostics.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *RemoteGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewRemoteGateway creates a gateway for the backend at baseURL, e.g.
// "https://xyzcompany.supabase.co". The apiKey is sent on every request.
func NewRemoteGateway(baseURL, apiKey string, opts ...GatewayOption) *RemoteGateway {
	g := &RemoteGateway{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// sessionResponse is the backend's session payload, returned by the token,
// signup and verify endpoints.
type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         *User  `json:"user"`
}

// errorResponse covers the error body shapes the backend emits.
type errorResponse struct {
	Error     string `json:"error"`
	ErrorDesc string `json:"error_description"`
	Msg       string `json:"msg"`
	Message   string `json:"message"`
}

func (e *errorResponse) text() string {
	for _, s := range []string{e.ErrorDesc, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (g *RemoteGateway) SignInWithPassword(ctx context.Context, email, password string) (*User, error) {
	body := map[string]string{"email": email, "password": password}
	sess, err := g.postSession(ctx, "/auth/v1/token?grant_type=password", body, ErrKindInvalidCredentials)
	if err != nil {
		return nil, err
	}
	g.installSession(sess)
	return sess.User, nil
}

func (g *RemoteGateway) SignUpWithPassword(ctx context.Context, email, password string) (*User, error) {
	body := map[string]string{"email": email, "password": password}
	sess, err := g.postSession(ctx, "/auth/v1/signup", body, ErrKindValidation)
	if err != nil {
		return nil, err
	}
	g.installSession(sess)
	return sess.User, nil
}

// SignInWithProvider builds the backend authorize URL for the provider. The
// caller redirects the browser there; the backend completes the OAuth dance
// and lands the session on redirectTo.
func (g *RemoteGateway) SignInWithProvider(ctx context.Context, provider Provider, redirectTo string) (string, error) {
	if !provider.IsSocial() {
		return "", NewAuthError(ErrKindValidation, fmt.Sprintf("%q is not a social provider", provider), "provider")
	}
	q := url.Values{}
	q.Set("provider", string(provider))
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return g.baseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

func (g *RemoteGateway) SignOut(ctx context.Context) error {
	token := g.BearerToken()
	if token == "" {
		g.dropSession()
		return nil
	}
	resp, err := g.do(ctx, http.MethodPost, "/auth/v1/logout", nil, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	g.dropSession()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusUnauthorized {
		return g.decodeError(resp, ErrKindTransport)
	}
	return nil
}

func (g *RemoteGateway) CurrentUser(ctx context.Context) (*User, error) {
	token := g.BearerToken()
	if token == "" {
		return nil, nil
	}
	resp, err := g.do(ctx, http.MethodGet, "/auth/v1/user", nil, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		// Session expired on the backend; drop the local copy.
		g.dropSession()
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, g.decodeError(resp, ErrKindTransport)
	}
	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, NewAuthError(ErrKindTransport, "invalid response from server", "")
	}
	g.mu.Lock()
	g.user = &user
	g.mu.Unlock()
	return &user, nil
}

func (g *RemoteGateway) HasActiveSession(ctx context.Context) bool {
	return g.BearerToken() != ""
}

func (g *RemoteGateway) SendPasswordReset(ctx context.Context, email string) error {
	resp, err := g.do(ctx, http.MethodPost, "/auth/v1/recover", map[string]string{"email": email}, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return g.decodeError(resp, ErrKindValidation)
	}
	return nil
}

func (g *RemoteGateway) UpdatePassword(ctx context.Context, newPassword string) error {
	return g.putUser(ctx, map[string]any{"password": newPassword})
}

func (g *RemoteGateway) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	return g.putUser(ctx, map[string]any{"data": map[string]any(update)})
}

func (g *RemoteGateway) putUser(ctx context.Context, body map[string]any) error {
	token := g.BearerToken()
	if token == "" {
		return NewAuthError(ErrKindInvalidCredentials, "no active session", "")
	}
	resp, err := g.do(ctx, http.MethodPut, "/auth/v1/user", body, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return g.decodeError(resp, ErrKindValidation)
	}
	return nil
}

func (g *RemoteGateway) UploadFile(ctx context.Context, bucket, path string, data []byte) (string, error) {
	objectPath := fmt.Sprintf("/storage/v1/object/%s/%s", bucket, strings.TrimPrefix(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+objectPath, bytes.NewReader(data))
	if err != nil {
		return "", NewAuthError(ErrKindTransport, err.Error(), "")
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	g.setAuthHeaders(req, g.BearerToken())

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", NewAuthError(ErrKindTransport, fmt.Sprintf("failed to connect to server: %v", err), "")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", g.decodeError(resp, ErrKindTransport)
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", g.baseURL, bucket, strings.TrimPrefix(path, "/")), nil
}

func (g *RemoteGateway) VerifyOneShotToken(ctx context.Context, token string) (*User, error) {
	body := map[string]string{"type": "magiclink", "token_hash": token}
	sess, err := g.postSession(ctx, "/auth/v1/verify", body, ErrKindTokenInvalid)
	if err != nil {
		// A failed verification must not leave a half-installed session.
		g.dropSession()
		return nil, err
	}
	g.installSession(sess)
	return sess.User, nil
}

// RestoreSession installs a previously persisted access token, e.g. one a
// web host kept in its session store. The user is fetched lazily on the
// next CurrentUser call; an expired token simply drops the session then.
func (g *RemoteGateway) RestoreSession(token string) {
	g.mu.Lock()
	g.accessToken = token
	g.user = nil
	g.mu.Unlock()
}

func (g *RemoteGateway) BearerToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.accessToken
}

func (g *RemoteGateway) installSession(sess *sessionResponse) {
	g.mu.Lock()
	g.accessToken = sess.AccessToken
	g.user = sess.User
	g.mu.Unlock()
}

func (g *RemoteGateway) dropSession() {
	g.mu.Lock()
	g.accessToken = ""
	g.user = nil
	g.mu.Unlock()
}

// postSession posts a JSON body and decodes a session payload. failKind is
// the error classification for a 4xx rejection of this particular call.
func (g *RemoteGateway) postSession(ctx context.Context, path string, body any, failKind ErrorKind) (*sessionResponse, error) {
	resp, err := g.do(ctx, http.MethodPost, path, body, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewAuthError(ErrKindTransport, "failed to read response", "")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, g.classify(resp.StatusCode, raw, failKind)
	}
	var sess sessionResponse
	if err := json.Unmarshal(raw, &sess); err != nil || sess.User == nil {
		return nil, NewAuthError(ErrKindTransport, "invalid response from server", "")
	}
	return &sess, nil
}

func (g *RemoteGateway) do(ctx context.Context, method, path string, body any, bearer string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, NewAuthError(ErrKindTransport, "failed to encode request", "")
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, NewAuthError(ErrKindTransport, err.Error(), "")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	g.setAuthHeaders(req, bearer)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("backend request failed", "method", method, "path", path, "err", err)
		return nil, NewAuthError(ErrKindTransport, fmt.Sprintf("failed to connect to server: %v", err), "")
	}
	return resp, nil
}

func (g *RemoteGateway) setAuthHeaders(req *http.Request, bearer string) {
	if g.apiKey != "" {
		req.Header.Set("apikey", g.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
}

func (g *RemoteGateway) decodeError(resp *http.Response, failKind ErrorKind) *AuthError {
	raw, _ := io.ReadAll(resp.Body)
	return g.classify(resp.StatusCode, raw, failKind)
}

func (g *RemoteGateway) classify(status int, raw []byte, failKind ErrorKind) *AuthError {
	var body errorResponse
	_ = json.Unmarshal(raw, &body)
	msg := body.text()
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	if status >= 500 {
		return NewAuthError(ErrKindTransport, msg, "")
	}
	return NewAuthError(failKind, msg, "")
}
