package authbridge

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

// Store is the process-wide authentication state machine. It owns the
// current user, the loading flag, the last error and the desktop-redirect
// intent, and is the only writer of that state. Construct one at process
// start and hand it to the guards and the interceptor; there is no ambient
// singleton.
//
// Every mutating operation follows the same pattern: mark loading and clear
// the stale error, await the gateway, then apply the result. Operations may
// overlap (the UI is expected to disable controls while Loading() is true);
// a monotonic sequence number guarantees that a stale completion cannot
// clear the loading flag set by a newer operation's start.
type Store struct {
	mu      sync.Mutex
	gateway Gateway
	intents IntentStore
	config  *Config
	relay   *RelayClient
	logger  *slog.Logger

	user      *User
	loading   bool
	lastErr   *AuthError
	providers []Provider
	opSeq     uint64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used by store operations.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRelayClient overrides the relay client used for the desktop handoff.
func WithRelayClient(relay *RelayClient) StoreOption {
	return func(s *Store) {
		s.relay = relay
	}
}

// NewStore creates the auth state container. The intent store may be nil,
// in which case an in-memory store is used (desktop shells and tests).
func NewStore(gateway Gateway, intents IntentStore, config *Config, opts ...StoreOption) *Store {
	if intents == nil {
		intents = NewMemoryIntentStore()
	}
	config.EnsureDefaults()
	s := &Store{
		gateway: gateway,
		intents: intents,
		config:  config,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.relay == nil {
		s.relay = NewRelayClient(config.GenerateMagicLinkEndpoint, gateway)
	}
	return s
}

// Config returns the configuration the store was built with.
func (s *Store) Config() *Config { return s.config }

// beginOp starts a mutating operation: loading on, stale error cleared.
// The returned sequence identifies this operation for finishOp.
func (s *Store) beginOp() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opSeq++
	s.loading = true
	s.lastErr = nil
	return s.opSeq
}

// finishOp applies an operation's result. apply runs under the lock and may
// be nil. State writes land in completion order; only the newest started
// operation may drop the loading flag.
func (s *Store) finishOp(seq uint64, err error, apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = asAuthError(err)
	} else if apply != nil {
		apply()
	}
	if seq == s.opSeq {
		s.loading = false
	}
}

// Initialize seeds the enabled providers from configuration and restores an
// existing backend session, if any. Call once at process start.
func (s *Store) Initialize(ctx context.Context) error {
	seq := s.beginOp()
	s.mu.Lock()
	s.providers = append([]Provider(nil), s.config.EnabledProviders...)
	s.mu.Unlock()

	user, err := s.gateway.CurrentUser(ctx)
	if err != nil {
		s.finishOp(seq, err, nil)
		return asAuthError(err)
	}
	s.finishOp(seq, nil, func() { s.user = user })
	return nil
}

// SignInWithPassword authenticates with email and password. On success the
// user is installed; on failure the error is recorded and the user is left
// unchanged.
func (s *Store) SignInWithPassword(ctx context.Context, email, password string) error {
	seq := s.beginOp()
	user, err := s.gateway.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.finishOp(seq, err, nil)
		return asAuthError(err)
	}
	s.finishOp(seq, nil, func() { s.user = user })
	return nil
}

// SignUpWithPassword registers a new account and signs it in.
func (s *Store) SignUpWithPassword(ctx context.Context, email, password string) error {
	seq := s.beginOp()
	user, err := s.gateway.SignUpWithPassword(ctx, email, password)
	if err != nil {
		s.finishOp(seq, err, nil)
		return asAuthError(err)
	}
	s.finishOp(seq, nil, func() { s.user = user })
	return nil
}

// SignInWithSocial begins a social OAuth flow and returns the authorize URL
// the caller must redirect the browser to.
func (s *Store) SignInWithSocial(ctx context.Context, provider Provider) (string, error) {
	seq := s.beginOp()
	redirectTo := s.config.WebAppAuthURL + s.config.RedirectAfterLogin
	authURL, err := s.gateway.SignInWithProvider(ctx, provider, redirectTo)
	if err != nil {
		s.finishOp(seq, err, nil)
		return "", asAuthError(err)
	}
	s.finishOp(seq, nil, nil)
	return authURL, nil
}

// SendPasswordReset asks the backend to mail a recovery link.
func (s *Store) SendPasswordReset(ctx context.Context, email string) error {
	seq := s.beginOp()
	err := s.gateway.SendPasswordReset(ctx, email)
	s.finishOp(seq, err, nil)
	if err != nil {
		return asAuthError(err)
	}
	return nil
}

// UpdatePassword changes the current user's password.
func (s *Store) UpdatePassword(ctx context.Context, newPassword string) error {
	seq := s.beginOp()
	err := s.gateway.UpdatePassword(ctx, newPassword)
	s.finishOp(seq, err, nil)
	if err != nil {
		return asAuthError(err)
	}
	return nil
}

// UpdateProfile merges metadata into the current user and re-fetches the
// user so derived values stay consistent.
func (s *Store) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	seq := s.beginOp()
	if err := s.gateway.UpdateProfile(ctx, update); err != nil {
		s.finishOp(seq, err, nil)
		return asAuthError(err)
	}
	user, err := s.gateway.CurrentUser(ctx)
	if err != nil {
		s.finishOp(seq, err, nil)
		return asAuthError(err)
	}
	s.finishOp(seq, nil, func() { s.user = user })
	return nil
}

// SignOut destroys the session. The user is cleared even though the error
// field records any backend failure.
func (s *Store) SignOut(ctx context.Context) error {
	seq := s.beginOp()
	err := s.gateway.SignOut(ctx)
	if err != nil {
		s.finishOp(seq, err, nil)
		return asAuthError(err)
	}
	s.finishOp(seq, nil, func() { s.user = nil })
	return nil
}

// UploadFile stores bytes in the backend storage and returns the public URL.
func (s *Store) UploadFile(ctx context.Context, bucket, path string, data []byte) (string, error) {
	seq := s.beginOp()
	fileURL, err := s.gateway.UploadFile(ctx, bucket, path, data)
	s.finishOp(seq, err, nil)
	if err != nil {
		return "", asAuthError(err)
	}
	return fileURL, nil
}

// VerifyOneShotToken exchanges a single-use token for a session. Used on
// the shell side of the desktop handoff. Verification failure clears
// nothing locally but leaves the user as it was (the gateway itself drops
// any half-installed session).
func (s *Store) VerifyOneShotToken(ctx context.Context, token string) error {
	seq := s.beginOp()
	user, err := s.gateway.VerifyOneShotToken(ctx, token)
	if err != nil {
		s.finishOp(seq, err, nil)
		return asAuthError(err)
	}
	s.finishOp(seq, nil, func() { s.user = user })
	return nil
}

// ProcessDeepLink parses a custom-scheme URL received from the OS and
// verifies the one-shot token it carries. A URL without a token
// short-circuits before any verification call is made.
func (s *Store) ProcessDeepLink(ctx context.Context, rawURL string) error {
	result, err := ParseDeepLink(rawURL)
	if err != nil {
		seq := s.beginOp()
		s.finishOp(seq, err, nil)
		return asAuthError(err)
	}
	return s.VerifyOneShotToken(ctx, result.HashedToken)
}

// CheckAuth performs a fresh backend check and returns whether a session is
// live. The store's user is refreshed as a side effect so guards read
// current state. This is a query, not a mutating operation: it does not
// touch the loading flag.
func (s *Store) CheckAuth(ctx context.Context) (bool, error) {
	user, err := s.gateway.CurrentUser(ctx)
	if err != nil {
		return false, asAuthError(err)
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return user != nil, nil
}

// SetRedirectToDesktopAfterLogin writes the durable desktop-intent flag.
// Idempotent: repeating a value changes nothing observable.
func (s *Store) SetRedirectToDesktopAfterLogin(set bool) error {
	if err := s.intents.SetDesktopIntent(set); err != nil {
		return asAuthError(err)
	}
	return nil
}

// RedirectToDesktopAfterLogin reads the durable desktop-intent flag.
func (s *Store) RedirectToDesktopAfterLogin() bool {
	set, err := s.intents.DesktopIntent()
	if err != nil {
		s.logger.Warn("reading desktop intent failed", "err", err)
		return false
	}
	return set
}

// ConsumeDesktopIntent atomically reads and clears the intent flag. The
// flag is consulted exactly once per stored login: the first guard that
// sees it claims it.
func (s *Store) ConsumeDesktopIntent() (bool, error) {
	set, err := s.intents.DesktopIntent()
	if err != nil {
		return false, asAuthError(err)
	}
	if !set {
		return false, nil
	}
	if err := s.intents.SetDesktopIntent(false); err != nil {
		return false, asAuthError(err)
	}
	return true, nil
}

// OpenDesktopApp runs the browser leg of the desktop handoff: clears the
// intent flag, asks the relay for a one-shot token using the current
// session's bearer credential, and returns the custom-scheme URL the
// browser should navigate to. On relay failure the store error is set and
// no URL is produced; the user stays on the redirect page and may retry.
func (s *Store) OpenDesktopApp(ctx context.Context) (string, error) {
	seq := s.beginOp()
	if err := s.intents.SetDesktopIntent(false); err != nil {
		s.finishOp(seq, err, nil)
		return "", asAuthError(err)
	}
	if s.config.DeepLinkScheme == "" {
		err := NewAuthError(ErrKindNotConfigured, "deep link scheme is not configured", "")
		s.finishOp(seq, err, nil)
		return "", err
	}
	token, err := s.relay.GenerateToken(ctx)
	if err != nil {
		s.finishOp(seq, err, nil)
		return "", asAuthError(err)
	}
	s.finishOp(seq, nil, nil)
	return s.config.DeepLinkScheme + "?hashed_token=" + url.QueryEscape(token), nil
}

// ExternalAuthURL builds the web-app URL a desktop shell opens in the
// system browser to start authentication, always carrying desktop=true.
func (s *Store) ExternalAuthURL(path string, extra map[string]string) (string, error) {
	if s.config.WebAppAuthURL == "" {
		return "", NewAuthError(ErrKindNotConfigured, "web app auth URL is not configured", "")
	}
	q := url.Values{}
	q.Set("desktop", "true")
	for k, v := range extra {
		q.Set(k, v)
	}
	base := strings.TrimSuffix(s.config.WebAppAuthURL, "/")
	return base + "/" + strings.TrimPrefix(path, "/") + "?" + q.Encode(), nil
}

// BearerToken exposes the current session token for the request
// interceptor; "" when no session is held.
func (s *Store) BearerToken() string {
	return s.gateway.BearerToken()
}

// User returns the current user, or nil.
func (s *Store) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Loading reports whether any auth operation is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last operation's error, or nil. Cleared at the start of
// every new operation.
func (s *Store) Err() *AuthError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// IsAuthenticated reflects exactly the presence of a user.
func (s *Store) IsAuthenticated() bool {
	return s.User() != nil
}

// EnabledProviders returns the providers seeded at initialization.
func (s *Store) EnabledProviders() []Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Provider(nil), s.providers...)
}

// IsProviderEnabled reports whether the provider was enabled in config.
func (s *Store) IsProviderEnabled(p Provider) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, enabled := range s.providers {
		if enabled == p {
			return true
		}
	}
	return false
}

// HasSocialProviders reports whether any enabled provider is social.
func (s *Store) HasSocialProviders() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		if p.IsSocial() {
			return true
		}
	}
	return false
}

// HasEmailPasswordProvider reports whether the password channel is enabled.
func (s *Store) HasEmailPasswordProvider() bool {
	return s.IsProviderEnabled(ProviderEmailPassword)
}

// AvatarURL returns the user's avatar, falling back to a generated
// placeholder keyed by the user's display name.
func (s *Store) AvatarURL() string {
	user := s.User()
	if avatar := user.AvatarURL(); avatar != "" {
		return avatar
	}
	name := user.DisplayName()
	if name == "" {
		name = "User"
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&color=7F9CF5&background=EBF4FF&size=100"
}

// State returns a snapshot of the full auth state.
func (s *Store) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AuthState{
		User:                        s.user,
		Loading:                     s.loading,
		Error:                       s.lastErr,
		EnabledProviders:            append([]Provider(nil), s.providers...),
		RedirectToDesktopAfterLogin: s.redirectFlagLocked(),
	}
}

func (s *Store) redirectFlagLocked() bool {
	set, err := s.intents.DesktopIntent()
	if err != nil {
		return false
	}
	return set
}
