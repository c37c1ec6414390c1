package authbridge_test

import (
	"context"
	"sync"
	"testing"

	ab "github.com/dottedlabs/authbridge"
)

// fakeGateway implements ab.Gateway with overridable behavior per call.
// Unset callbacks succeed with the configured user.
type fakeGateway struct {
	mu    sync.Mutex
	user  *ab.User
	token string

	signInFn  func(email, password string) (*ab.User, error)
	signUpFn  func(email, password string) (*ab.User, error)
	currentFn func() (*ab.User, error)
	verifyFn  func(token string) (*ab.User, error)
	resetErr  error
	updateErr error
	signOut   func() error
	uploadFn  func(bucket, path string) (string, error)
}

func testUser() *ab.User {
	return &ab.User{
		ID:    "user-1",
		Email: "alice@example.com",
		UserMetadata: map[string]any{
			"full_name": "Alice Example",
		},
	}
}

func (g *fakeGateway) install(user *ab.User) {
	g.mu.Lock()
	g.user = user
	g.token = "token-for-" + user.ID
	g.mu.Unlock()
}

func (g *fakeGateway) drop() {
	g.mu.Lock()
	g.user = nil
	g.token = ""
	g.mu.Unlock()
}

func (g *fakeGateway) SignInWithPassword(ctx context.Context, email, password string) (*ab.User, error) {
	if g.signInFn != nil {
		user, err := g.signInFn(email, password)
		if err != nil {
			return nil, err
		}
		g.install(user)
		return user, nil
	}
	user := testUser()
	g.install(user)
	return user, nil
}

func (g *fakeGateway) SignUpWithPassword(ctx context.Context, email, password string) (*ab.User, error) {
	if g.signUpFn != nil {
		user, err := g.signUpFn(email, password)
		if err != nil {
			return nil, err
		}
		g.install(user)
		return user, nil
	}
	user := testUser()
	g.install(user)
	return user, nil
}

func (g *fakeGateway) SignInWithProvider(ctx context.Context, provider ab.Provider, redirectTo string) (string, error) {
	if !provider.IsSocial() {
		return "", ab.NewAuthError(ab.ErrKindValidation, "not a social provider", "provider")
	}
	return "https://backend.example.com/auth/v1/authorize?provider=" + string(provider), nil
}

func (g *fakeGateway) SignOut(ctx context.Context) error {
	if g.signOut != nil {
		if err := g.signOut(); err != nil {
			return err
		}
	}
	g.drop()
	return nil
}

func (g *fakeGateway) CurrentUser(ctx context.Context) (*ab.User, error) {
	if g.currentFn != nil {
		return g.currentFn()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.user, nil
}

func (g *fakeGateway) HasActiveSession(ctx context.Context) bool {
	return g.BearerToken() != ""
}

func (g *fakeGateway) SendPasswordReset(ctx context.Context, email string) error {
	return g.resetErr
}

func (g *fakeGateway) UpdatePassword(ctx context.Context, newPassword string) error {
	return g.updateErr
}

func (g *fakeGateway) UpdateProfile(ctx context.Context, update ab.ProfileUpdate) error {
	if g.updateErr != nil {
		return g.updateErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.user != nil {
		if g.user.UserMetadata == nil {
			g.user.UserMetadata = map[string]any{}
		}
		for k, v := range update {
			g.user.UserMetadata[k] = v
		}
	}
	return nil
}

func (g *fakeGateway) UploadFile(ctx context.Context, bucket, path string, data []byte) (string, error) {
	if g.uploadFn != nil {
		return g.uploadFn(bucket, path)
	}
	return "https://backend.example.com/storage/v1/object/public/" + bucket + "/" + path, nil
}

func (g *fakeGateway) VerifyOneShotToken(ctx context.Context, token string) (*ab.User, error) {
	if g.verifyFn != nil {
		user, err := g.verifyFn(token)
		if err != nil {
			g.drop()
			return nil, err
		}
		g.install(user)
		return user, nil
	}
	user := testUser()
	g.install(user)
	return user, nil
}

func (g *fakeGateway) BearerToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

func newTestStore(t *testing.T, gateway ab.Gateway, config *ab.Config) *ab.Store {
	t.Helper()
	if config == nil {
		config = &ab.Config{}
	}
	return ab.NewStore(gateway, nil, config)
}

func TestSignInWithPasswordSuccess(t *testing.T) {
	gw := &fakeGateway{}
	store := newTestStore(t, gw, nil)

	if err := store.SignInWithPassword(context.Background(), "alice@example.com", "password123"); err != nil {
		t.Fatalf("SignInWithPassword failed: %v", err)
	}
	if !store.IsAuthenticated() {
		t.Error("expected authenticated state after sign-in")
	}
	if store.Loading() {
		t.Error("loading flag should be cleared after completion")
	}
	if store.Err() != nil {
		t.Errorf("unexpected error state: %v", store.Err())
	}
	if got := store.User().Email; got != "alice@example.com" {
		t.Errorf("user email = %q, want alice@example.com", got)
	}
}

func TestSignInWithPasswordFailureKeepsUserNil(t *testing.T) {
	gw := &fakeGateway{
		signInFn: func(email, password string) (*ab.User, error) {
			return nil, ab.NewAuthError(ab.ErrKindInvalidCredentials, "Invalid login credentials", "")
		},
	}
	store := newTestStore(t, gw, nil)

	err := store.SignInWithPassword(context.Background(), "alice@example.com", "wrong")
	if !ab.HasKind(err, ab.ErrKindInvalidCredentials) {
		t.Fatalf("error kind = %v, want invalid_credentials", err)
	}
	if store.IsAuthenticated() {
		t.Error("failed sign-in must not authenticate")
	}
	if store.Loading() {
		t.Error("loading flag should be cleared after failure")
	}
	if store.Err() == nil || store.Err().Kind != ab.ErrKindInvalidCredentials {
		t.Errorf("error state = %v, want recorded invalid_credentials", store.Err())
	}
}

func TestNewOperationClearsPreviousError(t *testing.T) {
	fail := true
	gw := &fakeGateway{
		signInFn: func(email, password string) (*ab.User, error) {
			if fail {
				return nil, ab.NewAuthError(ab.ErrKindInvalidCredentials, "Invalid login credentials", "")
			}
			return testUser(), nil
		},
	}
	store := newTestStore(t, gw, nil)

	_ = store.SignInWithPassword(context.Background(), "alice@example.com", "wrong")
	if store.Err() == nil {
		t.Fatal("expected recorded error after failure")
	}

	fail = false
	if err := store.SignInWithPassword(context.Background(), "alice@example.com", "right"); err != nil {
		t.Fatalf("second sign-in failed: %v", err)
	}
	if store.Err() != nil {
		t.Errorf("error should be cleared by the new operation, got %v", store.Err())
	}
}

func TestSignOutClearsUser(t *testing.T) {
	gw := &fakeGateway{}
	store := newTestStore(t, gw, nil)

	if err := store.SignInWithPassword(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	if err := store.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if store.IsAuthenticated() {
		t.Error("user must be nil after sign-out")
	}
	if store.BearerToken() != "" {
		t.Error("bearer token must be dropped after sign-out")
	}
}

func TestUpdateProfileRefetchesUser(t *testing.T) {
	gw := &fakeGateway{}
	store := newTestStore(t, gw, nil)
	if err := store.SignInWithPassword(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateProfile(context.Background(), ab.ProfileUpdate{"full_name": "New Name"}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if got := store.User().DisplayName(); got != "New Name" {
		t.Errorf("DisplayName after update = %q, want New Name", got)
	}
}

func TestVerifyOneShotTokenFailure(t *testing.T) {
	gw := &fakeGateway{
		verifyFn: func(token string) (*ab.User, error) {
			return nil, ab.NewAuthError(ab.ErrKindTokenInvalid, "Token has expired or is invalid", "")
		},
	}
	store := newTestStore(t, gw, nil)

	err := store.VerifyOneShotToken(context.Background(), "stale-token")
	if !ab.HasKind(err, ab.ErrKindTokenInvalid) {
		t.Fatalf("error kind = %v, want token_invalid", err)
	}
	if store.IsAuthenticated() {
		t.Error("failed verification must not authenticate")
	}
}

func TestProcessDeepLinkWithoutTokenSkipsBackend(t *testing.T) {
	verifyCalled := false
	gw := &fakeGateway{
		verifyFn: func(token string) (*ab.User, error) {
			verifyCalled = true
			return testUser(), nil
		},
	}
	store := newTestStore(t, gw, nil)

	err := store.ProcessDeepLink(context.Background(), "myapp://auth?foo=bar")
	if !ab.HasKind(err, ab.ErrKindTokenInvalid) {
		t.Fatalf("error kind = %v, want token_invalid", err)
	}
	if verifyCalled {
		t.Error("verification must not be attempted for a URL without a token")
	}
	if store.Err() == nil {
		t.Error("parse failure must be recorded in the error state")
	}
}

func TestProcessDeepLinkSuccess(t *testing.T) {
	var seen string
	gw := &fakeGateway{
		verifyFn: func(token string) (*ab.User, error) {
			seen = token
			return testUser(), nil
		},
	}
	store := newTestStore(t, gw, nil)

	if err := store.ProcessDeepLink(context.Background(), "myapp://auth?hashed_token=abc123"); err != nil {
		t.Fatalf("ProcessDeepLink failed: %v", err)
	}
	if seen != "abc123" {
		t.Errorf("verified token = %q, want abc123", seen)
	}
	if !store.IsAuthenticated() {
		t.Error("expected authenticated state after deep link")
	}
}

// TestStaleCompletionKeepsLoading starts two overlapping operations and
// completes the older one first: the loading flag must stay set until the
// newest operation finishes.
func TestStaleCompletionKeepsLoading(t *testing.T) {
	aEntered := make(chan struct{})
	aRelease := make(chan struct{})
	bEntered := make(chan struct{})
	bRelease := make(chan struct{})

	gw := &fakeGateway{
		signInFn: func(email, password string) (*ab.User, error) {
			close(aEntered)
			<-aRelease
			return testUser(), nil
		},
		verifyFn: func(token string) (*ab.User, error) {
			close(bEntered)
			<-bRelease
			return testUser(), nil
		},
	}
	store := newTestStore(t, gw, nil)

	aDone := make(chan error, 1)
	go func() { aDone <- store.SignInWithPassword(context.Background(), "a@b.c", "pw") }()
	<-aEntered

	bDone := make(chan error, 1)
	go func() { bDone <- store.VerifyOneShotToken(context.Background(), "tok") }()
	<-bEntered

	close(aRelease)
	if err := <-aDone; err != nil {
		t.Fatalf("first operation failed: %v", err)
	}
	if !store.Loading() {
		t.Error("loading must stay set while the newer operation is in flight")
	}

	close(bRelease)
	if err := <-bDone; err != nil {
		t.Fatalf("second operation failed: %v", err)
	}
	if store.Loading() {
		t.Error("loading must clear once the newest operation completes")
	}
}

func TestConsumeDesktopIntentIsOneShot(t *testing.T) {
	store := newTestStore(t, &fakeGateway{}, nil)

	if err := store.SetRedirectToDesktopAfterLogin(true); err != nil {
		t.Fatal(err)
	}
	// Setting the same value again must be harmless.
	if err := store.SetRedirectToDesktopAfterLogin(true); err != nil {
		t.Fatal(err)
	}

	consumed, err := store.ConsumeDesktopIntent()
	if err != nil || !consumed {
		t.Fatalf("first consume = (%v, %v), want (true, nil)", consumed, err)
	}
	consumed, err = store.ConsumeDesktopIntent()
	if err != nil || consumed {
		t.Fatalf("second consume = (%v, %v), want (false, nil)", consumed, err)
	}
}

func TestOpenDesktopAppRequiresScheme(t *testing.T) {
	store := newTestStore(t, &fakeGateway{}, &ab.Config{})

	_, err := store.OpenDesktopApp(context.Background())
	if !ab.HasKind(err, ab.ErrKindNotConfigured) {
		t.Fatalf("error kind = %v, want not_configured", err)
	}
	if store.Err() == nil {
		t.Error("configuration failure must be recorded, not swallowed")
	}
}

func TestExternalAuthURLAlwaysCarriesDesktopFlag(t *testing.T) {
	store := newTestStore(t, &fakeGateway{}, &ab.Config{
		WebAppAuthURL: "https://app.example.com/",
	})

	got, err := store.ExternalAuthURL("/login", map[string]string{"theme": "dark"})
	if err != nil {
		t.Fatal(err)
	}
	if want := "https://app.example.com/login?desktop=true&theme=dark"; got != want {
		t.Errorf("ExternalAuthURL = %q, want %q", got, want)
	}
}

func TestExternalAuthURLUnconfigured(t *testing.T) {
	store := newTestStore(t, &fakeGateway{}, &ab.Config{})
	if _, err := store.ExternalAuthURL("/login", nil); !ab.HasKind(err, ab.ErrKindNotConfigured) {
		t.Fatalf("error kind = %v, want not_configured", err)
	}
}

func TestProviderHelpers(t *testing.T) {
	store := newTestStore(t, &fakeGateway{}, &ab.Config{
		EnabledProviders: []ab.Provider{ab.ProviderEmailPassword, ab.ProviderGoogle},
	})
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !store.HasEmailPasswordProvider() {
		t.Error("email/password provider should be enabled")
	}
	if !store.HasSocialProviders() {
		t.Error("google should count as a social provider")
	}
	if store.IsProviderEnabled(ab.ProviderDiscord) {
		t.Error("discord was not enabled")
	}
	if got := len(store.EnabledProviders()); got != 2 {
		t.Errorf("len(EnabledProviders) = %d, want 2", got)
	}
}

func TestAvatarURLFallsBackToPlaceholder(t *testing.T) {
	gw := &fakeGateway{}
	store := newTestStore(t, gw, nil)
	if err := store.SignInWithPassword(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}

	got := store.AvatarURL()
	if want := "https://ui-avatars.com/api/?name=Alice+Example&color=7F9CF5&background=EBF4FF&size=100"; got != want {
		t.Errorf("AvatarURL = %q, want placeholder %q", got, want)
	}

	if err := store.UpdateProfile(context.Background(), ab.ProfileUpdate{"avatar_url": "https://cdn.example.com/a.png"}); err != nil {
		t.Fatal(err)
	}
	if got := store.AvatarURL(); got != "https://cdn.example.com/a.png" {
		t.Errorf("AvatarURL = %q, want the stored avatar", got)
	}
}

func TestStateSnapshot(t *testing.T) {
	store := newTestStore(t, &fakeGateway{}, &ab.Config{
		EnabledProviders: []ab.Provider{ab.ProviderEmailPassword},
	})
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := store.SetRedirectToDesktopAfterLogin(true); err != nil {
		t.Fatal(err)
	}

	state := store.State()
	if state.User != nil || state.Loading || state.Error != nil {
		t.Errorf("unexpected state: %+v", state)
	}
	if !state.RedirectToDesktopAfterLogin {
		t.Error("snapshot should reflect the pending desktop intent")
	}
	if len(state.EnabledProviders) != 1 {
		t.Errorf("snapshot providers = %v", state.EnabledProviders)
	}
}
