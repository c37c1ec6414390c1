package authbridge_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	ab "github.com/dottedlabs/authbridge"
	"github.com/dottedlabs/authbridge/devserver"
	"github.com/dottedlabs/authbridge/relay"
)

const (
	testAnonKey    = "test-anon-key"
	testServiceKey = "test-service-key"
)

// handoffFixture stands up the full server side: the in-memory backend and
// the token relay in front of its admin surface.
type handoffFixture struct {
	backendURL string
	relayURL   string
}

func newHandoffFixture(t *testing.T) *handoffFixture {
	t.Helper()

	dev := devserver.New(devserver.Config{
		AnonKey:    testAnonKey,
		ServiceKey: testServiceKey,
	})
	if _, err := dev.Seed("alice@example.com", "password123", map[string]any{"full_name": "Alice Example"}); err != nil {
		t.Fatal(err)
	}

	backend := httptest.NewServer(dev.Router())
	t.Cleanup(backend.Close)

	relaySrv := relay.New(relay.NewHTTPAdmin(backend.URL, testServiceKey))
	relayServer := httptest.NewServer(relaySrv.Router())
	t.Cleanup(relayServer.Close)

	return &handoffFixture{
		backendURL: backend.URL,
		relayURL:   relayServer.URL + "/api/generate-magic-link",
	}
}

func (f *handoffFixture) webStore() *ab.Store {
	gateway := ab.NewRemoteGateway(f.backendURL, testAnonKey)
	return ab.NewStore(gateway, nil, &ab.Config{
		DesktopAuthRedirect:       "/desktop-login",
		DeepLinkScheme:            "demoapp://auth",
		GenerateMagicLinkEndpoint: f.relayURL,
	})
}

func (f *handoffFixture) shellStore() *ab.Store {
	gateway := ab.NewRemoteGateway(f.backendURL, testAnonKey)
	return ab.NewStore(gateway, nil, &ab.Config{
		DeepLinkScheme: "demoapp://auth",
		WebAppAuthURL:  "http://web.example.com",
	})
}

// TestDesktopHandoffEndToEnd walks the whole flow: browser login with
// desktop intent, one-shot token minting through the relay, deep-link
// redemption in the shell, and single-use enforcement on replay.
func TestDesktopHandoffEndToEnd(t *testing.T) {
	fixture := newHandoffFixture(t)
	ctx := context.Background()

	// Browser side: the shell sent the user here with desktop=true.
	web := fixture.webStore()
	webGuards := ab.NewGuards(web)

	query := url.Values{"desktop": []string{"true"}}
	if decision := webGuards.RejectAuthenticated(ctx, query); decision.Target != "/desktop-login" {
		t.Fatalf("login-page decision = %+v, want redirect to /desktop-login", decision)
	}

	if err := web.SignInWithPassword(ctx, "alice@example.com", "password123"); err != nil {
		t.Fatalf("browser sign-in failed: %v", err)
	}

	// The intent survives the login and steers the next guarded navigation.
	if decision := webGuards.RequireAuth(ctx, "/dashboard"); decision.Target != "/desktop-login" {
		t.Fatalf("post-login decision = %+v, want redirect to /desktop-login", decision)
	}

	deepLink, err := web.OpenDesktopApp(ctx)
	if err != nil {
		t.Fatalf("OpenDesktopApp failed: %v", err)
	}
	if !strings.HasPrefix(deepLink, "demoapp://auth?hashed_token=") {
		t.Fatalf("deep link = %q, want demoapp://auth?hashed_token=...", deepLink)
	}

	// Shell side: redeem the link.
	shell := fixture.shellStore()
	if err := shell.ProcessDeepLink(ctx, deepLink); err != nil {
		t.Fatalf("ProcessDeepLink failed: %v", err)
	}
	user := shell.User()
	if user == nil || user.Email != "alice@example.com" {
		t.Fatalf("shell user = %+v, want alice@example.com", user)
	}
	if shell.BearerToken() == "" {
		t.Error("shell should hold a live session token")
	}

	// The one-shot token must not be redeemable twice.
	replay := fixture.shellStore()
	err = replay.ProcessDeepLink(ctx, deepLink)
	if !ab.HasKind(err, ab.ErrKindTokenInvalid) {
		t.Fatalf("replay error = %v, want token_invalid", err)
	}
	if replay.IsAuthenticated() {
		t.Error("replayed token must not authenticate")
	}
}

func TestRelayRejectsAnonymousCaller(t *testing.T) {
	fixture := newHandoffFixture(t)

	// No sign-in: the store has no bearer token for the relay call.
	web := fixture.webStore()
	_, err := web.OpenDesktopApp(context.Background())
	if !ab.HasKind(err, ab.ErrKindInvalidCredentials) {
		t.Fatalf("error = %v, want invalid_credentials from the relay", err)
	}
}

func TestShellExternalAuthURL(t *testing.T) {
	fixture := newHandoffFixture(t)
	shell := fixture.shellStore()

	authURL, err := shell.ExternalAuthURL("/login", nil)
	if err != nil {
		t.Fatal(err)
	}
	if authURL != "http://web.example.com/login?desktop=true" {
		t.Errorf("ExternalAuthURL = %q", authURL)
	}
}

// TestGatewayAgainstDevBackend exercises the REST gateway against the dev
// backend: session lifecycle, profile updates and credential errors.
func TestGatewayAgainstDevBackend(t *testing.T) {
	fixture := newHandoffFixture(t)
	ctx := context.Background()
	gateway := ab.NewRemoteGateway(fixture.backendURL, testAnonKey)

	if _, err := gateway.SignInWithPassword(ctx, "alice@example.com", "nope"); !ab.HasKind(err, ab.ErrKindInvalidCredentials) {
		t.Fatalf("wrong-password error = %v, want invalid_credentials", err)
	}

	user, err := gateway.SignInWithPassword(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if user.DisplayName() != "Alice Example" {
		t.Errorf("DisplayName = %q, want Alice Example", user.DisplayName())
	}

	if err := gateway.UpdateProfile(ctx, ab.ProfileUpdate{"avatar_url": "https://cdn.example.com/a.png"}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	user, err = gateway.CurrentUser(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if user.AvatarURL() != "https://cdn.example.com/a.png" {
		t.Errorf("AvatarURL = %q after update", user.AvatarURL())
	}

	if err := gateway.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	user, err = gateway.CurrentUser(ctx)
	if err != nil || user != nil {
		t.Errorf("CurrentUser after sign-out = (%+v, %v), want (nil, nil)", user, err)
	}

	if _, err := gateway.SignUpWithPassword(ctx, "bob@example.com", "password456"); err != nil {
		t.Fatalf("sign-up failed: %v", err)
	}
	if _, err := gateway.SignUpWithPassword(ctx, "bob@example.com", "password456"); !ab.HasKind(err, ab.ErrKindValidation) {
		t.Fatalf("duplicate sign-up error = %v, want validation", err)
	}
}

func TestGatewayUploadFile(t *testing.T) {
	fixture := newHandoffFixture(t)
	ctx := context.Background()
	gateway := ab.NewRemoteGateway(fixture.backendURL, testAnonKey)

	if _, err := gateway.SignInWithPassword(ctx, "alice@example.com", "password123"); err != nil {
		t.Fatal(err)
	}

	fileURL, err := gateway.UploadFile(ctx, "avatars", "alice.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("UploadFile failed: %v", err)
	}
	want := fixture.backendURL + "/storage/v1/object/public/avatars/alice.png"
	if fileURL != want {
		t.Errorf("file URL = %q, want %q", fileURL, want)
	}
}
