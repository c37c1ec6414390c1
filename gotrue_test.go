package authbridge_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	ab "github.com/dottedlabs/authbridge"
)

// TestGatewaySendsAPIKeyAndBearer checks the headers on every call shape:
// anonymous calls carry only the apikey, session calls add the bearer.
func TestGatewaySendsAPIKeyAndBearer(t *testing.T) {
	var gotAPIKey, gotBearer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("apikey")
		gotBearer = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/auth/v1/token":
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "session-token",
				"user":         map[string]any{"id": "u1", "email": "a@b.c"},
			})
		case "/auth/v1/user":
			json.NewEncoder(w).Encode(map[string]any{"id": "u1", "email": "a@b.c"})
		}
	}))
	defer server.Close()

	gateway := ab.NewRemoteGateway(server.URL, "public-key")
	ctx := context.Background()

	if _, err := gateway.SignInWithPassword(ctx, "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	if gotAPIKey != "public-key" {
		t.Errorf("apikey header = %q, want public-key", gotAPIKey)
	}
	if gotBearer != "" {
		t.Errorf("sign-in must not carry a bearer, got %q", gotBearer)
	}

	if _, err := gateway.CurrentUser(ctx); err != nil {
		t.Fatal(err)
	}
	if gotBearer != "Bearer session-token" {
		t.Errorf("bearer = %q, want the installed session token", gotBearer)
	}
}

// An expired backend session must clear the local copy instead of erroring.
func TestGatewayExpiredSessionDropsLocally(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/v1/token" {
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "stale",
				"user":         map[string]any{"id": "u1"},
			})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"msg": "invalid JWT"})
	}))
	defer server.Close()

	gateway := ab.NewRemoteGateway(server.URL, "key")
	ctx := context.Background()
	if _, err := gateway.SignInWithPassword(ctx, "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}

	user, err := gateway.CurrentUser(ctx)
	if err != nil || user != nil {
		t.Fatalf("CurrentUser = (%+v, %v), want (nil, nil)", user, err)
	}
	if gateway.BearerToken() != "" {
		t.Error("local session must be dropped after a backend 401")
	}
}

func TestGatewayVerifyFailureDropsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/v1/token" {
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "live",
				"user":         map[string]any{"id": "u1"},
			})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error_description": "Token has expired or is invalid"})
	}))
	defer server.Close()

	gateway := ab.NewRemoteGateway(server.URL, "key")
	ctx := context.Background()
	if _, err := gateway.SignInWithPassword(ctx, "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}

	_, err := gateway.VerifyOneShotToken(ctx, "bad")
	if !ab.HasKind(err, ab.ErrKindTokenInvalid) {
		t.Fatalf("error = %v, want token_invalid", err)
	}
	if gateway.BearerToken() != "" {
		t.Error("failed verification must not leave a half-installed session")
	}
}

func TestGatewayUnreachableBackend(t *testing.T) {
	gateway := ab.NewRemoteGateway("http://127.0.0.1:0", "key")
	_, err := gateway.SignInWithPassword(context.Background(), "a@b.c", "pw")
	if !ab.HasKind(err, ab.ErrKindTransport) {
		t.Fatalf("error = %v, want transport", err)
	}
}

func TestGatewayRestoreSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer persisted" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "u1", "email": "a@b.c"})
	}))
	defer server.Close()

	gateway := ab.NewRemoteGateway(server.URL, "key")
	gateway.RestoreSession("persisted")

	user, err := gateway.CurrentUser(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if user == nil || user.ID != "u1" {
		t.Errorf("user = %+v, want u1", user)
	}
}

func TestGatewaySignInWithProviderRejectsLocal(t *testing.T) {
	gateway := ab.NewRemoteGateway("http://backend.example.com", "key")
	_, err := gateway.SignInWithProvider(context.Background(), ab.ProviderEmailPassword, "")
	if !ab.HasKind(err, ab.ErrKindValidation) {
		t.Fatalf("error = %v, want validation", err)
	}

	authURL, err := gateway.SignInWithProvider(context.Background(), ab.ProviderGoogle, "https://app.example.com/dash")
	if err != nil {
		t.Fatal(err)
	}
	want := "http://backend.example.com/auth/v1/authorize?provider=google&redirect_to=https%3A%2F%2Fapp.example.com%2Fdash"
	if authURL != want {
		t.Errorf("authorize URL = %q, want %q", authURL, want)
	}
}
