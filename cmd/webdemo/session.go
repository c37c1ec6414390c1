package main

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/dottedlabs/authbridge"
)

const sessionTokenKey = "access_token"

// sessionIntentStore keeps the desktop-redirect flag in the scs session, so
// it survives across requests and browser restarts for the lifetime of the
// session cookie. The context is the request context that passed through
// scs's LoadAndSave middleware.
type sessionIntentStore struct {
	sessions *scs.SessionManager
	ctx      context.Context
}

func (s *sessionIntentStore) SetDesktopIntent(pending bool) error {
	if pending {
		s.sessions.Put(s.ctx, "desktop_intent", true)
	} else {
		s.sessions.Remove(s.ctx, "desktop_intent")
	}
	return nil
}

func (s *sessionIntentStore) DesktopIntent() (bool, error) {
	return s.sessions.GetBool(s.ctx, "desktop_intent"), nil
}

// authFor builds the per-request auth store: a gateway with the session's
// persisted token restored, intent state bound to the scs session, and the
// guard evaluator over both.
func (a *app) authFor(r *http.Request) (*authbridge.Store, *authbridge.Guards) {
	gateway := authbridge.NewRemoteGateway(a.backendURL, a.cfg.AnonKey,
		authbridge.WithLogger(a.logger))
	if token := a.sessions.GetString(r.Context(), sessionTokenKey); token != "" {
		gateway.RestoreSession(token)
	}

	intents := &sessionIntentStore{sessions: a.sessions, ctx: r.Context()}
	store := authbridge.NewStore(gateway, intents, a.authConfig,
		authbridge.WithStoreLogger(a.logger))
	guards := authbridge.NewGuards(store, authbridge.WithGuardLogger(a.logger))
	return store, guards
}

// saveSession writes the gateway's current token back into the scs session
// after the handler ran, so sign-ins persist and sign-outs clear.
func (a *app) saveSession(ctx context.Context, store *authbridge.Store) {
	if token := store.BearerToken(); token != "" {
		a.sessions.Put(ctx, sessionTokenKey, token)
	} else {
		a.sessions.Remove(ctx, sessionTokenKey)
	}
}

type authHandler func(w http.ResponseWriter, r *http.Request, store *authbridge.Store)

// protected wraps a handler with the authenticated-route guard chain.
func (a *app) protected(h authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, guards := a.authFor(r)
		defer a.saveSession(r.Context(), store)
		mw := authbridge.NewMiddleware(guards)
		mw.RequireAuth(a.bind(h, store)).ServeHTTP(w, r)
	})
}

// public wraps login/signup/reset pages with the reject-authenticated guard.
func (a *app) public(h authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, guards := a.authFor(r)
		defer a.saveSession(r.Context(), store)
		mw := authbridge.NewMiddleware(guards)
		mw.RejectAuthenticated(a.bind(h, store)).ServeHTTP(w, r)
	})
}

// completeProfile guards the onboarding page: authentication required, and
// returning users are sent back to the dashboard.
func (a *app) completeProfile(h authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, guards := a.authFor(r)
		defer a.saveSession(r.Context(), store)
		mw := authbridge.NewMiddleware(guards)
		mw.RequireAuth(mw.NotFirstTimeProfile(a.bind(h, store))).ServeHTTP(w, r)
	})
}

// open wraps a handler with auth state but no guard.
func (a *app) open(h authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, _ := a.authFor(r)
		defer a.saveSession(r.Context(), store)
		h(w, r, store)
	})
}

func (a *app) bind(h authHandler, store *authbridge.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, r, store)
	})
}
