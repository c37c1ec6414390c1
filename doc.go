// Package authbridge integrates a Go application with a GoTrue-style
// authentication backend: session state, route guards, request credential
// injection, and a deep-link handoff that moves a browser session into a
// desktop app.
//
// # Architecture
//
// Store: The process-wide auth state machine. It owns the current user, the
// loading flag, the last error and the desktop-redirect intent, and every
// auth operation (sign in, sign up, sign out, profile updates, token
// verification) goes through it.
//
// Gateway: The backend boundary. RemoteGateway implements it over the
// GoTrue REST surface; tests substitute fakes.
//
// Guards: Route-entry decisions computed from the store. RequireAuth
// protects authenticated routes, RejectAuthenticated keeps signed-in users
// off the login page, and the first-time guards steer onboarding. The
// Middleware type adapts decisions to net/http handlers.
//
// IntentStore: Durable storage for the desktop-redirect flag, which must
// survive the full browser login including external OAuth redirects. The
// stores/fs, stores/gorm and stores/gae packages provide persistent
// implementations.
//
// # Basic Usage
//
// Wire the store to a backend and guard your routes:
//
//	gateway := authbridge.NewRemoteGateway("https://auth.example.com", anonKey)
//	store := authbridge.NewStore(gateway, nil, &authbridge.Config{
//	    RedirectAfterLogin:   "/dashboard",
//	    AuthRequiredRedirect: "/login",
//	})
//	store.Initialize(ctx)
//
//	guards := authbridge.NewGuards(store)
//	mw := authbridge.NewMiddleware(guards)
//	mux.Handle("/dashboard", mw.RequireAuth(dashboardHandler))
//	mux.Handle("/login", mw.RejectAuthenticated(loginHandler))
//
// Outgoing API calls pick up the session credential through the client
// package's transport:
//
//	httpClient := client.NewHTTPClient(store)
//
// # Desktop Handoff
//
// A desktop shell opens the web app's login page with desktop=true. The
// RejectAuthenticated guard persists that intent, and after login the
// RequireAuth guard consumes it exactly once, steering the browser to the
// desktop redirect page. That page calls Store.OpenDesktopApp, which asks
// the relay service for a single-use token and yields a custom-scheme URL;
// the shell receives it from the OS and redeems it with
// Store.ProcessDeepLink. The relay (see the relay package) is the only
// component holding the backend's service key.
//
// # Security
//
// One-shot tokens are single use and short lived, and are never written to
// logs. The relay validates the caller's bearer token before minting one,
// and the service key stays server side.
//
// # Testing
//
// Guards and the store can be tested against a fake Gateway without any
// HTTP server; the devserver package provides a full in-memory backend for
// integration tests over httptest.
package authbridge
