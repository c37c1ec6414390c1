package authbridge

import (
	"context"
	"log/slog"
	"net/url"
)

// Decision is the outcome of a guard evaluation: either allow the
// navigation or redirect somewhere else. Computed per navigation, never
// stored.
type Decision struct {
	// Target is the redirect path; empty means the navigation is allowed.
	Target string
}

// Allow lets the navigation proceed.
func Allow() Decision { return Decision{} }

// RedirectTo sends the navigation to path instead.
func RedirectTo(path string) Decision { return Decision{Target: path} }

// Allowed reports whether the navigation may proceed.
func (d Decision) Allowed() bool { return d.Target == "" }

// Guards evaluates route-entry decisions against the store, the static
// configuration and the external first-time check. All dependencies are
// explicit parameters of construction; there is no ambient lookup.
//
// Error policy is deliberately asymmetric: RequireAuth fails closed
// (ambiguity means a login redirect), while RejectAuthenticated and the
// first-time guards fail open. Forcing a re-login is safer than blocking a
// password-reset page, and letting a user onto the dashboard is safer than
// trapping them in a broken onboarding loop.
type Guards struct {
	store     *Store
	config    *Config
	firstTime *FirstTimeChecker
	logger    *slog.Logger
}

// GuardOption configures Guards.
type GuardOption func(*Guards)

// WithFirstTimeChecker overrides the first-time check client, mainly for
// tests.
func WithFirstTimeChecker(checker *FirstTimeChecker) GuardOption {
	return func(g *Guards) {
		if checker != nil {
			g.firstTime = checker
		}
	}
}

// WithGuardLogger sets the logger used for guard diagnostics.
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guards) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGuards builds the guard evaluator for a store. The first-time checker
// defaults to the endpoint in the store's configuration.
func NewGuards(store *Store, opts ...GuardOption) *Guards {
	g := &Guards{
		store:  store,
		config: store.Config(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.firstTime == nil {
		g.firstTime = NewFirstTimeChecker(g.config.FirstTimeCheckEndpoint)
	}
	return g
}

// RequireAuth protects routes that need an authenticated user.
//
// Desktop intent wins over everything: a pending flag is consumed exactly
// once and redirects to the desktop-login page regardless of other state.
// Then a fresh authentication check decides between the login redirect and
// the first-time onboarding redirect. Any error in the authenticated
// branches fails closed to the login page.
func (g *Guards) RequireAuth(ctx context.Context, reqPath string) Decision {
	if consumed, err := g.store.ConsumeDesktopIntent(); err != nil {
		g.logger.Warn("desktop intent check failed", "err", err)
	} else if consumed {
		return RedirectTo(g.config.DesktopAuthRedirect)
	}

	authed, err := g.store.CheckAuth(ctx)
	if err != nil {
		g.logger.Warn("auth check failed, redirecting to login", "err", err)
		return RedirectTo(g.config.AuthRequiredRedirect)
	}
	if !authed {
		return RedirectTo(g.config.AuthRequiredRedirect)
	}

	if !g.config.FirstTimeCheckEnabled() {
		return Allow()
	}
	// Never redirect the profile-completion page onto itself.
	if reqPath == g.config.FirstTimeProfilePath {
		return Allow()
	}
	user := g.store.User()
	if user == nil {
		return RedirectTo(g.config.AuthRequiredRedirect)
	}
	firstTime, err := g.firstTime.IsFirstTime(ctx, user.ID)
	if err != nil {
		g.logger.Warn("first-time check failed, redirecting to login", "err", err)
		return RedirectTo(g.config.AuthRequiredRedirect)
	}
	if firstTime {
		return RedirectTo(g.config.FirstTimeProfilePath)
	}
	return Allow()
}

// RejectAuthenticated protects login, signup and password-reset pages from
// already-authenticated users. A desktop=true query parameter seeds the
// durable intent flag and redirects to the desktop-login page before any
// authentication check; errors otherwise fail open so a guard failure can
// never strand a user outside the login page.
func (g *Guards) RejectAuthenticated(ctx context.Context, query url.Values) Decision {
	if query.Get("desktop") == "true" {
		if err := g.store.SetRedirectToDesktopAfterLogin(true); err != nil {
			g.logger.Warn("persisting desktop intent failed", "err", err)
		}
		return RedirectTo(g.config.DesktopAuthRedirect)
	}

	authed, err := g.store.CheckAuth(ctx)
	if err != nil {
		g.logger.Warn("auth check failed, allowing access", "err", err)
		return Allow()
	}
	if authed {
		return RedirectTo(g.config.RedirectIfAuthed)
	}
	return Allow()
}

// FirstTimeProfile redirects first-time users away from protected routes
// toward the profile-completion page. Allows everything when the check is
// unconfigured or skipped; fails open on errors.
func (g *Guards) FirstTimeProfile(ctx context.Context, reqPath string) Decision {
	if !g.config.FirstTimeCheckEnabled() {
		return Allow()
	}
	authed, err := g.store.CheckAuth(ctx)
	if err != nil || !authed {
		// Unauthenticated traffic is RequireAuth's problem.
		return Allow()
	}
	user := g.store.User()
	if user == nil {
		return Allow()
	}
	if reqPath == g.config.FirstTimeProfilePath {
		return Allow()
	}
	firstTime, err := g.firstTime.IsFirstTime(ctx, user.ID)
	if err != nil {
		g.logger.Warn("first-time check failed, allowing access", "err", err)
		return Allow()
	}
	if firstTime {
		return RedirectTo(g.config.FirstTimeProfilePath)
	}
	return Allow()
}

// NotFirstTimeProfile redirects returning users away from the
// profile-completion page toward the post-login default. Allows everything
// when the check is unconfigured or skipped; fails open on errors.
func (g *Guards) NotFirstTimeProfile(ctx context.Context, reqPath string) Decision {
	if !g.config.FirstTimeCheckEnabled() {
		return Allow()
	}
	authed, err := g.store.CheckAuth(ctx)
	if err != nil || !authed {
		return Allow()
	}
	user := g.store.User()
	if user == nil {
		return Allow()
	}
	firstTime, err := g.firstTime.IsFirstTime(ctx, user.ID)
	if err != nil {
		g.logger.Warn("first-time check failed, allowing access", "err", err)
		return Allow()
	}
	if !firstTime {
		if reqPath == g.config.RedirectAfterLogin {
			return Allow()
		}
		return RedirectTo(g.config.RedirectAfterLogin)
	}
	return Allow()
}
