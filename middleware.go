package authbridge

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxUserKey struct{}

// UserFromContext returns the user placed on the request context by the
// RequireAuth middleware, or nil.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(ctxUserKey{}).(*User)
	return user
}

// Middleware adapts guard decisions to net/http: Allow calls the next
// handler, RedirectTo answers 302.
type Middleware struct {
	Guards *Guards
	Logger *slog.Logger
}

// NewMiddleware wraps the guard evaluator for HTTP use.
func NewMiddleware(guards *Guards) *Middleware {
	return &Middleware{Guards: guards, Logger: slog.Default()}
}

// RequireAuth guards a route that needs an authenticated user. On success
// the resolved user rides the request context for downstream handlers.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := m.Guards.RequireAuth(r.Context(), r.URL.Path)
		if !decision.Allowed() {
			m.redirect(w, r, decision)
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserKey{}, m.Guards.store.User())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RejectAuthenticated guards login/signup/reset pages.
func (m *Middleware) RejectAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.serve(w, r, next, m.Guards.RejectAuthenticated(r.Context(), r.URL.Query()))
	})
}

// FirstTimeProfile guards protected routes against incomplete onboarding.
func (m *Middleware) FirstTimeProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.serve(w, r, next, m.Guards.FirstTimeProfile(r.Context(), r.URL.Path))
	})
}

// NotFirstTimeProfile guards the profile-completion page against returning
// users.
func (m *Middleware) NotFirstTimeProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.serve(w, r, next, m.Guards.NotFirstTimeProfile(r.Context(), r.URL.Path))
	})
}

func (m *Middleware) serve(w http.ResponseWriter, r *http.Request, next http.Handler, decision Decision) {
	if !decision.Allowed() {
		m.redirect(w, r, decision)
		return
	}
	next.ServeHTTP(w, r)
}

func (m *Middleware) redirect(w http.ResponseWriter, r *http.Request, decision Decision) {
	m.Logger.Debug("guard redirect", "from", r.URL.Path, "to", decision.Target)
	http.Redirect(w, r, decision.Target, http.StatusFound)
}
