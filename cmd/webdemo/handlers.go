package main

import (
	"html/template"
	"net/http"

	"github.com/dottedlabs/authbridge"
)

type pageData struct {
	Title    string
	User     *authbridge.User
	Avatar   string
	Error    string
	Notice   string
	DeepLink string
	Social   []authbridge.Provider
}

func (a *app) handleLogin(w http.ResponseWriter, r *http.Request, store *authbridge.Store) {
	data := pageData{Title: "Sign in"}
	if store.HasSocialProviders() {
		data.Social = store.EnabledProviders()
	}

	if r.Method == http.MethodPost {
		if err := store.SignInWithPassword(r.Context(), r.FormValue("email"), r.FormValue("password")); err != nil {
			data.Error = err.Error()
			a.render(w, "login", data)
			return
		}
		a.afterLogin(w, r, store)
		return
	}
	a.render(w, "login", data)
}

func (a *app) handleSignup(w http.ResponseWriter, r *http.Request, store *authbridge.Store) {
	data := pageData{Title: "Create account"}
	if r.Method == http.MethodPost {
		if err := store.SignUpWithPassword(r.Context(), r.FormValue("email"), r.FormValue("password")); err != nil {
			data.Error = err.Error()
			a.render(w, "signup", data)
			return
		}
		a.afterLogin(w, r, store)
		return
	}
	a.render(w, "signup", data)
}

func (a *app) handleForgotPassword(w http.ResponseWriter, r *http.Request, store *authbridge.Store) {
	data := pageData{Title: "Reset password"}
	if r.Method == http.MethodPost {
		if err := store.SendPasswordReset(r.Context(), r.FormValue("email")); err != nil {
			data.Error = err.Error()
		} else {
			data.Notice = "If that email is registered, a recovery link is on its way."
		}
	}
	a.render(w, "forgot", data)
}

func (a *app) handleSocial(w http.ResponseWriter, r *http.Request, store *authbridge.Store) {
	provider := authbridge.Provider(r.URL.Query().Get("provider"))
	if !store.IsProviderEnabled(provider) {
		http.Error(w, "provider not enabled", http.StatusBadRequest)
		return
	}
	authURL, err := store.SignInWithSocial(r.Context(), provider)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (a *app) handleDashboard(w http.ResponseWriter, r *http.Request, store *authbridge.Store) {
	a.render(w, "dashboard", pageData{
		Title:  "Dashboard",
		User:   authbridge.UserFromContext(r.Context()),
		Avatar: store.AvatarURL(),
	})
}

func (a *app) handleProfile(w http.ResponseWriter, r *http.Request, store *authbridge.Store) {
	data := pageData{Title: "Profile", User: store.User(), Avatar: store.AvatarURL()}
	if r.Method == http.MethodPost {
		update := authbridge.ProfileUpdate{}
		if name := r.FormValue("full_name"); name != "" {
			update["full_name"] = name
		}
		if avatar := r.FormValue("avatar_url"); avatar != "" {
			update["avatar_url"] = avatar
		}
		if len(update) > 0 {
			if err := store.UpdateProfile(r.Context(), update); err != nil {
				data.Error = err.Error()
			}
		}
		if password := r.FormValue("new_password"); password != "" && data.Error == "" {
			if err := store.UpdatePassword(r.Context(), password); err != nil {
				data.Error = err.Error()
			}
		}
		if data.Error == "" {
			data.Notice = "Profile saved."
		}
		data.User = store.User()
		data.Avatar = store.AvatarURL()
	}
	a.render(w, "profile", data)
}

func (a *app) handleCompleteProfile(w http.ResponseWriter, r *http.Request, store *authbridge.Store) {
	data := pageData{Title: "Complete your profile", User: store.User()}
	if r.Method == http.MethodPost {
		update := authbridge.ProfileUpdate{
			"full_name":         r.FormValue("full_name"),
			"profile_completed": true,
		}
		if err := store.UpdateProfile(r.Context(), update); err != nil {
			data.Error = err.Error()
			a.render(w, "complete", data)
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	a.render(w, "complete", data)
}

// handleDesktopLogin serves both halves of the desktop flow: an
// unauthenticated visitor gets a login form, an authenticated one gets the
// custom-scheme link that hands the session to the desktop app.
func (a *app) handleDesktopLogin(w http.ResponseWriter, r *http.Request, store *authbridge.Store) {
	data := pageData{Title: "Desktop sign in"}

	authed, err := store.CheckAuth(r.Context())
	if err != nil {
		data.Error = err.Error()
		a.render(w, "desktop-login", data)
		return
	}

	if !authed {
		if r.Method == http.MethodPost {
			if err := store.SignInWithPassword(r.Context(), r.FormValue("email"), r.FormValue("password")); err != nil {
				data.Error = err.Error()
				a.render(w, "desktop-login", data)
				return
			}
			authed = true
		} else {
			a.render(w, "desktop-login", data)
			return
		}
	}

	deepLink, err := store.OpenDesktopApp(r.Context())
	if err != nil {
		data.Error = err.Error()
		a.render(w, "desktop-login", data)
		return
	}
	data.User = store.User()
	data.DeepLink = deepLink
	a.render(w, "desktop-open", data)
}

func (a *app) handleLogout(w http.ResponseWriter, r *http.Request, store *authbridge.Store) {
	if err := store.SignOut(r.Context()); err != nil {
		a.logger.Warn("sign out failed", "err", err)
	}
	http.Redirect(w, r, a.authConfig.RedirectAfterLogout, http.StatusFound)
}

// afterLogin routes a fresh session: pending desktop intent wins over the
// regular post-login page.
func (a *app) afterLogin(w http.ResponseWriter, r *http.Request, store *authbridge.Store) {
	if store.RedirectToDesktopAfterLogin() {
		http.Redirect(w, r, a.authConfig.DesktopAuthRedirect, http.StatusFound)
		return
	}
	http.Redirect(w, r, a.authConfig.RedirectAfterLogin, http.StatusFound)
}

func (a *app) render(w http.ResponseWriter, page string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, page, data); err != nil {
		a.logger.Error("rendering page failed", "page", page, "err", err)
	}
}

var pages = template.Must(template.New("pages").Parse(`
{{define "head"}}<!DOCTYPE html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
{{if .Error}}<p style="color:red">{{.Error}}</p>{{end}}
{{if .Notice}}<p style="color:green">{{.Notice}}</p>{{end}}{{end}}

{{define "foot"}}</body></html>{{end}}

{{define "login"}}{{template "head" .}}
<form method="POST" action="/login">
  <label>Email <input type="email" name="email" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Sign in</button>
</form>
{{range .Social}}{{if .IsSocial}}<p><a href="/auth/social?provider={{.}}">Continue with {{.}}</a></p>{{end}}{{end}}
<p><a href="/signup">Create account</a> · <a href="/forgot-password">Forgot password?</a></p>
{{template "foot" .}}{{end}}

{{define "signup"}}{{template "head" .}}
<form method="POST" action="/signup">
  <label>Email <input type="email" name="email" required></label>
  <label>Password <input type="password" name="password" required minlength="6"></label>
  <button type="submit">Create account</button>
</form>
<p><a href="/login">Back to sign in</a></p>
{{template "foot" .}}{{end}}

{{define "forgot"}}{{template "head" .}}
<form method="POST" action="/forgot-password">
  <label>Email <input type="email" name="email" required></label>
  <button type="submit">Send recovery link</button>
</form>
<p><a href="/login">Back to sign in</a></p>
{{template "foot" .}}{{end}}

{{define "dashboard"}}{{template "head" .}}
{{with .User}}<p>Signed in as <strong>{{.DisplayName}}</strong> ({{.Email}})</p>{{end}}
<img src="{{.Avatar}}" alt="avatar" width="48" height="48">
<p><a href="/profile">Profile</a></p>
<form method="POST" action="/logout"><button type="submit">Sign out</button></form>
{{template "foot" .}}{{end}}

{{define "profile"}}{{template "head" .}}
<img src="{{.Avatar}}" alt="avatar" width="48" height="48">
<form method="POST" action="/profile">
  <label>Name <input type="text" name="full_name" value="{{with .User}}{{.DisplayName}}{{end}}"></label>
  <label>Avatar URL <input type="url" name="avatar_url"></label>
  <label>New password <input type="password" name="new_password" minlength="6"></label>
  <button type="submit">Save</button>
</form>
<p><a href="/dashboard">Back</a></p>
{{template "foot" .}}{{end}}

{{define "complete"}}{{template "head" .}}
<p>Welcome! Tell us who you are before continuing.</p>
<form method="POST" action="/complete-profile">
  <label>Name <input type="text" name="full_name" required></label>
  <button type="submit">Finish</button>
</form>
{{template "foot" .}}{{end}}

{{define "desktop-login"}}{{template "head" .}}
<p>Sign in to continue to the desktop app.</p>
<form method="POST" action="/desktop-login">
  <label>Email <input type="email" name="email" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Sign in</button>
</form>
{{template "foot" .}}{{end}}

{{define "desktop-open"}}{{template "head" .}}
{{with .User}}<p>Signed in as <strong>{{.DisplayName}}</strong>.</p>{{end}}
<p><a href="{{.DeepLink}}">Open the desktop app</a></p>
<p>If nothing happens, copy the link into the desktop app manually.</p>
{{template "foot" .}}{{end}}
`))
