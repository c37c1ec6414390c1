// Command webdemo is a thin web host exercising the authbridge library:
// login, signup, password reset, protected pages, first-time onboarding and
// the browser leg of the desktop handoff. With no BACKEND_URL configured it
// mounts the in-memory dev backend and the token relay on its own listener,
// so the whole flow runs from a single process.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"

	"github.com/dottedlabs/authbridge"
	"github.com/dottedlabs/authbridge/devserver"
	"github.com/dottedlabs/authbridge/relay"
)

type config struct {
	Addr           string `env:"WEBDEMO_ADDR,default=:8080"`
	BaseURL        string `env:"WEBDEMO_BASE_URL,default=http://localhost:8080"`
	BackendURL     string `env:"BACKEND_URL"`
	AnonKey        string `env:"BACKEND_ANON_KEY,default=dev-anon-key"`
	ServiceKey     string `env:"BACKEND_SERVICE_KEY,default=dev-service-key"`
	DeepLinkScheme string `env:"DEEP_LINK_SCHEME,default=authbridge-demo://auth"`
}

type app struct {
	cfg        config
	backendURL string
	sessions   *scs.SessionManager
	authConfig *authbridge.Config
	logger     *slog.Logger
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var cfg config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	backendURL := cfg.BackendURL
	embedded := backendURL == ""
	if embedded {
		backendURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	a := &app{
		cfg:        cfg,
		backendURL: backendURL,
		sessions:   scs.New(),
		logger:     logger,
		authConfig: &authbridge.Config{
			BackendURL:                backendURL,
			BackendKey:                cfg.AnonKey,
			RedirectAfterLogin:        "/dashboard",
			RedirectAfterLogout:       "/login",
			AuthRequiredRedirect:      "/login",
			RedirectIfAuthed:          "/dashboard",
			DesktopAuthRedirect:       "/desktop-login",
			FirstTimeProfilePath:      "/complete-profile",
			FirstTimeCheckEndpoint:    backendURL + "/api/first-time-check",
			GenerateMagicLinkEndpoint: strings.TrimSuffix(cfg.BaseURL, "/") + "/api/generate-magic-link",
			DeepLinkScheme:            cfg.DeepLinkScheme,
			WebAppAuthURL:             strings.TrimSuffix(cfg.BaseURL, "/"),
			EnabledProviders: []authbridge.Provider{
				authbridge.ProviderEmailPassword,
				authbridge.ProviderGoogle,
				authbridge.ProviderGithub,
			},
		},
	}
	a.sessions.Lifetime = 24 * time.Hour

	r := mux.NewRouter()

	r.Handle("/", http.RedirectHandler("/dashboard", http.StatusFound))
	r.Handle("/login", a.public(a.handleLogin))
	r.Handle("/signup", a.public(a.handleSignup))
	r.Handle("/forgot-password", a.public(a.handleForgotPassword))
	r.Handle("/auth/social", a.open(a.handleSocial)).Methods(http.MethodGet)
	r.Handle("/dashboard", a.protected(a.handleDashboard))
	r.Handle("/profile", a.protected(a.handleProfile))
	r.Handle("/complete-profile", a.completeProfile(a.handleCompleteProfile))
	r.Handle("/desktop-login", a.open(a.handleDesktopLogin))
	r.Handle("/logout", a.open(a.handleLogout)).Methods(http.MethodPost)

	if embedded {
		dev := devserver.New(devserver.Config{
			AnonKey:     cfg.AnonKey,
			ServiceKey:  cfg.ServiceKey,
			ExternalURL: backendURL,
			Logger:      logger,
		})
		seedDemoUsers(dev, logger)
		relaySrv := relay.New(relay.NewHTTPAdmin(backendURL, cfg.ServiceKey), relay.WithLogger(logger))

		r.PathPrefix("/auth/v1/").Handler(dev.Router())
		r.PathPrefix("/storage/v1/").Handler(dev.Router())
		r.Path("/api/first-time-check").Handler(dev.Router())
		r.Path("/api/generate-magic-link").Handler(relaySrv.Router())
		logger.Info("embedded dev backend enabled")
	}

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      a.sessions.LoadAndSave(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	logger.Info("web demo listening", "addr", cfg.Addr, "backend", backendURL)
	if err := server.ListenAndServe(); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

// seedDemoUsers creates two fixtures: a returning user and one who still
// has onboarding ahead of them.
func seedDemoUsers(dev *devserver.Server, logger *slog.Logger) {
	if _, err := dev.Seed("alice@example.com", "password123", map[string]any{
		"full_name":         "Alice Example",
		"profile_completed": true,
	}); err != nil {
		logger.Warn("seeding alice failed", "err", err)
	}
	if _, err := dev.Seed("newbie@example.com", "password123", nil); err != nil {
		logger.Warn("seeding newbie failed", "err", err)
	}
}
