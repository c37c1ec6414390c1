package authbridge

// Config holds the configuration surface recognized by the library. Zero
// values fall back to the defaults set by EnsureDefaults, matching the
// paths a typical deployment uses.
type Config struct {
	// BackendURL is the base URL of the hosted auth backend.
	BackendURL string

	// BackendKey is the public API key sent with every backend call.
	BackendKey string

	// Redirect paths used by the guards.
	RedirectAfterLogin   string // default "/"
	RedirectAfterLogout  string // default "/login"
	AuthRequiredRedirect string // default "/login"
	RedirectIfAuthed     string // default "/"
	DesktopAuthRedirect  string // default "/"
	FirstTimeProfilePath string // default "/complete-profile"

	// EnabledProviders is the ordered list of providers the app offers.
	EnabledProviders []Provider

	// FirstTimeCheckEndpoint returns a boolean for GET {endpoint}?userId={id}.
	// Empty disables the first-time flow entirely.
	FirstTimeCheckEndpoint string

	// SkipFirstTimeCheck forces the first-time guards to allow without
	// calling the endpoint.
	SkipFirstTimeCheck bool

	// GenerateMagicLinkEndpoint is the relay endpoint that mints one-shot
	// tokens for the desktop handoff. Empty makes OpenDesktopApp fail with
	// a not-configured error.
	GenerateMagicLinkEndpoint string

	// DeepLinkScheme is the custom scheme URL the shell registered with the
	// OS, e.g. "myapp://auth".
	DeepLinkScheme string

	// WebAppAuthURL is the browser-side base URL the shell opens to start
	// the handoff, e.g. "https://app.example.com".
	WebAppAuthURL string
}

// EnsureDefaults fills reasonable defaults for any unset redirect path.
func (c *Config) EnsureDefaults() *Config {
	if c.RedirectAfterLogin == "" {
		c.RedirectAfterLogin = "/"
	}
	if c.RedirectAfterLogout == "" {
		c.RedirectAfterLogout = "/login"
	}
	if c.AuthRequiredRedirect == "" {
		c.AuthRequiredRedirect = "/login"
	}
	if c.RedirectIfAuthed == "" {
		c.RedirectIfAuthed = "/"
	}
	if c.DesktopAuthRedirect == "" {
		c.DesktopAuthRedirect = "/"
	}
	if c.FirstTimeProfilePath == "" {
		c.FirstTimeProfilePath = "/complete-profile"
	}
	return c
}

// FirstTimeCheckEnabled reports whether the first-time flow is active.
func (c *Config) FirstTimeCheckEnabled() bool {
	return c.FirstTimeCheckEndpoint != "" && !c.SkipFirstTimeCheck
}
