package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// socialProvider pairs an OAuth2 config with the provider's user-info
// endpoint so a callback can be turned into a profile.
type socialProvider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
}

// providerRegistry holds the social providers the dev server knows about.
// Credentials come from OAUTH2_<PROVIDER>_CLIENT_ID / _CLIENT_SECRET env
// vars; providers without credentials still register so /authorize can
// redirect, which is enough for loopback testing against a fake upstream.
type providerRegistry struct {
	providers map[string]*socialProvider
}

func newProviderRegistry(callbackURL string) *providerRegistry {
	r := &providerRegistry{providers: map[string]*socialProvider{}}

	r.add("google", google.Endpoint, "https://www.googleapis.com/oauth2/v2/userinfo", callbackURL,
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile")
	r.add("github", github.Endpoint, "https://api.github.com/user", callbackURL,
		"read:user", "user:email")
	r.add("facebook", facebook.Endpoint, "https://graph.facebook.com/me?fields=id,name,email", callbackURL,
		"email", "public_profile")
	r.add("twitter", oauth2.Endpoint{
		AuthURL:  "https://twitter.com/i/oauth2/authorize",
		TokenURL: "https://api.twitter.com/2/oauth2/token",
	}, "https://api.twitter.com/2/users/me", callbackURL, "users.read", "tweet.read")
	r.add("discord", oauth2.Endpoint{
		AuthURL:  "https://discord.com/oauth2/authorize",
		TokenURL: "https://discord.com/api/oauth2/token",
	}, "https://discord.com/api/users/@me", callbackURL, "identify", "email")

	return r
}

func (r *providerRegistry) add(name string, endpoint oauth2.Endpoint, userInfoURL, callbackURL string, scopes ...string) {
	envKey := strings.ToUpper(name)
	r.providers[name] = &socialProvider{
		Name:        name,
		UserInfoURL: userInfoURL,
		Config: &oauth2.Config{
			ClientID:     os.Getenv("OAUTH2_" + envKey + "_CLIENT_ID"),
			ClientSecret: os.Getenv("OAUTH2_" + envKey + "_CLIENT_SECRET"),
			RedirectURL:  callbackURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
	}
}

func (r *providerRegistry) Get(name string) (*socialProvider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// FetchProfile exchanges the callback code and pulls the provider's user
// profile.
func (p *socialProvider) FetchProfile(ctx context.Context, code string) (map[string]any, error) {
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code with %s: %w", p.Name, err)
	}

	client := p.Config.Client(ctx, token)
	resp, err := client.Get(p.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s profile: %w", p.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s userinfo returned status %d", p.Name, resp.StatusCode)
	}

	var profile map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding %s profile: %w", p.Name, err)
	}
	return profile, nil
}
