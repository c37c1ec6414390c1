package authbridge_test

import (
	"testing"

	ab "github.com/dottedlabs/authbridge"
)

func TestUserDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user *ab.User
		want string
	}{
		{name: "nil user", user: nil, want: ""},
		{name: "no metadata falls back to email", user: &ab.User{Email: "a@b.c"}, want: "a@b.c"},
		{
			name: "full_name preferred",
			user: &ab.User{Email: "a@b.c", UserMetadata: map[string]any{"full_name": "Ada"}},
			want: "Ada",
		},
		{
			name: "name accepted",
			user: &ab.User{Email: "a@b.c", UserMetadata: map[string]any{"name": "Grace"}},
			want: "Grace",
		},
		{
			name: "non-string metadata ignored",
			user: &ab.User{Email: "a@b.c", UserMetadata: map[string]any{"full_name": 42}},
			want: "a@b.c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProviderIsSocial(t *testing.T) {
	if ab.ProviderEmailPassword.IsSocial() {
		t.Error("email_password must not be social")
	}
	for _, p := range []ab.Provider{ab.ProviderGoogle, ab.ProviderFacebook, ab.ProviderTwitter, ab.ProviderGithub, ab.ProviderDiscord} {
		if !p.IsSocial() {
			t.Errorf("%s should be social", p)
		}
	}
}

func TestConfigEnsureDefaults(t *testing.T) {
	config := (&ab.Config{}).EnsureDefaults()

	if config.RedirectAfterLogin != "/" || config.AuthRequiredRedirect != "/login" ||
		config.RedirectAfterLogout != "/login" || config.FirstTimeProfilePath != "/complete-profile" {
		t.Errorf("unexpected defaults: %+v", config)
	}

	custom := (&ab.Config{AuthRequiredRedirect: "/signin"}).EnsureDefaults()
	if custom.AuthRequiredRedirect != "/signin" {
		t.Error("explicit values must survive EnsureDefaults")
	}
}

func TestFirstTimeCheckEnabled(t *testing.T) {
	if (&ab.Config{}).FirstTimeCheckEnabled() {
		t.Error("no endpoint means disabled")
	}
	if !(&ab.Config{FirstTimeCheckEndpoint: "http://x/check"}).FirstTimeCheckEnabled() {
		t.Error("endpoint set means enabled")
	}
	if (&ab.Config{FirstTimeCheckEndpoint: "http://x/check", SkipFirstTimeCheck: true}).FirstTimeCheckEnabled() {
		t.Error("skip flag must win")
	}
}

func TestAuthErrorFormatting(t *testing.T) {
	err := ab.NewAuthError(ab.ErrKindValidation, "password too short", "password")
	if err.Error() != "validation: password too short (field: password)" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !ab.HasKind(err, ab.ErrKindValidation) || ab.HasKind(err, ab.ErrKindTransport) {
		t.Error("HasKind misclassified the error")
	}
}
