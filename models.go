package authbridge

import "time"

// User is the authenticated identity returned by the backend. It is either
// fully populated from a successful backend call or absent (nil); the
// library never constructs partial users.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastSignInAt time.Time      `json:"last_sign_in_at,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
}

// DisplayName returns the best human-readable name for the user.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	for _, key := range []string{"full_name", "name"} {
		if name, ok := u.UserMetadata[key].(string); ok && name != "" {
			return name
		}
	}
	return u.Email
}

// AvatarURL returns the avatar stored in the user metadata, or "" if unset.
func (u *User) AvatarURL() string {
	if u == nil {
		return ""
	}
	if url, ok := u.UserMetadata["avatar_url"].(string); ok {
		return url
	}
	return ""
}

// Provider identifies an authentication method offered to users.
type Provider string

const (
	ProviderEmailPassword Provider = "email_password"
	ProviderGoogle        Provider = "google"
	ProviderFacebook      Provider = "facebook"
	ProviderTwitter       Provider = "twitter"
	ProviderGithub        Provider = "github"
	ProviderDiscord       Provider = "discord"
)

// IsSocial reports whether the provider is an external OAuth provider rather
// than the local email/password channel.
func (p Provider) IsSocial() bool {
	return p != ProviderEmailPassword && p != ""
}

// AuthState is the snapshot owned by the Store. Loading, error and user are
// independent axes: loading can be true while a previous error is being
// cleared, and an error never implies the user was dropped.
type AuthState struct {
	User                        *User
	Loading                     bool
	Error                       *AuthError
	EnabledProviders            []Provider
	RedirectToDesktopAfterLogin bool
}

// ProfileUpdate carries the free-form metadata written by UpdateProfile.
// Known keys ("name", "avatar_url", "email") are merged with any extra
// application keys.
type ProfileUpdate map[string]any

// DeepLinkResult is the outcome of parsing a custom-scheme URL received by
// the desktop shell.
type DeepLinkResult struct {
	HashedToken string
}
