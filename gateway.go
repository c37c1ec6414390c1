package authbridge

import "context"

// Gateway is the thin asynchronous wrapper over the hosted auth backend.
// Every operation returns either a success payload or an error; expected
// failures (invalid credentials, network trouble) come back as *AuthError
// values, never panics. Implementations hold no guard or navigation logic;
// side effects stop at the backend boundary.
type Gateway interface {
	// SignInWithPassword exchanges email/password for a session.
	SignInWithPassword(ctx context.Context, email, password string) (*User, error)

	// SignUpWithPassword registers a new user and signs them in.
	SignUpWithPassword(ctx context.Context, email, password string) (*User, error)

	// SignInWithProvider begins a social OAuth flow. The returned URL is
	// the backend authorize endpoint the caller must redirect the browser
	// to; the session is established on the callback leg.
	SignInWithProvider(ctx context.Context, provider Provider, redirectTo string) (string, error)

	// SignOut destroys the current session.
	SignOut(ctx context.Context) error

	// CurrentUser fetches the user bound to the current session, or nil
	// when no session exists.
	CurrentUser(ctx context.Context) (*User, error)

	// HasActiveSession reports whether a session is currently held.
	HasActiveSession(ctx context.Context) bool

	// SendPasswordReset asks the backend to email a recovery link.
	SendPasswordReset(ctx context.Context, email string) error

	// UpdatePassword changes the current user's password.
	UpdatePassword(ctx context.Context, newPassword string) error

	// UpdateProfile merges the given metadata into the current user.
	UpdateProfile(ctx context.Context, update ProfileUpdate) error

	// UploadFile stores bytes in the backend's storage bucket and returns
	// the public URL.
	UploadFile(ctx context.Context, bucket, path string, data []byte) (string, error)

	// VerifyOneShotToken exchanges a single-use token for a session.
	VerifyOneShotToken(ctx context.Context, token string) (*User, error)

	// BearerToken returns the current session's access token, or "" when
	// there is no session. Used by the request interceptor.
	BearerToken() string
}
