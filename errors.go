package authbridge

import "fmt"

// ErrorKind classifies expected failure modes so callers can branch without
// string matching.
type ErrorKind string

const (
	// ErrKindTransport covers network failures and unexpected backend
	// responses (5xx, undecodable bodies).
	ErrKindTransport ErrorKind = "transport"

	// ErrKindInvalidCredentials covers rejected sign-in/sign-up attempts.
	ErrKindInvalidCredentials ErrorKind = "invalid_credentials"

	// ErrKindValidation covers malformed input caught before or by the
	// backend (bad email, weak password).
	ErrKindValidation ErrorKind = "validation"

	// ErrKindNotConfigured is raised when an operation is invoked without
	// the configuration it requires (e.g. a desktop handoff with no relay
	// endpoint). Always a hard failure, never silently swallowed.
	ErrKindNotConfigured ErrorKind = "not_configured"

	// ErrKindTokenInvalid covers malformed, expired or already-consumed
	// one-shot tokens.
	ErrKindTokenInvalid ErrorKind = "token_invalid"
)

// AuthError is the error type returned across every boundary of this
// library for expected failures. Field is set when the failure is tied to a
// specific input field.
type AuthError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewAuthError creates an AuthError with the given kind, message and
// optional field.
func NewAuthError(kind ErrorKind, message string, field string) *AuthError {
	return &AuthError{Kind: kind, Message: message, Field: field}
}

// asAuthError folds any error into an AuthError, defaulting unexpected
// errors to the transport kind so the store surfaces a single taxonomy.
func asAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*AuthError); ok {
		return ae
	}
	return NewAuthError(ErrKindTransport, err.Error(), "")
}

// HasKind reports whether err is an AuthError of the given kind.
func HasKind(err error, kind ErrorKind) bool {
	ae, ok := err.(*AuthError)
	return ok && ae.Kind == kind
}
