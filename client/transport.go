// Package client provides the authenticated-request interceptor: an
// http.RoundTripper that attaches the current session's bearer token to
// outbound requests, with a per-request opt-out.
package client

import (
	"context"
	"net/http"
)

// TokenSource yields the bearer token for the current session. The auth
// store and the remote gateway both implement it; "" means no session.
type TokenSource interface {
	BearerToken() string
}

// StaticToken is a TokenSource for a fixed token, useful in tests and for
// service-key credentials.
type StaticToken string

func (t StaticToken) BearerToken() string { return string(t) }

type skipAuthKey struct{}

// WithoutAuth marks the request context so the transport leaves the
// request untouched.
func WithoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipAuthKey{}, true)
}

func skipAuth(ctx context.Context) bool {
	skip, _ := ctx.Value(skipAuthKey{}).(bool)
	return skip
}

// Transport wraps an http.RoundTripper to add Authorization headers from a
// TokenSource.
type Transport struct {
	Base   http.RoundTripper
	Source TokenSource
}

// RoundTrip implements http.RoundTripper. Requests flagged with
// WithoutAuth, and requests issued while no session exists, pass through
// unchanged.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if skipAuth(req.Context()) || t.Source == nil {
		return base.RoundTrip(req)
	}
	token := t.Source.BearerToken()
	if token == "" {
		return base.RoundTrip(req)
	}
	// Clone so the caller's request is not mutated.
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(req2)
}

// NewHTTPClient returns an http.Client whose requests carry the source's
// bearer token.
func NewHTTPClient(source TokenSource) *http.Client {
	return &http.Client{Transport: &Transport{Source: source}}
}
