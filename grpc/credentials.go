// Package grpc carries the authenticated-request interceptor onto gRPC
// connections: per-RPC credentials that attach the current session's bearer
// token, plus metadata helpers for propagating the user identity.
package grpc

import (
	"context"

	"google.golang.org/grpc/credentials"

	"github.com/dottedlabs/authbridge/client"
)

// TokenCredentials implements credentials.PerRPCCredentials from a
// TokenSource. RPCs issued with no session carry no Authorization metadata.
type TokenCredentials struct {
	// Source yields the current bearer token.
	Source client.TokenSource

	// AllowInsecure permits sending the token over non-TLS connections.
	// Only for local development.
	AllowInsecure bool
}

var _ credentials.PerRPCCredentials = (*TokenCredentials)(nil)

func (c *TokenCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	if c.Source == nil {
		return nil, nil
	}
	token := c.Source.BearerToken()
	if token == "" {
		return nil, nil
	}
	return map[string]string{"authorization": "Bearer " + token}, nil
}

func (c *TokenCredentials) RequireTransportSecurity() bool {
	return !c.AllowInsecure
}
