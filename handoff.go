package authbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dottedlabs/authbridge/client"
)

// ParseDeepLink extracts the one-shot token from a custom-scheme URL the OS
// handed to the shell, e.g. "myapp://auth?hashed_token=abc123". A URL
// without the parameter fails without any backend call.
func ParseDeepLink(rawURL string) (*DeepLinkResult, error) {
	if rawURL == "" {
		return nil, NewAuthError(ErrKindValidation, "invalid URL", "")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, NewAuthError(ErrKindValidation, fmt.Sprintf("invalid URL: %v", err), "")
	}
	token := u.Query().Get("hashed_token")
	if token == "" {
		return nil, NewAuthError(ErrKindTokenInvalid, "no hashed_token found in URL", "")
	}
	return &DeepLinkResult{HashedToken: token}, nil
}

// RelayClient calls the relay endpoint that mints one-shot tokens from the
// current session's bearer credential. The token is sensitive; it is never
// logged here.
type RelayClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewRelayClient builds a relay client authenticated through the gateway's
// bearer token. A nil or empty endpoint yields a client whose calls fail
// with a not-configured error.
func NewRelayClient(endpoint string, source client.TokenSource) *RelayClient {
	return &RelayClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &client.Transport{Source: source},
		},
	}
}

// relayError is the relay's error body: { error, details? }.
type relayError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// GenerateToken requests a fresh one-shot token. The relay authenticates
// the caller via the Authorization header the transport attaches.
func (r *RelayClient) GenerateToken(ctx context.Context) (string, error) {
	if r.endpoint == "" {
		return "", NewAuthError(ErrKindNotConfigured, "magic link endpoint is not configured", "")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, nil)
	if err != nil {
		return "", NewAuthError(ErrKindTransport, err.Error(), "")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", NewAuthError(ErrKindTransport, fmt.Sprintf("failed to reach relay: %v", err), "")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewAuthError(ErrKindTransport, "failed to read relay response", "")
	}
	if resp.StatusCode != http.StatusOK {
		var body relayError
		_ = json.Unmarshal(raw, &body)
		msg := body.Error
		if body.Details != "" {
			msg = msg + ": " + body.Details
		}
		if msg == "" {
			msg = fmt.Sprintf("relay returned HTTP %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return "", NewAuthError(ErrKindInvalidCredentials, msg, "")
		}
		return "", NewAuthError(ErrKindTransport, msg, "")
	}

	var body struct {
		HashedToken string `json:"hashed_token"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.HashedToken == "" {
		return "", NewAuthError(ErrKindTransport, "invalid response from relay", "")
	}
	return body.HashedToken, nil
}
