package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPAdmin implements AdminAPI against a GoTrue-compatible backend using a
// service-role key. The service key must never reach a client; HTTPAdmin is
// meant to live only inside the relay process.
type HTTPAdmin struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewHTTPAdmin builds an admin client for the backend at baseURL.
func NewHTTPAdmin(baseURL, serviceKey string) *HTTPAdmin {
	return &HTTPAdmin{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UserEmailFromToken resolves the email of the user behind accessToken by
// asking the backend to validate the token itself.
func (a *HTTPAdmin) UserEmailFromToken(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("apikey", a.serviceKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend rejected user token: status %d", resp.StatusCode)
	}

	var user struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decoding user response: %w", err)
	}
	return user.Email, nil
}

// GenerateMagicLink asks the backend's admin surface for a magic-link token
// addressed to email and returns its hashed form.
func (a *HTTPAdmin) GenerateMagicLink(ctx context.Context, email string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"type":  "magiclink",
		"email": email,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/auth/v1/admin/generate_link", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.serviceKey)
	req.Header.Set("apikey", a.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("generate_link failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var link struct {
		HashedToken string `json:"hashed_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return "", fmt.Errorf("decoding generate_link response: %w", err)
	}
	return link.HashedToken, nil
}
