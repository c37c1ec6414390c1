package authbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// FirstTimeChecker asks an external endpoint whether a user still has to
// complete onboarding. The endpoint contract is
// GET {endpoint}?userId={id} returning a JSON boolean.
type FirstTimeChecker struct {
	endpoint   string
	httpClient *http.Client
}

// NewFirstTimeChecker builds a checker for the given endpoint. An empty
// endpoint produces a checker that always answers false.
func NewFirstTimeChecker(endpoint string) *FirstTimeChecker {
	return &FirstTimeChecker{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// IsFirstTime reports whether the user has not completed onboarding yet.
func (c *FirstTimeChecker) IsFirstTime(ctx context.Context, userID string) (bool, error) {
	if c.endpoint == "" {
		return false, nil
	}
	reqURL := c.endpoint + "?userId=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, NewAuthError(ErrKindTransport, err.Error(), "")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, NewAuthError(ErrKindTransport, fmt.Sprintf("first-time check failed: %v", err), "")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, NewAuthError(ErrKindTransport, fmt.Sprintf("first-time check returned HTTP %d", resp.StatusCode), "")
	}
	var firstTime bool
	if err := json.NewDecoder(resp.Body).Decode(&firstTime); err != nil {
		return false, NewAuthError(ErrKindTransport, "invalid response from first-time check", "")
	}
	return firstTime, nil
}
