package client_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dottedlabs/authbridge/client"
)

func echoAuthServer(t *testing.T, got *string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = r.Header.Get("Authorization")
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTransportAttachesBearer(t *testing.T) {
	var got string
	server := echoAuthServer(t, &got)

	httpClient := client.NewHTTPClient(client.StaticToken("tok-123"))
	resp, err := httpClient.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want Bearer tok-123", got)
	}
}

func TestTransportSkipsWithoutSession(t *testing.T) {
	var got string
	server := echoAuthServer(t, &got)

	httpClient := client.NewHTTPClient(client.StaticToken(""))
	resp, err := httpClient.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got != "" {
		t.Errorf("Authorization = %q, want unset", got)
	}
}

func TestTransportWithoutAuthOptOut(t *testing.T) {
	var got string
	server := echoAuthServer(t, &got)

	httpClient := client.NewHTTPClient(client.StaticToken("tok-123"))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	req = req.WithContext(client.WithoutAuth(req.Context()))

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got != "" {
		t.Errorf("Authorization = %q, want unset for opted-out request", got)
	}
}

func TestTransportDoesNotMutateOriginalRequest(t *testing.T) {
	var got string
	server := echoAuthServer(t, &got)

	httpClient := client.NewHTTPClient(client.StaticToken("tok-123"))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if req.Header.Get("Authorization") != "" {
		t.Error("the caller's request must not be mutated")
	}
	if got != "Bearer tok-123" {
		t.Errorf("server saw %q, want Bearer tok-123", got)
	}
}
