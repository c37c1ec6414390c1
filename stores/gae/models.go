//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"
)

// ClientStateEntity is the Datastore entity for per-client auth state.
// Key name is the client key (web session ID or device ID).
type ClientStateEntity struct {
	Key           *datastore.Key `datastore:"__key__"`
	DesktopIntent bool           `datastore:"desktop_intent"`
	AccessToken   string         `datastore:"access_token,noindex"`
	CreatedAt     time.Time      `datastore:"created_at"`
	UpdatedAt     time.Time      `datastore:"updated_at"`
}
