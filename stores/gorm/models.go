//go:build !wasm
// +build !wasm

package gorm

import "time"

// ClientStateModel is the GORM model for per-client auth state: one row per
// browser session or device, holding the pending desktop-redirect flag and
// the persisted bearer token.
type ClientStateModel struct {
	// Key identifies the client: a web session ID or a device ID.
	Key string `gorm:"primaryKey;size:128"`

	DesktopIntent bool
	AccessToken   string `gorm:"size:2048"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ClientStateModel) TableName() string {
	return "auth_client_states"
}
