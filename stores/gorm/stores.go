//go:build !wasm
// +build !wasm

package gorm

import (
	"errors"
	"time"

	"gorm.io/gorm"

	ab "github.com/dottedlabs/authbridge"
)

// AutoMigrate runs database migrations for all authbridge tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ClientStateModel{})
}

// ClientStateStore persists per-client auth state using GORM. Each client
// (web session, device) gets one row; ForClient returns a view over that
// row which implements the library's IntentStore interface.
type ClientStateStore struct {
	db *gorm.DB
}

func NewClientStateStore(db *gorm.DB) *ClientStateStore {
	return &ClientStateStore{db: db}
}

// ForClient scopes the store to a single client key.
func (s *ClientStateStore) ForClient(key string) *ClientState {
	return &ClientState{db: s.db, key: key}
}

// PurgeStale deletes client rows untouched since the cutoff. Call it
// periodically; abandoned sessions otherwise accumulate forever.
func (s *ClientStateStore) PurgeStale(olderThan time.Time) (int64, error) {
	result := s.db.Where("updated_at < ?", olderThan).Delete(&ClientStateModel{})
	return result.RowsAffected, result.Error
}

// ClientState is the per-client view. It satisfies ab.IntentStore.
type ClientState struct {
	db  *gorm.DB
	key string
}

var _ ab.IntentStore = (*ClientState)(nil)

func (c *ClientState) SetDesktopIntent(pending bool) error {
	return c.upsert(func(model *ClientStateModel) {
		model.DesktopIntent = pending
	})
}

func (c *ClientState) DesktopIntent() (bool, error) {
	model, err := c.load()
	if err != nil {
		return false, err
	}
	if model == nil {
		return false, nil
	}
	return model.DesktopIntent, nil
}

// SaveSessionToken persists the client's bearer token.
func (c *ClientState) SaveSessionToken(token string) error {
	return c.upsert(func(model *ClientStateModel) {
		model.AccessToken = token
	})
}

// SessionToken returns the persisted token, or "" when none is stored.
func (c *ClientState) SessionToken() (string, error) {
	model, err := c.load()
	if err != nil {
		return "", err
	}
	if model == nil {
		return "", nil
	}
	return model.AccessToken, nil
}

// ClearSession drops the persisted token but keeps the row (the intent flag
// must survive a sign-out).
func (c *ClientState) ClearSession() error {
	return c.upsert(func(model *ClientStateModel) {
		model.AccessToken = ""
	})
}

func (c *ClientState) load() (*ClientStateModel, error) {
	var model ClientStateModel
	err := c.db.First(&model, "key = ?", c.key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model, nil
}

func (c *ClientState) upsert(mutate func(*ClientStateModel)) error {
	model, err := c.load()
	if err != nil {
		return err
	}
	if model == nil {
		model = &ClientStateModel{Key: c.key}
	}
	mutate(model)
	return c.db.Save(model).Error
}
