// Package fs provides filesystem-backed persistence for a desktop install:
// the pending desktop-redirect intent and the session token, stored as JSON
// files under a single root directory. Writes are atomic (temp file plus
// rename) so a crash never leaves a half-written record.
package fs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// stateRecord is the on-disk shape of both files.
type stateRecord struct {
	DesktopIntent bool      `json:"desktop_intent,omitempty"`
	AccessToken   string    `json:"access_token,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FSStateStore persists auth client state under Root:
//
//	{Root}/
//	├── intent.json    # pending desktop-redirect flag
//	└── session.json   # bearer token, mode 0600
//
// It implements the library's IntentStore interface and additionally offers
// session token persistence so a restarted desktop app stays signed in.
type FSStateStore struct {
	Root string
}

// NewFSStateStore creates a store rooted at the given directory.
func NewFSStateStore(root string) *FSStateStore {
	return &FSStateStore{Root: root}
}

func (s *FSStateStore) intentPath() string  { return filepath.Join(s.Root, "intent.json") }
func (s *FSStateStore) sessionPath() string { return filepath.Join(s.Root, "session.json") }

// SetDesktopIntent records (or clears) the pending desktop-redirect flag.
func (s *FSStateStore) SetDesktopIntent(pending bool) error {
	if !pending {
		return removeIfExists(s.intentPath())
	}
	return s.write(s.intentPath(), &stateRecord{DesktopIntent: true, UpdatedAt: time.Now()}, 0644)
}

// DesktopIntent reports whether a desktop redirect is pending.
func (s *FSStateStore) DesktopIntent() (bool, error) {
	record, err := s.read(s.intentPath())
	if err != nil {
		return false, err
	}
	return record != nil && record.DesktopIntent, nil
}

// SaveSessionToken persists the bearer token. The file is written 0600
// since the token grants account access.
func (s *FSStateStore) SaveSessionToken(token string) error {
	if token == "" {
		return removeIfExists(s.sessionPath())
	}
	return s.write(s.sessionPath(), &stateRecord{AccessToken: token, UpdatedAt: time.Now()}, 0600)
}

// SessionToken returns the persisted token, or "" when none is stored.
func (s *FSStateStore) SessionToken() (string, error) {
	record, err := s.read(s.sessionPath())
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}
	return record.AccessToken, nil
}

// ClearSession removes the persisted token.
func (s *FSStateStore) ClearSession() error {
	return removeIfExists(s.sessionPath())
}

func (s *FSStateStore) read(path string) (*stateRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var record stateRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *FSStateStore) write(path string, record *stateRecord, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
