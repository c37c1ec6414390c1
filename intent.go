package authbridge

import "sync"

// IntentStore persists the desktop-redirect intent across a full page or
// process reload. The flag is single-writer-at-a-time: guards clear it the
// moment they consume it so a second evaluation cannot re-trigger the
// desktop path.
type IntentStore interface {
	// SetDesktopIntent records or removes the flag. Setting the value it
	// already holds is a no-op.
	SetDesktopIntent(set bool) error

	// DesktopIntent reports whether the flag is currently set.
	DesktopIntent() (bool, error)
}

// MemoryIntentStore keeps the flag in memory. Suitable for the desktop
// shell's in-process flow and for tests; web deployments should use a
// durable store (see stores/fs, stores/gorm, stores/gae, or the scs-backed
// store in cmd/webdemo).
type MemoryIntentStore struct {
	mu  sync.Mutex
	set bool
}

func NewMemoryIntentStore() *MemoryIntentStore {
	return &MemoryIntentStore{}
}

func (s *MemoryIntentStore) SetDesktopIntent(set bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = set
	return nil
}

func (s *MemoryIntentStore) DesktopIntent() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set, nil
}
