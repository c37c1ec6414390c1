package devserver

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// account is a stored user record. Metadata maps are copied on the way in
// and out so callers cannot mutate the store through a shared reference.
type account struct {
	ID           string
	Email        string
	Phone        string
	PasswordHash []byte
	CreatedAt    time.Time
	LastSignInAt time.Time
	UserMetadata map[string]any
	AppMetadata  map[string]any
}

type userStore struct {
	mu      sync.Mutex
	byEmail map[string]*account
	byID    map[string]*account
}

func newUserStore() *userStore {
	return &userStore{
		byEmail: map[string]*account{},
		byID:    map[string]*account{},
	}
}

func (s *userStore) Create(email, password string, metadata map[string]any) (*account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email required")
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[email]; exists {
		return nil, fmt.Errorf("user already registered")
	}

	acct := &account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
		UserMetadata: copyMeta(metadata),
		AppMetadata:  map[string]any{"provider": "email"},
	}
	s.byEmail[email] = acct
	s.byID[acct.ID] = acct
	return acct.clone(), nil
}

// Authenticate checks email/password and stamps the sign-in time on success.
func (s *userStore) Authenticate(email, password string) (*account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("invalid login credentials")
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid login credentials")
	}
	acct.LastSignInAt = time.Now().UTC()
	return acct.clone(), nil
}

func (s *userStore) GetByID(id string) (*account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return acct.clone(), true
}

func (s *userStore) GetByEmail(email string) (*account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, false
	}
	return acct.clone(), true
}

// TouchSignIn stamps the sign-in time without a credential check. Used when
// a session is minted by token verification rather than a password.
func (s *userStore) TouchSignIn(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.byID[id]; ok {
		acct.LastSignInAt = time.Now().UTC()
	}
}

func (s *userStore) SetPassword(id, password string) error {
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("user not found")
	}
	acct.PasswordHash = hash
	return nil
}

// MergeMetadata overlays fields into the user's metadata map, Supabase-style:
// existing keys not named in fields survive.
func (s *userStore) MergeMetadata(id string, fields map[string]any) (*account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	if acct.UserMetadata == nil {
		acct.UserMetadata = map[string]any{}
	}
	for k, v := range fields {
		acct.UserMetadata[k] = v
	}
	return acct.clone(), nil
}

// EnsureSocialUser finds or creates an account for a social sign-in.
func (s *userStore) EnsureSocialUser(email, provider string, profile map[string]any) (*account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("provider returned no email")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.byEmail[email]; ok {
		acct.LastSignInAt = time.Now().UTC()
		return acct.clone(), nil
	}

	acct := &account{
		ID:           uuid.NewString(),
		Email:        email,
		CreatedAt:    time.Now().UTC(),
		LastSignInAt: time.Now().UTC(),
		UserMetadata: copyMeta(profile),
		AppMetadata:  map[string]any{"provider": provider},
	}
	s.byEmail[email] = acct
	s.byID[acct.ID] = acct
	return acct.clone(), nil
}

func (a *account) clone() *account {
	dup := *a
	dup.UserMetadata = copyMeta(a.UserMetadata)
	dup.AppMetadata = copyMeta(a.AppMetadata)
	return &dup
}

func copyMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
