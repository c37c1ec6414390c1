package devserver

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const accessTokenTTL = time.Hour

// issueAccessToken mints an HS256 session token for the given user.
func issueAccessToken(secret []byte, userID, email string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"aud":   "authenticated",
		"iat":   now.Unix(),
		"exp":   now.Add(accessTokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// parseAccessToken validates a session token and returns its subject.
func parseAccessToken(secret []byte, raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

// oneShotStore holds single-use magic-link tokens. Consume removes the token
// so a replayed token fails.
type oneShotStore struct {
	mu     sync.Mutex
	tokens map[string]oneShotEntry
}

type oneShotEntry struct {
	UserID    string
	ExpiresAt time.Time
}

func newOneShotStore() *oneShotStore {
	return &oneShotStore{tokens: map[string]oneShotEntry{}}
}

func (s *oneShotStore) Issue(userID string, ttl time.Duration) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = oneShotEntry{UserID: userID, ExpiresAt: time.Now().Add(ttl)}
	return token, nil
}

func (s *oneShotStore) Consume(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tokens[token]
	if !ok {
		return "", fmt.Errorf("token not found or already used")
	}
	delete(s.tokens, token)
	if time.Now().After(entry.ExpiresAt) {
		return "", fmt.Errorf("token expired")
	}
	return entry.UserID, nil
}
