//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	ab "github.com/dottedlabs/authbridge"
)

// Kind constants for Datastore entities
const (
	KindClientState = "ClientState"
)

// ClientStateStore persists per-client auth state using Google Cloud
// Datastore. ForClient returns a view over a single entity which implements
// the library's IntentStore interface.
type ClientStateStore struct {
	client    *datastore.Client
	namespace string
	ctx       context.Context
}

// NewClientStateStore creates a Datastore-backed ClientStateStore.
func NewClientStateStore(client *datastore.Client, namespace string) *ClientStateStore {
	return &ClientStateStore{
		client:    client,
		namespace: namespace,
		ctx:       context.Background(),
	}
}

// WithContext returns a copy of the store with the given context
func (s *ClientStateStore) WithContext(ctx context.Context) *ClientStateStore {
	return &ClientStateStore{
		client:    s.client,
		namespace: s.namespace,
		ctx:       ctx,
	}
}

func (s *ClientStateStore) namespacedKey(name string) *datastore.Key {
	key := datastore.NameKey(KindClientState, name, nil)
	key.Namespace = s.namespace
	return key
}

// ForClient scopes the store to a single client key.
func (s *ClientStateStore) ForClient(key string) *ClientState {
	return &ClientState{store: s, key: s.namespacedKey(key)}
}

// PurgeStale deletes client entities untouched since the cutoff.
func (s *ClientStateStore) PurgeStale(olderThan time.Time) (int, error) {
	query := datastore.NewQuery(KindClientState).
		Namespace(s.namespace).
		FilterField("updated_at", "<", olderThan).
		KeysOnly()

	var keys []*datastore.Key
	it := s.client.Run(s.ctx, query)
	for {
		key, err := it.Next(nil)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, err
		}
		keys = append(keys, key)
	}

	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.client.DeleteMulti(s.ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// ClientState is the per-client view. It satisfies ab.IntentStore.
type ClientState struct {
	store *ClientStateStore
	key   *datastore.Key
}

var _ ab.IntentStore = (*ClientState)(nil)

func (c *ClientState) SetDesktopIntent(pending bool) error {
	return c.upsert(func(entity *ClientStateEntity) {
		entity.DesktopIntent = pending
	})
}

func (c *ClientState) DesktopIntent() (bool, error) {
	entity, err := c.load()
	if err != nil {
		return false, err
	}
	if entity == nil {
		return false, nil
	}
	return entity.DesktopIntent, nil
}

// SaveSessionToken persists the client's bearer token.
func (c *ClientState) SaveSessionToken(token string) error {
	return c.upsert(func(entity *ClientStateEntity) {
		entity.AccessToken = token
	})
}

// SessionToken returns the persisted token, or "" when none is stored.
func (c *ClientState) SessionToken() (string, error) {
	entity, err := c.load()
	if err != nil {
		return "", err
	}
	if entity == nil {
		return "", nil
	}
	return entity.AccessToken, nil
}

// ClearSession drops the persisted token but keeps the entity so the
// intent flag survives a sign-out.
func (c *ClientState) ClearSession() error {
	return c.upsert(func(entity *ClientStateEntity) {
		entity.AccessToken = ""
	})
}

func (c *ClientState) load() (*ClientStateEntity, error) {
	var entity ClientStateEntity
	err := c.store.client.Get(c.store.ctx, c.key, &entity)
	if err == datastore.ErrNoSuchEntity {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (c *ClientState) upsert(mutate func(*ClientStateEntity)) error {
	entity, err := c.load()
	if err != nil {
		return err
	}
	if entity == nil {
		entity = &ClientStateEntity{Key: c.key, CreatedAt: time.Now()}
	}
	mutate(entity)
	entity.UpdatedAt = time.Now()
	_, err = c.store.client.Put(c.store.ctx, c.key, entity)
	return err
}
