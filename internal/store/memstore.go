package store

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory GlobalStore, used by tests and local dev
// without a Postgres instance. Not safe across process restarts.
type MemStore struct {
	mu      sync.Mutex
	users   map[string]IftttUser
	secrets map[string]ActionSecret
	codes   map[string]AuthCode
	links   map[string]LinkToken
}

// NewMemStore creates an empty in-memory GlobalStore.
func NewMemStore() *MemStore {
	return &MemStore{
		users:   make(map[string]IftttUser),
		secrets: make(map[string]ActionSecret),
		codes:   make(map[string]AuthCode),
		links:   make(map[string]LinkToken),
	}
}

func (m *MemStore) SetConnected(_ context.Context, subdomain string, connected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.users[subdomain]
	u.Subdomain = subdomain
	u.Connected = connected
	if connected {
		now := time.Now().UTC()
		u.ConnectedAt = &now
	}
	m.users[subdomain] = u
	return nil
}

func (m *MemStore) GetConnected(_ context.Context, subdomain string) (IftttUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[subdomain]
	if !ok {
		return IftttUser{Subdomain: subdomain, Connected: false}, nil
	}
	return u, nil
}

func (m *MemStore) PutActionSecret(_ context.Context, subdomain, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.secrets[subdomain] = ActionSecret{Subdomain: subdomain, Secret: secret, CreatedAt: time.Now().UTC()}
	return nil
}

func (m *MemStore) GetActionSecret(_ context.Context, subdomain string) (ActionSecret, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.secrets[subdomain]
	return s, ok, nil
}

func (m *MemStore) DeleteActionSecret(_ context.Context, subdomain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.secrets, subdomain)
	return nil
}

func (m *MemStore) CreateAuthCode(_ context.Context, code AuthCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.codes[code.Code] = code
	return nil
}

func (m *MemStore) ConsumeAuthCode(_ context.Context, code string) (AuthCode, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.codes[code]
	if !ok {
		return AuthCode{}, false, nil
	}
	delete(m.codes, code)
	if time.Since(c.CreatedAt) > CodeTTL {
		return AuthCode{}, false, nil
	}
	return c, true, nil
}

func (m *MemStore) CreateLinkToken(_ context.Context, lt LinkToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.links[lt.Token] = lt
	return nil
}

func (m *MemStore) ConsumeLinkToken(_ context.Context, token string) (LinkToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lt, ok := m.links[token]
	if !ok {
		return LinkToken{}, false, nil
	}
	delete(m.links, token)
	if time.Since(lt.CreatedAt) > LinkTokenTTL {
		return LinkToken{}, false, nil
	}
	return lt, true, nil
}

var _ GlobalStore = (*MemStore)(nil)
