package store

import (
	"context"
	"sync"
	"time"
)

// secretCacheTTL bounds how stale a cached connected/action-secret read
// may be. Short enough that a disconnect or reconnect is visible to the
// dispatcher within one polling interval, long enough to spare the
// control-plane store a query on every IFTTT poll.
const secretCacheTTL = 10 * time.Second

type cachedSecret struct {
	secret   ActionSecret
	found    bool
	cachedAt time.Time
}

type cachedConn struct {
	user     IftttUser
	cachedAt time.Time
}

// SecretCache wraps a GlobalStore with a short-lived read cache for the
// two lookups the dispatcher performs on nearly every request: whether a
// tenant is connected, and its current action secret. Writes always go
// straight through and evict the cached entry.
type SecretCache struct {
	GlobalStore

	mu      sync.Mutex
	conns   map[string]cachedConn
	secrets map[string]cachedSecret
}

// NewSecretCache wraps the given store.
func NewSecretCache(inner GlobalStore) *SecretCache {
	return &SecretCache{
		GlobalStore: inner,
		conns:       make(map[string]cachedConn),
		secrets:     make(map[string]cachedSecret),
	}
}

func (c *SecretCache) GetConnected(ctx context.Context, subdomain string) (IftttUser, error) {
	c.mu.Lock()
	if cc, ok := c.conns[subdomain]; ok && time.Since(cc.cachedAt) < secretCacheTTL {
		c.mu.Unlock()
		return cc.user, nil
	}
	c.mu.Unlock()

	u, err := c.GlobalStore.GetConnected(ctx, subdomain)
	if err != nil {
		return IftttUser{}, err
	}

	c.mu.Lock()
	c.conns[subdomain] = cachedConn{user: u, cachedAt: time.Now()}
	c.mu.Unlock()
	return u, nil
}

func (c *SecretCache) GetActionSecret(ctx context.Context, subdomain string) (ActionSecret, bool, error) {
	c.mu.Lock()
	if cs, ok := c.secrets[subdomain]; ok && time.Since(cs.cachedAt) < secretCacheTTL {
		c.mu.Unlock()
		return cs.secret, cs.found, nil
	}
	c.mu.Unlock()

	s, found, err := c.GlobalStore.GetActionSecret(ctx, subdomain)
	if err != nil {
		return ActionSecret{}, false, err
	}

	c.mu.Lock()
	c.secrets[subdomain] = cachedSecret{secret: s, found: found, cachedAt: time.Now()}
	c.mu.Unlock()
	return s, found, nil
}

func (c *SecretCache) SetConnected(ctx context.Context, subdomain string, connected bool) error {
	if err := c.GlobalStore.SetConnected(ctx, subdomain, connected); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.conns, subdomain)
	c.mu.Unlock()
	return nil
}

func (c *SecretCache) PutActionSecret(ctx context.Context, subdomain, secret string) error {
	if err := c.GlobalStore.PutActionSecret(ctx, subdomain, secret); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.secrets, subdomain)
	c.mu.Unlock()
	return nil
}

func (c *SecretCache) DeleteActionSecret(ctx context.Context, subdomain string) error {
	if err := c.GlobalStore.DeleteActionSecret(ctx, subdomain); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.secrets, subdomain)
	c.mu.Unlock()
	return nil
}

var _ GlobalStore = (*SecretCache)(nil)
