package authz

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/quire/internal/model"
)

// OrgCache is a short-TTL in-memory cache in front of an OrgLookup. Every
// analytics request resolves its organization, and organizations rarely
// change, so hits save a round trip per request.
//
// Only found organizations are cached: a lookup that fails (including not
// found) always goes to the source, so a newly created organization is
// visible immediately.
type OrgCache struct {
	source OrgLookup
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[uuid.UUID]cachedOrg
	done    chan struct{}
	once    sync.Once
}

type cachedOrg struct {
	org       model.Organization
	expiresAt time.Time
}

// NewOrgCache wraps source with a cache of the given TTL.
// Call Close to stop the background eviction goroutine.
func NewOrgCache(source OrgLookup, ttl time.Duration) *OrgCache {
	c := newOrgCache(source, ttl, time.Now)
	go c.evictLoop()
	return c
}

func newOrgCache(source OrgLookup, ttl time.Duration, now func() time.Time) *OrgCache {
	return &OrgCache{
		source:  source,
		ttl:     ttl,
		now:     now,
		entries: make(map[uuid.UUID]cachedOrg),
		done:    make(chan struct{}),
	}
}

// GetOrganization returns the cached organization, falling back to the source.
func (c *OrgCache) GetOrganization(ctx context.Context, id uuid.UUID) (model.Organization, error) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		return entry.org, nil
	}

	org, err := c.source.GetOrganization(ctx, id)
	if err != nil {
		return model.Organization{}, err
	}

	c.mu.Lock()
	c.entries[id] = cachedOrg{org: org, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return org, nil
}

// Close stops the background eviction goroutine. Safe to call more than once.
func (c *OrgCache) Close() {
	c.once.Do(func() { close(c.done) })
}

// evictLoop removes expired entries every minute.
func (c *OrgCache) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *OrgCache) evictExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, id)
		}
	}
}
