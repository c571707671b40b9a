package previewcache

import (
	"context"
	"sync"
	"time"

	"github.com/tripwell/crew-planner-api/internal/domain"
	"github.com/tripwell/crew-planner-api/internal/ports/out/clock"
)

type entry struct {
	preview   domain.CrewPreview
	expiresAt time.Time
}

// Cache is an in-memory preview cache with a fixed TTL.
// It is safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	clock clock.Clock
	ttl   time.Duration
	m     map[domain.CrewID]entry
}

// New returns a cache whose entries expire ttl after Set. A non-positive ttl disables expiry.
func New(clk clock.Clock, ttl time.Duration) *Cache {
	return &Cache{
		clock: clk,
		ttl:   ttl,
		m:     make(map[domain.CrewID]entry),
	}
}

func (c *Cache) Get(ctx context.Context, id domain.CrewID) (domain.CrewPreview, bool, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[id]
	if !ok {
		return domain.CrewPreview{}, false, nil
	}
	if c.ttl > 0 && !c.clock.Now().Before(e.expiresAt) {
		delete(c.m, id)
		return domain.CrewPreview{}, false, nil
	}
	return clonePreview(e.preview), true, nil
}

func (c *Cache) Set(ctx context.Context, p domain.CrewPreview) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[p.ID] = entry{preview: clonePreview(p), expiresAt: c.clock.Now().Add(c.ttl)}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, id domain.CrewID) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
	return nil
}

func clonePreview(p domain.CrewPreview) domain.CrewPreview {
	cp := p
	if p.Description != nil {
		d := *p.Description
		cp.Description = &d
	}
	if p.Admin != nil {
		a := *p.Admin
		cp.Admin = &a
	}
	return cp
}
