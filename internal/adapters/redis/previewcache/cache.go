package previewcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tripwell/crew-planner-api/internal/domain"
)

const keyPrefix = "crew-preview:"

// record is the JSON shape stored under each key.
type record struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	MemberCount int     `json:"memberCount"`
	TripCount   int     `json:"tripCount"`
	Admin       *admin  `json:"admin,omitempty"`
}

type admin struct {
	ID        string  `json:"id"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	PhotoURL  *string `json:"photoUrl,omitempty"`
}

// Cache stores crew previews in Redis. Entries expire after ttl; a non-positive ttl keeps them
// until invalidated.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func key(id domain.CrewID) string {
	return keyPrefix + string(id)
}

func (c *Cache) Get(ctx context.Context, id domain.CrewID) (domain.CrewPreview, bool, error) {
	val, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CrewPreview{}, false, nil
	}
	if err != nil {
		return domain.CrewPreview{}, false, fmt.Errorf("redis get preview: %w", err)
	}

	var rec record
	if err := json.Unmarshal(val, &rec); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		_ = c.client.Del(ctx, key(id)).Err()
		return domain.CrewPreview{}, false, nil
	}
	return fromRecord(rec), true, nil
}

func (c *Cache) Set(ctx context.Context, p domain.CrewPreview) error {
	b, err := json.Marshal(toRecord(p))
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, key(p.ID), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set preview: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, id domain.CrewID) error {
	if err := c.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete preview: %w", err)
	}
	return nil
}

func toRecord(p domain.CrewPreview) record {
	rec := record{
		ID:          string(p.ID),
		Name:        p.Name,
		Description: p.Description,
		MemberCount: p.MemberCount,
		TripCount:   p.TripCount,
	}
	if p.Admin != nil {
		rec.Admin = &admin{
			ID:        string(p.Admin.TravelerID),
			FirstName: p.Admin.FirstName,
			LastName:  p.Admin.LastName,
			PhotoURL:  p.Admin.PhotoURL,
		}
	}
	return rec
}

func fromRecord(rec record) domain.CrewPreview {
	p := domain.CrewPreview{
		ID:          domain.CrewID(rec.ID),
		Name:        rec.Name,
		Description: rec.Description,
		MemberCount: rec.MemberCount,
		TripCount:   rec.TripCount,
	}
	if rec.Admin != nil {
		p.Admin = &domain.PublicIdentity{
			TravelerID: domain.TravelerID(rec.Admin.ID),
			FirstName:  rec.Admin.FirstName,
			LastName:   rec.Admin.LastName,
			PhotoURL:   rec.Admin.PhotoURL,
		}
	}
	return p
}
