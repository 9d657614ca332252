package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rkarimi/simbazaar/internal/domain/listings"
)

// ListingCache is a read-through cache for listing snapshots. The listing
// detail page is by far the hottest read path, while writes (bids changing a
// listing's fate, orders flipping its status) invalidate the entry, so a
// short TTL is enough.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListingCache creates a new Redis-backed listing cache
func NewListingCache(client *redis.Client, ttl time.Duration) *ListingCache {
	return &ListingCache{client: client, ttl: ttl}
}

func listingKey(simCardID uuid.UUID) string {
	return "listing:" + simCardID.String()
}

// Get returns the cached listing, or (nil, nil) on a miss.
func (c *ListingCache) Get(ctx context.Context, simCardID uuid.UUID) (*listings.SimCard, error) {
	data, err := c.client.Get(ctx, listingKey(simCardID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read listing from cache: %w", err)
	}

	var sim listings.SimCard
	if err := json.Unmarshal(data, &sim); err != nil {
		// A corrupt entry is treated as a miss; the next Set overwrites it.
		return nil, nil
	}
	return &sim, nil
}

// Set stores a listing snapshot with the configured TTL.
func (c *ListingCache) Set(ctx context.Context, sim *listings.SimCard) error {
	data, err := json.Marshal(sim)
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}
	if err := c.client.Set(ctx, listingKey(sim.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache listing: %w", err)
	}
	return nil
}

// Invalidate drops a listing's cache entry after a state change.
func (c *ListingCache) Invalidate(ctx context.Context, simCardID uuid.UUID) error {
	if err := c.client.Del(ctx, listingKey(simCardID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate listing: %w", err)
	}
	return nil
}
