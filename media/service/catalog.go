package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "chat-companion/backend/pkg/errors"
	"chat-companion/backend/pkg/logger"
)

// AssetStore is the storage backend holding the bot's media assets.
// Download/upload mechanics live behind this interface.
type AssetStore interface {
	// List maps asset name to its storage locator.
	List(ctx context.Context) (map[string]string, error)
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// Catalog is a read-mostly snapshot of the asset store's contents with a
// time-based expiry. Refreshes happen lazily on miss or expiry with a
// bounded retry, falling back to the last good snapshot on failure.
type Catalog struct {
	store      AssetStore
	ttl        time.Duration
	maxRetries int
	retryDelay time.Duration
	log        *logger.Logger

	mu        sync.RWMutex
	snapshot  map[string]string
	refreshed time.Time
}

func NewCatalog(store AssetStore, ttl time.Duration, maxRetries int, log *logger.Logger) *Catalog {
	return &Catalog{
		store:      store,
		ttl:        ttl,
		maxRetries: maxRetries,
		retryDelay: 2 * time.Second,
		log:        log,
	}
}

// Names returns the sorted asset names of the current snapshot,
// refreshing it when stale.
func (c *Catalog) Names(ctx context.Context) ([]string, error) {
	snapshot, err := c.current(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Fetch retrieves the named asset's bytes from the store.
func (c *Catalog) Fetch(ctx context.Context, name string) ([]byte, error) {
	return c.store.Fetch(ctx, name)
}

func (c *Catalog) current(ctx context.Context) (map[string]string, error) {
	c.mu.RLock()
	snapshot := c.snapshot
	fresh := snapshot != nil && time.Since(c.refreshed) < c.ttl
	c.mu.RUnlock()

	if fresh {
		return snapshot, nil
	}

	refreshed, err := c.refresh(ctx)
	if err == nil {
		return refreshed, nil
	}

	// Stale-but-present beats unavailable.
	if snapshot != nil {
		c.log.LogError(err, "catalog refresh failed, serving last good snapshot")
		return snapshot, nil
	}
	return nil, fmt.Errorf("%w: %v", apperrors.ErrCatalogUnavailable, err)
}

func (c *Catalog) refresh(ctx context.Context) (map[string]string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		listing, err := c.store.List(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		c.mu.Lock()
		c.snapshot = listing
		c.refreshed = time.Now()
		c.mu.Unlock()

		c.log.Info("asset catalog refreshed", "assets", len(listing))
		return listing, nil
	}
	return nil, lastErr
}
