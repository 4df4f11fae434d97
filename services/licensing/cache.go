package licensing

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"hrplane/services/license"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "license_cache_hits_total"})
	cacheMiss = promauto.NewCounter(prometheus.CounterOpts{Name: "license_cache_miss_total"})
)

type cachedLicense struct {
	lic       *license.License // nil means the tenant has no license record
	fetchedAt time.Time
}

// LicenseCache is a short-TTL read-through cache over the license store.
// Missing records are cached too, so unlicensed tenants do not hammer the
// store. Administrative mutations must call Invalidate.
type LicenseCache struct {
	mu    sync.RWMutex
	items map[string]*cachedLicense
	ttl   time.Duration
	repo  license.Repository
	group singleflight.Group
}

func NewLicenseCache(repo license.Repository, ttl time.Duration) *LicenseCache {
	return &LicenseCache{
		items: make(map[string]*cachedLicense),
		ttl:   ttl,
		repo:  repo,
	}
}

// Get returns the tenant's license, loading through on miss. The returned
// license may be nil (no record) with a nil error.
func (c *LicenseCache) Get(ctx context.Context, tenantID string) (*license.License, error) {
	c.mu.RLock()
	item, ok := c.items[tenantID]
	c.mu.RUnlock()

	if ok && (c.ttl <= 0 || time.Since(item.fetchedAt) <= c.ttl) {
		cacheHits.Inc()
		return item.lic, nil
	}
	cacheMiss.Inc()

	v, err, _ := c.group.Do(tenantID, func() (interface{}, error) {
		lic, err := c.repo.GetByTenant(ctx, tenantID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.items[tenantID] = &cachedLicense{lic: lic, fetchedAt: time.Now()}
		c.mu.Unlock()

		return lic, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*license.License), nil
}

// Invalidate drops the tenant's cached license.
func (c *LicenseCache) Invalidate(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, tenantID)
}
