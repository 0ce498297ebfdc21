package storage

import (
	"context"
	"sync"

	"outlet-sync/internal/outlet"
)

// Cache keeps the campaign list of the last successful directory read, for
// the admin API.
type Cache struct {
	mu        sync.RWMutex
	campaigns []outlet.Campaign
}

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) GetCampaigns() []outlet.Campaign {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]outlet.Campaign(nil), c.campaigns...)
}

func (c *Cache) UpdateCampaigns(campaigns []outlet.Campaign) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.campaigns = append([]outlet.Campaign(nil), campaigns...)
}

// CampaignLister is the directory the cache sits in front of.
type CampaignLister interface {
	ListCampaigns(ctx context.Context) ([]outlet.Campaign, error)
}

// CachingDirectory reads through to the directory and records every
// successful answer. Failures are not masked by the cached list.
type CachingDirectory struct {
	Dir   CampaignLister
	Cache *Cache
}

func (d CachingDirectory) ListCampaigns(ctx context.Context) ([]outlet.Campaign, error) {
	cs, err := d.Dir.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	d.Cache.UpdateCampaigns(cs)
	return cs, nil
}
