package executor

import (
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
	"github.com/DelicateHug/DMaker-sub000/internal/metrics"
)

const (
	viewSummary = "summary"
	viewFull    = "full"
)

// listCache holds list results per (project, view, filter).
// Only client commands invalidate it; run progress does not.
type listCache struct {
	entries *ttlcache.Cache[string, []feature.Feature]
	group   singleflight.Group
}

func newListCache(ttl time.Duration) *listCache {
	return &listCache{
		entries: ttlcache.New(
			ttlcache.WithTTL[string, []feature.Feature](ttl),
			ttlcache.WithDisableTouchOnHit[string, []feature.Feature](),
		),
	}
}

func cacheKey(project, view string, filter gateway.StatusFilter) string {
	f := "all"
	if filter.ExcludeCompleted {
		f = "open"
	}
	return project + "\x00" + view + "\x00" + f
}

// get returns the cached list for key, filling it with load on a miss.
// Concurrent misses for the same key share one load.
func (c *listCache) get(key string, load func() ([]feature.Feature, error)) ([]feature.Feature, error) {
	if item := c.entries.Get(key); item != nil {
		metrics.ExecutorCacheLookups.WithLabelValues("hit").Inc()
		return cloneAll(item.Value()), nil
	}
	metrics.ExecutorCacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		list, err := load()
		if err != nil {
			return nil, err
		}
		c.entries.Set(key, list, ttlcache.DefaultTTL)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneAll(v.([]feature.Feature)), nil
}

// invalidate drops every entry for project
func (c *listCache) invalidate(project string) {
	prefix := project + "\x00"
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Delete(key)
		}
	}
}

func cloneAll(list []feature.Feature) []feature.Feature {
	out := make([]feature.Feature, len(list))
	for i, f := range list {
		out[i] = f.Clone()
	}
	return out
}
