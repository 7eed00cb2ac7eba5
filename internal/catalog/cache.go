package catalog

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"rfxstream/catalogservice/internal/domain"
	"rfxstream/catalogservice/internal/metrics"
)

const (
	defaultCacheTTL            = 5 * time.Minute
	defaultStaleTTL            = 15 * time.Minute
	defaultWarmInterval        = 2 * time.Minute
	defaultWarmTopLists        = 8
	defaultCacheMaxEntries     = 200
	defaultPopularMaxEntries   = 100
	maxConcurrentWarmRefreshes = 2
)

type listWarmerConfig struct {
	cacheTTL          time.Duration
	staleTTL          time.Duration
	warmInterval      time.Duration
	warmTopLists      int
	cacheMaxEntries   int
	popularMaxEntries int
}

type cachedListResponse struct {
	response    domain.ListResponse
	updatedAt   time.Time
	expiresAt   time.Time
	staleUntil  time.Time
	refreshing  bool
	refreshOnce sync.Once
}

type popularList struct {
	list     preparedList
	hits     int
	lastSeen time.Time
	lastWarm time.Time
}

type warmSpec struct {
	key  string
	list preparedList
}

func defaultListWarmerConfig() listWarmerConfig {
	return listWarmerConfig{
		cacheTTL:          defaultCacheTTL,
		staleTTL:          defaultStaleTTL,
		warmInterval:      defaultWarmInterval,
		warmTopLists:      defaultWarmTopLists,
		cacheMaxEntries:   defaultCacheMaxEntries,
		popularMaxEntries: defaultPopularMaxEntries,
	}
}

func buildListCacheKey(ct domain.ContentType, tab string) string {
	return "list|" + string(ct) + "|" + strings.ToLower(strings.TrimSpace(tab))
}

func (s *Service) runWarmer(ctx context.Context) {
	ticker := time.NewTicker(s.warmerCfg.warmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runWarmCycle(ctx)
		}
	}
}

// runWarmCycle refreshes the most requested lists whose fresh window ran out.
func (s *Service) runWarmCycle(ctx context.Context) {
	specs := s.collectWarmSpecs(time.Now())
	if len(specs) == 0 {
		return
	}

	sem := semaphore.NewWeighted(maxConcurrentWarmRefreshes)
	var wg sync.WaitGroup
	for _, spec := range specs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(spec warmSpec) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				s.cacheClearRefreshing(spec.key)
				return
			}
			defer sem.Release(1)

			refreshCtx, cancel := context.WithTimeout(ctx, s.timeout+2*time.Second)
			defer cancel()
			if _, err := s.listNoCache(refreshCtx, spec.list); err != nil {
				s.cacheClearRefreshing(spec.key)
			}
		}(spec)
	}
	wg.Wait()
	slog.Debug("catalog cache warm cycle finished", slog.Int("lists", len(specs)))
}

func (s *Service) collectWarmSpecs(now time.Time) []warmSpec {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if len(s.popular) == 0 {
		return nil
	}

	keys := make([]string, 0, len(s.popular))
	for key := range s.popular {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		left := s.popular[keys[i]]
		right := s.popular[keys[j]]
		if left.hits != right.hits {
			return left.hits > right.hits
		}
		return left.lastSeen.After(right.lastSeen)
	})

	limit := s.warmerCfg.warmTopLists
	if limit <= 0 {
		limit = defaultWarmTopLists
	}
	if len(keys) < limit {
		limit = len(keys)
	}

	specs := make([]warmSpec, 0, limit)
	for _, key := range keys[:limit] {
		pop := s.popular[key]
		if !pop.lastWarm.IsZero() && now.Sub(pop.lastWarm) < s.warmerCfg.warmInterval/2 {
			continue
		}
		if entry, ok := s.cache[key]; ok && now.Before(entry.expiresAt) {
			continue
		}
		pop.lastWarm = now
		if entry := s.cache[key]; entry != nil {
			entry.refreshing = true
		}
		specs = append(specs, warmSpec{key: key, list: pop.list})
	}
	return specs
}

// cacheLookup returns a cached response and whether a stale-window refresh is due.
func (s *Service) cacheLookup(key string, now time.Time) (domain.ListResponse, bool, bool) {
	if s.redisCache != nil {
		resp, found, err := s.redisCache.Get(context.Background(), key)
		if err != nil {
			slog.Warn("catalog redis cache get failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		if err == nil && found {
			metrics.CacheHitsTotal.Inc()
			s.cacheStoreMemoryOnly(key, resp, now)
			return resp, true, false
		}
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return domain.ListResponse{}, false, false
	}
	if now.Before(entry.expiresAt) {
		metrics.CacheHitsTotal.Inc()
		return cloneListResponse(entry.response), true, false
	}
	if now.Before(entry.staleUntil) {
		metrics.CacheHitsTotal.Inc()
		needsRefresh := false
		entry.refreshOnce.Do(func() {
			needsRefresh = true
			entry.refreshing = true
		})
		return cloneListResponse(entry.response), true, needsRefresh
	}

	metrics.CacheMissesTotal.Inc()
	delete(s.cache, key)
	delete(s.popular, key)
	return domain.ListResponse{}, false, false
}

func (s *Service) cacheTTLs() (time.Duration, time.Duration) {
	cacheTTL := s.warmerCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	staleTTL := s.warmerCfg.staleTTL
	if staleTTL <= cacheTTL {
		staleTTL = cacheTTL * 3
	}
	return cacheTTL, staleTTL
}

func (s *Service) cacheStore(key string, response domain.ListResponse, now time.Time) {
	cacheTTL, _ := s.cacheTTLs()
	if s.redisCache != nil {
		if err := s.redisCache.Set(context.Background(), key, response, cacheTTL); err != nil {
			slog.Warn("catalog redis cache set failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	s.cacheStoreMemoryOnly(key, response, now)
}

func (s *Service) cacheStoreMemoryOnly(key string, response domain.ListResponse, now time.Time) {
	cacheTTL, staleTTL := s.cacheTTLs()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	response.Generation = 0
	s.cache[key] = &cachedListResponse{
		response:   cloneListResponse(response),
		updatedAt:  now,
		expiresAt:  now.Add(cacheTTL),
		staleUntil: now.Add(staleTTL),
	}
	s.trimCacheLocked(now)
}

func (s *Service) cacheClearRefreshing(key string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if entry := s.cache[key]; entry != nil {
		entry.refreshing = false
	}
}

func (s *Service) markPopular(key string, list preparedList, now time.Time) {
	list.view = ""

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if pop, ok := s.popular[key]; ok {
		pop.hits++
		pop.lastSeen = now
		pop.list = list
	} else {
		s.popular[key] = &popularList{list: list, hits: 1, lastSeen: now}
	}

	limit := s.warmerCfg.popularMaxEntries
	if limit <= 0 {
		limit = defaultPopularMaxEntries
	}
	if len(s.popular) <= limit {
		return
	}

	type pair struct {
		key   string
		value *popularList
	}
	items := make([]pair, 0, len(s.popular))
	for popKey, value := range s.popular {
		items = append(items, pair{key: popKey, value: value})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].value.hits != items[j].value.hits {
			return items[i].value.hits < items[j].value.hits
		}
		return items[i].value.lastSeen.Before(items[j].value.lastSeen)
	})
	for i := 0; i < len(items)-limit; i++ {
		delete(s.popular, items[i].key)
	}
}

func (s *Service) trimCacheLocked(now time.Time) {
	maxEntries := s.warmerCfg.cacheMaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}

	for key, entry := range s.cache {
		if now.After(entry.staleUntil) {
			delete(s.cache, key)
		}
	}
	if len(s.cache) <= maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedListResponse
	}
	items := make([]pair, 0, len(s.cache))
	for key, entry := range s.cache {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-maxEntries; i++ {
		delete(s.cache, items[i].key)
	}
}

func cloneListResponse(response domain.ListResponse) domain.ListResponse {
	cloned := response
	if response.Items != nil {
		cloned.Items = make([]domain.CanonicalItem, len(response.Items))
		for i, item := range response.Items {
			cloned.Items[i] = cloneItem(item)
		}
	}
	if response.Endpoints != nil {
		cloned.Endpoints = append([]domain.EndpointStatus(nil), response.Endpoints...)
	}
	return cloned
}

func cloneItem(item domain.CanonicalItem) domain.CanonicalItem {
	copied := item
	if item.Rating != nil {
		rating := *item.Rating
		copied.Rating = &rating
	}
	if item.Episodes != nil {
		episodes := *item.Episodes
		copied.Episodes = &episodes
	}
	copied.Genres = append([]string(nil), item.Genres...)
	return copied
}
