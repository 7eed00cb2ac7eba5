package catalog

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rfxstream/catalogservice/internal/domain"
	"rfxstream/catalogservice/internal/providers/common"
)

var (
	ErrUnknownContentType = errors.New("unknown content type")
	ErrUnknownTab         = errors.New("unknown tab")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrNoProviders        = errors.New("no catalog providers configured")
	ErrNoContent          = errors.New("no content available")
	ErrNotFound           = errors.New("content not found")
	ErrInvalidQuery       = errors.New("query is required")
	ErrBatchSuperseded    = errors.New("batch superseded by a newer request")
)

const (
	defaultFetchTimeout  = 10 * time.Second
	defaultMaxConcurrent = 16
)

// Provider is one upstream API family. Fetch returns the decoded JSON payload;
// Forward returns the raw answer whatever its status.
type Provider interface {
	Name() string
	Info() domain.ProviderInfo
	Fetch(ctx context.Context, path string, query url.Values) (any, error)
	Forward(ctx context.Context, method, path string, query url.Values, body []byte) (common.Response, error)
}

type Service struct {
	providers     map[string]Provider
	catalog       *Catalog
	timeout       time.Duration
	maxConcurrent int64
	retry         retryPolicy
	pick          func(n int) int
	batches       *generationTracker

	cacheDisabled bool
	cacheMu       sync.RWMutex
	cache         map[string]*cachedListResponse
	popular       map[string]*popularList
	warmerCfg     listWarmerConfig
	warmerRun     atomic.Bool
	redisCache    *RedisCacheBackend

	healthMu sync.Mutex
	health   map[string]*endpointHealth
}

type ServiceOption func(*Service)

func WithCatalog(catalog *Catalog) ServiceOption {
	return func(s *Service) {
		if catalog != nil {
			s.catalog = catalog
		}
	}
}

func WithMaxConcurrent(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrent = int64(n)
		}
	}
}

// WithRetryAttempts lets a transient endpoint failure be retried up to attempts
// times in total. The default is a single attempt.
func WithRetryAttempts(attempts int) ServiceOption {
	return func(s *Service) {
		if attempts > 1 {
			s.retry.attempts = attempts
		}
	}
}

func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.warmerCfg.cacheTTL = ttl
			s.warmerCfg.staleTTL = ttl * 3
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

// WithPicker replaces the uniform random index source used by Random.
func WithPicker(pick func(n int) int) ServiceOption {
	return func(s *Service) {
		if pick != nil {
			s.pick = pick
		}
	}
}

func NewService(providers []Provider, timeout time.Duration, opts ...ServiceOption) (*Service, error) {
	registry := make(map[string]Provider, len(providers))
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(provider.Name()))
		if name == "" {
			continue
		}
		registry[name] = provider
	}
	if len(registry) == 0 {
		return nil, ErrNoProviders
	}

	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	svc := &Service{
		providers:     registry,
		timeout:       timeout,
		maxConcurrent: defaultMaxConcurrent,
		retry:         defaultRetryPolicy(),
		pick:          rand.IntN,
		batches:       newGenerationTracker(),
		cache:         make(map[string]*cachedListResponse),
		popular:       make(map[string]*popularList),
		warmerCfg:     defaultListWarmerConfig(),
		health:        make(map[string]*endpointHealth),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.catalog == nil {
		catalog, err := DefaultCatalog()
		if err != nil {
			return nil, err
		}
		svc.catalog = catalog
	}
	return svc, nil
}

func (s *Service) StartBackground(ctx context.Context) {
	if s.warmerRun.CompareAndSwap(false, true) {
		go s.runWarmer(ctx)
	}
}

func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Provider looks up a registered provider by name.
func (s *Service) Provider(name string) (Provider, error) {
	provider, ok := s.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return provider, nil
}

func (s *Service) Providers() []domain.ProviderInfo {
	items := make([]domain.ProviderInfo, 0, len(s.providers))
	for name, provider := range s.providers {
		info := provider.Info()
		info.Name = strings.ToLower(strings.TrimSpace(info.Name))
		if info.Name == "" {
			info.Name = name
		}
		if info.Label == "" {
			info.Label = info.Name
		}
		items = append(items, info)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}

// resolveType validates ct against the loaded catalog.
func (s *Service) resolveType(ct domain.ContentType) (domain.ContentType, TypeCatalog, error) {
	normalized := domain.NormalizeContentType(string(ct))
	entry, ok := s.catalog.Types[normalized]
	if normalized == "" || !ok {
		return "", TypeCatalog{}, ErrUnknownContentType
	}
	return normalized, entry, nil
}
