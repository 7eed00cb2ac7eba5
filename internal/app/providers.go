package app

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rfxstream/catalogservice/internal/catalog"
	"rfxstream/catalogservice/internal/providers/sansekai"
	"rfxstream/catalogservice/internal/providers/sapimu"
)

func newUpstreamClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 32
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}

// BuildProviders constructs the sansekai and sapimu upstreams with traced clients.
func BuildProviders(cfg Config) ([]catalog.Provider, error) {
	sk, err := sansekai.NewProvider(sansekai.Config{
		BaseURL:   cfg.SansekaiBaseURL,
		UserAgent: cfg.UserAgent,
		Client:    newUpstreamClient(cfg.UpstreamTimeout),
	})
	if err != nil {
		return nil, err
	}
	sp, err := sapimu.NewProvider(sapimu.Config{
		BaseURL:   cfg.SapimuBaseURL,
		Token:     cfg.SapimuToken,
		UserAgent: cfg.UserAgent,
		Client:    newUpstreamClient(cfg.UpstreamTimeout),
	})
	if err != nil {
		return nil, err
	}
	return []catalog.Provider{sk, sp}, nil
}

// ServiceOptions maps the cache and fan-out settings onto catalog options.
// Redis is wired by the server only.
func ServiceOptions(cfg Config, endpoints *catalog.Catalog) []catalog.ServiceOption {
	opts := []catalog.ServiceOption{
		catalog.WithCatalog(endpoints),
		catalog.WithMaxConcurrent(cfg.MaxConcurrent),
		catalog.WithRetryAttempts(cfg.RetryAttempts),
	}
	if cfg.CacheDisabled {
		return append(opts, catalog.WithCacheDisabled(true))
	}
	if cfg.CacheTTL > 0 {
		opts = append(opts, catalog.WithCacheTTL(cfg.CacheTTL))
	}
	return opts
}
