package sapimu

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"rfxstream/catalogservice/internal/domain"
	"rfxstream/catalogservice/internal/providers/common"
)

const defaultBaseURL = "https://sapimu.au"

type Config struct {
	BaseURL   string
	Token     string
	UserAgent string
	Client    *http.Client
}

// Provider talks to the sapimu API family. Every request carries the bearer token;
// without one Fetch refuses to call upstream. Forward still relays, so the
// pass-through shows the upstream's own answer.
type Provider struct {
	client  *common.Client
	enabled bool
}

func NewProvider(cfg Config) (*Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	token := strings.TrimSpace(cfg.Token)
	headers := http.Header{}
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}
	client, err := common.NewClient(common.ClientConfig{
		BaseURL:   baseURL,
		UserAgent: cfg.UserAgent,
		Headers:   headers,
		Client:    cfg.Client,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{client: client, enabled: token != ""}, nil
}

func (p *Provider) Name() string {
	return "sapimu"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Sapimu API",
		BaseURL: p.client.BaseURL(),
		Auth:    true,
		Enabled: p.enabled,
	}
}

func (p *Provider) Fetch(ctx context.Context, path string, query url.Values) (any, error) {
	if !p.enabled {
		return nil, fmt.Errorf("%w: sapimu api token not set", common.ErrProviderDisabled)
	}
	return p.client.GetJSON(ctx, path, query)
}

func (p *Provider) Forward(ctx context.Context, method, path string, query url.Values, body []byte) (common.Response, error) {
	return p.client.Do(ctx, method, path, query, body)
}
