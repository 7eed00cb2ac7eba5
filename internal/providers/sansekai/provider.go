package sansekai

import (
	"context"
	"net/http"
	"net/url"

	"rfxstream/catalogservice/internal/domain"
	"rfxstream/catalogservice/internal/providers/common"
)

const defaultBaseURL = "https://api.sansekai.my.id/api"

type Config struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

// Provider talks to the public sansekai API family (dramabox, netshort, melolo, anime, komik).
type Provider struct {
	client *common.Client
}

func NewProvider(cfg Config) (*Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client, err := common.NewClient(common.ClientConfig{
		BaseURL:   baseURL,
		UserAgent: cfg.UserAgent,
		Client:    cfg.Client,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{client: client}, nil
}

func (p *Provider) Name() string {
	return "sansekai"
}

func (p *Provider) Info() domain.ProviderInfo {
	return domain.ProviderInfo{
		Name:    p.Name(),
		Label:   "Sansekai API",
		BaseURL: p.client.BaseURL(),
		Auth:    false,
		Enabled: true,
	}
}

func (p *Provider) Fetch(ctx context.Context, path string, query url.Values) (any, error) {
	return p.client.GetJSON(ctx, path, query)
}

func (p *Provider) Forward(ctx context.Context, method, path string, query url.Values, body []byte) (common.Response, error) {
	return p.client.Do(ctx, method, path, query, body)
}
