package catalog

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"rfxstream/catalogservice/internal/domain"
)

//go:embed endpoints.yaml
var defaultCatalogYAML []byte

const (
	pagePlaceholder  = "{page}"
	queryPlaceholder = "{query}"
	idPlaceholder    = "{id}"
)

type PageRange struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// EndpointTemplate is one upstream call as written in the catalog file.
type EndpointTemplate struct {
	Source string            `yaml:"source"`
	Path   string            `yaml:"path"`
	Query  map[string]string `yaml:"query,omitempty"`
	Pages  *PageRange        `yaml:"pages,omitempty"`
}

type TypeCatalog struct {
	DefaultTab string                        `yaml:"default_tab"`
	RandomTab  string                        `yaml:"random_tab,omitempty"`
	RelatedTab string                        `yaml:"related_tab,omitempty"`
	Tabs       map[string][]EndpointTemplate `yaml:"tabs"`
	Search     []EndpointTemplate            `yaml:"search,omitempty"`
	Detail     []EndpointTemplate            `yaml:"detail,omitempty"`
	Chapters   []EndpointTemplate            `yaml:"chapters,omitempty"`
}

type HomeTemplate struct {
	Type      domain.ContentType `yaml:"type"`
	Title     string             `yaml:"title"`
	Limit     int                `yaml:"limit"`
	Endpoints []EndpointTemplate `yaml:"endpoints"`
}

type SuggestTemplate struct {
	Type     domain.ContentType `yaml:"type"`
	Limit    int                `yaml:"limit"`
	Prefix   string             `yaml:"prefix,omitempty"`
	Endpoint EndpointTemplate   `yaml:"endpoint"`
}

// Catalog maps content types and tabs onto upstream endpoints.
type Catalog struct {
	Types   map[domain.ContentType]TypeCatalog `yaml:"catalog"`
	Home    []HomeTemplate                     `yaml:"home"`
	Suggest []SuggestTemplate                  `yaml:"suggest"`
}

// Endpoint is a fully resolved upstream call. Route names the catalog entry it
// came from, with page numbers resolved but {query} and {id} left in place.
type Endpoint struct {
	Source string
	Path   string
	Query  url.Values
	Route  string
}

// Name identifies the endpoint in statuses and logs.
func (e Endpoint) Name() string {
	if len(e.Query) == 0 {
		return e.Source + ":" + e.Path
	}
	return e.Source + ":" + e.Path + "?" + e.Query.Encode()
}

// DefaultCatalog returns the embedded endpoint table.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads the endpoint table from path, or the embedded one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) Validate() error {
	if len(c.Types) == 0 {
		return fmt.Errorf("catalog: no content types")
	}
	for ct, entry := range c.Types {
		if domain.NormalizeContentType(string(ct)) != ct {
			return fmt.Errorf("catalog: %w: %q", ErrUnknownContentType, ct)
		}
		if _, ok := entry.Tabs[entry.DefaultTab]; !ok {
			return fmt.Errorf("catalog %s: default tab %q not declared", ct, entry.DefaultTab)
		}
		for _, optional := range []string{entry.RandomTab, entry.RelatedTab} {
			if optional == "" {
				continue
			}
			if _, ok := entry.Tabs[optional]; !ok {
				return fmt.Errorf("catalog %s: tab %q not declared", ct, optional)
			}
		}
		for tab, templates := range entry.Tabs {
			if len(templates) == 0 {
				return fmt.Errorf("catalog %s/%s: no endpoints", ct, tab)
			}
			if err := validateTemplates(templates); err != nil {
				return fmt.Errorf("catalog %s/%s: %w", ct, tab, err)
			}
		}
		for _, group := range [][]EndpointTemplate{entry.Search, entry.Detail, entry.Chapters} {
			if err := validateTemplates(group); err != nil {
				return fmt.Errorf("catalog %s: %w", ct, err)
			}
		}
	}
	for _, section := range c.Home {
		if _, ok := c.Types[section.Type]; !ok {
			return fmt.Errorf("home section %q: %w", section.Type, ErrUnknownContentType)
		}
		if err := validateTemplates(section.Endpoints); err != nil {
			return fmt.Errorf("home section %s: %w", section.Type, err)
		}
	}
	for _, source := range c.Suggest {
		if err := validateTemplates([]EndpointTemplate{source.Endpoint}); err != nil {
			return fmt.Errorf("suggest source %s: %w", source.Type, err)
		}
	}
	return nil
}

func validateTemplates(templates []EndpointTemplate) error {
	for _, tpl := range templates {
		if strings.TrimSpace(tpl.Source) == "" || strings.TrimSpace(tpl.Path) == "" {
			return fmt.Errorf("endpoint needs source and path: %+v", tpl)
		}
		if tpl.Pages != nil && (tpl.Pages.From < 1 || tpl.Pages.To < tpl.Pages.From) {
			return fmt.Errorf("endpoint %s: invalid page range %d..%d", tpl.Path, tpl.Pages.From, tpl.Pages.To)
		}
	}
	return nil
}

// Tab resolves the endpoints of one content list. An empty tab selects the type's default.
func (c *Catalog) Tab(ct domain.ContentType, tab string) (string, []Endpoint, error) {
	entry, ok := c.Types[ct]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownContentType, ct)
	}
	tab = strings.ToLower(strings.TrimSpace(tab))
	if tab == "" {
		tab = entry.DefaultTab
	}
	templates, ok := entry.Tabs[tab]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s/%s", ErrUnknownTab, ct, tab)
	}
	return tab, Expand(templates, nil), nil
}

// TabNames lists the tabs of a type, default tab first.
func (c *Catalog) TabNames(ct domain.ContentType) []string {
	entry, ok := c.Types[ct]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(entry.Tabs))
	for name := range entry.Tabs {
		if name != entry.DefaultTab {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return append([]string{entry.DefaultTab}, names...)
}

// Expand resolves templates into concrete endpoints, expanding page ranges and
// substituting vars into path and query values.
func Expand(templates []EndpointTemplate, vars map[string]string) []Endpoint {
	endpoints := make([]Endpoint, 0, len(templates))
	for _, tpl := range templates {
		if tpl.Pages == nil {
			endpoints = append(endpoints, resolveTemplate(tpl, vars, ""))
			continue
		}
		for page := tpl.Pages.From; page <= tpl.Pages.To; page++ {
			endpoints = append(endpoints, resolveTemplate(tpl, vars, strconv.Itoa(page)))
		}
	}
	return endpoints
}

func resolveTemplate(tpl EndpointTemplate, vars map[string]string, page string) Endpoint {
	endpoint := substitute(tpl, vars, page)
	endpoint.Route = substitute(tpl, nil, page).Name()
	return endpoint
}

func substitute(tpl EndpointTemplate, vars map[string]string, page string) Endpoint {
	replace := func(value string) string {
		if page != "" {
			value = strings.ReplaceAll(value, pagePlaceholder, page)
		}
		for key, raw := range vars {
			value = strings.ReplaceAll(value, "{"+key+"}", raw)
		}
		return value
	}

	query := url.Values{}
	for key, value := range tpl.Query {
		query.Set(key, replace(value))
	}
	return Endpoint{
		Source: strings.ToLower(strings.TrimSpace(tpl.Source)),
		Path:   replace(tpl.Path),
		Query:  query,
	}
}

func queryVars(query string) map[string]string {
	return map[string]string{strings.Trim(queryPlaceholder, "{}"): query}
}

func idVars(id string) map[string]string {
	return map[string]string{strings.Trim(idPlaceholder, "{}"): id}
}
