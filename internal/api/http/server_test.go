package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"rfxstream/catalogservice/internal/catalog"
	"rfxstream/catalogservice/internal/domain"
	"rfxstream/catalogservice/internal/providers/common"
)

type fakeCatalogService struct {
	lastList   domain.ListRequest
	lastRandom domain.RandomRequest
	lastQuery  string
	listErr    error
	detailErr  error
	stream     []domain.ListResponse
	providers  map[string]*fakeForwarder
}

func (f *fakeCatalogService) List(ctx context.Context, request domain.ListRequest) (domain.ListResponse, error) {
	_ = ctx
	f.lastList = request
	if f.listErr != nil {
		return domain.ListResponse{}, f.listErr
	}
	response := domain.ListResponse{
		Type:               request.Type,
		Tab:                "all",
		Items:              []domain.CanonicalItem{{ID: "1", Title: "One", Cover: "http://c/1"}},
		SucceededEndpoints: 1,
		TotalEndpoints:     2,
		Final:              true,
	}
	response.SetStatus(domain.BatchOK)
	return response, nil
}

func (f *fakeCatalogService) ListStream(ctx context.Context, request domain.ListRequest) (<-chan domain.ListResponse, error) {
	_ = ctx
	f.lastList = request
	if f.listErr != nil {
		return nil, f.listErr
	}
	ch := make(chan domain.ListResponse, len(f.stream))
	for _, snapshot := range f.stream {
		ch <- snapshot
	}
	close(ch)
	return ch, nil
}

func (f *fakeCatalogService) Random(ctx context.Context, request domain.RandomRequest) (domain.RandomResponse, error) {
	_ = ctx
	f.lastRandom = request
	return domain.RandomResponse{Item: domain.CanonicalItem{ID: "r", Title: "Random", Cover: "http://c/r"}, PoolSize: 4}, nil
}

func (f *fakeCatalogService) Suggest(ctx context.Context, query string) (domain.SuggestResponse, error) {
	_ = ctx
	f.lastQuery = query
	return domain.SuggestResponse{Query: query, Suggestions: []domain.Suggestion{{ID: "1", Title: "One", Type: domain.ContentDrama}}}, nil
}

func (f *fakeCatalogService) Search(ctx context.Context, query string) (domain.SearchResponse, error) {
	_ = ctx
	f.lastQuery = query
	return domain.SearchResponse{Query: query, Total: 1}, nil
}

func (f *fakeCatalogService) Home(ctx context.Context) (domain.HomeResponse, error) {
	_ = ctx
	return domain.HomeResponse{Hero: []domain.CanonicalItem{{ID: "h"}}}, nil
}

func (f *fakeCatalogService) Detail(ctx context.Context, contentType domain.ContentType, id string) (domain.DetailResponse, error) {
	_ = ctx
	if f.detailErr != nil {
		return domain.DetailResponse{}, f.detailErr
	}
	return domain.DetailResponse{Item: domain.CanonicalItem{ID: id, Type: contentType}}, nil
}

func (f *fakeCatalogService) Provider(name string) (catalog.Provider, error) {
	provider, ok := f.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownProvider, name)
	}
	return provider, nil
}

func (f *fakeCatalogService) Providers() []domain.ProviderInfo {
	return []domain.ProviderInfo{{Name: "sansekai"}, {Name: "sapimu", Auth: true}}
}

func (f *fakeCatalogService) ProviderDiagnostics() []domain.ProviderDiagnostics {
	return []domain.ProviderDiagnostics{{Name: "sansekai"}, {Name: "sapimu"}}
}

type fakeForwarder struct {
	response   common.Response
	err        error
	lastMethod string
	lastPath   string
	lastQuery  url.Values
	lastBody   []byte
}

func (f *fakeForwarder) Name() string               { return "fake" }
func (f *fakeForwarder) Info() domain.ProviderInfo { return domain.ProviderInfo{Name: "fake"} }
func (f *fakeForwarder) Fetch(context.Context, string, url.Values) (any, error) {
	return nil, errors.New("not used")
}

func (f *fakeForwarder) Forward(ctx context.Context, method, path string, query url.Values, body []byte) (common.Response, error) {
	_ = ctx
	f.lastMethod, f.lastPath, f.lastQuery, f.lastBody = method, path, query, body
	return f.response, f.err
}

func serve(server *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return payload.Error.Code
}

func TestListParsesRequest(t *testing.T) {
	fake := &fakeCatalogService{}
	rec := serve(NewServer(fake), http.MethodGet, "/catalog/Dramas?tab=Trending&view=home&nocache=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if fake.lastList.Type != domain.ContentDrama || fake.lastList.Tab != "trending" ||
		fake.lastList.View != "home" || !fake.lastList.NoCache {
		t.Fatalf("unexpected request: %#v", fake.lastList)
	}

	var payload domain.ListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.SucceededEndpoints != 1 || payload.IsLoading {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestListUnknownType(t *testing.T) {
	rec := serve(NewServer(&fakeCatalogService{}), http.MethodGet, "/catalog/podcast", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec); code != "invalid_request" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: %q", catalog.ErrUnknownTab, "nope"), http.StatusBadRequest, "invalid_request"},
		{catalog.ErrBatchSuperseded, http.StatusConflict, "superseded"},
		{catalog.ErrNoProviders, http.StatusServiceUnavailable, "service_unavailable"},
		{catalog.ErrNoContent, http.StatusNotFound, "not_found"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		rec := serve(NewServer(&fakeCatalogService{listErr: tc.err}), http.MethodGet, "/catalog/anime", "")
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		if code := decodeError(t, rec); code != tc.code {
			t.Fatalf("%v: expected code %q, got %q", tc.err, tc.code, code)
		}
	}
}

func TestDetailRequiresID(t *testing.T) {
	server := NewServer(&fakeCatalogService{detailErr: catalog.ErrNotFound})
	if rec := serve(server, http.MethodGet, "/catalog/komik/detail", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := serve(server, http.MethodGet, "/catalog/komik/detail?id=x", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRandomPassesTab(t *testing.T) {
	fake := &fakeCatalogService{}
	rec := serve(NewServer(fake), http.MethodGet, "/catalog/shorts/random?tab=melolo", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if fake.lastRandom.Type != domain.ContentShorts || fake.lastRandom.Tab != "melolo" {
		t.Fatalf("unexpected request: %#v", fake.lastRandom)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	server := NewServer(&fakeCatalogService{})
	if rec := serve(server, http.MethodGet, "/catalog/search", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	long := strings.Repeat("a", maxQueryLength+1)
	if rec := serve(server, http.MethodGet, "/catalog/search?q="+long, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for long query, got %d", rec.Code)
	}
}

func TestStaticRoutesWinOverType(t *testing.T) {
	fake := &fakeCatalogService{}
	server := NewServer(fake)

	rec := serve(server, http.MethodGet, "/catalog/suggest?q=ceo", "")
	if rec.Code != http.StatusOK || fake.lastQuery != "ceo" {
		t.Fatalf("suggest: status %d query %q", rec.Code, fake.lastQuery)
	}
	if rec := serve(server, http.MethodGet, "/catalog/home", ""); rec.Code != http.StatusOK {
		t.Fatalf("home: expected 200, got %d", rec.Code)
	}

	rec = serve(server, http.MethodGet, "/catalog/providers/health", "")
	var payload struct {
		Items []domain.ProviderDiagnostics `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 2 {
		t.Fatalf("unexpected items count: %d", len(payload.Items))
	}
}

func TestListStreamSendsPhases(t *testing.T) {
	loading := domain.ListResponse{Type: domain.ContentDrama, Phase: "fetch"}
	loading.SetStatus(domain.BatchLoading)
	final := domain.ListResponse{Type: domain.ContentDrama, Phase: "done", Final: true}
	final.SetStatus(domain.BatchOK)

	fake := &fakeCatalogService{stream: []domain.ListResponse{loading, final}}
	rec := serve(NewServer(fake), http.MethodGet, "/catalog/drama/stream?view=v1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !containsAll(body, []string{"event: bootstrap", "event: update", `"isLoading":true`, "event: done", `"final":true`}) {
		t.Fatalf("unexpected stream body: %s", body)
	}
	if strings.Count(body, "event: update") != 2 {
		t.Fatalf("expected 2 updates: %s", body)
	}
}

func TestListStreamSuperseded(t *testing.T) {
	loading := domain.ListResponse{Type: domain.ContentDrama}
	loading.SetStatus(domain.BatchLoading)
	fake := &fakeCatalogService{stream: []domain.ListResponse{loading}}

	rec := serve(NewServer(fake), http.MethodGet, "/catalog/drama/stream?view=v1", "")
	if !strings.Contains(rec.Body.String(), `"superseded":true`) {
		t.Fatalf("expected superseded done event: %s", rec.Body.String())
	}
}

func TestPassThrough(t *testing.T) {
	forwarder := &fakeForwarder{response: common.Response{StatusCode: 200, ContentType: "application/json", Body: []byte(`{"ok":true}`)}}
	fake := &fakeCatalogService{providers: map[string]*fakeForwarder{"sapimu": forwarder}}
	server := NewServer(fake)

	rec := serve(server, http.MethodGet, "/api/sapimu/dramabox/api/foryou/1?lang=in", "")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"ok":true}` {
		t.Fatalf("unexpected relay: %d %s", rec.Code, rec.Body.String())
	}
	if forwarder.lastPath != "dramabox/api/foryou/1" || forwarder.lastQuery.Get("lang") != "in" {
		t.Fatalf("unexpected forward: %q %v", forwarder.lastPath, forwarder.lastQuery)
	}

	rec = serve(server, http.MethodPost, "/api/sapimu/dramabox/api/search", `{"keyword":"ceo"}`)
	if rec.Code != http.StatusOK || forwarder.lastMethod != http.MethodPost || string(forwarder.lastBody) != `{"keyword":"ceo"}` {
		t.Fatalf("unexpected post relay: %d %s %s", rec.Code, forwarder.lastMethod, forwarder.lastBody)
	}
}

func TestPassThroughErrors(t *testing.T) {
	forwarder := &fakeForwarder{response: common.Response{StatusCode: 403, Body: []byte("denied")}}
	broken := &fakeForwarder{err: errors.New("dial tcp: connection refused")}
	fake := &fakeCatalogService{providers: map[string]*fakeForwarder{"sapimu": forwarder, "sansekai": broken}}
	server := NewServer(fake)

	cases := []struct {
		target string
		status int
		body   string
	}{
		{"/api/sapimu/x", http.StatusForbidden, "API error: 403"},
		{"/api/sansekai/x", http.StatusInternalServerError, "Failed to fetch data"},
		{"/api/nobody/x", http.StatusNotFound, "Unknown provider"},
	}
	for _, tc := range cases {
		rec := serve(server, http.MethodGet, tc.target, "")
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.target, tc.status, rec.Code)
		}
		var payload map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if payload["error"] != tc.body {
			t.Fatalf("%s: unexpected error %q", tc.target, payload["error"])
		}
	}
}

func TestLibraryNotConfigured(t *testing.T) {
	rec := serve(NewServer(&fakeCatalogService{}), http.MethodGet, "/library/favorites", "")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestImageProxyRejectsUnsafeTargets(t *testing.T) {
	server := NewServer(&fakeCatalogService{})
	for _, target := range []string{
		"/catalog/image",
		"/catalog/image?url=" + url.QueryEscape("ftp://example.com/a.png"),
		"/catalog/image?url=" + url.QueryEscape("http://localhost/a.png"),
		"/catalog/image?url=" + url.QueryEscape("http://10.0.0.4/a.png"),
		"/catalog/image?url=" + url.QueryEscape("http://redis:6379/"),
	} {
		if rec := serve(server, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestValidateProxyURLResolvesHosts(t *testing.T) {
	original := lookupIPAddr
	defer func() { lookupIPAddr = original }()
	lookupIPAddr = func(ctx context.Context, host string) ([]net.IPAddr, error) {
		if host == "cdn.example.com" {
			return []net.IPAddr{{IP: net.ParseIP("93.184.216.34")}}, nil
		}
		return []net.IPAddr{{IP: net.ParseIP("192.168.1.10")}}, nil
	}

	good, _ := url.Parse("https://cdn.example.com/cover.jpg")
	if err := validateProxyURL(context.Background(), good); err != nil {
		t.Fatalf("expected public host to pass: %v", err)
	}
	rebind, _ := url.Parse("https://sneaky.example.com/cover.jpg")
	if err := validateProxyURL(context.Background(), rebind); !errors.Is(err, errBlockedHost) {
		t.Fatalf("expected private resolution to be blocked, got %v", err)
	}
}

func TestNormalizeRoute(t *testing.T) {
	cases := map[string]string{
		"/health":                   "/health",
		"/catalog/drama":            "/catalog/{type}",
		"/catalog/anime/stream":     "/catalog/{type}/stream",
		"/catalog/anime/whatever":   "/other",
		"/catalog/providers/health": "/catalog/providers/health",
		"/catalog/suggest":          "/catalog/suggest",
		"/api/sapimu/a/b/c":         "/api/{provider}",
		"/library/favorites/toggle": "/library/favorites",
		"/nope":                     "/other",
	}
	for path, want := range cases {
		if got := normalizeRoute(path); got != want {
			t.Fatalf("normalizeRoute(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRequestLogRouteAttributes(t *testing.T) {
	if got := routeContentType("/catalog/anime/stream", normalizeRoute("/catalog/anime/stream")); got != "anime" {
		t.Fatalf("expected anime, got %q", got)
	}
	if got := routeContentType("/catalog/suggest", normalizeRoute("/catalog/suggest")); got != "" {
		t.Fatalf("suggest has no content type, got %q", got)
	}
	levels := map[string]slog.Level{
		"/health":         slog.LevelDebug,
		"/catalog/image":  slog.LevelDebug,
		"/catalog/{type}": slog.LevelInfo,
	}
	for route, want := range levels {
		if got := pickRequestLogLevel(route, http.StatusOK); got != want {
			t.Fatalf("pickRequestLogLevel(%q) = %v, want %v", route, got, want)
		}
	}
	if got := pickRequestLogLevel("/catalog/image", http.StatusBadGateway); got != slog.LevelError {
		t.Fatalf("5xx must log as error, got %v", got)
	}
}

func containsAll(value string, required []string) bool {
	for _, part := range required {
		if !strings.Contains(value, part) {
			return false
		}
	}
	return true
}
