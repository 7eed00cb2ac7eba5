package apihttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"rfxstream/catalogservice/internal/catalog"
	"rfxstream/catalogservice/internal/domain"
	"rfxstream/catalogservice/internal/library"
	"rfxstream/catalogservice/internal/providers/sansekai"
	"rfxstream/catalogservice/internal/providers/sapimu"
)

const e2eCatalogYAML = `
catalog:
  drama:
    default_tab: all
    related_tab: all
    tabs:
      all:
        - {source: sansekai, path: /dramabox/trending}
        - {source: sansekai, path: /dramabox/latest}
        - {source: sansekai, path: /dramabox/broken}
        - {source: sapimu, path: "/dramabox/api/foryou/{page}", query: {lang: in}, pages: {from: 1, to: 2}}
`

func writeUpstream(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

// newE2EServer wires the real catalog service to fake sansekai and sapimu upstreams.
func newE2EServer(t *testing.T) *Server {
	t.Helper()

	sansekaiMux := http.NewServeMux()
	sansekaiMux.HandleFunc("/dramabox/trending", func(w http.ResponseWriter, _ *http.Request) {
		writeUpstream(w, `[{"bookId":"b1","bookName":"CEO Returns","coverWap":"http://img/b1"},{"bookId":"b2","bookName":"No Cover"}]`)
	})
	sansekaiMux.HandleFunc("/dramabox/latest", func(w http.ResponseWriter, _ *http.Request) {
		writeUpstream(w, `{"data":{"hot":[{"bookId":"b1","bookName":"CEO Returns","cover":"http://img/b1"}],"new":[{"bookId":"b3","bookName":"Late Love","cover":"http://img/b3"}]}}`)
	})
	sansekaiMux.HandleFunc("/dramabox/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	sansekaiServer := httptest.NewServer(sansekaiMux)
	t.Cleanup(sansekaiServer.Close)

	sapimuServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/dramabox/api/foryou/1":
			writeUpstream(w, `[{"bookId":"b4","bookName":"For You","coverWap":"http://img/b4"}]`)
		case "/dramabox/api/foryou/2":
			writeUpstream(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(sapimuServer.Close)

	sk, err := sansekai.NewProvider(sansekai.Config{BaseURL: sansekaiServer.URL})
	if err != nil {
		t.Fatalf("sansekai provider: %v", err)
	}
	sp, err := sapimu.NewProvider(sapimu.Config{BaseURL: sapimuServer.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("sapimu provider: %v", err)
	}
	cat, err := catalog.ParseCatalog([]byte(e2eCatalogYAML))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	service, err := catalog.NewService([]catalog.Provider{sk, sp}, 2*time.Second,
		catalog.WithCatalog(cat),
		catalog.WithCacheDisabled(true),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	store, err := library.Open(library.NewFilePersister(afero.NewMemMapFs(), "/library.json"))
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	return NewServer(service, WithLibrary(store))
}

func TestE2EListMergesProviders(t *testing.T) {
	server := newE2EServer(t)

	rec := serve(server, http.MethodGet, "/catalog/drama", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp domain.ListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		ids = append(ids, item.ID)
		if item.Title == "" || item.Cover == "" {
			t.Errorf("item %q: title and cover required", item.ID)
		}
	}
	sort.Strings(ids)
	if strings.Join(ids, ",") != "b1,b3,b4" {
		t.Fatalf("ids = %v, want [b1 b3 b4]", ids)
	}
	if resp.TotalEndpoints != 5 || resp.SucceededEndpoints != 4 {
		t.Fatalf("endpoints = %d/%d, want 4/5", resp.SucceededEndpoints, resp.TotalEndpoints)
	}
	if resp.Status != domain.BatchOK || resp.IsLoading || resp.Failed {
		t.Fatalf("unexpected status %q loading=%v failed=%v", resp.Status, resp.IsLoading, resp.Failed)
	}
}

func TestE2EPassThroughInjectsAuth(t *testing.T) {
	server := newE2EServer(t)

	rec := serve(server, http.MethodGet, "/api/sapimu/dramabox/api/foryou/1?lang=in", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"bookId":"b4"`) {
		t.Fatalf("upstream body not relayed: %s", rec.Body.String())
	}

	rec = serve(server, http.MethodGet, "/api/sansekai/dramabox/broken", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "API error: 502") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestE2ELibraryFlow(t *testing.T) {
	server := newE2EServer(t)

	steps := []struct {
		method string
		target string
		body   string
		status int
	}{
		{http.MethodPost, "/library/favorites", `{"id":"b1","title":"CEO Returns","poster":"http://img/b1","type":"drama"}`, http.StatusOK},
		{http.MethodPost, "/library/favorites", `{"id":"","title":"broken"}`, http.StatusBadRequest},
		{http.MethodPost, "/library/history", `{"id":"b3","episodeId":"e1","title":"Late Love","type":"drama"}`, http.StatusOK},
		{http.MethodPost, "/library/history/progress", `{"id":"b3","episodeId":"e1","progress":30,"duration":120}`, http.StatusNoContent},
		{http.MethodPost, "/library/favorites/toggle", `{"id":"b4","title":"For You"}`, http.StatusOK},
	}
	for _, step := range steps {
		if rec := serve(server, step.method, step.target, step.body); rec.Code != step.status {
			t.Fatalf("%s %s: status %d, want %d (%s)", step.method, step.target, rec.Code, step.status, rec.Body.String())
		}
	}

	rec := serve(server, http.MethodGet, "/library/favorites", "")
	var favorites struct {
		Items []library.Favorite `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &favorites); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(favorites.Items) != 2 || favorites.Items[0].ID != "b4" {
		t.Fatalf("unexpected favorites: %#v", favorites.Items)
	}

	rec = serve(server, http.MethodGet, "/library/continue", "")
	var continuing struct {
		Items []library.HistoryEntry `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &continuing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(continuing.Items) != 1 || continuing.Items[0].Progress != 30 {
		t.Fatalf("unexpected continue watching: %#v", continuing.Items)
	}

	rec = serve(server, http.MethodGet, "/library/search?q=ceo", "")
	var found library.SearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &found); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(found.Favorites) != 1 || len(found.History) != 0 {
		t.Fatalf("unexpected search result: %#v", found)
	}

	if rec := serve(server, http.MethodDelete, "/library/favorites?id=b1", ""); rec.Code != http.StatusOK {
		t.Fatalf("delete favorite: %d", rec.Code)
	}
	rec = serve(server, http.MethodGet, "/library/favorites?id=b1", "")
	if !strings.Contains(rec.Body.String(), `"favorite":false`) {
		t.Fatalf("expected b1 removed: %s", rec.Body.String())
	}
}
