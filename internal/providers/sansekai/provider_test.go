package sansekai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestProviderFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/anime/search" || r.URL.Query().Get("query") != "naruto" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("sansekai requests must not carry credentials")
		}
		_, _ = w.Write([]byte(`[{"id":"n1","title":"Naruto"}]`))
	}))
	defer server.Close()

	provider, err := NewProvider(Config{BaseURL: server.URL + "/api"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	payload, err := provider.Fetch(context.Background(), "anime/search", url.Values{"query": {"naruto"}})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if items, ok := payload.([]any); !ok || len(items) != 1 {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if info := provider.Info(); info.Name != "sansekai" || !info.Enabled || info.Auth {
		t.Fatalf("unexpected info: %+v", info)
	}
}
