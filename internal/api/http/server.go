package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"rfxstream/catalogservice/internal/catalog"
	"rfxstream/catalogservice/internal/domain"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type CatalogService interface {
	List(ctx context.Context, request domain.ListRequest) (domain.ListResponse, error)
	ListStream(ctx context.Context, request domain.ListRequest) (<-chan domain.ListResponse, error)
	Random(ctx context.Context, request domain.RandomRequest) (domain.RandomResponse, error)
	Suggest(ctx context.Context, query string) (domain.SuggestResponse, error)
	Search(ctx context.Context, query string) (domain.SearchResponse, error)
	Home(ctx context.Context) (domain.HomeResponse, error)
	Detail(ctx context.Context, contentType domain.ContentType, id string) (domain.DetailResponse, error)
	Provider(name string) (catalog.Provider, error)
	Providers() []domain.ProviderInfo
	ProviderDiagnostics() []domain.ProviderDiagnostics
}

type Server struct {
	catalog      CatalogService
	library      LibraryStore
	logger       *slog.Logger
	rateRPS      float64
	rateBurst    int
	proxyTimeout time.Duration
}

const (
	maxQueryLength      = 200
	defaultRateRPS      = 50
	defaultRateBurst    = 100
	defaultProxyTimeout = 15 * time.Second
)

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithLibrary(library LibraryStore) ServerOption {
	return func(s *Server) {
		s.library = library
	}
}

// WithRateLimit sets the global token bucket. Non-positive values keep the defaults.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.rateRPS = rps
		}
		if burst > 0 {
			s.rateBurst = burst
		}
	}
}

func WithProxyTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		if timeout > 0 {
			s.proxyTimeout = timeout
		}
	}
}

func NewServer(catalogService CatalogService, options ...ServerOption) *Server {
	server := &Server{
		catalog:      catalogService,
		logger:       slog.Default(),
		rateRPS:      defaultRateRPS,
		rateBurst:    defaultRateBurst,
		proxyTimeout: defaultProxyTimeout,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /catalog/home", s.handleHome)
	mux.HandleFunc("GET /catalog/search", s.handleSearch)
	mux.HandleFunc("GET /catalog/suggest", s.handleSuggest)
	mux.HandleFunc("GET /catalog/image", s.handleImageProxy)
	mux.HandleFunc("GET /catalog/providers", s.handleProviders)
	mux.HandleFunc("GET /catalog/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("GET /catalog/{type}", s.handleList)
	mux.HandleFunc("GET /catalog/{type}/stream", s.handleListStream)
	mux.HandleFunc("GET /catalog/{type}/random", s.handleRandom)
	mux.HandleFunc("GET /catalog/{type}/detail", s.handleDetail)

	mux.HandleFunc("GET /api/{provider}/{path...}", s.handlePassThrough)
	mux.HandleFunc("POST /api/{provider}/{path...}", s.handlePassThrough)

	s.registerLibraryRoutes(mux)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "catalog",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) contentType(w http.ResponseWriter, r *http.Request) (domain.ContentType, bool) {
	raw := r.PathValue("type")
	ct := domain.NormalizeContentType(raw)
	if ct == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("unknown content type %q", truncate(raw, 40)))
		return "", false
	}
	return ct, true
}

func listRequestFrom(r *http.Request, ct domain.ContentType) domain.ListRequest {
	q := r.URL.Query()
	return domain.ListRequest{
		Type:    ct,
		Tab:     strings.ToLower(strings.TrimSpace(q.Get("tab"))),
		View:    strings.TrimSpace(q.Get("view")),
		NoCache: parseOptionalBool(q.Get("nocache")) || parseOptionalBool(q.Get("noCache")),
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ct, ok := s.contentType(w, r)
	if !ok {
		return
	}
	request := listRequestFrom(r, ct)
	response, err := s.catalog.List(r.Context(), request)
	if err != nil {
		s.writeServiceError(w, r, "catalog list failed", err)
		return
	}

	s.logger.Info("catalog list served",
		slog.String("type", string(ct)),
		slog.String("tab", response.Tab),
		slog.Int("items", len(response.Items)),
		slog.Int("succeeded", response.SucceededEndpoints),
		slog.Int("total", response.TotalEndpoints),
		slog.String("status", string(response.Status)),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	if response.Failed {
		s.logger.Warn("catalog list failed on every endpoint",
			slog.String("type", string(ct)),
			slog.String("tab", response.Tab),
		)
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleListStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming is not supported")
		return
	}
	ct, ok := s.contentType(w, r)
	if !ok {
		return
	}
	request := listRequestFrom(r, ct)
	ch, err := s.catalog.ListStream(r.Context(), request)
	if err != nil {
		s.writeServiceError(w, r, "catalog stream failed", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := writeSSEEvent(w, flusher, "bootstrap", map[string]any{
		"phase":  "bootstrap",
		"final":  false,
		"type":   ct,
		"tab":    request.Tab,
		"status": "started",
	}); err != nil {
		return
	}

	final := false
	for response := range ch {
		if r.Context().Err() != nil {
			return
		}
		final = response.Final
		if err := writeSSEEvent(w, flusher, "update", response); err != nil {
			return
		}
	}

	if !final {
		// A newer batch for the same view took over.
		_ = writeSSEEvent(w, flusher, "done", map[string]any{"final": false, "superseded": true})
		return
	}
	_ = writeSSEEvent(w, flusher, "done", map[string]any{"final": true})
}

func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	ct, ok := s.contentType(w, r)
	if !ok {
		return
	}
	response, err := s.catalog.Random(r.Context(), domain.RandomRequest{
		Type: ct,
		Tab:  strings.ToLower(strings.TrimSpace(r.URL.Query().Get("tab"))),
	})
	if err != nil {
		s.writeServiceError(w, r, "random pick failed", err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	ct, ok := s.contentType(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}
	response, err := s.catalog.Detail(r.Context(), ct, id)
	if err != nil {
		s.writeServiceError(w, r, "detail lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	response, err := s.catalog.Home(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "home failed", err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("query too long (max %d characters)", maxQueryLength))
		return
	}
	response, err := s.catalog.Search(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, r, "search failed", err)
		return
	}
	s.logger.Info("search completed",
		slog.String("query", truncate(query, 80)),
		slog.Int("total", response.Total),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) > maxQueryLength {
		query = query[:maxQueryLength]
	}
	response, err := s.catalog.Suggest(r.Context(), query)
	if err != nil {
		s.logger.Warn("suggest failed", slog.String("query", truncate(query, 60)), slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, domain.SuggestResponse{Query: query, Suggestions: []domain.Suggestion{}})
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.catalog.Providers(),
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.catalog.ProviderDiagnostics(),
	})
}

// writeServiceError maps service sentinels onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, catalog.ErrUnknownContentType),
		errors.Is(err, catalog.ErrUnknownTab),
		errors.Is(err, catalog.ErrInvalidQuery):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, catalog.ErrUnknownProvider):
		status, code = http.StatusNotFound, "unknown_provider"
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrNoContent):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, catalog.ErrBatchSuperseded):
		status, code = http.StatusConflict, "superseded"
	case errors.Is(err, catalog.ErrNoProviders):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.Canceled):
		// client went away
		return
	}

	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= 500 {
		s.logger.Error(message, attrs...)
		writeError(w, status, code, message)
		return
	}
	s.logger.Warn(message, attrs...)
	writeError(w, status, code, err.Error())
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
