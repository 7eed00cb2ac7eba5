package apihttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"rfxstream/catalogservice/internal/catalog"
)

const maxForwardBody = 1 << 20

// handlePassThrough relays /api/{provider}/{path...} to the named upstream.
// Upstream answers are relayed verbatim on success; failures collapse to a flat error.
func (s *Server) handlePassThrough(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	path := strings.TrimSpace(r.PathValue("path"))
	if path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing path"})
		return
	}
	provider, err := s.catalog.Provider(name)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownProvider) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown provider"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch data"})
		return
	}

	var body []byte
	if r.Method == http.MethodPost && r.Body != nil {
		body, err = io.ReadAll(io.LimitReader(r.Body, maxForwardBody))
		_ = r.Body.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}
		if len(body) == 0 {
			body = []byte("{}")
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.proxyTimeout)
	defer cancel()

	response, err := provider.Forward(ctx, r.Method, path, r.URL.Query(), body)
	if err != nil {
		s.logger.Warn("pass-through request failed",
			slog.String("provider", provider.Name()),
			slog.String("path", truncate(path, 120)),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch data"})
		return
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		s.logger.Warn("pass-through upstream error",
			slog.String("provider", provider.Name()),
			slog.String("path", truncate(path, 120)),
			slog.Int("status", response.StatusCode),
		)
		writeJSON(w, response.StatusCode, map[string]string{"error": fmt.Sprintf("API error: %d", response.StatusCode)})
		return
	}

	contentType := response.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(response.StatusCode)
	_, _ = w.Write(response.Body)
}
