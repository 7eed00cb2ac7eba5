package apihttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"rfxstream/catalogservice/internal/library"
)

type LibraryStore interface {
	History() []library.HistoryEntry
	AddToHistory(entry library.HistoryEntry) error
	UpdateProgress(id, episodeID string, progress, duration float64) error
	RemoveFromHistory(id, episodeID string) error
	ClearHistory() error
	ContinueWatching() []library.HistoryEntry
	RecentlyWatched() []library.HistoryEntry
	Favorites() []library.Favorite
	AddFavorite(fav library.Favorite) error
	RemoveFavorite(id string) error
	ClearFavorites() error
	IsFavorite(id string) bool
	ToggleFavorite(fav library.Favorite) (bool, error)
	Search(query string) library.SearchResult
}

func (s *Server) registerLibraryRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /library/favorites", s.withLibrary(s.handleFavoritesList))
	mux.HandleFunc("POST /library/favorites", s.withLibrary(s.handleFavoritesAdd))
	mux.HandleFunc("DELETE /library/favorites", s.withLibrary(s.handleFavoritesRemove))
	mux.HandleFunc("POST /library/favorites/toggle", s.withLibrary(s.handleFavoritesToggle))
	mux.HandleFunc("GET /library/history", s.withLibrary(s.handleHistoryList))
	mux.HandleFunc("POST /library/history", s.withLibrary(s.handleHistoryAdd))
	mux.HandleFunc("DELETE /library/history", s.withLibrary(s.handleHistoryRemove))
	mux.HandleFunc("POST /library/history/progress", s.withLibrary(s.handleHistoryProgress))
	mux.HandleFunc("GET /library/continue", s.withLibrary(s.handleContinueWatching))
	mux.HandleFunc("GET /library/search", s.withLibrary(s.handleLibrarySearch))
}

func (s *Server) withLibrary(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.library == nil {
			writeError(w, http.StatusNotImplemented, "not_configured", "library is not configured")
			return
		}
		next(w, r)
	}
}

func (s *Server) writeLibraryError(w http.ResponseWriter, err error) {
	if errors.Is(err, library.ErrInvalidEntry) || errors.Is(err, library.ErrUnknownType) {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.logger.Error("library mutation failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal_error", "library update failed")
}

func (s *Server) handleFavoritesList(w http.ResponseWriter, r *http.Request) {
	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "favorite": s.library.IsFavorite(id)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.library.Favorites()})
}

func (s *Server) handleFavoritesAdd(w http.ResponseWriter, r *http.Request) {
	var fav library.Favorite
	if err := decodeJSONBody(r, &fav); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.library.AddFavorite(fav); err != nil {
		s.writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.library.Favorites()})
}

// handleFavoritesRemove drops one favorite by ?id=, or all of them without it.
func (s *Server) handleFavoritesRemove(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	var err error
	if id == "" {
		err = s.library.ClearFavorites()
	} else {
		err = s.library.RemoveFavorite(id)
	}
	if err != nil {
		s.writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.library.Favorites()})
}

func (s *Server) handleFavoritesToggle(w http.ResponseWriter, r *http.Request) {
	var fav library.Favorite
	if err := decodeJSONBody(r, &fav); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	favorite, err := s.library.ToggleFavorite(fav)
	if err != nil {
		s.writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": fav.ID, "favorite": favorite})
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if parseOptionalBool(r.URL.Query().Get("recent")) {
		writeJSON(w, http.StatusOK, map[string]any{"items": s.library.RecentlyWatched()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.library.History()})
}

func (s *Server) handleHistoryAdd(w http.ResponseWriter, r *http.Request) {
	var entry library.HistoryEntry
	if err := decodeJSONBody(r, &entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.library.AddToHistory(entry); err != nil {
		s.writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.library.History()})
}

// handleHistoryRemove drops ?id= (optionally one ?episodeId=), or clears history without an id.
func (s *Server) handleHistoryRemove(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := strings.TrimSpace(q.Get("id"))
	var err error
	if id == "" {
		err = s.library.ClearHistory()
	} else {
		err = s.library.RemoveFromHistory(id, strings.TrimSpace(q.Get("episodeId")))
	}
	if err != nil {
		s.writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.library.History()})
}

func (s *Server) handleHistoryProgress(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID        string  `json:"id"`
		EpisodeID string  `json:"episodeId"`
		Progress  float64 `json:"progress"`
		Duration  float64 `json:"duration"`
	}
	if err := decodeJSONBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if payload.Progress < 0 || payload.Duration < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "progress and duration must not be negative")
		return
	}
	if err := s.library.UpdateProgress(payload.ID, payload.EpisodeID, payload.Progress, payload.Duration); err != nil {
		s.writeLibraryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContinueWatching(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.library.ContinueWatching()})
}

func (s *Server) handleLibrarySearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.library.Search(r.URL.Query().Get("q")))
}
