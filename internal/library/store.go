// Package library holds the user's favorites and watch history behind an
// explicit mutation API. Every mutation is persisted before it becomes visible.
package library

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"rfxstream/catalogservice/internal/domain"
)

const (
	maxHistoryEntries    = 100
	recentlyWatchedLimit = 10
	completedRatio       = 0.95
)

var (
	ErrInvalidEntry = errors.New("library entry requires an id")
	ErrUnknownType  = errors.New("library entry has an unknown content type")
)

type HistoryEntry struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Poster       string             `json:"poster"`
	Type         domain.ContentType `json:"type"`
	EpisodeID    string             `json:"episodeId,omitempty"`
	EpisodeTitle string             `json:"episodeTitle,omitempty"`
	Progress     float64            `json:"progress"`
	Duration     float64            `json:"duration"`
	Timestamp    int64              `json:"timestamp"`
}

func (e HistoryEntry) key() string {
	if e.EpisodeID == "" {
		return e.ID
	}
	return e.ID + "-" + e.EpisodeID
}

// InProgress reports a started but unfinished entry.
func (e HistoryEntry) InProgress() bool {
	if e.Duration <= 0 || e.Progress <= 0 {
		return false
	}
	return e.Progress/e.Duration < completedRatio
}

type Favorite struct {
	ID      string             `json:"id"`
	Title   string             `json:"title"`
	Poster  string             `json:"poster"`
	Type    domain.ContentType `json:"type"`
	AddedAt int64              `json:"addedAt"`
}

// State is the persisted document.
type State struct {
	History   []HistoryEntry `json:"watchHistory"`
	Favorites []Favorite     `json:"favorites"`
}

func (s State) clone() State {
	return State{
		History:   append([]HistoryEntry(nil), s.History...),
		Favorites: append([]Favorite(nil), s.Favorites...),
	}
}

type Store struct {
	mu        sync.RWMutex
	state     State
	persister Persister
	now       func() time.Time
}

type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open loads the persisted state and returns a ready store.
func Open(persister Persister, opts ...StoreOption) (*Store, error) {
	state, err := persister.Load()
	if err != nil {
		return nil, err
	}
	store := &Store{state: state, persister: persister, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// mutate applies fn to a copy of the state and commits it once persisted.
func (s *Store) mutate(fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	fn(&next)
	if err := s.persister.Save(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Store) timestamp() int64 {
	return s.now().UnixMilli()
}

func validate(id string, ct domain.ContentType) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidEntry
	}
	if ct != "" && domain.NormalizeContentType(string(ct)) != ct {
		return ErrUnknownType
	}
	return nil
}

func (s *Store) History() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]HistoryEntry{}, s.state.History...)
}

// AddToHistory replaces any entry for the same id and episode and puts the new one first.
func (s *Store) AddToHistory(entry HistoryEntry) error {
	if err := validate(entry.ID, entry.Type); err != nil {
		return err
	}
	entry.Timestamp = s.timestamp()
	return s.mutate(func(state *State) {
		kept := lo.Reject(state.History, func(existing HistoryEntry, _ int) bool {
			return existing.key() == entry.key()
		})
		state.History = lo.Subset(append([]HistoryEntry{entry}, kept...), 0, maxHistoryEntries)
	})
}

// UpdateProgress records playback progress on the matching entries without reordering.
func (s *Store) UpdateProgress(id, episodeID string, progress, duration float64) error {
	if err := validate(id, ""); err != nil {
		return err
	}
	now := s.timestamp()
	return s.mutate(func(state *State) {
		for i := range state.History {
			entry := &state.History[i]
			if entry.ID == id && entry.EpisodeID == episodeID {
				entry.Progress = progress
				entry.Duration = duration
				entry.Timestamp = now
			}
		}
	})
}

// RemoveFromHistory drops one episode entry, or every entry of id when episodeID is empty.
func (s *Store) RemoveFromHistory(id, episodeID string) error {
	return s.mutate(func(state *State) {
		state.History = lo.Reject(state.History, func(entry HistoryEntry, _ int) bool {
			if episodeID != "" {
				return entry.ID == id && entry.EpisodeID == episodeID
			}
			return entry.ID == id
		})
	})
}

func (s *Store) ClearHistory() error {
	return s.mutate(func(state *State) {
		state.History = nil
	})
}

// ContinueWatching lists entries started but below the completion ratio.
func (s *Store) ContinueWatching() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.state.History, func(entry HistoryEntry, _ int) bool {
		return entry.InProgress()
	})
}

func (s *Store) RecentlyWatched() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]HistoryEntry{}, lo.Subset(s.state.History, 0, recentlyWatchedLimit)...)
}

func (s *Store) Favorites() []Favorite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Favorite{}, s.state.Favorites...)
}

// AddFavorite prepends fav unless its id is already a favorite.
func (s *Store) AddFavorite(fav Favorite) error {
	if err := validate(fav.ID, fav.Type); err != nil {
		return err
	}
	if s.IsFavorite(fav.ID) {
		return nil
	}
	fav.AddedAt = s.timestamp()
	return s.mutate(func(state *State) {
		if lo.ContainsBy(state.Favorites, func(existing Favorite) bool { return existing.ID == fav.ID }) {
			return
		}
		state.Favorites = append([]Favorite{fav}, state.Favorites...)
	})
}

func (s *Store) RemoveFavorite(id string) error {
	return s.mutate(func(state *State) {
		state.Favorites = lo.Reject(state.Favorites, func(fav Favorite, _ int) bool {
			return fav.ID == id
		})
	})
}

func (s *Store) ClearFavorites() error {
	return s.mutate(func(state *State) {
		state.Favorites = nil
	})
}

func (s *Store) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.ContainsBy(s.state.Favorites, func(fav Favorite) bool { return fav.ID == id })
}

// ToggleFavorite adds or removes fav and reports whether it is a favorite afterwards.
func (s *Store) ToggleFavorite(fav Favorite) (bool, error) {
	if s.IsFavorite(fav.ID) {
		return false, s.RemoveFavorite(fav.ID)
	}
	if err := s.AddFavorite(fav); err != nil {
		return false, err
	}
	return true, nil
}
