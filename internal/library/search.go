package library

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
)

type SearchResult struct {
	Query     string         `json:"query"`
	Favorites []Favorite     `json:"favorites"`
	History   []HistoryEntry `json:"history"`
}

// Search fuzzy-matches query against favorite and history titles. History is
// collapsed to one entry per id, keeping the most recent.
func (s *Store) Search(query string) SearchResult {
	query = strings.TrimSpace(query)
	result := SearchResult{Query: query, Favorites: []Favorite{}, History: []HistoryEntry{}}
	if query == "" {
		return result
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result.Favorites = lo.Filter(s.state.Favorites, func(fav Favorite, _ int) bool {
		return fuzzy.MatchFold(query, fav.Title)
	})
	matched := lo.Filter(s.state.History, func(entry HistoryEntry, _ int) bool {
		return fuzzy.MatchFold(query, entry.Title) || fuzzy.MatchFold(query, entry.EpisodeTitle)
	})
	result.History = lo.UniqBy(matched, func(entry HistoryEntry) string { return entry.ID })
	return result
}
