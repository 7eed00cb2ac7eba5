package catalog

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"rfxstream/catalogservice/internal/domain"
	"rfxstream/catalogservice/internal/normalize"
)

const (
	maxSuggestions     = 10
	minSuggestQueryLen = 2
)

// Suggest queries every suggest source concurrently and merges their
// {id, title, type} hints in source order.
func (s *Service) Suggest(ctx context.Context, query string) (domain.SuggestResponse, error) {
	query = strings.TrimSpace(query)
	response := domain.SuggestResponse{Query: query, Suggestions: []domain.Suggestion{}}
	if utf8.RuneCountInString(query) < minSuggestQueryLen {
		return response, nil
	}

	perSource := make([][]domain.Suggestion, len(s.catalog.Suggest))
	var group errgroup.Group
	for i, source := range s.catalog.Suggest {
		group.Go(func() error {
			perSource[i] = s.suggestFrom(ctx, source, query)
			return nil
		})
	}
	_ = group.Wait()

	merged := lo.UniqBy(lo.Flatten(perSource), func(suggestion domain.Suggestion) string {
		return string(suggestion.Type) + "|" + suggestion.ID
	})
	response.Suggestions = append(response.Suggestions, lo.Subset(merged, 0, maxSuggestions)...)
	return response, nil
}

func (s *Service) suggestFrom(ctx context.Context, source SuggestTemplate, query string) []domain.Suggestion {
	endpoints := Expand([]EndpointTemplate{source.Endpoint}, queryVars(query))
	if len(endpoints) == 0 {
		return nil
	}
	payload, err := s.fetchEndpoint(ctx, endpoints[0], fetchListing)
	if err != nil {
		slog.Warn("catalog suggest source failed",
			slog.String("endpoint", endpoints[0].Name()),
			slog.String("error", err.Error()),
		)
		return nil
	}

	table := normalize.TableFor(source.Type)
	limit := source.Limit
	if limit <= 0 {
		limit = maxSuggestions
	}
	out := make([]domain.Suggestion, 0, limit)
	for _, record := range normalize.Extract(payload, table) {
		id, hasID := normalize.FirstString(record, table.ID).Get()
		title, hasTitle := normalize.FirstString(record, table.Title).Get()
		if !hasID || !hasTitle {
			continue
		}
		out = append(out, domain.Suggestion{ID: source.Prefix + id, Title: title, Type: source.Type})
		if len(out) == limit {
			break
		}
	}
	return out
}
