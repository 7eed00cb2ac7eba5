package catalog

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rfxstream/catalogservice/internal/domain"
)

// Search runs each content type's search templates as its own batch.
func (s *Service) Search(ctx context.Context, query string) (domain.SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.SearchResponse{}, ErrInvalidQuery
	}

	startedAt := time.Now()
	types := make([]domain.ContentType, 0, len(s.catalog.Types))
	for _, ct := range domain.ContentTypes() {
		if entry, ok := s.catalog.Types[ct]; ok && len(entry.Search) > 0 {
			types = append(types, ct)
		}
	}

	sections := make([]domain.SearchSection, len(types))
	var group errgroup.Group
	for i, ct := range types {
		group.Go(func() error {
			endpoints := Expand(s.catalog.Types[ct].Search, queryVars(query))
			result := s.runBatch(ctx, ct, endpoints, nil)
			items := result.items
			if items == nil {
				items = []domain.CanonicalItem{}
			}
			sections[i] = domain.SearchSection{
				Type:               ct,
				Items:              items,
				SucceededEndpoints: result.succeeded,
				Status:             result.status(),
			}
			return nil
		})
	}
	_ = group.Wait()

	total := 0
	for _, section := range sections {
		total += len(section.Items)
	}
	return domain.SearchResponse{
		Query:     query,
		Sections:  sections,
		Total:     total,
		ElapsedMS: time.Since(startedAt).Milliseconds(),
	}, nil
}
