package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"

	"rfxstream/catalogservice/internal/domain"
)

// Random runs a fresh batch and picks one item uniformly. It never reads or
// writes the list cache.
func (s *Service) Random(ctx context.Context, request domain.RandomRequest) (domain.RandomResponse, error) {
	ct, entry, err := s.resolveType(request.Type)
	if err != nil {
		return domain.RandomResponse{}, err
	}
	tab := strings.TrimSpace(request.Tab)
	if tab == "" {
		tab = entry.RandomTab
	}
	_, endpoints, err := s.catalog.Tab(ct, tab)
	if err != nil {
		return domain.RandomResponse{}, err
	}

	startedAt := time.Now()
	result := s.runBatch(ctx, ct, endpoints, nil)
	pool := lo.Filter(result.items, func(item domain.CanonicalItem, _ int) bool {
		return item.ID != "" && item.Cover != ""
	})
	if len(pool) == 0 {
		return domain.RandomResponse{}, ErrNoContent
	}

	return domain.RandomResponse{
		Item:               pool[s.pick(len(pool))],
		PoolSize:           len(pool),
		SucceededEndpoints: result.succeeded,
		ElapsedMS:          time.Since(startedAt).Milliseconds(),
	}, nil
}
