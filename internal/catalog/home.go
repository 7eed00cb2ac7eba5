package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"rfxstream/catalogservice/internal/domain"
)

const (
	defaultHomeSectionLimit = 20
	heroSize                = 8
	heroDefaultYear         = "2024"
	heroDefaultQuality      = "HD"
)

// Home builds the landing page: one batch per section plus a hero carousel.
func (s *Service) Home(ctx context.Context) (domain.HomeResponse, error) {
	startedAt := time.Now()
	sections := make([]domain.HomeSection, len(s.catalog.Home))

	var group errgroup.Group
	for i, tpl := range s.catalog.Home {
		group.Go(func() error {
			limit := tpl.Limit
			if limit <= 0 {
				limit = defaultHomeSectionLimit
			}
			result := s.runBatch(ctx, tpl.Type, Expand(tpl.Endpoints, nil), nil)
			items := lo.Subset(result.items, 0, uint(limit))
			if items == nil {
				items = []domain.CanonicalItem{}
			}
			title := tpl.Title
			if title == "" {
				title = string(tpl.Type)
			}
			sections[i] = domain.HomeSection{
				Type:               tpl.Type,
				Title:              title,
				Items:              items,
				SucceededEndpoints: result.succeeded,
				Status:             result.status(),
			}
			return nil
		})
	}
	_ = group.Wait()

	failed := lo.EveryBy(sections, func(section domain.HomeSection) bool {
		return len(section.Items) == 0
	})
	return domain.HomeResponse{
		Hero:      buildHero(sections),
		Sections:  sections,
		Failed:    failed,
		ElapsedMS: time.Since(startedAt).Milliseconds(),
	}, nil
}

// buildHero takes the carousel from the drama section, falling back to anime.
func buildHero(sections []domain.HomeSection) []domain.CanonicalItem {
	for _, ct := range []domain.ContentType{domain.ContentDrama, domain.ContentAnime} {
		section, ok := lo.Find(sections, func(section domain.HomeSection) bool {
			return section.Type == ct && len(section.Items) > 0
		})
		if !ok {
			continue
		}
		return lo.Map(lo.Subset(section.Items, 0, heroSize), func(item domain.CanonicalItem, _ int) domain.CanonicalItem {
			hero := cloneItem(item)
			if hero.Year == "" {
				hero.Year = heroDefaultYear
			}
			if hero.Quality == "" {
				hero.Quality = heroDefaultQuality
			}
			if hero.Duration == "" && hero.Episodes != nil {
				hero.Duration = fmt.Sprintf("%d Episodes", *hero.Episodes)
			}
			return hero
		})
	}
	return []domain.CanonicalItem{}
}
