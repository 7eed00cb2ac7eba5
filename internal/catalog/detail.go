package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"rfxstream/catalogservice/internal/domain"
	"rfxstream/catalogservice/internal/normalize"
)

const maxRelatedItems = 12

var chapterTable = normalize.AliasTable{
	ListKeys: []string{"data", "chapters", "chapter", "result", "list", "items"},
	ID:       []string{"chapter_id", "chapterId", "id", "slug"},
	Title:    []string{"chapter_title", "title", "name"},
	Subtitle: []string{"chapter_number", "number", "chapter"},
}

// Detail walks the type's detail endpoints in order and returns the first
// usable answer together with related items and, for komik, the chapter list.
func (s *Service) Detail(ctx context.Context, contentType domain.ContentType, id string) (domain.DetailResponse, error) {
	ct, entry, err := s.resolveType(contentType)
	if err != nil {
		return domain.DetailResponse{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.DetailResponse{}, ErrInvalidQuery
	}

	table := normalize.TableFor(ct)
	var response domain.DetailResponse
	found := false
	for _, endpoint := range Expand(entry.Detail, idVars(id)) {
		payload, err := s.fetchEndpoint(ctx, endpoint, fetchLookup)
		if err != nil {
			slog.Warn("catalog detail endpoint failed",
				slog.String("type", string(ct)),
				slog.String("endpoint", endpoint.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		record, ok := unwrapDetail(payload)
		if !ok {
			continue
		}
		fields := normalize.Resolve(record, table)
		if fields.Title.IsAbsent() && fields.Cover.IsAbsent() {
			continue
		}
		item := fields.Item()
		if item.ID == "" {
			item.ID = id
		}
		item.Type = ct
		item.Source = endpoint.Source
		response = domain.DetailResponse{Item: item, Source: endpoint.Source}
		found = true
		break
	}
	if !found {
		return domain.DetailResponse{}, ErrNotFound
	}

	if len(entry.Chapters) > 0 {
		response.Chapters = s.chapters(ctx, entry.Chapters, id)
	}
	if entry.RelatedTab != "" {
		response.Related = s.related(ctx, ct, entry.RelatedTab, response.Item.ID)
	}
	return response, nil
}

// unwrapDetail descends through data/result envelopes down to the record.
func unwrapDetail(payload any) (map[string]any, bool) {
	current := payload
	for depth := 0; depth < 4; depth++ {
		switch value := current.(type) {
		case []any:
			if len(value) == 0 {
				return nil, false
			}
			current = value[0]
			continue
		case map[string]any:
			if next, ok := value["data"]; ok && isContainer(next) {
				current = next
				continue
			}
			if next, ok := value["result"]; ok && isContainer(next) {
				current = next
				continue
			}
			return value, true
		default:
			return nil, false
		}
	}
	record, ok := current.(map[string]any)
	return record, ok
}

func isContainer(value any) bool {
	switch value.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

func (s *Service) chapters(ctx context.Context, templates []EndpointTemplate, id string) []domain.Chapter {
	for _, endpoint := range Expand(templates, idVars(id)) {
		payload, err := s.fetchEndpoint(ctx, endpoint, fetchLookup)
		if err != nil {
			slog.Warn("catalog chapter list failed",
				slog.String("endpoint", endpoint.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		chapters := make([]domain.Chapter, 0)
		for _, record := range normalize.Extract(payload, chapterTable) {
			chapterID, ok := normalize.FirstString(record, chapterTable.ID).Get()
			if !ok {
				continue
			}
			chapters = append(chapters, domain.Chapter{
				ID:     chapterID,
				Title:  normalize.FirstString(record, chapterTable.Title).OrEmpty(),
				Number: normalize.FirstString(record, chapterTable.Subtitle).OrEmpty(),
			})
		}
		return lo.UniqBy(chapters, func(chapter domain.Chapter) string { return chapter.ID })
	}
	return nil
}

func (s *Service) related(ctx context.Context, ct domain.ContentType, tab, excludeID string) []domain.CanonicalItem {
	list, err := s.List(ctx, domain.ListRequest{Type: ct, Tab: tab})
	if err != nil {
		slog.Warn("catalog related list failed", slog.String("type", string(ct)), slog.String("error", err.Error()))
		return nil
	}
	related := lo.Filter(list.Items, func(item domain.CanonicalItem, _ int) bool {
		return item.ID != excludeID
	})
	return lo.Subset(related, 0, maxRelatedItems)
}
