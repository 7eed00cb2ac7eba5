package catalog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rfxstream/catalogservice/internal/domain"
)

type preparedList struct {
	contentType domain.ContentType
	tab         string
	view        string
	endpoints   []Endpoint
}

func (p preparedList) cacheKey() string {
	return buildListCacheKey(p.contentType, p.tab)
}

func (s *Service) prepareList(request domain.ListRequest) (preparedList, error) {
	ct, _, err := s.resolveType(request.Type)
	if err != nil {
		return preparedList{}, err
	}
	tab, endpoints, err := s.catalog.Tab(ct, request.Tab)
	if err != nil {
		return preparedList{}, err
	}
	return preparedList{
		contentType: ct,
		tab:         tab,
		view:        strings.TrimSpace(request.View),
		endpoints:   endpoints,
	}, nil
}

// List aggregates every endpoint of a content-type tab into one deduplicated list.
func (s *Service) List(ctx context.Context, request domain.ListRequest) (domain.ListResponse, error) {
	prepared, err := s.prepareList(request)
	if err != nil {
		return domain.ListResponse{}, err
	}

	startedAt := time.Now()
	cacheKey := prepared.cacheKey()
	if !s.cacheDisabled && !request.NoCache {
		if cached, ok, needsRefresh := s.cacheLookup(cacheKey, startedAt); ok {
			s.markPopular(cacheKey, prepared, startedAt)
			if needsRefresh {
				s.refreshCacheAsync(cacheKey, prepared)
			}
			cached.ElapsedMS = time.Since(startedAt).Milliseconds()
			return cached, nil
		}
	}

	response, err := s.executeList(ctx, prepared)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if !s.cacheDisabled {
		s.storeIfUsable(cacheKey, response)
		s.markPopular(cacheKey, prepared, time.Now())
	}
	return response, nil
}

// executeList runs one batch. With a view key the batch takes part in the
// view's generation sequence and is discarded when superseded.
func (s *Service) executeList(ctx context.Context, prepared preparedList) (domain.ListResponse, error) {
	runCtx := ctx
	var generation uint64
	if prepared.view != "" {
		var release func()
		generation, runCtx, release = s.batches.begin(ctx, prepared.view)
		defer release()
	}

	result := s.runBatch(runCtx, prepared.contentType, prepared.endpoints, nil)

	if prepared.view != "" && !s.batches.isCurrent(prepared.view, generation) {
		slog.Info("catalog batch superseded",
			slog.String("view", prepared.view),
			slog.Uint64("generation", generation),
		)
		return domain.ListResponse{}, ErrBatchSuperseded
	}

	response := newListResponse(prepared.contentType, prepared.tab, result)
	response.Generation = generation
	return response, nil
}

func (s *Service) listNoCache(ctx context.Context, prepared preparedList) (domain.ListResponse, error) {
	prepared.view = ""
	response, err := s.executeList(ctx, prepared)
	if err != nil {
		return domain.ListResponse{}, err
	}
	s.storeIfUsable(prepared.cacheKey(), response)
	return response, nil
}

// storeIfUsable caches batches that reached at least one endpoint.
func (s *Service) storeIfUsable(cacheKey string, response domain.ListResponse) bool {
	if response.Status == domain.BatchFailed {
		s.cacheClearRefreshing(cacheKey)
		return false
	}
	s.cacheStore(cacheKey, response, time.Now())
	return true
}

func (s *Service) refreshCacheAsync(cacheKey string, prepared preparedList) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout+2*time.Second)
		defer cancel()
		if _, err := s.listNoCache(ctx, prepared); err != nil {
			s.cacheClearRefreshing(cacheKey)
		}
	}()
}

// ListStream emits a loading snapshot after each endpoint settles and a final
// snapshot once the batch is complete. A superseded stream closes without a
// final snapshot.
func (s *Service) ListStream(ctx context.Context, request domain.ListRequest) (<-chan domain.ListResponse, error) {
	prepared, err := s.prepareList(request)
	if err != nil {
		return nil, err
	}

	ch := make(chan domain.ListResponse, 8)
	if !s.cacheDisabled && !request.NoCache {
		startedAt := time.Now()
		cacheKey := prepared.cacheKey()
		if cached, ok, needsRefresh := s.cacheLookup(cacheKey, startedAt); ok {
			s.markPopular(cacheKey, prepared, startedAt)
			if needsRefresh {
				s.refreshCacheAsync(cacheKey, prepared)
			}
			cached.ElapsedMS = time.Since(startedAt).Milliseconds()
			cached.Final = true
			cached.Phase = "cache"
			ch <- cached
			close(ch)
			return ch, nil
		}
	}

	go s.executeListStream(ctx, prepared, ch)
	return ch, nil
}

func (s *Service) executeListStream(ctx context.Context, prepared preparedList, ch chan<- domain.ListResponse) {
	defer close(ch)

	runCtx := ctx
	var generation uint64
	if prepared.view != "" {
		var release func()
		generation, runCtx, release = s.batches.begin(ctx, prepared.view)
		defer release()
	}

	startedAt := time.Now()
	slog.Info("catalog stream started",
		slog.String("type", string(prepared.contentType)),
		slog.String("tab", prepared.tab),
		slog.Int("endpoints", len(prepared.endpoints)),
	)

	result := s.runBatch(runCtx, prepared.contentType, prepared.endpoints, func(progress batchProgress) {
		snapshot := domain.ListResponse{
			Type:               prepared.contentType,
			Tab:                prepared.tab,
			Items:              progress.items,
			SucceededEndpoints: progress.succeeded,
			TotalEndpoints:     progress.total,
			Endpoints:          []domain.EndpointStatus{progress.endpoint},
			Generation:         generation,
			ElapsedMS:          time.Since(startedAt).Milliseconds(),
			Phase:              "fetch",
		}
		snapshot.SetStatus(domain.BatchLoading)
		select {
		case ch <- snapshot:
		case <-runCtx.Done():
		}
	})

	if prepared.view != "" && !s.batches.isCurrent(prepared.view, generation) {
		return
	}

	final := newListResponse(prepared.contentType, prepared.tab, result)
	final.Generation = generation
	final.Phase = "done"
	if !s.cacheDisabled {
		s.storeIfUsable(prepared.cacheKey(), final)
	}
	select {
	case ch <- final:
	case <-ctx.Done():
	}
}
