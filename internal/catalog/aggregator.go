package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"rfxstream/catalogservice/internal/domain"
	"rfxstream/catalogservice/internal/metrics"
	"rfxstream/catalogservice/internal/normalize"
)

// batchResult is the settled outcome of one aggregation batch.
type batchResult struct {
	items     []domain.CanonicalItem
	statuses  []domain.EndpointStatus
	succeeded int
	elapsed   time.Duration
}

func (r batchResult) status() domain.BatchStatus {
	return domain.ResolveBatchStatus(r.succeeded, len(r.items))
}

// batchProgress is handed to the settle callback after each endpoint finishes.
type batchProgress struct {
	items     []domain.CanonicalItem
	settled   int
	succeeded int
	total     int
	endpoint  domain.EndpointStatus
}

// runBatch fetches every endpoint concurrently and normalizes all successful
// payloads through one batch-owned Deduplicator. Endpoint failures never fail
// the batch; they are logged and reported in the statuses.
func (s *Service) runBatch(ctx context.Context, ct domain.ContentType, endpoints []Endpoint, onSettle func(batchProgress)) batchResult {
	startedAt := time.Now()
	table := normalize.TableFor(ct)
	dedup := normalize.NewDeduplicator()
	statuses := make([]domain.EndpointStatus, len(endpoints))
	items := make([]domain.CanonicalItem, 0, 64)
	settled := 0
	succeeded := 0

	var mu sync.Mutex
	sem := semaphore.NewWeighted(s.maxConcurrent)
	var wg sync.WaitGroup

	for i, endpoint := range endpoints {
		wg.Add(1)
		go func(index int, current Endpoint) {
			defer wg.Done()

			status := domain.EndpointStatus{Name: current.Name(), Source: current.Source}
			var payload any
			if err := sem.Acquire(ctx, 1); err != nil {
				status.Error = "context cancelled"
			} else {
				fetchStartedAt := time.Now()
				var fetchErr error
				payload, fetchErr = s.fetchEndpoint(ctx, current, fetchListing)
				sem.Release(1)
				status.ElapsedMS = time.Since(fetchStartedAt).Milliseconds()
				if fetchErr != nil {
					status.Error = fetchErr.Error()
					slog.Warn("catalog endpoint failed",
						slog.String("type", string(ct)),
						slog.String("endpoint", current.Name()),
						slog.String("source", current.Source),
						slog.Int64("elapsedMs", status.ElapsedMS),
						slog.String("error", fetchErr.Error()),
					)
				} else {
					status.OK = true
				}
			}

			mu.Lock()
			settled++
			if status.OK {
				succeeded++
				accepted := normalize.Normalize(payload, table, dedup)
				for _, item := range accepted {
					item.Type = ct
					item.Source = current.Source
					items = append(items, item)
				}
				status.Count = len(accepted)
			}
			statuses[index] = status
			var progress batchProgress
			if onSettle != nil {
				progress = batchProgress{
					items:     append(make([]domain.CanonicalItem, 0, len(items)), items...),
					settled:   settled,
					succeeded: succeeded,
					total:     len(endpoints),
					endpoint:  status,
				}
			}
			mu.Unlock()

			if onSettle != nil {
				onSettle(progress)
			}
		}(i, endpoint)
	}
	wg.Wait()

	result := batchResult{
		items:     items,
		statuses:  statuses,
		succeeded: succeeded,
		elapsed:   time.Since(startedAt),
	}
	status := result.status()
	metrics.BatchesTotal.WithLabelValues(string(ct), string(status)).Inc()
	metrics.BatchItems.WithLabelValues(string(ct)).Observe(float64(len(items)))
	slog.Debug("catalog batch settled",
		slog.String("type", string(ct)),
		slog.Int("endpoints", len(endpoints)),
		slog.Int("succeeded", succeeded),
		slog.Int("items", len(items)),
		slog.String("status", string(status)),
		slog.Int64("elapsedMs", result.elapsed.Milliseconds()),
	)
	return result
}

// fetchEndpoint performs one upstream call under the per-request timeout and
// the retry policy. The outcome is recorded for diagnostics only: an earlier
// failure never short-circuits a later fetch.
func (s *Service) fetchEndpoint(ctx context.Context, endpoint Endpoint, purpose fetchPurpose) (any, error) {
	provider, ok := s.providers[endpoint.Source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, endpoint.Source)
	}

	startedAt := time.Now()
	var payload any
	err := s.retry.do(ctx, func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		var fetchErr error
		payload, fetchErr = provider.Fetch(fetchCtx, endpoint.Path, endpoint.Query)
		return fetchErr
	})
	s.recordEndpoint(endpoint, purpose, err, time.Since(startedAt), time.Now())
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func newListResponse(ct domain.ContentType, tab string, result batchResult) domain.ListResponse {
	response := domain.ListResponse{
		Type:               ct,
		Tab:                tab,
		Items:              result.items,
		SucceededEndpoints: result.succeeded,
		TotalEndpoints:     len(result.statuses),
		Endpoints:          result.statuses,
		ElapsedMS:          result.elapsed.Milliseconds(),
		Final:              true,
	}
	if response.Items == nil {
		response.Items = []domain.CanonicalItem{}
	}
	response.SetStatus(result.status())
	return response
}
