package catalog

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"rfxstream/catalogservice/internal/domain"
	"rfxstream/catalogservice/internal/metrics"
	"rfxstream/catalogservice/internal/providers/common"
)

// fetchPurpose tells the health ledger how to read a failed call.
type fetchPurpose int

const (
	fetchListing fetchPurpose = iota
	// fetchLookup walks a fallback chain where a 404 only means "try the next one".
	fetchLookup
)

type fetchOutcome string

const (
	outcomeOK      fetchOutcome = "ok"
	outcomeMiss    fetchOutcome = "miss"
	outcomeError   fetchOutcome = "error"
	outcomeTimeout fetchOutcome = "timeout"
)

// endpointHealth is the running record of one catalog route. It is read by
// diagnostics and metrics only; no fetch ever consults it.
type endpointHealth struct {
	source              string
	consecutiveFailures int
	lastStatus          int
	lastError           string
	lastLatency         time.Duration
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	requests            int64
	failures            int64
	misses              int64
	timeouts            int64
}

func (h *endpointHealth) failing() bool {
	return h.consecutiveFailures > 0
}

func classifyFetch(err error, purpose fetchPurpose) fetchOutcome {
	if err == nil {
		return outcomeOK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return outcomeTimeout
	}
	if purpose == fetchLookup && upstreamStatus(err) == http.StatusNotFound {
		return outcomeMiss
	}
	return outcomeError
}

func upstreamStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var statusErr *common.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// recordEndpoint books one settled fetch against its route. Caller
// cancellations and disabled providers never reached upstream and are skipped.
func (s *Service) recordEndpoint(endpoint Endpoint, purpose fetchPurpose, err error, latency time.Duration, now time.Time) {
	if errors.Is(err, context.Canceled) || errors.Is(err, common.ErrProviderDisabled) {
		return
	}
	outcome := classifyFetch(err, purpose)
	route := endpoint.Route
	if route == "" {
		route = endpoint.Name()
	}

	s.healthMu.Lock()
	state := s.health[route]
	if state == nil {
		state = &endpointHealth{source: endpoint.Source}
		s.health[route] = state
	}
	state.requests++
	state.lastLatency = latency
	state.lastStatus = upstreamStatus(err)
	switch outcome {
	case outcomeOK:
		state.consecutiveFailures = 0
		state.lastError = ""
		state.lastSuccessAt = now
	case outcomeMiss:
		state.misses++
	default:
		state.consecutiveFailures++
		state.failures++
		state.lastFailureAt = now
		state.lastError = err.Error()
		if outcome == outcomeTimeout {
			state.timeouts++
		}
	}
	available := s.sourceAvailableLocked(endpoint.Source)
	s.healthMu.Unlock()

	metrics.ProviderRequestsTotal.WithLabelValues(endpoint.Source, string(outcome)).Inc()
	metrics.ProviderRequestDuration.WithLabelValues(endpoint.Source).Observe(latency.Seconds())
	metrics.ProviderAvailable.WithLabelValues(endpoint.Source).Set(available)
}

// sourceAvailableLocked is 0 only when every route seen for source is failing.
func (s *Service) sourceAvailableLocked(source string) float64 {
	for _, state := range s.health {
		if state.source == source && !state.failing() {
			return 1
		}
	}
	return 0
}

// ProviderDiagnostics summarises each provider and lists its routes, failing
// routes first.
func (s *Service) ProviderDiagnostics() []domain.ProviderDiagnostics {
	infos := s.Providers()
	if len(infos) == 0 {
		return nil
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	items := make([]domain.ProviderDiagnostics, 0, len(infos))
	for _, info := range infos {
		item := domain.ProviderDiagnostics{
			Name:    info.Name,
			Label:   info.Label,
			Enabled: info.Enabled,
		}
		for route, state := range s.health {
			if state.source != info.Name {
				continue
			}
			item.Endpoints = append(item.Endpoints, endpointDiagnostics(route, state))
			item.TotalRequests += state.requests
			item.TotalFailures += state.failures
			item.TotalMisses += state.misses
			item.TimeoutCount += state.timeouts
			if state.failing() {
				item.FailingEndpoints++
			}
			if !state.lastSuccessAt.IsZero() && (item.LastSuccessAt == nil || state.lastSuccessAt.After(*item.LastSuccessAt)) {
				lastSuccessAt := state.lastSuccessAt
				item.LastSuccessAt = &lastSuccessAt
			}
			if !state.lastFailureAt.IsZero() && (item.LastFailureAt == nil || state.lastFailureAt.After(*item.LastFailureAt)) {
				lastFailureAt := state.lastFailureAt
				item.LastFailureAt = &lastFailureAt
				item.LastError = state.lastError
				item.LastFailedEndpoint = route
			}
		}
		sort.Slice(item.Endpoints, func(i, j int) bool {
			left, right := item.Endpoints[i], item.Endpoints[j]
			if (left.ConsecutiveFailures > 0) != (right.ConsecutiveFailures > 0) {
				return left.ConsecutiveFailures > 0
			}
			return left.Route < right.Route
		})
		items = append(items, item)
	}
	return items
}

func endpointDiagnostics(route string, state *endpointHealth) domain.EndpointDiagnostics {
	diag := domain.EndpointDiagnostics{
		Route:               route,
		ConsecutiveFailures: state.consecutiveFailures,
		LastStatus:          state.lastStatus,
		LastError:           state.lastError,
		LastLatencyMS:       state.lastLatency.Milliseconds(),
		Requests:            state.requests,
		Failures:            state.failures,
		Misses:              state.misses,
	}
	if !state.lastSuccessAt.IsZero() {
		lastSuccessAt := state.lastSuccessAt
		diag.LastSuccessAt = &lastSuccessAt
	}
	if !state.lastFailureAt.IsZero() {
		lastFailureAt := state.lastFailureAt
		diag.LastFailureAt = &lastFailureAt
	}
	return diag
}
