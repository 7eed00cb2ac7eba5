package catalog

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// retryPolicy re-runs one endpoint fetch while its failure looks transient.
// Every attempt gets a fresh per-request timeout from the caller.
type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 1, base: 300 * time.Millisecond, max: 3 * time.Second}
}

func (p retryPolicy) do(ctx context.Context, fetch func() error) error {
	attempts := max(p.attempts, 1)
	for attempt := 1; ; attempt++ {
		err := fetch()
		if err == nil || attempt >= attempts || !retryable(err) {
			return err
		}

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// backoff is base doubled per previous attempt, scaled by a factor in
// [0.75, 1.25) and capped at max.
func (p retryPolicy) backoff(attempt int) time.Duration {
	d := p.base
	for i := 1; i < attempt && d < p.max; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.75 + rand.Float64()*0.5))
	if p.max > 0 && d > p.max {
		return p.max
	}
	return d
}

// retryable reports upstream 5xx and 429 answers, timeouts and broken
// connections. Other statuses and malformed payloads fail at once.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if status := upstreamStatus(err); status != 0 {
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
