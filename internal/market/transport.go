package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"outlet-sync/internal/observability"
)

// Doer is the part of *http.Client the partner client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryTransport retries idempotent partner calls on 429, 5xx and network
// errors with jittered exponential backoff. POST is never retried so an
// outlet cannot be created twice.
type RetryTransport struct {
	Base       Doer
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Log        *zerolog.Logger
}

// NewRetryTransport wraps base. retries <= 0 returns base unchanged.
func NewRetryTransport(base Doer, retries int) Doer {
	if retries <= 0 {
		return base
	}
	return &RetryTransport{
		Base:       base,
		MaxRetries: retries,
		BaseDelay:  300 * time.Millisecond,
		MaxDelay:   8 * time.Second,
	}
}

func (r *RetryTransport) Do(req *http.Request) (*http.Response, error) {
	if !idempotent(req.Method) {
		return r.Base.Do(req)
	}

	l := r.Log
	if l == nil {
		l = &log.Logger
	}

	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if err := req.Context().Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			observability.PartnerRetries.WithLabelValues(req.Method).Inc()
		}

		cur, err := cloneForRetry(req)
		if err != nil {
			return nil, err
		}
		resp, err := r.Base.Do(cur)
		if err == nil {
			if !shouldRetryStatus(resp.StatusCode) {
				return resp, nil
			}
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 32*1024))
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("retryable status=%d", resp.StatusCode)

			l.Warn().
				Int("attempt", attempt+1).
				Int("max_attempts", r.MaxRetries+1).
				Int("status", resp.StatusCode).
				Str("url", req.URL.Redacted()).
				Msg("partner: retryable status")

			if resp.StatusCode == http.StatusTooManyRequests && attempt < r.MaxRetries {
				if d := retryAfterDelay(resp); d > 0 {
					if err := sleepCtx(req.Context(), d); err != nil {
						return nil, err
					}
					continue
				}
			}
		} else {
			if !shouldRetryError(err) {
				return nil, err
			}
			lastErr = err
			l.Warn().Err(err).
				Int("attempt", attempt+1).
				Int("max_attempts", r.MaxRetries+1).
				Str("url", req.URL.Redacted()).
				Msg("partner: retryable error")
		}

		if attempt == r.MaxRetries {
			break
		}
		if err := sleepCtx(req.Context(), backoff(r.BaseDelay, r.MaxDelay, attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func shouldRetryStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

func shouldRetryError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << attempt
	if d > max || d <= 0 {
		d = max
	}
	return time.Duration(float64(d) * (0.5 + rand.Float64()))
}

func retryAfterDelay(resp *http.Response) time.Duration {
	sec, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || sec <= 0 {
		return 0
	}
	if sec > 60 {
		sec = 60
	}
	return time.Duration(sec) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cloneForRetry(req *http.Request) (*http.Request, error) {
	cloned := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return cloned, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("cannot retry request with body: GetBody is nil")
	}
	b, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("cannot retry request with body: %w", err)
	}
	cloned.Body = b
	return cloned, nil
}
