package booru

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// MinRequestSpacing is the informal rate limit booru-style APIs
// expect from well-behaved clients.
const MinRequestSpacing = 1200 * time.Millisecond

type FetchMode string

const (
	FetchBeforeID FetchMode = "before_id"
	FetchPage     FetchMode = "page"
)

// FilterFunc is applied to every normalized batch before it leaves
// the client, preserving input order.
type FilterFunc func([]Record) []Record

// Client is one remote listing source. Both pagination strategies are
// part of the contract; a dialect that cannot serve one returns
// ErrUnsupportedMode.
type Client interface {
	Host() string
	PostsPage(ctx context.Context, tags string, page, limit int) ([]Record, error)
	PostsBefore(ctx context.Context, beforeID int, tags string, limit int) ([]Record, error)
}

// PoolLister is the optional pool-listing extension of a dialect.
type PoolLister interface {
	PoolsPage(ctx context.Context, page int) ([]PoolRecord, error)
}

func newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(MinRequestSpacing), 1)
}

// fetchBody issues exactly one rate-limited GET and returns the raw
// body. Every failure mode collapses into TransportError; retrying is
// the caller's decision.
func fetchBody(ctx context.Context, hc *http.Client, limiter *rate.Limiter, url string) ([]byte, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{Cause: err.Error(), Err: err}
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &TransportError{Cause: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Cause: err.Error(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: resp.StatusCode, Cause: resp.Status}
	}

	return body, nil
}
