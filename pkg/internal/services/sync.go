package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akina-dev/boorud/pkg/internal/services/booru"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// ErrNoBaseline means the probe request for a starting cursor came
// back empty; the source cannot be synced this cycle.
var ErrNoBaseline = errors.New("cannot establish a baseline: probe request returned no posts")

type SyncStatus string

const (
	SyncNoPosts     SyncStatus = "no posts returned"
	SyncNoNewPosts  SyncStatus = "no new posts inserted"
	SyncCancelled   SyncStatus = "cancelled"
	SyncFetchFailed SyncStatus = "fetch failed"
)

const (
	defaultFetchAttempts = 3
	defaultRetryWait     = 2 * time.Second
)

// Syncer drives a listing client in a loop, committing each batch and
// advancing the cursor until the remote runs out of new data.
type Syncer struct {
	Client booru.Client
	Store  *Store
	Mode   booru.FetchMode
	Tags   string
	Limit  int

	// StartCursor is an explicit starting id or page; zero means
	// resolve automatically (probe for before_id mode, page 1 for
	// page mode).
	StartCursor int

	Attempts  int
	RetryWait time.Duration
}

type SyncResult struct {
	Status  SyncStatus  `json:"status"`
	Batches int         `json:"batches"`
	Stats   UpsertStats `json:"stats"`
}

func (s *Syncer) Run(ctx context.Context) (SyncResult, error) {
	var result SyncResult

	cursor, err := s.resolveBaseline(ctx)
	if err != nil {
		return result, err
	}

	for {
		if ctx.Err() != nil {
			result.Status = SyncCancelled
			return result, nil
		}

		batch, err := s.fetchWithRetry(ctx, cursor)
		if err != nil {
			result.Status = SyncFetchFailed
			return result, err
		}

		if len(batch) == 0 {
			log.Debug().Msg("No posts returned.")
			result.Status = SyncNoPosts
			return result, nil
		}

		stats, err := s.Store.UpsertPosts(ctx, batch)
		if err != nil {
			result.Status = SyncFetchFailed
			return result, err
		}
		result.Batches++
		result.Stats.Inserted += stats.Inserted
		result.Stats.Updated += stats.Updated
		result.Stats.Skipped += stats.Skipped
		result.Stats.NewImages += stats.NewImages
		result.Stats.NewTags += stats.NewTags

		log.Debug().
			Int("posts", stats.Inserted).
			Int("images", stats.NewImages).
			Int("tags", stats.NewTags).
			Msg("Committed new entries...")

		if stats.Inserted == 0 {
			log.Debug().Msg("Stopping since no new posts were inserted.")
			result.Status = SyncNoNewPosts
			return result, nil
		}

		switch s.Mode {
		case booru.FetchBeforeID:
			cursor = lo.MinBy(batch, func(a, b booru.Record) bool {
				return a.PostID < b.PostID
			}).PostID
			log.Debug().Int("before_id", cursor).Msg("Fetching posts below id...")
		default:
			cursor++
			log.Debug().Int("page", cursor).Msg("Fetching posts from page...")
		}
	}
}

// resolveBaseline picks the starting cursor: the caller's explicit
// one if given, else page 1, else a single 1-post probe to discover
// the most recent identifier. A failed probe is fatal for this source
// and is not retried.
func (s *Syncer) resolveBaseline(ctx context.Context) (int, error) {
	if s.StartCursor > 0 {
		return s.StartCursor, nil
	}
	if s.Mode != booru.FetchBeforeID {
		return 1, nil
	}

	probe, err := s.Client.PostsPage(ctx, s.Tags, 1, 1)
	if err != nil {
		return 0, fmt.Errorf("baseline probe failed: %w", err)
	}
	if len(probe) == 0 {
		return 0, ErrNoBaseline
	}

	return probe[0].PostID + 1, nil
}

// fetchWithRetry wraps one cursor position in a bounded retry. Only
// transport failures are retried; anything else aborts immediately.
func (s *Syncer) fetchWithRetry(ctx context.Context, cursor int) ([]booru.Record, error) {
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = defaultFetchAttempts
	}
	wait := s.RetryWait
	if wait <= 0 {
		wait = defaultRetryWait
	}

	for attempt := 1; ; attempt++ {
		batch, err := s.fetch(ctx, cursor)
		if err == nil {
			return batch, nil
		}
		if !booru.IsTransport(err) || attempt >= attempts {
			return nil, err
		}

		log.Warn().Err(err).Int("attempt", attempt).Msg("Listing fetch failed, retrying...")
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (s *Syncer) fetch(ctx context.Context, cursor int) ([]booru.Record, error) {
	if s.Mode == booru.FetchBeforeID {
		return s.Client.PostsBefore(ctx, cursor, s.Tags, s.Limit)
	}
	return s.Client.PostsPage(ctx, s.Tags, cursor, s.Limit)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
