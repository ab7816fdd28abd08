package services

import (
	"context"
	"testing"
	"time"

	"github.com/akina-dev/boorud/pkg/internal/services/booru"
)

type fakePoolLister struct {
	pages [][]booru.PoolRecord
	calls int
}

func (f *fakePoolLister) PoolsPage(ctx context.Context, page int) ([]booru.PoolRecord, error) {
	f.calls++
	if page > len(f.pages) {
		return nil, nil
	}
	return f.pages[page-1], nil
}

func poolRec(id int, name string, updated time.Time) booru.PoolRecord {
	return booru.PoolRecord{PoolID: id, Name: name, PostCount: 10, IsPublic: true, UpdatedAt: updated}
}

func TestSavePoolsTimestampCutoff(t *testing.T) {
	ctx := context.Background()
	s := scopedStore(t, newTestStore(t), "alpha")
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	stats, err := s.SavePools(ctx, []booru.PoolRecord{poolRec(1, "sunsets", t0)})
	if err != nil {
		t.Fatalf("SavePools() error: %v", err)
	}
	if stats.Created != 1 || stats.UpToDate {
		t.Errorf("first save stats = %+v, want 1 created", stats)
	}

	// Same remote timestamp: nothing moved, the cutoff fires.
	stats, err = s.SavePools(ctx, []booru.PoolRecord{poolRec(1, "sunsets renamed", t0)})
	if err != nil {
		t.Fatalf("second SavePools() error: %v", err)
	}
	if !stats.UpToDate || stats.Updated != 0 {
		t.Errorf("unchanged save stats = %+v, want up-to-date with 0 updates", stats)
	}

	stats, err = s.SavePools(ctx, []booru.PoolRecord{poolRec(1, "sunsets renamed", t0.Add(time.Hour))})
	if err != nil {
		t.Fatalf("third SavePools() error: %v", err)
	}
	if stats.Updated != 1 || stats.UpToDate {
		t.Errorf("newer save stats = %+v, want 1 updated", stats)
	}
}

func TestSyncPoolsStopsOnUpToDatePage(t *testing.T) {
	ctx := context.Background()
	s := scopedStore(t, newTestStore(t), "alpha")
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := s.SavePools(ctx, []booru.PoolRecord{poolRec(1, "known", t0)}); err != nil {
		t.Fatalf("seed SavePools() error: %v", err)
	}

	lister := &fakePoolLister{pages: [][]booru.PoolRecord{
		{poolRec(2, "fresh", t0), poolRec(1, "known", t0)},
		{poolRec(3, "never reached", t0)},
	}}
	if err := SyncPools(ctx, lister, s); err != nil {
		t.Fatalf("SyncPools() error: %v", err)
	}
	if lister.calls != 1 {
		t.Errorf("lister saw %d page fetches, want 1 (stop once a known pool is unchanged)", lister.calls)
	}
}

func TestSyncPoolsWalksUntilEmpty(t *testing.T) {
	ctx := context.Background()
	s := scopedStore(t, newTestStore(t), "alpha")
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	lister := &fakePoolLister{pages: [][]booru.PoolRecord{
		{poolRec(1, "a", t0)},
		{poolRec(2, "b", t0)},
	}}
	if err := SyncPools(ctx, lister, s); err != nil {
		t.Fatalf("SyncPools() error: %v", err)
	}
	if lister.calls != 3 {
		t.Errorf("lister saw %d page fetches, want 3 (two pages then an empty one)", lister.calls)
	}
}
