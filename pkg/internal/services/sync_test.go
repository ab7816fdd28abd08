package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akina-dev/boorud/pkg/internal/services/booru"
)

// fakeClient replays canned batches and records every call it gets.
type fakeClient struct {
	batches     [][]booru.Record
	probe       []booru.Record
	err         error
	failures    int
	pageCalls   []int
	beforeCalls []int
}

func (f *fakeClient) Host() string { return "https://fake.example" }

func (f *fakeClient) PostsPage(ctx context.Context, tags string, page, limit int) ([]booru.Record, error) {
	if limit == 1 {
		return f.probe, nil
	}
	f.pageCalls = append(f.pageCalls, page)
	return f.next()
}

func (f *fakeClient) PostsBefore(ctx context.Context, beforeID int, tags string, limit int) ([]booru.Record, error) {
	f.beforeCalls = append(f.beforeCalls, beforeID)
	return f.next()
}

func (f *fakeClient) next() ([]booru.Record, error) {
	if f.failures > 0 {
		f.failures--
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func TestSyncerWalksBeforeIDCursor(t *testing.T) {
	s := scopedStore(t, newTestStore(t), "alpha")
	client := &fakeClient{
		batches: [][]booru.Record{
			{storedRec(105, "a105", "x"), storedRec(103, "a103", "x")},
			{storedRec(102, "a102", "x")},
			{},
		},
	}

	result, err := (&Syncer{
		Client:      client,
		Store:       s,
		Mode:        booru.FetchBeforeID,
		Limit:       100,
		StartCursor: 106,
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if result.Status != SyncNoPosts {
		t.Errorf("status = %q, want %q", result.Status, SyncNoPosts)
	}
	if result.Batches != 2 || result.Stats.Inserted != 3 {
		t.Errorf("result = %+v, want 2 batches with 3 inserts", result)
	}
	want := []int{106, 103, 102}
	if len(client.beforeCalls) != len(want) {
		t.Fatalf("before_id calls = %v, want %v", client.beforeCalls, want)
	}
	for i, id := range want {
		if client.beforeCalls[i] != id {
			t.Errorf("call %d used before_id %d, want %d (min id of prior batch)", i, client.beforeCalls[i], id)
		}
	}
}

func TestSyncerStopsWhenNothingNew(t *testing.T) {
	s := scopedStore(t, newTestStore(t), "alpha")
	if _, err := s.UpsertPosts(context.Background(), []booru.Record{storedRec(50, "aaaa", "x")}); err != nil {
		t.Fatalf("seed upsert failed: %v", err)
	}

	client := &fakeClient{
		batches: [][]booru.Record{
			{storedRec(50, "aaaa", "x")},
			{storedRec(49, "old", "x")},
		},
	}
	result, err := (&Syncer{
		Client: client,
		Store:  s,
		Mode:   booru.FetchPage,
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if result.Status != SyncNoNewPosts {
		t.Errorf("status = %q, want %q", result.Status, SyncNoNewPosts)
	}
	if len(client.pageCalls) != 1 {
		t.Errorf("made %d page calls, want 1 (stop after an all-known batch)", len(client.pageCalls))
	}
}

func TestSyncerBaselineProbe(t *testing.T) {
	s := scopedStore(t, newTestStore(t), "alpha")
	client := &fakeClient{
		probe:   []booru.Record{storedRec(777, "top", "x")},
		batches: [][]booru.Record{{}},
	}

	if _, err := (&Syncer{Client: client, Store: s, Mode: booru.FetchBeforeID}).Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(client.beforeCalls) != 1 || client.beforeCalls[0] != 778 {
		t.Errorf("before_id calls = %v, want one call at newest id + 1", client.beforeCalls)
	}
}

func TestSyncerEmptyProbeFails(t *testing.T) {
	s := scopedStore(t, newTestStore(t), "alpha")
	client := &fakeClient{}

	_, err := (&Syncer{Client: client, Store: s, Mode: booru.FetchBeforeID}).Run(context.Background())
	if !errors.Is(err, ErrNoBaseline) {
		t.Errorf("Run() error = %v, want ErrNoBaseline", err)
	}
}

func TestSyncerRetriesTransportFailures(t *testing.T) {
	s := scopedStore(t, newTestStore(t), "alpha")
	client := &fakeClient{
		err:      &booru.TransportError{Cause: "request failed", StatusCode: 503},
		failures: 2,
		batches:  [][]booru.Record{{}},
	}

	result, err := (&Syncer{
		Client:    client,
		Store:     s,
		Mode:      booru.FetchPage,
		RetryWait: time.Millisecond,
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error after retries: %v", err)
	}
	if result.Status != SyncNoPosts {
		t.Errorf("status = %q, want %q", result.Status, SyncNoPosts)
	}
	if len(client.pageCalls) != 3 {
		t.Errorf("made %d calls, want 3 (two failures then success)", len(client.pageCalls))
	}
}

func TestSyncerRetryExhaustion(t *testing.T) {
	s := scopedStore(t, newTestStore(t), "alpha")
	client := &fakeClient{
		err:      &booru.TransportError{Cause: "request failed"},
		failures: 10,
	}

	result, err := (&Syncer{
		Client:    client,
		Store:     s,
		Mode:      booru.FetchPage,
		RetryWait: time.Millisecond,
	}).Run(context.Background())
	if err == nil {
		t.Fatal("Run() should fail when every attempt errors")
	}
	if result.Status != SyncFetchFailed {
		t.Errorf("status = %q, want %q", result.Status, SyncFetchFailed)
	}
	if len(client.pageCalls) != 3 {
		t.Errorf("made %d calls, want exactly 3 attempts", len(client.pageCalls))
	}
}

func TestSyncerDoesNotRetryDecodeFailures(t *testing.T) {
	s := scopedStore(t, newTestStore(t), "alpha")
	client := &fakeClient{
		err:      &booru.MalformedRecordError{Field: "id"},
		failures: 10,
	}

	if _, err := (&Syncer{
		Client:    client,
		Store:     s,
		Mode:      booru.FetchPage,
		RetryWait: time.Millisecond,
	}).Run(context.Background()); err == nil {
		t.Fatal("Run() should fail fast on a non-transport error")
	}
	if len(client.pageCalls) != 1 {
		t.Errorf("made %d calls, want 1 (no retry on decode errors)", len(client.pageCalls))
	}
}

func TestSyncerCancellation(t *testing.T) {
	s := scopedStore(t, newTestStore(t), "alpha")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := (&Syncer{
		Client:      &fakeClient{},
		Store:       s,
		Mode:        booru.FetchPage,
		StartCursor: 1,
	}).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Status != SyncCancelled {
		t.Errorf("status = %q, want %q", result.Status, SyncCancelled)
	}
}
