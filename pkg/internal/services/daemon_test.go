package services

import (
	"context"
	"testing"
)

func TestDaemonCycleHonorsLifecycle(t *testing.T) {
	old := sourceList
	sourceList = []SourceConfig{{
		ID:      "unreachable",
		Host:    "https://unreachable.invalid",
		Dialect: DialectDanbooru,
	}}
	defer func() { sourceList = old }()

	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDaemon(ctx, store, LogTagger{})
	// Same code path Trigger launches; a dead lifecycle context must
	// stop the cycle before any source is touched.
	d.RunCycle(d.ctx)

	if phase, _ := d.Status(); phase != PhaseIdle {
		t.Errorf("phase after cancelled cycle = %q, want %q", phase, PhaseIdle)
	}
	boards, err := store.ListBoards(context.Background())
	if err != nil {
		t.Fatalf("ListBoards() error: %v", err)
	}
	if len(boards) != 0 {
		t.Errorf("cancelled cycle resolved %d boards, want none", len(boards))
	}
}

func TestDaemonOverlappingCycleSkipped(t *testing.T) {
	old := sourceList
	sourceList = nil
	defer func() { sourceList = old }()

	d := NewDaemon(context.Background(), newTestStore(t), LogTagger{})

	d.cycleMu.Lock()
	done := make(chan struct{})
	go func() {
		d.RunCycle(d.ctx)
		close(done)
	}()
	<-done // returns immediately: the lock is held, the trigger is dropped
	d.cycleMu.Unlock()
}
