package directory

import (
	"sync"
	"testing"
)

// TestTrackerInsert tests accepting one summary per shard.
func TestTrackerInsert(t *testing.T) {
	tr := NewTracker(3, NewProtocolState())

	outcome, complete := tr.TryInsert(0, newTestSummary(4, []int{0, 1, 2}))
	if outcome != Inserted {
		t.Fatalf("first insert: got %s, want inserted", outcome)
	}

	if complete {
		t.Error("batch of 1/3 should not signal completion")
	}

	if tr.Size() != 1 {
		t.Errorf("size: got %d, want 1", tr.Size())
	}

	if !tr.Contains(0) {
		t.Error("shard 0 should be present")
	}

	if tr.Contains(1) {
		t.Error("shard 1 should not be present")
	}
}

// TestTrackerDuplicateShard tests first-writer-wins per shard.
func TestTrackerDuplicateShard(t *testing.T) {
	tr := NewTracker(3, NewProtocolState())

	first := newTestSummary(4, []int{0, 1, 2})
	second := newTestSummary(4, []int{1, 2, 3})
	second.Header.BlockNum = 999

	tr.TryInsert(1, first)

	outcome, complete := tr.TryInsert(1, second)
	if outcome != DuplicateShard {
		t.Errorf("second insert: got %s, want duplicate_shard", outcome)
	}

	if complete {
		t.Error("duplicate insert must not signal completion")
	}

	if tr.Size() != 1 {
		t.Errorf("size after duplicate: got %d, want 1", tr.Size())
	}

	// The accepted summary is still the first one.
	batch := tr.Batch()
	if batch[0].Summary.Header.BlockNum != first.Header.BlockNum {
		t.Error("duplicate insert must not displace the accepted summary")
	}
}

// TestTrackerCompletionSignal tests that exactly the filling insert
// signals completion and advances the phase.
func TestTrackerCompletionSignal(t *testing.T) {
	state := NewProtocolState()
	tr := NewTracker(3, state)

	for shard := uint32(0); shard < 2; shard++ {
		_, complete := tr.TryInsert(shard, newTestSummary(4, []int{0, 1, 2}))
		if complete {
			t.Fatalf("insert %d/3 should not signal completion", shard+1)
		}
	}

	if !state.Is(PhaseAwaitingSubmissions) {
		t.Fatalf("phase before completion: got %s", state.Phase())
	}

	_, complete := tr.TryInsert(2, newTestSummary(4, []int{0, 1, 2}))
	if !complete {
		t.Fatal("filling insert should signal completion")
	}

	if !state.Is(PhaseSubmissionsComplete) {
		t.Errorf("phase after completion: got %s, want submissions_complete", state.Phase())
	}
}

// TestTrackerBatchFull tests inserts after the batch filled.
func TestTrackerBatchFull(t *testing.T) {
	tr := NewTracker(2, NewProtocolState())

	tr.TryInsert(0, newTestSummary(4, []int{0, 1, 2}))
	tr.TryInsert(1, newTestSummary(4, []int{0, 1, 2}))

	outcome, complete := tr.TryInsert(5, newTestSummary(4, []int{0, 1, 2}))
	if outcome != BatchFull {
		t.Errorf("insert into full batch: got %s, want batch_full", outcome)
	}

	if complete {
		t.Error("insert into full batch must not signal completion")
	}
}

// TestTrackerConcurrentCompletion tests that of many concurrent
// inserts, exactly one observes the completion signal.
func TestTrackerConcurrentCompletion(t *testing.T) {
	const shardCount = 16

	state := NewProtocolState()
	tr := NewTracker(shardCount, state)

	var wg sync.WaitGroup
	signals := make(chan bool, shardCount)

	for shard := 0; shard < shardCount; shard++ {
		wg.Add(1)

		go func(shard uint32) {
			defer wg.Done()

			_, complete := tr.TryInsert(shard, newTestSummary(4, []int{0, 1, 2}))
			signals <- complete
		}(uint32(shard))
	}

	wg.Wait()
	close(signals)

	completions := 0
	for complete := range signals {
		if complete {
			completions++
		}
	}

	if completions != 1 {
		t.Errorf("completion signals: got %d, want exactly 1", completions)
	}

	if !state.Is(PhaseSubmissionsComplete) {
		t.Errorf("phase: got %s, want submissions_complete", state.Phase())
	}
}

// TestTrackerBatchOrdering tests the deterministic batch order.
func TestTrackerBatchOrdering(t *testing.T) {
	tr := NewTracker(4, NewProtocolState())

	for _, shard := range []uint32{3, 0, 2, 1} {
		s := newTestSummary(4, []int{0, 1, 2})
		s.Header.BlockNum = uint64(shard) * 10
		tr.TryInsert(shard, s)
	}

	batch := tr.Batch()
	if len(batch) != 4 {
		t.Fatalf("batch size: got %d, want 4", len(batch))
	}

	for i, entry := range batch {
		if entry.Shard != uint32(i) {
			t.Errorf("batch[%d].Shard = %d, want %d", i, entry.Shard, i)
		}

		if entry.Summary.Header.BlockNum != uint64(i)*10 {
			t.Errorf("batch[%d] carries the wrong summary", i)
		}
	}

	shards := tr.Shards()
	for i, shard := range shards {
		if shard != uint32(i) {
			t.Errorf("shards[%d] = %d, want %d", i, shard, i)
		}
	}
}

// TestTrackerFreshAfterReplace tests that a new tracker starts empty
// and accepts a shard the old round had already recorded.
func TestTrackerFreshAfterReplace(t *testing.T) {
	state := NewProtocolState()
	tr := NewTracker(2, state)

	tr.TryInsert(0, newTestSummary(4, []int{0, 1, 2}))

	fresh := NewTracker(2, NewProtocolState())

	if fresh.Size() != 0 {
		t.Errorf("fresh tracker size: got %d, want 0", fresh.Size())
	}

	outcome, _ := fresh.TryInsert(0, newTestSummary(4, []int{0, 1, 2}))
	if outcome != Inserted {
		t.Errorf("insert into fresh tracker: got %s, want inserted", outcome)
	}
}
