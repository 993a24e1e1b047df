package directory

import (
	"sort"
	"sync"
)

// InsertOutcome is the result of a Tracker.TryInsert call.
type InsertOutcome int

const (
	// Inserted means the summary was accepted as the shard's submission.
	Inserted InsertOutcome = iota

	// DuplicateShard means the shard already has an accepted summary.
	// First writer wins; the later submission is discarded so a second,
	// possibly malicious, submission cannot displace a verified one.
	DuplicateShard

	// BatchFull means the batch already holds one summary per shard.
	BatchFull
)

// String returns the outcome name.
func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case DuplicateShard:
		return "duplicate_shard"
	case BatchFull:
		return "batch_full"
	default:
		return "unknown"
	}
}

// ShardSummary pairs an accepted summary with its shard id.
type ShardSummary struct {
	Shard   uint32             // Shard is the reporting shard's id
	Summary *MicroblockSummary // Summary is the shard's accepted summary
}

// Tracker is the round's batch of accepted summaries, at most one per
// shard. The insert plus the completion check form a single critical
// section: of all concurrent inserts, exactly one can observe the batch
// reaching full size. Callers verify cosignatures before inserting, so
// no cryptographic work happens under the lock.
type Tracker struct {
	mu         sync.Mutex
	byShard    map[uint32]*MicroblockSummary
	shardCount int
	state      *ProtocolState
	completed  bool
}

// NewTracker creates an empty tracker for a round expecting shardCount
// submissions. The protocol state is advanced to SubmissionsComplete by
// the insert that fills the batch.
func NewTracker(shardCount int, state *ProtocolState) *Tracker {
	return &Tracker{
		byShard:    make(map[uint32]*MicroblockSummary, shardCount),
		shardCount: shardCount,
		state:      state,
	}
}

// TryInsert adds a summary for the given shard. The second return value
// is the one-time completion signal: true for exactly the insert that
// filled the batch, false for every other call.
func (t *Tracker) TryInsert(shard uint32, summary *MicroblockSummary) (InsertOutcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byShard[shard]; exists {
		return DuplicateShard, false
	}

	if len(t.byShard) >= t.shardCount {
		return BatchFull, false
	}

	t.byShard[shard] = summary

	if len(t.byShard) == t.shardCount && !t.completed {
		t.completed = true
		t.state.Advance(PhaseAwaitingSubmissions, PhaseSubmissionsComplete)

		return Inserted, true
	}

	return Inserted, false
}

// Size returns the number of accepted summaries.
func (t *Tracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.byShard)
}

// Contains reports whether the shard already has an accepted summary.
func (t *Tracker) Contains(shard uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, exists := t.byShard[shard]

	return exists
}

// Shards returns the ids of all shards that have reported, sorted.
func (t *Tracker) Shards() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	shards := make([]uint32, 0, len(t.byShard))
	for id := range t.byShard {
		shards = append(shards, id)
	}

	sort.Slice(shards, func(i, j int) bool { return shards[i] < shards[j] })

	return shards
}

// Batch returns a snapshot of the accepted summaries ordered by shard
// id. The ordering is deterministic so every committee member hands the
// same sequence to the final-block consensus.
func (t *Tracker) Batch() []ShardSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	batch := make([]ShardSummary, 0, len(t.byShard))
	for id, s := range t.byShard {
		batch = append(batch, ShardSummary{Shard: id, Summary: s})
	}

	sort.Slice(batch, func(i, j int) bool { return batch[i].Shard < batch[j].Shard })

	return batch
}
