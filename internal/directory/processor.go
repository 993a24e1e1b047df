package directory

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"ShardDir/internal/committee"
	"ShardDir/internal/cosig"
	"ShardDir/internal/logger"
)

var (
	// ErrWrongPhase is returned when a submission arrives outside
	// PhaseAwaitingSubmissions. Expected under network jitter; the
	// sender may resend once the phase is correct.
	ErrWrongPhase = errors.New("wrong protocol phase")

	// ErrStaleEpoch is returned when the submission's epoch number does
	// not refer to the epoch currently closing.
	ErrStaleEpoch = errors.New("stale epoch number")

	// ErrRoundMismatch is returned when the round id does not match the
	// current round.
	ErrRoundMismatch = errors.New("round id mismatch")

	// ErrUnknownProducer is returned when the summary producer's key was
	// not assigned to any shard this epoch.
	ErrUnknownProducer = errors.New("unknown producer")

	// ErrShardMismatch is returned when the producer's assigned shard
	// differs from the shard id claimed in the envelope.
	ErrShardMismatch = errors.New("shard id mismatch")

	// ErrCosigInvalid wraps cosignature verification failures.
	ErrCosigInvalid = errors.New("cosignature invalid")

	// ErrDuplicateSubmission is returned when the shard already has an
	// accepted summary this round. Benign, informational only.
	ErrDuplicateSubmission = errors.New("duplicate submission")

	// ErrBatchFull is returned when the batch already holds one summary
	// per shard.
	ErrBatchFull = errors.New("submission batch full")
)

// Processor validates and collects microblock submissions for one
// directory round. It owns the round's EpochContext, ProtocolState and
// Tracker as a unit; a new round gets a fresh Processor, so no residual
// state can leak across rounds.
type Processor struct {
	registry *committee.Registry
	ctx      EpochContext
	state    *ProtocolState
	tracker  *Tracker
}

// NewProcessor creates the processing state for one round.
func NewProcessor(registry *committee.Registry, ctx EpochContext) *Processor {
	if ctx.ShardCount == 0 {
		ctx.ShardCount = registry.ShardCount()
	}

	state := NewProtocolState()

	return &Processor{
		registry: registry,
		ctx:      ctx,
		state:    state,
		tracker:  NewTracker(ctx.ShardCount, state),
	}
}

// Context returns the round's governing parameters.
func (p *Processor) Context() EpochContext {
	return p.ctx
}

// State returns the round's protocol state.
func (p *Processor) State() *ProtocolState {
	return p.state
}

// Tracker returns the round's submission tracker.
func (p *Processor) Tracker() *Tracker {
	return p.tracker
}

// Process validates one submission message and, if it passes every
// check, inserts it into the round's batch. The boolean is the one-time
// completion signal: true only for the call whose insert filled the
// batch. Everything before the insert is read-only against shared
// state, so concurrent Process calls run fully in parallel up to the
// tracker's critical section.
func (p *Processor) Process(raw []byte, sender string) (bool, error) {
	// Phase gate. Rejected messages are dropped, never queued; the
	// sender's resend is accepted as a fresh attempt.
	if !p.state.Is(PhaseAwaitingSubmissions) {
		return false, fmt.Errorf("%w: %s", ErrWrongPhase, p.state.Phase())
	}

	sub, err := DecodeSubmission(raw)
	if err != nil {
		return false, err
	}

	// Freshness: the submission summarizes the epoch that is closing,
	// one behind the epoch this round is forming.
	if p.ctx.Epoch == 0 || !sub.Epoch.Eq(uint256.NewInt(p.ctx.Epoch-1)) {
		return false, fmt.Errorf("%w: got %s, closing epoch is %d",
			ErrStaleEpoch, sub.Epoch, p.ctx.Epoch-1)
	}

	if sub.Round != p.ctx.Round {
		return false, fmt.Errorf("%w: got %d, want %d", ErrRoundMismatch, sub.Round, p.ctx.Round)
	}

	// The producer key decides which shard the summary belongs to; the
	// envelope's shard id must agree, or someone is spoofing across
	// shards.
	shard, err := p.registry.ShardOf(sub.Summary.Header.Producer)
	if err != nil {
		return false, fmt.Errorf("%w: %x", ErrUnknownProducer, sub.Summary.Header.Producer[:8])
	}

	if shard != sub.Shard {
		return false, fmt.Errorf("%w: producer is in shard %d, envelope claims %d",
			ErrShardMismatch, shard, sub.Shard)
	}

	roster, err := p.registry.Roster(shard)
	if err != nil {
		return false, fmt.Errorf("roster lookup:\n%w", err)
	}

	if err := cosig.Verify(roster, sub.Summary.Bitmap, sub.Summary.HeaderBytes(), sub.Summary.CoSig); err != nil {
		return false, fmt.Errorf("%w: %w", ErrCosigInvalid, err)
	}

	outcome, complete := p.tracker.TryInsert(shard, sub.Summary)

	switch outcome {
	case DuplicateShard:
		return false, fmt.Errorf("%w: shard %d", ErrDuplicateSubmission, shard)
	case BatchFull:
		return false, fmt.Errorf("%w: shard %d", ErrBatchFull, shard)
	}

	logger.Info("microblock accepted",
		"epoch", p.ctx.Epoch,
		"round", p.ctx.Round,
		"shard", shard,
		"received", p.tracker.Size(),
		"expected", p.ctx.ShardCount,
		"from", sender,
	)

	return complete, nil
}
