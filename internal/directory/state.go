package directory

import "sync"

// Phase is the protocol phase of the current directory round.
type Phase uint8

const (
	// PhaseAwaitingSubmissions accepts microblock submissions from shards.
	PhaseAwaitingSubmissions Phase = iota

	// PhaseSubmissionsComplete means every shard has reported; entered
	// exactly once per round by the submission tracker.
	PhaseSubmissionsComplete

	// PhaseConsensusInProgress means the final-block consensus round is
	// running; entered by the coordinator.
	PhaseConsensusInProgress

	// PhaseRoundFinalized is terminal for the round. A new round starts
	// with a fresh EpochContext, ProtocolState and Tracker.
	PhaseRoundFinalized
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseAwaitingSubmissions:
		return "awaiting_submissions"
	case PhaseSubmissionsComplete:
		return "submissions_complete"
	case PhaseConsensusInProgress:
		return "consensus_in_progress"
	case PhaseRoundFinalized:
		return "round_finalized"
	default:
		return "unknown"
	}
}

// EpochContext holds the round's governing parameters. It is fixed for
// the round's lifetime; a round restart builds a fresh context.
type EpochContext struct {
	// Epoch is the number of the directory round being formed.
	// Submissions summarize the epoch that is closing, so their wire
	// epoch field must equal Epoch-1.
	Epoch uint64

	// Round is the consensus round id submissions must carry.
	Round uint32

	// ShardCount is the number of shards expected to report.
	ShardCount int
}

// ProtocolState is the phase machine gating submission processing.
// Forward transitions are guarded; "back to awaiting" on restart is
// expressed by replacing the whole round state, never by rewinding.
type ProtocolState struct {
	mu    sync.Mutex
	phase Phase
}

// NewProtocolState creates a state in PhaseAwaitingSubmissions.
func NewProtocolState() *ProtocolState {
	return &ProtocolState{phase: PhaseAwaitingSubmissions}
}

// Phase returns the current phase.
func (s *ProtocolState) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase
}

// Is reports whether the current phase equals p. This is the gate check
// used before processing a message kind.
func (s *ProtocolState) Is(p Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase == p
}

// Advance moves from one phase to the next. Returns false if the
// current phase is not `from` or the transition is not allowed, leaving
// the state unchanged.
func (s *ProtocolState) Advance(from, to Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != from || !allowedTransition(from, to) {
		return false
	}

	s.phase = to

	return true
}

// allowedTransition encodes the forward edges of the phase machine.
func allowedTransition(from, to Phase) bool {
	switch from {
	case PhaseAwaitingSubmissions:
		return to == PhaseSubmissionsComplete
	case PhaseSubmissionsComplete:
		return to == PhaseConsensusInProgress
	case PhaseConsensusInProgress:
		return to == PhaseRoundFinalized
	default:
		return false
	}
}
