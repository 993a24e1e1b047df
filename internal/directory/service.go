package directory

import (
	"errors"
	"fmt"
	"sync/atomic"

	"ShardDir/internal/committee"
	"ShardDir/internal/logger"
)

// Role selects the node's behavior when a round completes. Verification
// and tracking are identical for both roles; only the completion
// trigger differs.
type Role int

const (
	// RoleDirectory fires the final-block consensus trigger on completion.
	RoleDirectory Role = iota

	// RoleLookup observes submissions and archives completed batches
	// without participating in the final-block consensus.
	RoleLookup
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleDirectory:
		return "directory"
	case RoleLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// ParseRole parses a role name from configuration.
func ParseRole(s string) (Role, error) {
	switch s {
	case "directory":
		return RoleDirectory, nil
	case "lookup":
		return RoleLookup, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// CompletionFunc receives the completed batch when all shards have
// reported. Called exactly once per round.
type CompletionFunc func(ctx EpochContext, batch []ShardSummary)

// BatchArchiver persists completed submission batches.
type BatchArchiver interface {
	ArchiveBatch(epoch uint64, round uint32, batch []ShardSummary) error
}

// Option configures a Service.
type Option func(*Service)

// WithFinalBlockTrigger sets the callback fired by directory nodes when
// the batch completes, handing the batch to the final-block consensus.
func WithFinalBlockTrigger(fn CompletionFunc) Option {
	return func(s *Service) { s.onFinalBlock = fn }
}

// WithArchiver sets the archive for completed batches.
func WithArchiver(a BatchArchiver) Option {
	return func(s *Service) { s.archiver = a }
}

// Service coordinates directory rounds: it owns the current round's
// Processor and replaces it wholesale at round boundaries. A Process
// call in flight keeps operating on the round it loaded; it cannot see
// a half-reset round.
type Service struct {
	registry     *committee.Registry
	role         Role
	onFinalBlock CompletionFunc
	archiver     BatchArchiver

	current atomic.Pointer[Processor]
}

// ErrNoActiveRound is returned by Process before the first StartRound.
var ErrNoActiveRound = errors.New("no active round")

// NewService creates a directory service. No round is active until
// StartRound is called.
func NewService(registry *committee.Registry, role Role, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		role:     role,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Role returns the node's configured role.
func (s *Service) Role() Role {
	return s.role
}

// StartRound begins collecting submissions for a new round, replacing
// any previous round's state as a unit. Epoch is the number of the
// directory round being formed (submissions carry epoch-1).
func (s *Service) StartRound(epoch uint64, round uint32) {
	p := NewProcessor(s.registry, EpochContext{
		Epoch:      epoch,
		Round:      round,
		ShardCount: s.registry.ShardCount(),
	})

	s.current.Store(p)

	logger.Info("round started",
		"epoch", epoch,
		"round", round,
		"shards", s.registry.ShardCount(),
		"role", s.role,
	)
}

// Restart re-collects the current round from scratch, typically after a
// collection timeout. The timeout policy itself belongs to the caller.
func (s *Service) Restart() {
	p := s.current.Load()
	if p == nil {
		return
	}

	ctx := p.Context()
	s.StartRound(ctx.Epoch, ctx.Round)

	logger.Warn("round restarted", "epoch", ctx.Epoch, "round", ctx.Round)
}

// Process handles one inbound submission message. Failures are local to
// this call: the message is dropped and logged, never retried here.
// Retransmission is the sender's responsibility.
//
// TODO: re-request a microblock from its shard leader if nothing
// arrives for that shard within the collection window.
func (s *Service) Process(raw []byte, sender string) error {
	p := s.current.Load()
	if p == nil {
		return ErrNoActiveRound
	}

	complete, err := p.Process(raw, sender)
	if err != nil {
		s.logProcessError(err, sender)
		return err
	}

	if complete {
		s.completeRound(p)
	}

	return nil
}

// completeRound runs once per round, on the Process call that filled
// the batch.
func (s *Service) completeRound(p *Processor) {
	ctx := p.Context()
	batch := p.Tracker().Batch()

	logger.Info("all microblocks received",
		"epoch", ctx.Epoch,
		"round", ctx.Round,
		"shards", len(batch),
	)

	if s.archiver != nil {
		if err := s.archiver.ArchiveBatch(ctx.Epoch, ctx.Round, batch); err != nil {
			logger.Error("archive batch failed", "epoch", ctx.Epoch, "error", err)
		}
	}

	if s.role == RoleDirectory && s.onFinalBlock != nil {
		s.onFinalBlock(ctx, batch)
	}
}

// BeginFinalConsensus marks the final-block consensus as running.
// Called by the coordinator after the completion trigger.
func (s *Service) BeginFinalConsensus() bool {
	p := s.current.Load()
	if p == nil {
		return false
	}

	return p.State().Advance(PhaseSubmissionsComplete, PhaseConsensusInProgress)
}

// FinalizeRound marks the round as finalized. Terminal: the next round
// starts with StartRound.
func (s *Service) FinalizeRound() bool {
	p := s.current.Load()
	if p == nil {
		return false
	}

	return p.State().Advance(PhaseConsensusInProgress, PhaseRoundFinalized)
}

// logProcessError logs a rejected submission at a severity matching the
// failure class: phase and duplicate noise at debug, malformed input at
// warn, identity and cryptographic failures at error.
func (s *Service) logProcessError(err error, sender string) {
	switch {
	case errors.Is(err, ErrWrongPhase), errors.Is(err, ErrDuplicateSubmission):
		logger.Debug("submission dropped", "from", sender, "reason", err)
	case errors.Is(err, ErrUnknownProducer), errors.Is(err, ErrShardMismatch),
		errors.Is(err, ErrCosigInvalid):
		logger.Error("submission rejected", "from", sender, "reason", err)
	default:
		logger.Warn("submission rejected", "from", sender, "reason", err)
	}
}

// Phase returns the current round's phase.
func (s *Service) Phase() Phase {
	p := s.current.Load()
	if p == nil {
		return PhaseRoundFinalized
	}

	return p.State().Phase()
}

// Epoch returns the epoch of the round being formed, or 0 if no round
// is active.
func (s *Service) Epoch() uint64 {
	p := s.current.Load()
	if p == nil {
		return 0
	}

	return p.Context().Epoch
}

// Round returns the current consensus round id.
func (s *Service) Round() uint32 {
	p := s.current.Load()
	if p == nil {
		return 0
	}

	return p.Context().Round
}

// BatchSize returns the number of accepted summaries this round.
func (s *Service) BatchSize() int {
	p := s.current.Load()
	if p == nil {
		return 0
	}

	return p.Tracker().Size()
}

// ReportedShards returns the sorted ids of shards that have reported.
func (s *Service) ReportedShards() []uint32 {
	p := s.current.Load()
	if p == nil {
		return nil
	}

	return p.Tracker().Shards()
}

// ShardCount returns the number of shards expected to report.
func (s *Service) ShardCount() int {
	return s.registry.ShardCount()
}
