package directory

import "testing"

// TestProtocolStateInitial tests the starting phase.
func TestProtocolStateInitial(t *testing.T) {
	s := NewProtocolState()

	if !s.Is(PhaseAwaitingSubmissions) {
		t.Errorf("initial phase: got %s, want awaiting_submissions", s.Phase())
	}
}

// TestProtocolStateForwardPath tests the full forward transition chain.
func TestProtocolStateForwardPath(t *testing.T) {
	s := NewProtocolState()

	steps := []struct {
		from, to Phase
	}{
		{PhaseAwaitingSubmissions, PhaseSubmissionsComplete},
		{PhaseSubmissionsComplete, PhaseConsensusInProgress},
		{PhaseConsensusInProgress, PhaseRoundFinalized},
	}

	for _, step := range steps {
		if !s.Advance(step.from, step.to) {
			t.Fatalf("advance %s -> %s should succeed", step.from, step.to)
		}

		if s.Phase() != step.to {
			t.Fatalf("phase after advance: got %s, want %s", s.Phase(), step.to)
		}
	}
}

// TestProtocolStateWrongFrom tests that a stale `from` leaves the
// state untouched.
func TestProtocolStateWrongFrom(t *testing.T) {
	s := NewProtocolState()

	if s.Advance(PhaseSubmissionsComplete, PhaseConsensusInProgress) {
		t.Error("advance from a phase the state is not in should fail")
	}

	if !s.Is(PhaseAwaitingSubmissions) {
		t.Errorf("phase should be unchanged, got %s", s.Phase())
	}
}

// TestProtocolStateNoSkipping tests that phases cannot be skipped.
func TestProtocolStateNoSkipping(t *testing.T) {
	s := NewProtocolState()

	if s.Advance(PhaseAwaitingSubmissions, PhaseConsensusInProgress) {
		t.Error("skipping submissions_complete should fail")
	}

	if s.Advance(PhaseAwaitingSubmissions, PhaseRoundFinalized) {
		t.Error("skipping to round_finalized should fail")
	}
}

// TestProtocolStateNoRewind tests that backward transitions fail.
func TestProtocolStateNoRewind(t *testing.T) {
	s := NewProtocolState()
	s.Advance(PhaseAwaitingSubmissions, PhaseSubmissionsComplete)

	if s.Advance(PhaseSubmissionsComplete, PhaseAwaitingSubmissions) {
		t.Error("rewinding to awaiting_submissions should fail")
	}
}

// TestProtocolStateTerminal tests that the final phase has no exits.
func TestProtocolStateTerminal(t *testing.T) {
	s := NewProtocolState()
	s.Advance(PhaseAwaitingSubmissions, PhaseSubmissionsComplete)
	s.Advance(PhaseSubmissionsComplete, PhaseConsensusInProgress)
	s.Advance(PhaseConsensusInProgress, PhaseRoundFinalized)

	for _, to := range []Phase{PhaseAwaitingSubmissions, PhaseSubmissionsComplete, PhaseConsensusInProgress} {
		if s.Advance(PhaseRoundFinalized, to) {
			t.Errorf("round_finalized -> %s should fail", to)
		}
	}
}

// TestPhaseString tests phase names for the diagnostics API.
func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseAwaitingSubmissions, "awaiting_submissions"},
		{PhaseSubmissionsComplete, "submissions_complete"},
		{PhaseConsensusInProgress, "consensus_in_progress"},
		{PhaseRoundFinalized, "round_finalized"},
		{Phase(99), "unknown"},
	}

	for _, tc := range tests {
		if got := tc.phase.String(); got != tc.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tc.phase, got, tc.want)
		}
	}
}
