package committee

import (
	"errors"
	"fmt"
)

// MemberKeySize is the size of a compressed BLS public key in bytes.
const MemberKeySize = 48

// MemberKey is a committee member's compressed BLS public key.
type MemberKey [MemberKeySize]byte

// Member is one roster entry: a member key and its network address.
// The roster position of a member is the bit position used by
// participation bitmaps, so roster order is part of the protocol.
type Member struct {
	Key  MemberKey // Key is the member's BLS public key
	Addr string    // Addr is the member's network address
}

// Roster is the ordered committee member list for one shard.
type Roster []Member

// Keys returns the roster's member keys in roster order.
func (r Roster) Keys() []MemberKey {
	keys := make([]MemberKey, len(r))
	for i, m := range r {
		keys[i] = m.Key
	}

	return keys
}

var (
	// ErrUnknownShard is returned when a shard id is not in the registry.
	ErrUnknownShard = errors.New("unknown shard")

	// ErrUnknownMember is returned when a member key was not assigned this epoch.
	ErrUnknownMember = errors.New("unknown member")

	// ErrDuplicateMember is returned when a key appears in more than one roster slot.
	ErrDuplicateMember = errors.New("duplicate member key")
)

// Registry is the epoch's shard assignment: shard id to ordered roster,
// plus the inverse member key to shard id mapping. Built once per epoch
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	shards  []Roster
	shardOf map[MemberKey]uint32
}

// NewRegistry builds a registry from the committee assignment.
// Shard ids are the slice indices. Fails if a member key appears twice.
func NewRegistry(shards []Roster) (*Registry, error) {
	reg := &Registry{
		shards:  make([]Roster, len(shards)),
		shardOf: make(map[MemberKey]uint32),
	}

	for id, roster := range shards {
		if len(roster) == 0 {
			return nil, fmt.Errorf("shard %d: empty roster", id)
		}

		reg.shards[id] = make(Roster, len(roster))
		copy(reg.shards[id], roster)

		for _, m := range roster {
			if _, seen := reg.shardOf[m.Key]; seen {
				return nil, fmt.Errorf("shard %d: %w: %x", id, ErrDuplicateMember, m.Key[:8])
			}

			reg.shardOf[m.Key] = uint32(id)
		}
	}

	return reg, nil
}

// Roster returns the ordered roster for the given shard id.
func (r *Registry) Roster(shard uint32) (Roster, error) {
	if int(shard) >= len(r.shards) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownShard, shard)
	}

	return r.shards[shard], nil
}

// ShardOf returns the shard id the member key was assigned to this epoch.
func (r *Registry) ShardOf(key MemberKey) (uint32, error) {
	shard, ok := r.shardOf[key]
	if !ok {
		return 0, fmt.Errorf("%w: %x", ErrUnknownMember, key[:8])
	}

	return shard, nil
}

// ShardCount returns the number of shards in the epoch's partition.
func (r *Registry) ShardCount() int {
	return len(r.shards)
}

// NumForConsensus returns the minimum signer count required for a roster
// of the given size: floor(2n/3)+1. This is the same sizing rule used
// network-wide for consensus quorums.
func NumForConsensus(rosterSize int) int {
	return rosterSize*2/3 + 1
}
