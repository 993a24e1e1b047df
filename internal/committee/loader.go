package committee

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// memberJSON is one roster entry in the committee assignment file.
type memberJSON struct {
	Key  string `json:"key"`  // Key is the hex-encoded BLS public key
	Addr string `json:"addr"` // Addr is the member's network address
}

// fileJSON is the top-level structure of the committee assignment file.
type fileJSON struct {
	Epoch  uint64         `json:"epoch"`
	Shards [][]memberJSON `json:"shards"`
}

// LoadFile reads a committee assignment file and builds the epoch registry.
// The file is produced by the committee-assignment logic (or gencommittee
// for local clusters); roster order in the file is protocol-significant.
func LoadFile(path string) (*Registry, uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read committee file:\n%w", err)
	}

	return Parse(data)
}

// Parse builds the epoch registry from committee assignment JSON.
func Parse(data []byte) (*Registry, uint64, error) {
	var f fileJSON

	if err := json.Unmarshal(data, &f); err != nil {
		return nil, 0, fmt.Errorf("parse committee file:\n%w", err)
	}

	if len(f.Shards) == 0 {
		return nil, 0, fmt.Errorf("committee file has no shards")
	}

	shards := make([]Roster, len(f.Shards))

	for id, members := range f.Shards {
		roster := make(Roster, len(members))

		for i, m := range members {
			key, err := parseMemberKey(m.Key)
			if err != nil {
				return nil, 0, fmt.Errorf("shard %d member %d:\n%w", id, i, err)
			}

			roster[i] = Member{Key: key, Addr: m.Addr}
		}

		shards[id] = roster
	}

	reg, err := NewRegistry(shards)
	if err != nil {
		return nil, 0, err
	}

	return reg, f.Epoch, nil
}

// parseMemberKey decodes a hex-encoded BLS public key.
func parseMemberKey(s string) (MemberKey, error) {
	var key MemberKey

	raw, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("decode member key: %w", err)
	}

	if len(raw) != MemberKeySize {
		return key, fmt.Errorf("invalid member key size: got %d, want %d", len(raw), MemberKeySize)
	}

	copy(key[:], raw)

	return key, nil
}
