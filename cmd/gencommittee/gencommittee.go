// Command gencommittee generates a committee assignment file with
// fresh BLS keys, for local clusters and tests. Member seeds are
// written to a separate file so shard leaders can reconstruct their
// signing keys; keep that file out of production setups.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"ShardDir/internal/cosig"
)

// memberOut is one roster entry in the committee file.
type memberOut struct {
	Key  string `json:"key"`
	Addr string `json:"addr"`
}

// committeeOut is the committee assignment file structure.
type committeeOut struct {
	Epoch  uint64        `json:"epoch"`
	Shards [][]memberOut `json:"shards"`
}

// seedOut records a member's signing seed for test setups.
type seedOut struct {
	Shard uint32 `json:"shard"`
	Index int    `json:"index"`
	Key   string `json:"key"`
	Seed  string `json:"seed"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	shards := flag.Int("shards", 3, "Number of shards")
	size := flag.Int("size", 4, "Members per shard roster")
	epoch := flag.Uint64("epoch", 1, "Epoch number of the round being formed")
	out := flag.String("out", "committee.json", "Committee file output path")
	seedsOut := flag.String("seeds", "seeds.json", "Signing seeds output path")
	flag.Parse()

	committee := committeeOut{
		Epoch:  *epoch,
		Shards: make([][]memberOut, *shards),
	}

	var seeds []seedOut

	for shard := 0; shard < *shards; shard++ {
		roster := make([]memberOut, *size)

		for i := 0; i < *size; i++ {
			var seed [32]byte
			if _, err := rand.Read(seed[:]); err != nil {
				return fmt.Errorf("generate seed:\n%w", err)
			}

			key, err := cosig.GenerateKeyFromSeed(seed[:])
			if err != nil {
				return fmt.Errorf("generate key:\n%w", err)
			}

			keyHex := hex.EncodeToString(key.PublicKeyBytes())

			roster[i] = memberOut{
				Key:  keyHex,
				Addr: fmt.Sprintf("127.0.0.1:%d", 9100+shard*100+i),
			}

			seeds = append(seeds, seedOut{
				Shard: uint32(shard),
				Index: i,
				Key:   keyHex,
				Seed:  hex.EncodeToString(seed[:]),
			})
		}

		committee.Shards[shard] = roster
	}

	if err := writeJSON(*out, committee); err != nil {
		return err
	}

	if err := writeJSON(*seedsOut, seeds); err != nil {
		return err
	}

	fmt.Printf("wrote %s (%d shards x %d members) and %s\n", *out, *shards, *size, *seedsOut)

	return nil
}

// writeJSON writes v as indented JSON to path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s:\n%w", path, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s:\n%w", path, err)
	}

	return nil
}
