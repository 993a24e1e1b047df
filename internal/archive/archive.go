// Package archive persists completed submission batches so operators
// and the diagnostics API can inspect past rounds. The consensus core
// hands batches over through the directory.BatchArchiver interface and
// has no dependency on this package.
package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"ShardDir/internal/directory"
)

// batchKeyPrefix is the Pebble key prefix for batch entries.
var batchKeyPrefix = []byte("b:")

// checksumSize is the size of the BLAKE3 checksum prefixed to each value.
const checksumSize = 32

// Archive is a Pebble-backed store of completed submission batches,
// keyed by (epoch, round). Values are zstd-compressed and carry a
// BLAKE3 checksum so corruption is detected on read.
type Archive struct {
	db  *pebble.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens or creates an archive at the given path.
func Open(path string) (*Archive, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(8 << 20), // 8 MB cache
		MemTableSize: 8 << 20,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open archive:\n%w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd encoder:\n%w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("create zstd decoder:\n%w", err)
	}

	return &Archive{db: db, enc: enc, dec: dec}, nil
}

// ArchiveBatch stores a completed batch. Batches are written rarely
// (once per round) so the write is synced immediately.
func (a *Archive) ArchiveBatch(epoch uint64, round uint32, batch []directory.ShardSummary) error {
	payload := encodeBatch(batch)
	compressed := a.enc.EncodeAll(payload, nil)

	value := make([]byte, checksumSize+len(compressed))
	sum := blake3.Sum256(compressed)
	copy(value[:checksumSize], sum[:])
	copy(value[checksumSize:], compressed)

	if err := a.db.Set(makeBatchKey(epoch, round), value, pebble.Sync); err != nil {
		return fmt.Errorf("store batch:\n%w", err)
	}

	return nil
}

// Batch loads a stored batch. Returns nil with no error if the
// (epoch, round) pair was never archived.
func (a *Archive) Batch(epoch uint64, round uint32) ([]directory.ShardSummary, error) {
	value, closer, err := a.db.Get(makeBatchKey(epoch, round))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load batch:\n%w", err)
	}
	defer closer.Close()

	if len(value) < checksumSize {
		return nil, fmt.Errorf("batch value truncated: %d bytes", len(value))
	}

	compressed := value[checksumSize:]
	sum := blake3.Sum256(compressed)

	if !bytes.Equal(sum[:], value[:checksumSize]) {
		return nil, fmt.Errorf("batch checksum mismatch for epoch %d round %d", epoch, round)
	}

	payload, err := a.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress batch:\n%w", err)
	}

	return decodeBatch(payload)
}

// Epochs returns the (epoch, round) pairs of all archived batches in
// key order.
func (a *Archive) Epochs() ([][2]uint64, error) {
	iter, err := a.db.NewIter(&pebble.IterOptions{
		LowerBound: batchKeyPrefix,
		UpperBound: []byte("b;"), // ':' + 1
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries [][2]uint64

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(batchKeyPrefix)+12 {
			continue
		}

		epoch := binary.BigEndian.Uint64(key[2:10])
		round := binary.BigEndian.Uint32(key[10:14])
		entries = append(entries, [2]uint64{epoch, uint64(round)})
	}

	return entries, iter.Error()
}

// Close closes the archive.
func (a *Archive) Close() error {
	a.enc.Close()
	a.dec.Close()

	return a.db.Close()
}

// makeBatchKey builds the Pebble key: "b:" + epoch (8B BE) + round (4B BE).
func makeBatchKey(epoch uint64, round uint32) []byte {
	key := make([]byte, len(batchKeyPrefix)+12)
	copy(key, batchKeyPrefix)
	binary.BigEndian.PutUint64(key[2:10], epoch)
	binary.BigEndian.PutUint32(key[10:14], round)

	return key
}

// encodeBatch serializes a batch: [4B count] then per entry
// [4B shard] [4B length] [summary wire bytes].
func encodeBatch(batch []directory.ShardSummary) []byte {
	var buf bytes.Buffer

	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(len(batch)))
	buf.Write(scratch[:])

	for _, entry := range batch {
		encoded := directory.EncodeSummary(entry.Summary)

		binary.BigEndian.PutUint32(scratch[:], entry.Shard)
		buf.Write(scratch[:])
		binary.BigEndian.PutUint32(scratch[:], uint32(len(encoded)))
		buf.Write(scratch[:])
		buf.Write(encoded)
	}

	return buf.Bytes()
}

// decodeBatch deserializes a batch payload.
func decodeBatch(payload []byte) ([]directory.ShardSummary, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("batch payload truncated")
	}

	count := binary.BigEndian.Uint32(payload[:4])
	offset := 4

	batch := make([]directory.ShardSummary, 0, count)

	for i := uint32(0); i < count; i++ {
		if len(payload) < offset+8 {
			return nil, fmt.Errorf("batch entry %d truncated", i)
		}

		shard := binary.BigEndian.Uint32(payload[offset : offset+4])
		length := int(binary.BigEndian.Uint32(payload[offset+4 : offset+8]))
		offset += 8

		if len(payload) < offset+length {
			return nil, fmt.Errorf("batch entry %d truncated: need %d bytes", i, length)
		}

		summary, err := directory.DecodeSummary(payload[offset : offset+length])
		if err != nil {
			return nil, fmt.Errorf("batch entry %d:\n%w", i, err)
		}

		offset += length

		batch = append(batch, directory.ShardSummary{Shard: shard, Summary: summary})
	}

	return batch, nil
}
