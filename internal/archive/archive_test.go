package archive

import (
	"path/filepath"
	"testing"

	"ShardDir/internal/cosig"
	"ShardDir/internal/directory"
)

// newTestArchive creates a temporary archive for tests.
func newTestArchive(t *testing.T) *Archive {
	t.Helper()

	a, err := Open(filepath.Join(t.TempDir(), "archive"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}

	t.Cleanup(func() { a.Close() })

	return a
}

// testBatch builds a batch of size summaries with distinct fields.
func testBatch(size int) []directory.ShardSummary {
	batch := make([]directory.ShardSummary, size)

	for i := range batch {
		s := &directory.MicroblockSummary{
			Header: directory.SummaryHeader{
				BlockNum:  uint64(i + 100),
				Timestamp: uint64(i) * 1_000_000,
			},
			Bitmap: cosig.NewBitmap(4, []int{0, 1, 2}),
			CoSig:  make([]byte, cosig.SignatureSize),
		}

		s.Header.Producer[0] = byte(i + 1)
		s.Header.TxRoot = directory.ContentDigest([]byte{byte(i)})

		for j := range s.CoSig {
			s.CoSig[j] = byte(i + j)
		}

		batch[i] = directory.ShardSummary{Shard: uint32(i), Summary: s}
	}

	return batch
}

// TestArchiveRoundTrip tests storing and loading a batch.
func TestArchiveRoundTrip(t *testing.T) {
	a := newTestArchive(t)
	batch := testBatch(3)

	if err := a.ArchiveBatch(5, 2, batch); err != nil {
		t.Fatalf("archive batch: %v", err)
	}

	loaded, err := a.Batch(5, 2)
	if err != nil {
		t.Fatalf("load batch: %v", err)
	}

	if len(loaded) != 3 {
		t.Fatalf("batch size: got %d, want 3", len(loaded))
	}

	for i, entry := range loaded {
		want := batch[i]

		if entry.Shard != want.Shard {
			t.Errorf("entry %d shard: got %d, want %d", i, entry.Shard, want.Shard)
		}

		if entry.Summary.Header != want.Summary.Header {
			t.Errorf("entry %d header mismatch", i)
		}

		if string(entry.Summary.CoSig) != string(want.Summary.CoSig) {
			t.Errorf("entry %d cosig mismatch", i)
		}

		if entry.Summary.Bitmap.SetCount() != 3 {
			t.Errorf("entry %d bitmap set count: got %d, want 3", i, entry.Summary.Bitmap.SetCount())
		}
	}
}

// TestArchiveMissingBatch tests loading a round that was never stored.
func TestArchiveMissingBatch(t *testing.T) {
	a := newTestArchive(t)

	batch, err := a.Batch(99, 0)
	if err != nil {
		t.Fatalf("load missing batch: %v", err)
	}

	if batch != nil {
		t.Errorf("missing batch should be nil, got %d entries", len(batch))
	}
}

// TestArchiveOverwrite tests that re-archiving a round replaces it.
func TestArchiveOverwrite(t *testing.T) {
	a := newTestArchive(t)

	if err := a.ArchiveBatch(5, 2, testBatch(1)); err != nil {
		t.Fatalf("first archive: %v", err)
	}

	if err := a.ArchiveBatch(5, 2, testBatch(3)); err != nil {
		t.Fatalf("second archive: %v", err)
	}

	loaded, err := a.Batch(5, 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(loaded) != 3 {
		t.Errorf("batch size: got %d, want 3", len(loaded))
	}
}

// TestArchiveEpochs tests listing archived rounds in key order.
func TestArchiveEpochs(t *testing.T) {
	a := newTestArchive(t)

	a.ArchiveBatch(7, 1, testBatch(1))
	a.ArchiveBatch(5, 2, testBatch(1))
	a.ArchiveBatch(5, 0, testBatch(1))

	entries, err := a.Epochs()
	if err != nil {
		t.Fatalf("epochs: %v", err)
	}

	want := [][2]uint64{{5, 0}, {5, 2}, {7, 1}}

	if len(entries) != len(want) {
		t.Fatalf("entries: got %v, want %v", entries, want)
	}

	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d: got %v, want %v", i, entries[i], want[i])
		}
	}
}

// TestArchiveEmptyBatch tests the degenerate zero-entry batch.
func TestArchiveEmptyBatch(t *testing.T) {
	a := newTestArchive(t)

	if err := a.ArchiveBatch(1, 0, nil); err != nil {
		t.Fatalf("archive empty batch: %v", err)
	}

	loaded, err := a.Batch(1, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(loaded) != 0 {
		t.Errorf("batch size: got %d, want 0", len(loaded))
	}
}
