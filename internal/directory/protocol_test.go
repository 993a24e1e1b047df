package directory

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"ShardDir/internal/cosig"
)

// newTestSummary builds a summary with plausible field values. The
// cosignature is filler; codec tests never verify it.
func newTestSummary(rosterSize int, signers []int) *MicroblockSummary {
	s := &MicroblockSummary{
		Header: SummaryHeader{
			BlockNum:  42,
			Timestamp: 1724500000000000,
		},
		Bitmap: cosig.NewBitmap(rosterSize, signers),
		CoSig:  make([]byte, cosig.SignatureSize),
	}

	for i := range s.Header.Producer {
		s.Header.Producer[i] = byte(i)
	}

	copy(s.Header.TxRoot[:], []byte("tx-root-digest-for-codec-tests--"))

	for i := range s.CoSig {
		s.CoSig[i] = byte(i * 3)
	}

	return s
}

// TestSummaryRoundTrip tests summary encode/decode.
func TestSummaryRoundTrip(t *testing.T) {
	original := newTestSummary(4, []int{0, 1, 3})

	decoded, err := DecodeSummary(EncodeSummary(original))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Header != original.Header {
		t.Errorf("header mismatch: got %+v, want %+v", decoded.Header, original.Header)
	}

	if len(decoded.Bitmap) != 4 {
		t.Fatalf("bitmap size: got %d, want 4", len(decoded.Bitmap))
	}

	for i := range original.Bitmap {
		if decoded.Bitmap[i] != original.Bitmap[i] {
			t.Errorf("bitmap bit %d: got %v, want %v", i, decoded.Bitmap[i], original.Bitmap[i])
		}
	}

	if string(decoded.CoSig) != string(original.CoSig) {
		t.Error("cosig mismatch after round trip")
	}
}

// TestSummaryRoundTripWideRoster tests a roster spanning bitmap bytes.
func TestSummaryRoundTripWideRoster(t *testing.T) {
	original := newTestSummary(19, []int{0, 7, 8, 15, 18})

	decoded, err := DecodeSummary(EncodeSummary(original))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got := decoded.Bitmap.SetCount(); got != 5 {
		t.Errorf("set count: got %d, want 5", got)
	}

	if len(decoded.Bitmap) != 19 {
		t.Errorf("bitmap size: got %d, want 19", len(decoded.Bitmap))
	}
}

// TestDecodeSummaryTooShort tests the minimum size check.
func TestDecodeSummaryTooShort(t *testing.T) {
	if _, err := DecodeSummary(make([]byte, minSummarySize-1)); err == nil {
		t.Error("short summary should be rejected")
	}
}

// TestDecodeSummaryEmptyRoster tests rejection of roster length zero.
func TestDecodeSummaryEmptyRoster(t *testing.T) {
	encoded := EncodeSummary(newTestSummary(1, []int{0}))
	encoded[96] = 0
	encoded[97] = 0

	if _, err := DecodeSummary(encoded); err == nil {
		t.Error("zero roster length should be rejected")
	}
}

// TestDecodeSummaryLengthMismatch tests rejection when the roster
// length field disagrees with the message length.
func TestDecodeSummaryLengthMismatch(t *testing.T) {
	encoded := EncodeSummary(newTestSummary(4, []int{0, 1, 2}))

	// Claim a roster needing two bitmap bytes; the message has one.
	encoded[96] = 0
	encoded[97] = 9

	if _, err := DecodeSummary(encoded); err == nil {
		t.Error("roster length / message length mismatch should be rejected")
	}

	// Trailing garbage.
	if _, err := DecodeSummary(append(EncodeSummary(newTestSummary(4, []int{0})), 0xAA)); err == nil {
		t.Error("trailing bytes should be rejected")
	}
}

// TestSubmissionRoundTrip tests envelope encode/decode.
func TestSubmissionRoundTrip(t *testing.T) {
	summary := newTestSummary(4, []int{0, 1, 2})
	epoch := uint256.NewInt(12)

	raw := EncodeSubmission(epoch, 3, 7, summary)

	sub, err := DecodeSubmission(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !sub.Epoch.Eq(epoch) {
		t.Errorf("epoch: got %s, want 12", sub.Epoch)
	}

	if sub.Round != 3 {
		t.Errorf("round: got %d, want 3", sub.Round)
	}

	if sub.Shard != 7 {
		t.Errorf("shard: got %d, want 7", sub.Shard)
	}

	if sub.Summary.Header != summary.Header {
		t.Error("summary header mismatch after round trip")
	}
}

// TestSubmissionLargeEpoch tests that the full 256-bit epoch range
// survives the round trip.
func TestSubmissionLargeEpoch(t *testing.T) {
	epoch := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	raw := EncodeSubmission(epoch, 0, 0, newTestSummary(1, []int{0}))

	sub, err := DecodeSubmission(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !sub.Epoch.Eq(epoch) {
		t.Errorf("epoch: got %s, want 2^200", sub.Epoch)
	}
}

// TestDecodeSubmissionTooShort tests the up-front length check.
func TestDecodeSubmissionTooShort(t *testing.T) {
	for _, size := range []int{0, 1, envelopeSize, minSubmissionSize - 1} {
		_, err := DecodeSubmission(make([]byte, size))
		if !errors.Is(err, ErrTooShort) {
			t.Errorf("size %d: expected ErrTooShort, got %v", size, err)
		}
	}
}

// TestDecodeSubmissionMalformedSummary tests summary error wrapping.
func TestDecodeSubmissionMalformedSummary(t *testing.T) {
	raw := EncodeSubmission(uint256.NewInt(1), 0, 0, newTestSummary(4, []int{0}))

	// Corrupt the roster length inside the summary body.
	raw[envelopeSize+96] = 0xFF
	raw[envelopeSize+97] = 0xFF

	_, err := DecodeSubmission(raw)
	if !errors.Is(err, ErrMalformedSummary) {
		t.Errorf("expected ErrMalformedSummary, got %v", err)
	}
}

// TestContentDigestStable tests that the digest is deterministic and
// content-sensitive.
func TestContentDigestStable(t *testing.T) {
	a := ContentDigest([]byte("shard content"))
	b := ContentDigest([]byte("shard content"))
	c := ContentDigest([]byte("other content"))

	if a != b {
		t.Error("same content should produce same digest")
	}

	if a == c {
		t.Error("different content should produce different digests")
	}
}
