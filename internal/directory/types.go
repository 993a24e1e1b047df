package directory

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"

	"ShardDir/internal/committee"
	"ShardDir/internal/cosig"
)

const (
	// summaryHeaderSize is the size of the signed summary header:
	// 8B block number + 48B producer key + 8B timestamp + 32B tx root.
	summaryHeaderSize = 8 + committee.MemberKeySize + 8 + 32

	// minSummarySize is the smallest encodable summary: header +
	// 2B roster length + 1 bitmap byte (roster size >= 1) + 96B cosig.
	minSummarySize = summaryHeaderSize + 2 + 1 + cosig.SignatureSize
)

// SummaryHeader is the signed portion of a microblock summary.
// The shard's aggregate cosignature covers exactly these bytes.
type SummaryHeader struct {
	BlockNum  uint64              // BlockNum is the microblock number within the epoch
	Producer  committee.MemberKey // Producer is the shard leader's public key
	Timestamp uint64              // Timestamp is the production time in unix micros
	TxRoot    [32]byte            // TxRoot is the BLAKE3 digest of the shard's transaction content
}

// MicroblockSummary is a shard's signed summary of its processed
// transactions for one round. Its identity for batch membership is
// (TxRoot, shard id); the shard id travels in the submission envelope.
type MicroblockSummary struct {
	Header SummaryHeader // Header is the signed summary header
	Bitmap cosig.Bitmap  // Bitmap records which roster members cosigned
	CoSig  []byte        // CoSig is the 96-byte BLS aggregate signature over HeaderBytes
}

// HeaderBytes returns the canonical signed header encoding.
func (s *MicroblockSummary) HeaderBytes() []byte {
	buf := make([]byte, summaryHeaderSize)
	encodeSummaryHeader(buf, &s.Header)

	return buf
}

// encodeSummaryHeader writes the header fields at fixed offsets.
func encodeSummaryHeader(buf []byte, h *SummaryHeader) {
	binary.BigEndian.PutUint64(buf[0:8], h.BlockNum)
	copy(buf[8:56], h.Producer[:])
	binary.BigEndian.PutUint64(buf[56:64], h.Timestamp)
	copy(buf[64:96], h.TxRoot[:])
}

// EncodeSummary encodes a summary to its wire form.
// Layout: [96B header] [2B roster length] [packed bitmap] [96B cosig]
func EncodeSummary(s *MicroblockSummary) []byte {
	packed := cosig.PackBitmap(s.Bitmap)
	buf := make([]byte, summaryHeaderSize+2+len(packed)+cosig.SignatureSize)

	encodeSummaryHeader(buf, &s.Header)
	binary.BigEndian.PutUint16(buf[96:98], uint16(len(s.Bitmap)))
	copy(buf[98:98+len(packed)], packed)
	copy(buf[98+len(packed):], s.CoSig)

	return buf
}

// DecodeSummary decodes a summary from its wire form.
// The encoding is self-describing: the roster length field determines
// the bitmap size, and the cosignature fills the remaining bytes.
func DecodeSummary(data []byte) (*MicroblockSummary, error) {
	if len(data) < minSummarySize {
		return nil, fmt.Errorf("summary too short: %d < %d", len(data), minSummarySize)
	}

	rosterLen := int(binary.BigEndian.Uint16(data[96:98]))
	if rosterLen == 0 {
		return nil, fmt.Errorf("summary has empty roster")
	}

	bitmapBytes := (rosterLen + 7) / 8
	want := summaryHeaderSize + 2 + bitmapBytes + cosig.SignatureSize

	if len(data) != want {
		return nil, fmt.Errorf("summary length mismatch: got %d, want %d for roster size %d",
			len(data), want, rosterLen)
	}

	bitmap, ok := cosig.UnpackBitmap(data[98:98+bitmapBytes], rosterLen)
	if !ok {
		return nil, fmt.Errorf("bitmap truncated")
	}

	s := &MicroblockSummary{
		Header: SummaryHeader{
			BlockNum:  binary.BigEndian.Uint64(data[0:8]),
			Timestamp: binary.BigEndian.Uint64(data[56:64]),
		},
		Bitmap: bitmap,
		CoSig:  make([]byte, cosig.SignatureSize),
	}
	copy(s.Header.Producer[:], data[8:56])
	copy(s.Header.TxRoot[:], data[64:96])
	copy(s.CoSig, data[98+bitmapBytes:])

	return s, nil
}

// ContentDigest computes the BLAKE3 digest of a shard's transaction
// content, the value carried in SummaryHeader.TxRoot.
func ContentDigest(content []byte) [32]byte {
	return blake3.Sum256(content)
}
