package directory

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// epochFieldSize is the wire size of the epoch number (256-bit unsigned).
	epochFieldSize = 32

	// envelopeSize is the fixed submission envelope:
	// 32B epoch number + 4B round id + 4B shard id.
	envelopeSize = epochFieldSize + 4 + 4

	// minSubmissionSize is the smallest well-formed submission message.
	minSubmissionSize = envelopeSize + minSummarySize
)

var (
	// ErrTooShort is returned when a message is shorter than the fixed
	// envelope plus the minimum encodable summary.
	ErrTooShort = errors.New("submission too short")

	// ErrMalformedSummary is returned when the summary body fails to decode.
	ErrMalformedSummary = errors.New("malformed summary")
)

// Submission is a decoded microblock submission message.
type Submission struct {
	Epoch   *uint256.Int       // Epoch is the epoch number the summary belongs to
	Round   uint32             // Round is the consensus round id
	Shard   uint32             // Shard is the sender's claimed shard id
	Summary *MicroblockSummary // Summary is the signed microblock summary
}

// EncodeSubmission encodes a submission message.
// Layout: [32B epoch, big-endian] [4B round] [4B shard] [summary]
func EncodeSubmission(epoch *uint256.Int, round, shard uint32, summary *MicroblockSummary) []byte {
	body := EncodeSummary(summary)
	buf := make([]byte, envelopeSize+len(body))

	epochBytes := epoch.Bytes32()
	copy(buf[0:32], epochBytes[:])
	binary.BigEndian.PutUint32(buf[32:36], round)
	binary.BigEndian.PutUint32(buf[36:40], shard)
	copy(buf[envelopeSize:], body)

	return buf
}

// DecodeSubmission decodes a submission message. The total length is
// validated up front; no field is read past the message bounds.
func DecodeSubmission(data []byte) (*Submission, error) {
	if len(data) < minSubmissionSize {
		return nil, fmt.Errorf("%w: %d < %d", ErrTooShort, len(data), minSubmissionSize)
	}

	epoch := new(uint256.Int).SetBytes(data[0:32])
	round := binary.BigEndian.Uint32(data[32:36])
	shard := binary.BigEndian.Uint32(data[36:40])

	summary, err := DecodeSummary(data[envelopeSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSummary, err)
	}

	return &Submission{
		Epoch:   epoch,
		Round:   round,
		Shard:   shard,
		Summary: summary,
	}, nil
}
