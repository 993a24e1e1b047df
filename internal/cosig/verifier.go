package cosig

import (
	"errors"
	"fmt"

	"ShardDir/internal/committee"
)

var (
	// ErrMalformedBitmap is returned when the bitmap length does not
	// match the roster size.
	ErrMalformedBitmap = errors.New("malformed participation bitmap")

	// ErrInsufficientSigners is returned when fewer members signed than
	// the consensus threshold requires.
	ErrInsufficientSigners = errors.New("insufficient signers")

	// ErrAggregationFailed is returned when the composite public key
	// cannot be built from the selected member keys.
	ErrAggregationFailed = errors.New("public key aggregation failed")

	// ErrSignatureInvalid is returned when the aggregate signature does
	// not verify under the composite key.
	ErrSignatureInvalid = errors.New("aggregate signature invalid")
)

// Verify checks an aggregate cosignature produced by a shard roster.
//
// The bitmap selects which roster members signed; their keys are
// aggregated into one composite key and the signature is verified over
// the message under that key. The set bit count must meet the consensus
// threshold for the roster size (floor(2n/3)+1).
//
// Verify reads no shared state, so concurrent calls are safe. This is
// the dominant cost of submission processing and deliberately runs
// outside any lock.
func Verify(roster committee.Roster, bitmap Bitmap, message, signature []byte) error {
	if len(bitmap) != len(roster) {
		return fmt.Errorf("%w: bitmap %d bits, roster %d members",
			ErrMalformedBitmap, len(bitmap), len(roster))
	}

	// Select the participating member keys.
	var keys []committee.MemberKey

	for i, m := range roster {
		if bitmap[i] {
			keys = append(keys, m.Key)
		}
	}

	required := committee.NumForConsensus(len(roster))
	if len(keys) < required {
		return fmt.Errorf("%w: %d of %d, need %d",
			ErrInsufficientSigners, len(keys), len(roster), required)
	}

	aggKey := aggregatePublicKeys(keys)
	if aggKey == nil {
		return ErrAggregationFailed
	}

	if !verifyAggregate(signature, message, aggKey) {
		return ErrSignatureInvalid
	}

	return nil
}
