package cosig

import (
	"crypto/rand"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"

	"ShardDir/internal/committee"
)

const (
	// PublicKeySize is the size of a compressed BLS public key in bytes.
	PublicKeySize = 48

	// SignatureSize is the size of a compressed BLS signature in bytes.
	SignatureSize = 96
)

// dst is the domain separation tag for shard cosignatures.
var dst = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

// KeyPair holds a BLS private/public key pair.
type KeyPair struct {
	secret *blst.SecretKey // secret is the private key
	public *blst.P1Affine  // public is the public key
}

// GenerateKey creates a new BLS key pair from a random seed.
func GenerateKey() (*KeyPair, error) {
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, fmt.Errorf("generate random seed:\n%w", err)
	}

	return GenerateKeyFromSeed(ikm[:])
}

// GenerateKeyFromSeed creates a BLS key pair from a deterministic seed.
// The seed must be at least 32 bytes.
func GenerateKeyFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("seed must be at least 32 bytes")
	}

	secret := blst.KeyGen(seed)
	if secret == nil {
		return nil, fmt.Errorf("failed to generate BLS key")
	}

	public := new(blst.P1Affine).From(secret)

	return &KeyPair{
		secret: secret,
		public: public,
	}, nil
}

// Sign creates a BLS signature over the message.
func (k *KeyPair) Sign(message []byte) []byte {
	sig := new(blst.P2Affine).Sign(k.secret, message, dst)
	return sig.Compress()
}

// PublicKeyBytes returns the compressed public key bytes.
func (k *KeyPair) PublicKeyBytes() []byte {
	return k.public.Compress()
}

// MemberKey returns the public key as a committee member key.
func (k *KeyPair) MemberKey() committee.MemberKey {
	var key committee.MemberKey
	copy(key[:], k.public.Compress())

	return key
}

// AggregateSignatures combines multiple BLS signatures into one.
// All signatures must be over the same message.
func AggregateSignatures(signatures [][]byte) ([]byte, error) {
	if len(signatures) == 0 {
		return nil, fmt.Errorf("no signatures to aggregate")
	}

	sigs := make([]*blst.P2Affine, len(signatures))

	for i, sigBytes := range signatures {
		if len(sigBytes) != SignatureSize {
			return nil, fmt.Errorf("invalid signature size at index %d", i)
		}

		sig := new(blst.P2Affine).Uncompress(sigBytes)
		if sig == nil {
			return nil, fmt.Errorf("invalid signature at index %d", i)
		}

		sigs[i] = sig
	}

	agg := new(blst.P2Aggregate)
	if !agg.Aggregate(sigs, true) {
		return nil, fmt.Errorf("signature aggregation failed")
	}

	return agg.ToAffine().Compress(), nil
}

// aggregatePublicKeys combines member keys into one composite key.
// Returns nil if the set is empty or any key fails to decode.
func aggregatePublicKeys(keys []committee.MemberKey) *blst.P1Affine {
	if len(keys) == 0 {
		return nil
	}

	pks := make([]*blst.P1Affine, len(keys))

	for i, keyBytes := range keys {
		pk := new(blst.P1Affine).Uncompress(keyBytes[:])
		if pk == nil {
			return nil
		}

		pks[i] = pk
	}

	agg := new(blst.P1Aggregate)
	if !agg.Aggregate(pks, true) {
		return nil
	}

	return agg.ToAffine()
}

// verifyAggregate checks a signature against a message under a composite key.
func verifyAggregate(signature []byte, message []byte, aggKey *blst.P1Affine) bool {
	if len(signature) != SignatureSize {
		return false
	}

	sig := new(blst.P2Affine).Uncompress(signature)
	if sig == nil {
		return false
	}

	return sig.Verify(true, aggKey, true, message, dst)
}
