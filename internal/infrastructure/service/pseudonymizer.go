// Package service contains infrastructure adapters that sit between the
// application layer and the outside world.
package service

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
)

// Pseudonymizer derives stable pseudonymous learner ids from raw platform
// user ids with a keyed BLAKE2b hash. The same raw id always maps to the
// same learner id, but without the key the mapping cannot be reversed or
// recomputed. The event pipeline never stores a raw id.
type Pseudonymizer struct {
	key []byte
}

// Compile-time interface check.
var _ behavior.Anonymizer = (*Pseudonymizer)(nil)

// NewPseudonymizer creates a Pseudonymizer with the given secret key.
// blake2b accepts keys up to 64 bytes; longer keys are truncated.
func NewPseudonymizer(key []byte) *Pseudonymizer {
	if len(key) > 64 {
		key = key[:64]
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Pseudonymizer{key: k}
}

// Pseudonymize implements behavior.Anonymizer. The result is the first 16
// bytes of the keyed hash, hex-encoded: a 32-character lowercase id that
// satisfies the learner id format.
func (p *Pseudonymizer) Pseudonymize(rawUserID string) shared.LearnerID {
	h, err := blake2b.New256(p.key)
	if err != nil {
		// Only possible with a key over 64 bytes, which the constructor rules out.
		panic(err)
	}
	h.Write([]byte(rawUserID))
	sum := h.Sum(nil)

	return shared.LearnerID(hex.EncodeToString(sum[:16]))
}
