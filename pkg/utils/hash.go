package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashString returns a hex fingerprint of input, used to dedupe raw
// recipient strings submitted more than once in the same batch.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
