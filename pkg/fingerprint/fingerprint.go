package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
)

// Size is the length of a fingerprint in hex characters.
const Size = sha1.Size * 2

// Sum returns the hex encoded sha1 of the line bytes. Lines that differ in any byte,
// including trailing whitespace or line endings, get different fingerprints.
func Sum(line string) string {
	sum := sha1.Sum([]byte(line))
	return hex.EncodeToString(sum[:])
}
