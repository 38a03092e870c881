package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint hashes parts into a fixed-length hex key. Parts are length
// prefixed so ("ab","c") and ("a","bc") differ.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	var size [4]byte
	for _, p := range parts {
		n := len(p)
		size[0], size[1], size[2], size[3] = byte(n>>24), byte(n>>16), byte(n>>8), byte(n)
		_, _ = h.Write(size[:])
		_, _ = h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
