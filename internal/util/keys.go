package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ShortKey derives a short stable identifier from a canonical key. Canonical
// keys are raw CBOR bytes and may carry caller data, so logs and hooks get
// this hash instead.
func ShortKey(canon string) string {
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:8])
}
