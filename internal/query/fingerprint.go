package query

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint is a 256-bit content hash identifying a query result on disk.
type Fingerprint [32]byte

// FingerprintOf hashes the given byte strings in order.
func FingerprintOf(parts ...[]byte) Fingerprint {
	h := sha256.New()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	var out Fingerprint
	copy(out[:], h.Sum(nil))
	return out
}

// Combine builds H(content || dep1 || dep2 ...). deps must be passed in
// a deterministic order.
func Combine(content Fingerprint, deps ...Fingerprint) Fingerprint {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Fingerprint
	copy(out[:], h.Sum(nil))
	return out
}

// IsZero reports whether f was never set.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}
