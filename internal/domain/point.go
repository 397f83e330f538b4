package domain

import (
	"crypto/md5" //nolint:gosec // non-cryptographic id derivation
	"encoding/binary"
	"strings"
)

// Point is a vector index entry prepared for upsert.
type Point struct {
	ID      uint32
	Vector  []float32
	Payload map[string]any
}

// PointID derives a deterministic 31-bit point id from the given parts, so
// re-indexing the same source overwrites instead of duplicating.
func PointID(parts ...string) uint32 {
	sum := md5.Sum([]byte(strings.Join(parts, "::"))) //nolint:gosec // see above
	return binary.BigEndian.Uint32(sum[12:]) & 0x7FFFFFFF
}
