package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a robust random seed for internal hash distribution
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fallback with the current time, only as a last resort
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// UintKey is an efficient key type based on uint64 for internal hash representation
type UintKey uint64

// FNV-1a constants
const (
	offset64 = 14695981039346656037
	prime64  = 1099511628211
	offset32 = 2166136261
	prime32  = 16777619
)

// HashBytes generates a hash value for a byte slice with a seed.
// This function uses the FNV-1a hash algorithm, which is fast and has good distribution.
func HashBytes(b []byte, seed uint64) UintKey {

	// Start with the offset combined with our seed for uniqueness
	hash := uint64(offset64) ^ seed

	for i := 0; i < len(b); i++ {
		hash ^= uint64(b[i])
		hash *= prime64
	}

	return UintKey(hash)
}

// FNV1a32 computes the 32-bit FNV-1a hash of a byte slice.
// It is used as the file-header checksum.
func FNV1a32(b []byte) uint32 {
	hash := uint32(offset32)
	for i := 0; i < len(b); i++ {
		hash ^= uint32(b[i])
		hash *= prime32
	}
	return hash
}
