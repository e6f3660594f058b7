package codec

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// Sum computes the full digest of b under the given hash function.
func Sum(id HashID, b []byte) []byte {
	switch id {
	case HashMD5:
		d := md5.Sum(b)
		return d[:]
	case HashSHA1:
		d := sha1.Sum(b)
		return d[:]
	case HashSHA256:
		d := sha256.Sum256(b)
		return d[:]
	case HashSHA3_384:
		d := sha3.Sum384(b)
		return d[:]
	case HashSHA384:
		d := sha512.Sum384(b)
		return d[:]
	case HashSHA512:
		d := sha512.Sum512(b)
		return d[:]
	case HashBLAKE3:
		d := blake3.Sum256(b)
		return d[:]
	case HashXXH3:
		d := xxh3.Hash128(b).Bytes()
		return d[:]
	case HashXXH128:
		d := xxh3.Hash128(b).Bytes()
		return d[:]
	default:
		return nil
	}
}

// Stamp64 computes the 8-byte integrity stamp the engine stores per entry.
// For XXH3 the stamp is the hash of the bytes directly; for every other hash
// function it is XXH3 over the configured hash's digest. The reduction keeps
// stamp comparison a single uint64 operation regardless of digest width, at
// the cost of the configured hash's cryptographic collision resistance.
func Stamp64(id HashID, b []byte) uint64 {
	if id == HashXXH3 {
		return xxh3.Hash(b)
	}
	return xxh3.Hash(Sum(id, b))
}
