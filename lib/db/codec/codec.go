package codec

import (
	"crypto/cipher"
	"fmt"
)

// --------------------------------------------------------------------------
// Codec Identifiers
// --------------------------------------------------------------------------

// CompressionID identifies a compression codec. The byte value is persisted
// in the file header and must never be renumbered.
type CompressionID byte

const (
	CompressionNone CompressionID = iota
	CompressionGzip
	CompressionDeflate
	CompressionBrotli
	CompressionLZ4
	CompressionZstd
	CompressionSnappy
	CompressionLZMA
)

func (c CompressionID) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionDeflate:
		return "deflate"
	case CompressionBrotli:
		return "brotli"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZMA:
		return "lzma"
	default:
		return "unknown"
	}
}

// Valid reports whether the ID maps to a known compressor.
func (c CompressionID) Valid() bool {
	return c <= CompressionLZMA
}

// ParseCompression converts a codec name to its ID.
func ParseCompression(s string) (CompressionID, error) {
	for id := CompressionNone; id <= CompressionLZMA; id++ {
		if id.String() == s {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown compression codec %q", s)
}

// EncryptionID identifies an AEAD cipher. The byte value is persisted in the
// file header and must never be renumbered.
type EncryptionID byte

const (
	EncryptionNone EncryptionID = iota
	EncryptionAES256GCM
	EncryptionChaCha20Poly1305
)

func (e EncryptionID) String() string {
	switch e {
	case EncryptionNone:
		return "none"
	case EncryptionAES256GCM:
		return "aes-256-gcm"
	case EncryptionChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// Valid reports whether the ID maps to a known cipher.
func (e EncryptionID) Valid() bool {
	return e <= EncryptionChaCha20Poly1305
}

// ParseEncryption converts a cipher name to its ID.
func ParseEncryption(s string) (EncryptionID, error) {
	for id := EncryptionNone; id <= EncryptionChaCha20Poly1305; id++ {
		if id.String() == s {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown encryption codec %q", s)
}

// HashID identifies a hash function. The byte value is persisted in the file
// header and must never be renumbered.
type HashID byte

const (
	HashMD5 HashID = iota
	HashSHA1
	HashSHA256
	HashSHA3_384
	HashSHA384
	HashSHA512
	HashBLAKE3
	HashXXH3
	HashXXH128
)

func (h HashID) String() string {
	switch h {
	case HashMD5:
		return "md5"
	case HashSHA1:
		return "sha1"
	case HashSHA256:
		return "sha256"
	case HashSHA3_384:
		return "sha3-384"
	case HashSHA384:
		return "sha384"
	case HashSHA512:
		return "sha512"
	case HashBLAKE3:
		return "blake3"
	case HashXXH3:
		return "xxh3"
	case HashXXH128:
		return "xxh128"
	default:
		return "unknown"
	}
}

// Valid reports whether the ID maps to a known hash function.
func (h HashID) Valid() bool {
	return h <= HashXXH128
}

// ParseHash converts a hash name to its ID.
func ParseHash(s string) (HashID, error) {
	for id := HashMD5; id <= HashXXH128; id++ {
		if id.String() == s {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown hash codec %q", s)
}

// --------------------------------------------------------------------------
// Pipeline
// --------------------------------------------------------------------------

// Pipeline bundles the three codecs an engine is configured with and applies
// them in the storage order: values are compressed first and sealed second,
// so that the cipher operates on the (usually smaller) compressed bytes.
// The read path applies the inverse order.
//
// A Pipeline is immutable after construction and safe for concurrent use.
type Pipeline struct {
	Compression CompressionID
	Encryption  EncryptionID
	Hash        HashID

	aead cipher.AEAD // nil when Encryption == EncryptionNone
}

// NewPipeline validates the codec IDs and, if encryption is requested,
// stretches the key and initializes the AEAD cipher.
func NewPipeline(c CompressionID, e EncryptionID, h HashID, key string) (*Pipeline, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid compression id %d", c)
	}
	if !e.Valid() {
		return nil, fmt.Errorf("invalid encryption id %d", e)
	}
	if !h.Valid() {
		return nil, fmt.Errorf("invalid hash id %d", h)
	}

	p := &Pipeline{
		Compression: c,
		Encryption:  e,
		Hash:        h,
	}

	if e != EncryptionNone {
		aead, err := newAEAD(e, key)
		if err != nil {
			return nil, err
		}
		p.aead = aead
	}

	return p, nil
}

// Encrypted reports whether the pipeline seals its output.
func (p *Pipeline) Encrypted() bool {
	return p.aead != nil
}

// Overhead returns the per-record byte overhead the seal step adds
// (nonce + tag), or 0 when encryption is off.
func (p *Pipeline) Overhead() int {
	if p.aead == nil {
		return 0
	}
	return SealOverhead
}

// Encode runs caller bytes through compress -> encrypt and returns the
// processed bytes as they will be stored on disk.
func (p *Pipeline) Encode(b []byte) ([]byte, error) {
	out, err := Compress(p.Compression, b)
	if err != nil {
		return nil, err
	}
	if p.aead != nil {
		out, err = Seal(p.aead, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Decode runs stored bytes through decrypt -> decompress and returns the
// original caller bytes.
func (p *Pipeline) Decode(b []byte) ([]byte, error) {
	var err error
	if p.aead != nil {
		b, err = Open(p.aead, b)
		if err != nil {
			return nil, err
		}
	}
	return Decompress(p.Compression, b)
}

// Seal seals raw bytes without compressing them. Used for the file header
// and for index entries, which have their own fixed layouts.
func (p *Pipeline) Seal(b []byte) ([]byte, error) {
	if p.aead == nil {
		return b, nil
	}
	return Seal(p.aead, b)
}

// Open reverses Seal.
func (p *Pipeline) Open(b []byte) ([]byte, error) {
	if p.aead == nil {
		return b, nil
	}
	return Open(p.aead, b)
}

// Stamp computes the 8-byte integrity stamp of b under the configured hash.
func (p *Pipeline) Stamp(b []byte) uint64 {
	return Stamp64(p.Hash, b)
}
