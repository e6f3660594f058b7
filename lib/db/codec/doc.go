// Package codec provides the pluggable transform layer of the engine:
// compression codecs, AEAD ciphers and hash functions, each identified by a
// one-byte ID that is persisted in the file header.
//
// The package contains:
//   - compress: eight compression codecs (none, gzip, deflate, brotli, lz4, zstd, snappy, lzma)
//   - cipher: two AEAD ciphers (AES-256-GCM, ChaCha20-Poly1305) with PBKDF2 key stretching
//   - hash: nine hash functions plus the 8-byte Stamp64 reduction used for integrity checks
//   - Pipeline: the composition an engine consumes (compress -> encrypt on write,
//     decrypt -> decompress on read)
//
// Dispatch is a switch on the ID byte; there is no runtime subtyping. Codec
// IDs are part of the on-disk format and must never be renumbered.
//
// All transforms are pure: they derive no state from the engine and are safe
// for concurrent use.
package codec
