// Package birch implements a persistent single-file key-value engine with an
// in-memory primary index. It provides a complete implementation of the
// db.Engine interface with a focus on durability, a compact on-disk footprint
// and cheap point reads.
//
// The package focuses on:
//   - A single-file layout: a fixed checksummed header, a value region of
//     concatenated processed blobs, and a trailing index region with a
//     pre-allocated growth pad
//   - Pluggable codecs (compression, AEAD encryption, hashing) applied as a
//     compress -> encrypt pipeline with an 8-byte integrity stamp per value
//   - Buffered appends with timer- and threshold-driven draining
//   - Incremental index persistence: tail appends into the growth pad and
//     in-place patches instead of full rewrites wherever possible
//   - Atomic compaction into a shadow file that reclaims dead space
//
// Key Components:
//
//   - birchImpl: The central engine structure implementing db.Engine. All
//     mutating operations serialize on one write lock; Get and Contains run
//     lock-free against a concurrent index map. A second, read-protection
//     lock coordinates readers with the compactor only while a file swap is
//     in flight, so the read fast path never pays for it.
//
//   - internal.Header: The 64-byte file preamble carrying the codec
//     identities, timestamps and the index region geometry, protected by an
//     FNV-1a checksum and sealed as a whole when encryption is on. The codec
//     identities are immutable after creation; reopening with a different
//     configuration is rejected.
//
//   - internal.Appender: A write-through buffer over the file handle. It
//     tracks the logical end of the data itself and issues only positioned
//     writes, so growing the file as a preallocation hint never disturbs
//     where the next append lands.
//
//   - internal.Entry: The index record in its in-memory, plaintext and
//     sealed on-disk forms. The sealed form wraps the plaintext entry in a
//     small cleartext envelope carrying a payload hash and the deleted flag,
//     which lets tombstoning flip an entry without re-sealing it.
//
// Internal Mechanisms:
//
//   - Write path: caller bytes run through compress -> encrypt, are stamped,
//     and land either in the old slot (replace mode, when they fit) or at the
//     end of the file through the appender. The index mutation is published
//     immediately; persistence happens at the next flush.
//
//   - Flush: a total barrier. The appender drains, dirty index entries are
//     persisted (new entries first, then patches, then tombstones), the
//     header is rewritten last and the file is synced. An entry that was
//     never persisted tail-appends into the growth pad; once the pad is
//     exhausted, or deletion waste crosses the rebuild threshold, the whole
//     index is rewritten: in place when it still fits the current region,
//     otherwise to a fresh region at the end of the file.
//
//   - Read path: the index lookup resolves position and length; if the range
//     extends past the flushed file length the appender drains first. Decode
//     failures of a single value are logged and surface as a missing key,
//     they never take the engine down.
//
//   - Compaction: live values are copied into a shadow file in position
//     order, followed by a fresh contiguous index region and a verified
//     header. The original is renamed to a backup, the shadow takes its
//     place, and the in-memory state (file handle, appender, index map) is
//     swapped as one detached graph under the read-protection lock. The
//     backup is removed only after the swap succeeds.
//
//   - Durability model: flush-based, not WAL-based. Everything before a
//     returned Flush is durable; mutations after it are best-effort until
//     the next barrier. The background flush driver bounds that window.
//
// The engine owns its file exclusively. The format supports a single writer
// in a single process; concurrent readers from other processes are outside
// the contract.
package birch
