// Package cache implements the optional "memory mode" of the library: a
// read-through in-memory cache with TTL support that engines consult before
// touching the disk.
//
// The cache is sharded to minimize contention. Each shard owns:
//   - an xsync.MapOf holding the cached entries, keyed by a seeded 64-bit
//     hash of the byte key (the full key is stored alongside the value and
//     verified on read, so hash collisions degrade to cache misses)
//   - an eviction schedule (util.ExpiryHeap) ordered by deadline
//   - an event queue carrying write/invalidation events from the write path
//     to the shard's sweeper goroutine; producers append lock-free and the
//     queue coalesces bursts down to the last event per key before the
//     sweeper sees them
//
// Expiry is enforced twice: reads reject entries past their deadline
// immediately, and the per-shard sweeper evicts them in the background to
// bound memory. The sweeper is therefore a memory optimization, never a
// correctness requirement.
//
// The cache holds decoded caller bytes, not the processed on-disk form, so a
// compaction (which moves values without changing their content) does not
// invalidate it. Set, Delete and Clear on the engine must invalidate the
// corresponding cache entries.
package cache
