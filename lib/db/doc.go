// Package db provides a standardized interface for key-value engine implementations.
// It defines a comprehensive Engine interface that allows for consistent interaction
// with various storage backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for byte-oriented key-value operations
//   - Feature discovery through capability flags
//   - Standardized durability operations (Flush, Compact)
//   - Comprehensive statistics reporting
//   - A shared error type with machine-checkable error kinds
//
// Key Components:
//
//   - Engine Interface: The core interface that all engine implementations must
//     satisfy. It provides methods for basic operations (Set, Get, Contains,
//     Delete), batch operations (SetBatch, DeleteBatch), whole-store operations
//     (Clear, Keys, Count), and durability operations (Flush, Compact).
//     Keys and values are opaque byte slices; key equality is content equality.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method. This allows clients to
//     discover supported operations at runtime.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for different engine backends (currently "birch").
//
//   - Engine Statistics: The EngineStats structure provides standardized
//     reporting on engine state, including live entry count, on-disk footprint,
//     index occupancy and an estimate of space a compaction would reclaim.
//     Note: For most implementations the reclaimable estimate is approximate
//     since a precise calculation can be expensive.
//
//   - Error Kinds: The Error type carries an ErrKind so callers can distinguish
//     a wrong encryption key (KindAuthFailure) from a torn header
//     (KindCorruptHeader) or a codec mismatch (KindConfigMismatch) without
//     string matching.
//
// Durability Contract:
//   - Flush() is a total barrier: when it returns, every mutation that
//     completed before the call is durable on disk. Mutations made after the
//     barrier may or may not be durable until the next Flush.
//   - Get() must observe the latest completed Set for a key even before a
//     Flush, i.e. reads resolve against the engine's in-memory index.
//   - Compact() must preserve exactly the live key-value set; it only changes
//     the physical layout.
//
// Related Packages:
//
// The engines/birch package (github.com/ValentinKolb/fsKV/lib/db/engines/birch)
// provides a persistent single-file implementation of the Engine interface with
// an in-memory primary index, pluggable compression/encryption/hashing codecs,
// buffered appends, incremental index persistence and atomic compaction.
//
// The codec package (github.com/ValentinKolb/fsKV/lib/db/codec) provides the
// pluggable value pipeline (compress -> encrypt) and the hash stamps used for
// integrity checking.
//
// The cache package (github.com/ValentinKolb/fsKV/lib/db/cache) provides an
// optional read-through in-memory cache with TTL support that engines can
// consult before touching the disk.
//
// The registry package (github.com/ValentinKolb/fsKV/lib/db/registry) manages
// multiple named engines rooted in a single directory.
//
// The testing package (github.com/ValentinKolb/fsKV/lib/db/testing) provides
// standardized tests and benchmarks for engine implementations:
//   - RunEngineTests: Runs a standardized test suite to validate implementations
//   - RunEngineBenchmarks: Provides performance benchmarks for comparing implementations
package db
