package db

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplBirch Implementation = "birch"
)

// Feature represents engine features as bit flags
type Feature uint64

const (
	FeatureSet         Feature = 1 << iota // Support for Set operations
	FeatureGet                             // Support for Get operations
	FeatureContains                        // Support for Contains operations
	FeatureDelete                          // Support for Delete operations
	FeatureSetBatch                        // Support for SetBatch operations
	FeatureDeleteBatch                     // Support for DeleteBatch operations
	FeatureClear                           // Support for Clear operations
	FeatureFlush                           // Support for durable Flush operations
	FeatureCompact                         // Support for Compact operations
	FeatureKeys                            // Support for Keys enumeration
	FeaturePersistence                     // Engine state survives Close/Open cycles
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureContains:
		return "Contains"
	case FeatureDelete:
		return "Delete"
	case FeatureSetBatch:
		return "SetBatch"
	case FeatureDeleteBatch:
		return "DeleteBatch"
	case FeatureClear:
		return "Clear"
	case FeatureFlush:
		return "Flush"
	case FeatureCompact:
		return "Compact"
	case FeatureKeys:
		return "Keys"
	case FeaturePersistence:
		return "Persistence"
	default:
		return "Unknown"
	}
}

// Item is a single key-value pair handed to batch operations.
// Keys and values are opaque byte sequences; the engine never interprets them.
type Item struct {
	Key   []byte
	Value []byte
}

// SizeSummary describes the distribution of stored (processed) value sizes.
// Median and P95 are histogram estimates, not exact values.
type SizeSummary struct {
	Count  int64 `json:"count"`
	Mean   int   `json:"mean"`
	Median int   `json:"median"`
	P95    int   `json:"p95"`
}

// EngineStats is a point-in-time snapshot of an engine's state.
// It is not guaranteed that all fields are filled in by every implementation.
type EngineStats struct {
	DbType      Implementation `json:"db_type"`
	LiveCount   int            `json:"live_count"`
	FileLength  int64          `json:"file_length"`
	ValueBytes  int64          `json:"value_bytes"` // bytes occupied by live values
	IndexUsed   uint32         `json:"index_used"`  // bytes used by index entries
	IndexSpace  uint32         `json:"index_space"` // bytes allocated for the index region
	Reclaimable int64          `json:"reclaimable"` // estimate of bytes a compaction would free
	ValueSizes  SizeSummary    `json:"value_sizes"` // distribution of processed value sizes
	Compacting  bool           `json:"compacting"`  // whether a compaction is in flight
	Dirty       bool           `json:"dirty"`       // whether un-flushed mutations exist
}

// --------------------------------------------------------------------------
// Engine Interface
// --------------------------------------------------------------------------

// Engine defines the interface for key-value engine implementations.
// Keys and values are byte slices; key equality is content equality.
// Any implementation of this interface must serialize its mutating operations
// so that the single-writer invariants hold within one process.
// Implementations can vary in their feature support, which can be queried
// with SupportsFeature.
type Engine interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry with the given key and value.
	// Setting a key to a value whose processed form is identical to the
	// stored one is a no-op.
	Set(key, value []byte) (err error)

	// SetBatch inserts or updates all items in one pass. If skipDuplicates is
	// true, items whose processed value already matches the stored entry are
	// skipped. Returns the number of items written.
	SetBatch(items []Item, skipDuplicates bool) (n int, err error)

	// Delete removes an entry with the specified key.
	// The boolean return value indicates whether the key existed.
	Delete(key []byte) (existed bool, err error)

	// DeleteBatch removes all given keys and returns how many existed.
	DeleteBatch(keys [][]byte) (n int, err error)

	// Clear removes every entry and resets the engine to its empty state.
	Clear() (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	// A value whose stored bytes can no longer be decoded is reported as not
	// found, never as an error.
	Get(key []byte) (value []byte, loaded bool, err error)

	// Contains checks whether a key exists without touching the value bytes.
	Contains(key []byte) (loaded bool, err error)

	// Keys returns a snapshot of all live keys. The returned slices are copies.
	Keys() (keys [][]byte)

	// Count returns the number of live entries.
	Count() (n int)

	// --------------------------------------------------------------------------
	// Durability Operations
	// --------------------------------------------------------------------------

	// Flush is a total barrier: when it returns, all earlier successful
	// mutations are durable on disk.
	Flush() (err error)

	// Compact rewrites the underlying storage so that only live entries
	// remain. With full set, no growth headroom is reserved for the index
	// region.
	Compact(full bool) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the engine implementation supports the specified feature.
	// Multiple features can be checked at once using the bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// Stats returns information about the engine.
	Stats() (stats EngineStats)

	// Close flushes and closes the engine.
	Close() (err error)
}
