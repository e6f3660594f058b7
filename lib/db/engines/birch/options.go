package birch

import (
	"time"

	"github.com/ValentinKolb/fsKV/lib/db/codec"
	"github.com/ValentinKolb/fsKV/lib/logger"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// UpdateMode selects the write policy for updates to existing keys.
type UpdateMode byte

const (
	// UpdateAppend always writes updated values to the end of the file.
	UpdateAppend UpdateMode = iota
	// UpdateReplace overwrites a value in place when the new processed size
	// fits into the old slot, falling back to append otherwise.
	UpdateReplace
)

func (m UpdateMode) String() string {
	switch m {
	case UpdateAppend:
		return "append"
	case UpdateReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Options configures the engine during Open. Codec identities are fixed at
// file-create time; reopening with different codecs fails.
type Options struct {
	// Codec identities
	Compression   codec.CompressionID
	Encryption    codec.EncryptionID
	Hash          codec.HashID
	EncryptionKey string // required when Encryption != none, min 16 chars

	// Limits and buffers
	MaxKeyLength       int // maximum accepted key length in bytes
	FileStreamBufferKB int // buffer size for sequential file scans (compaction, load)

	// Write buffering
	WriteBufferEnabled         bool
	WriteBufferKB              int // appender capacity
	WriteBufferTimeThresholdMS int // appender auto-flush interval

	// Durability
	FlushIntervalS int // background flush period, 0 disables the driver

	// Update policy
	FileUpdateMode UpdateMode

	// Compaction
	AutoCompactEnabled   bool
	AutoCompactThreshold uint8 // percent of the file that may be dead before auto compaction

	// Index persistence
	IndexRebuildThreshold uint8 // percent, growth pad size and rebuild trigger; 0 forces full rebuilds

	// Integrity
	UpdateValidationEnabled bool // read back every write and compare
	VerifyHashesOnRead      bool // check the stored stamp before decoding a value

	// Read-through cache ("memory mode")
	CacheEnabled bool
	CacheTTL     time.Duration // 0 = entries never expire
	CacheShards  int           // 0 = number of CPUs

	// Logger receives skipped-record reports and background errors.
	// Defaults to a stdout logger named "birch".
	Logger logger.Logger
}

// DefaultOptions returns the default engine options
func DefaultOptions() *Options {
	return &Options{
		Compression: codec.CompressionNone,
		Encryption:  codec.EncryptionNone,
		Hash:        codec.HashXXH3,

		MaxKeyLength:       4096,
		FileStreamBufferKB: 64,

		WriteBufferEnabled:         true,
		WriteBufferKB:              1024,
		WriteBufferTimeThresholdMS: 5000,

		FlushIntervalS: 5,

		FileUpdateMode: UpdateAppend,

		AutoCompactEnabled:   false,
		AutoCompactThreshold: 50,

		IndexRebuildThreshold: 20,

		UpdateValidationEnabled: false,
		VerifyHashesOnRead:      false,

		CacheEnabled: false,
	}
}

// normalize clamps out-of-range values to their floors and fills optional
// fields, so that a partially filled Options struct stays usable.
func (o *Options) normalize() {
	if o.MaxKeyLength <= 0 {
		o.MaxKeyLength = 4096
	}
	if o.FileStreamBufferKB < 4 {
		o.FileStreamBufferKB = 4
	}
	if o.WriteBufferKB < 4 {
		o.WriteBufferKB = 4
	}
	if o.WriteBufferTimeThresholdMS < 100 {
		o.WriteBufferTimeThresholdMS = 100
	}
	if o.FlushIntervalS < 0 {
		o.FlushIntervalS = 0
	}
	if o.IndexRebuildThreshold > 100 {
		o.IndexRebuildThreshold = 100
	}
	if o.Logger == nil {
		o.Logger = logger.New("birch")
	}
}

// writeBufferSize returns the appender capacity in bytes. A disabled write
// buffer degenerates to the minimum size, which keeps the appender code path
// uniform while making every append essentially write-through.
func (o *Options) writeBufferSize() int {
	if !o.WriteBufferEnabled {
		return 4 << 10
	}
	return o.WriteBufferKB << 10
}

// writeBufferInterval returns the appender auto-flush interval.
func (o *Options) writeBufferInterval() time.Duration {
	if !o.WriteBufferEnabled {
		return 0
	}
	return time.Duration(o.WriteBufferTimeThresholdMS) * time.Millisecond
}
