package birch

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/fsKV/lib/db"
	"github.com/ValentinKolb/fsKV/lib/db/cache"
	"github.com/ValentinKolb/fsKV/lib/db/codec"
	"github.com/ValentinKolb/fsKV/lib/db/engines/birch/internal"
	"github.com/ValentinKolb/fsKV/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Core birch engine structure
// --------------------------------------------------------------------------

// fileRef bundles the file handle with its buffered appender. The pair is
// swapped atomically by the compactor, never mutated in place.
type fileRef struct {
	file *os.File
	app  *internal.Appender
}

// birchImpl implements a persistent single-file key-value engine with an
// in-memory primary index
type birchImpl struct {
	path     string
	opts     *Options
	pipeline *codec.Pipeline

	mu   sync.Mutex   // write lock: serializes all mutating operations
	rpmu sync.RWMutex // read-protection lock, taken by readers only during compaction

	// state under mu
	header     *internal.Header
	tombstones map[string]*internal.Entry // removed entries awaiting their on-disk tombstone
	indexWaste int64                      // dead bytes inside the current index region

	idx  atomic.Pointer[xsync.MapOf[string, *internal.Entry]]
	fref atomic.Pointer[fileRef]

	sizes *util.SizeHistogram // processed sizes of live values

	memCache *cache.Cache // optional read-through cache, nil when disabled

	dirty      atomic.Bool
	compacting atomic.Bool
	closed     atomic.Bool

	flushStop chan struct{}
}

// nowMS returns the current wall clock in epoch milliseconds.
func nowMS() uint64 {
	return uint64(time.Now().UnixMilli())
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// Open opens or creates the engine file at path. A nil opts uses
// DefaultOptions. Opening an existing file with codecs differing from its
// header fails with KindConfigMismatch; a wrong encryption key fails with
// KindAuthFailure before anything is mutated.
//
// The engine holds the file exclusively within the process: the format
// supports exactly one writer, and readers in other processes are outside
// the durability contract.
func Open(path string, opts *Options) (db.Engine, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	opts.normalize()

	pipeline, err := codec.NewPipeline(opts.Compression, opts.Encryption, opts.Hash, opts.EncryptionKey)
	if err != nil {
		return nil, db.WrapError(db.KindInternal, "invalid configuration", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, db.WrapError(db.KindIO, "open file", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, db.WrapError(db.KindIO, "stat file", err)
	}

	b := &birchImpl{
		path:       path,
		opts:       opts,
		pipeline:   pipeline,
		tombstones: make(map[string]*internal.Entry),
		sizes:      util.NewSizeHistogram(),
	}

	if stat.Size() == 0 {
		// fresh file: stamp the header before anything else
		b.header = internal.NewHeader(opts.Compression, opts.Encryption, opts.Hash, nowMS())
		if err := internal.WriteHeader(file, b.header, pipeline, nowMS()); err != nil {
			_ = file.Close()
			return nil, err
		}
		if err := file.Sync(); err != nil {
			_ = file.Close()
			return nil, db.WrapError(db.KindIO, "sync header", err)
		}
	} else {
		h, err := internal.ReadHeader(file, pipeline)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		if err := h.ValidateCompatibility(opts.Compression, opts.Encryption, opts.Hash); err != nil {
			_ = file.Close()
			return nil, err
		}
		b.header = h
	}

	idx := xsync.NewMapOf[string, *internal.Entry]()
	b.idx.Store(idx)

	if b.header.IndexUsed > 0 {
		if err := b.loadIndex(file, idx); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	end := stat.Size()
	if end == 0 {
		end = internal.StoredHeaderSize(pipeline.Encrypted())
	}
	b.fref.Store(&fileRef{
		file: file,
		app:  internal.NewAppender(file, end, opts.writeBufferSize(), opts.writeBufferInterval()),
	})

	if opts.CacheEnabled {
		b.memCache = cache.New(opts.CacheShards, opts.CacheTTL)
	}

	if opts.FlushIntervalS > 0 {
		b.flushStop = make(chan struct{})
		go b.flushDriver(time.Duration(opts.FlushIntervalS) * time.Second)
	}

	return b, nil
}

// loadIndex reads the index region and rebuilds the in-memory index. The
// scan hunts for the entry magic so a torn or partially overwritten region
// yields every still-parseable entry; corrupt candidates are logged and
// skipped. On duplicate keys the last valid occurrence wins.
func (b *birchImpl) loadIndex(file *os.File, idx *xsync.MapOf[string, *internal.Entry]) error {
	region := make([]byte, b.header.IndexUsed)
	if _, err := file.ReadAt(region, b.header.IndexStart); err != nil {
		return db.WrapError(db.KindIO, "read index region", err)
	}

	skipped := 0
	for i := 0; i+4 <= len(region); {
		if string(region[i:i+4]) != internal.EntryMagic {
			i++
			continue
		}
		e, size, err := internal.ParseEntryAt(region, i, b.pipeline, b.opts.MaxKeyLength)
		if err != nil {
			skipped++
			i++
			continue
		}
		if !e.IsDeleted && e.ValuePosition > 0 {
			e.KeyPosition = b.header.IndexStart + int64(i)
			e.IsUpdated = false
			idx.Store(string(e.Key), e)
		}
		i += size
	}
	if skipped > 0 {
		b.opts.Logger.Warningf("index scan skipped %d unparseable candidates", skipped)
	}

	// derive the size distribution and the dead-byte estimate of the region
	var liveBytes int64
	idx.Range(func(_ string, e *internal.Entry) bool {
		b.sizes.AddSample(int(e.ValueLength))
		liveBytes += int64(e.StoredSize(b.pipeline.Encrypted()))
		return true
	})
	b.indexWaste = int64(b.header.IndexUsed) - liveBytes

	return nil
}

// --------------------------------------------------------------------------
// Internal Helpers
// --------------------------------------------------------------------------

func (b *birchImpl) headerSize() int64 {
	return internal.StoredHeaderSize(b.pipeline.Encrypted())
}

// checkKey validates key constraints shared by all write paths.
func (b *birchImpl) checkKey(key []byte) error {
	if len(key) == 0 {
		return db.NewError(db.KindInternal, "empty key")
	}
	if len(key) > b.opts.MaxKeyLength {
		return db.NewError(db.KindKeyTooLarge, "key exceeds configured maximum length")
	}
	return nil
}

func (b *birchImpl) checkOpen() error {
	if b.closed.Load() {
		return db.NewError(db.KindClosed, "engine is closed")
	}
	return nil
}

// storeEntry publishes a new entry under the write lock, maintaining the
// histogram and the tombstone set. Returns the previous entry, if any.
func (b *birchImpl) storeEntry(k string, e *internal.Entry) (*internal.Entry, bool) {
	idx := b.idx.Load()
	old, existed := idx.Load(k)
	if existed {
		b.sizes.RemoveSample(int(old.ValueLength))
	}
	b.sizes.AddSample(int(e.ValueLength))
	idx.Store(k, e)
	return old, existed
}

// --------------------------------------------------------------------------
// Core Engine Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry with the given key and value.
// The value runs through the codec pipeline before placement; writing a
// value whose processed stamp equals the stored one is a no-op.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *birchImpl) Set(key, value []byte) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if err := b.checkKey(key); err != nil {
		return err
	}

	// run the pipeline outside any placement decisions: the stored form is
	// what every downstream decision (dedup, fit, hash) operates on
	processed, err := b.pipeline.Encode(value)
	if err != nil {
		return db.WrapError(db.KindInternal, "encode value", err)
	}
	hash := b.pipeline.Stamp(processed)

	b.mu.Lock()
	defer b.mu.Unlock()

	k := string(key)
	idx := b.idx.Load()
	old, exists := idx.Load(k)

	if exists && old.ValueHash == hash {
		return nil
	}

	fr := b.fref.Load()

	var pos int64
	if exists && b.opts.FileUpdateMode == UpdateReplace && old.ValueLength >= uint32(len(processed)) {
		// the new value fits the old slot: overwrite in place
		pos = old.ValuePosition
		if err := fr.app.WriteAt(pos, processed); err != nil {
			return db.WrapError(db.KindIO, "write value", err)
		}
	} else {
		pos, err = fr.app.Append(processed)
		if err != nil {
			return db.WrapError(db.KindIO, "append value", err)
		}
	}

	entry := &internal.Entry{
		Key:           append([]byte(nil), key...),
		ValuePosition: pos,
		ValueLength:   uint32(len(processed)),
		ValueHash:     hash,
		TimestampMS:   nowMS(),
		IsUpdated:     true,
		KeyPosition:   internal.Unassigned,
	}
	var consumedTomb *internal.Entry
	if exists {
		// the on-disk entry slot survives an update, only its fields change
		entry.KeyPosition = old.KeyPosition
		entry.EnvelopeHash = old.EnvelopeHash
		entry.EnvelopeLen = old.EnvelopeLen
	} else if tomb, ok := b.tombstones[k]; ok {
		// re-set after delete within one flush window: reuse the dead slot
		entry.KeyPosition = tomb.KeyPosition
		entry.EnvelopeHash = tomb.EnvelopeHash
		entry.EnvelopeLen = tomb.EnvelopeLen
		consumedTomb = tomb
		delete(b.tombstones, k)
	}

	b.storeEntry(k, entry)

	if b.opts.UpdateValidationEnabled {
		if err := b.validateWrite(fr, entry, value); err != nil {
			// atomic revert: the dirty bit of the failed entry is never
			// published as flushed state
			b.sizes.RemoveSample(int(entry.ValueLength))
			if exists {
				b.sizes.AddSample(int(old.ValueLength))
				idx.Store(k, old)
			} else {
				idx.Delete(k)
			}
			if consumedTomb != nil {
				b.tombstones[k] = consumedTomb
			}
			return err
		}
	}

	b.dirty.Store(true)

	if b.memCache != nil {
		b.memCache.Invalidate(key)
	}

	return nil
}

// validateWrite reads the just-written bytes back and compares them with the
// caller value.
func (b *birchImpl) validateWrite(fr *fileRef, e *internal.Entry, want []byte) error {
	if err := fr.app.Flush(); err != nil {
		return db.WrapError(db.KindIO, "flush for validation", err)
	}
	buf := make([]byte, e.ValueLength)
	if _, err := fr.file.ReadAt(buf, e.ValuePosition); err != nil {
		return db.WrapError(db.KindValidationFailure, "read back", err)
	}
	got, err := b.pipeline.Decode(buf)
	if err != nil {
		return db.WrapError(db.KindValidationFailure, "decode read-back", err)
	}
	if string(got) != string(want) {
		return db.NewError(db.KindValidationFailure, "read-back differs from written value")
	}
	return nil
}

// SetBatch inserts or updates all items in one pass. Values that fit their
// existing slot (replace mode) are patched in place; everything else is
// composed into one contiguous buffer and appended with a single write.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *birchImpl) SetBatch(items []db.Item, skipDuplicates bool) (int, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.idx.Load()
	fr := b.fref.Load()

	type staged struct {
		item      db.Item
		processed []byte
		hash      uint64
		old       *internal.Entry
		exists    bool
		inPlace   bool
	}

	// pre-serialize and hash everything up front
	var reuse, appends []*staged
	var appendBytes int64
	for i := range items {
		if err := b.checkKey(items[i].Key); err != nil {
			return 0, err
		}
		processed, err := b.pipeline.Encode(items[i].Value)
		if err != nil {
			return 0, db.WrapError(db.KindInternal, "encode value", err)
		}
		s := &staged{item: items[i], processed: processed, hash: b.pipeline.Stamp(processed)}
		s.old, s.exists = idx.Load(string(items[i].Key))

		if skipDuplicates && s.exists && s.old.ValueHash == s.hash {
			continue
		}
		if s.exists && b.opts.FileUpdateMode == UpdateReplace && s.old.ValueLength >= uint32(len(processed)) {
			s.inPlace = true
			reuse = append(reuse, s)
		} else {
			appends = append(appends, s)
			appendBytes += int64(len(processed))
		}
	}

	// positioned writes for in-place updates
	for _, s := range reuse {
		if err := fr.app.WriteAt(s.old.ValuePosition, s.processed); err != nil {
			return 0, db.WrapError(db.KindIO, "write value", err)
		}
	}

	// one contiguous append for the rest
	var base int64
	if len(appends) > 0 {
		if err := fr.app.Preallocate(appendBytes); err != nil {
			b.opts.Logger.Debugf("preallocate failed: %v", err)
		}
		big := make([]byte, 0, appendBytes)
		for _, s := range appends {
			big = append(big, s.processed...)
		}
		var err error
		base, err = fr.app.Append(big)
		if err != nil {
			return 0, db.WrapError(db.KindIO, "append batch", err)
		}
	}

	// bulk index update
	written := 0
	cursor := base
	update := func(s *staged, pos int64) *internal.Entry {
		k := string(s.item.Key)
		entry := &internal.Entry{
			Key:           append([]byte(nil), s.item.Key...),
			ValuePosition: pos,
			ValueLength:   uint32(len(s.processed)),
			ValueHash:     s.hash,
			TimestampMS:   nowMS(),
			IsUpdated:     true,
			KeyPosition:   internal.Unassigned,
		}
		if s.exists {
			entry.KeyPosition = s.old.KeyPosition
			entry.EnvelopeHash = s.old.EnvelopeHash
			entry.EnvelopeLen = s.old.EnvelopeLen
		} else if tomb, ok := b.tombstones[k]; ok {
			entry.KeyPosition = tomb.KeyPosition
			entry.EnvelopeHash = tomb.EnvelopeHash
			entry.EnvelopeLen = tomb.EnvelopeLen
			delete(b.tombstones, k)
		}
		b.storeEntry(k, entry)
		written++
		return entry
	}

	var validate []*internal.Entry
	for _, s := range reuse {
		validate = append(validate, update(s, s.old.ValuePosition))
	}
	for _, s := range appends {
		validate = append(validate, update(s, cursor))
		cursor += int64(len(s.processed))
	}

	if written > 0 {
		b.dirty.Store(true)
	}

	// sampled validation, up to 10 entries in parallel
	if b.opts.UpdateValidationEnabled && len(validate) > 0 {
		if err := b.validateSample(fr, validate, items); err != nil {
			return written, err
		}
	}

	if b.memCache != nil {
		for i := range items {
			b.memCache.Invalidate(items[i].Key)
		}
	}

	return written, nil
}

// validateSample reads back up to 10 of the written entries concurrently and
// compares them with the caller values.
func (b *birchImpl) validateSample(fr *fileRef, entries []*internal.Entry, items []db.Item) error {
	if err := fr.app.Flush(); err != nil {
		return db.WrapError(db.KindIO, "flush for validation", err)
	}

	want := make(map[string][]byte, len(items))
	for i := range items {
		want[string(items[i].Key)] = items[i].Value
	}

	sample := entries
	if len(sample) > 10 {
		sample = sample[:10]
	}

	var wg sync.WaitGroup
	errs := make([]error, len(sample))
	for i, e := range sample {
		wg.Add(1)
		go func(i int, e *internal.Entry) {
			defer wg.Done()
			buf := make([]byte, e.ValueLength)
			if _, err := fr.file.ReadAt(buf, e.ValuePosition); err != nil {
				errs[i] = db.WrapError(db.KindValidationFailure, "read back", err)
				return
			}
			got, err := b.pipeline.Decode(buf)
			if err != nil {
				errs[i] = db.WrapError(db.KindValidationFailure, "decode read-back", err)
				return
			}
			if string(got) != string(want[string(e.Key)]) {
				errs[i] = db.NewError(db.KindValidationFailure, "read-back differs from written value")
			}
		}(i, e)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an entry with the specified key.
// The entry leaves the live index immediately; its on-disk header is flipped
// to deleted at the next flush and the value bytes linger until compaction.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *birchImpl) Delete(key []byte) (bool, error) {
	if err := b.checkOpen(); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.deleteLocked(key), nil
}

func (b *birchImpl) deleteLocked(key []byte) bool {
	k := string(key)
	idx := b.idx.Load()
	e, ok := idx.LoadAndDelete(k)
	if !ok {
		return false
	}

	b.sizes.RemoveSample(int(e.ValueLength))

	if e.KeyPosition >= 0 {
		// the persisted slot becomes dead weight in the index region
		b.indexWaste += int64(e.StoredSize(b.pipeline.Encrypted()))
		tomb := *e
		tomb.IsDeleted = true
		b.tombstones[k] = &tomb
	}

	b.dirty.Store(true)

	if b.memCache != nil {
		b.memCache.Invalidate(key)
	}

	return true
}

// DeleteBatch removes all given keys under a single lock acquisition.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *birchImpl) DeleteBatch(keys [][]byte) (int, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, key := range keys {
		if b.deleteLocked(key) {
			n++
		}
	}
	return n, nil
}

// Clear removes every entry and truncates the file back to its header.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *birchImpl) Clear() error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	fr := b.fref.Load()
	fr.app.Clear(b.headerSize())
	if err := fr.file.Truncate(b.headerSize()); err != nil {
		return db.WrapError(db.KindIO, "truncate file", err)
	}

	b.idx.Load().Clear()
	b.tombstones = make(map[string]*internal.Entry)
	b.sizes.Reset()
	b.indexWaste = 0

	b.header.IndexStart = 0
	b.header.IndexUsed = 0
	b.header.IndexSpace = 0
	b.header.IndexCount = 0
	if err := internal.WriteHeader(fr.file, b.header, b.pipeline, nowMS()); err != nil {
		return err
	}
	if err := fr.file.Sync(); err != nil {
		return db.WrapError(db.KindIO, "sync file", err)
	}

	b.dirty.Store(false)

	if b.memCache != nil {
		b.memCache.Clear()
	}

	return nil
}

// --------------------------------------------------------------------------
// Core Engine Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves the value for a key.
// Reads resolve against the in-memory index and are lock-free unless a
// compaction is swapping the file underneath; then they briefly coordinate
// via the read-protection lock. Bytes still sitting in the appender buffer
// force an appender flush before the positioned read.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *birchImpl) Get(key []byte) ([]byte, bool, error) {
	if err := b.checkOpen(); err != nil {
		return nil, false, err
	}

	if b.memCache != nil {
		if v, ok := b.memCache.Get(key); ok {
			return v, true, nil
		}
	}

	k := string(key)
	e, ok := b.idx.Load().Load(k)
	if !ok {
		return nil, false, nil
	}

	if b.compacting.Load() {
		// the entry may move while the compactor swaps files; re-resolve
		// under the read-protection lock
		b.rpmu.RLock()
		defer b.rpmu.RUnlock()
		e, ok = b.idx.Load().Load(k)
		if !ok {
			return nil, false, nil
		}
	}

	fr := b.fref.Load()
	if e.ValuePosition+int64(e.ValueLength) > fr.app.FlushedEnd() {
		// the bytes are still buffered
		if err := fr.app.Flush(); err != nil {
			return nil, false, db.WrapError(db.KindIO, "flush appender", err)
		}
	}

	buf := make([]byte, e.ValueLength)
	if _, err := fr.file.ReadAt(buf, e.ValuePosition); err != nil {
		return nil, false, db.WrapError(db.KindIO, "read value", err)
	}

	if b.opts.VerifyHashesOnRead && b.pipeline.Stamp(buf) != e.ValueHash {
		b.opts.Logger.Errorf("value hash mismatch for key (%d bytes at %d)", e.ValueLength, e.ValuePosition)
		return nil, false, nil
	}

	value, err := b.pipeline.Decode(buf)
	if err != nil {
		// a single corrupt value must not take the engine down
		b.opts.Logger.Errorf("value decode failed at %d: %v", e.ValuePosition, err)
		return nil, false, nil
	}

	if b.memCache != nil {
		b.memCache.Put(key, value)
	}

	return value, true, nil
}

// Contains checks whether a key exists, touching only the index.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *birchImpl) Contains(key []byte) (bool, error) {
	if err := b.checkOpen(); err != nil {
		return false, err
	}
	_, ok := b.idx.Load().Load(string(key))
	return ok, nil
}

// Keys returns a snapshot of all live keys.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *birchImpl) Keys() [][]byte {
	keys := make([][]byte, 0, b.Count())
	b.idx.Load().Range(func(_ string, e *internal.Entry) bool {
		keys = append(keys, append([]byte(nil), e.Key...))
		return true
	})
	return keys
}

// Count returns the number of live entries.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *birchImpl) Count() int {
	return b.idx.Load().Size()
}

// --------------------------------------------------------------------------
// Feature Support
// --------------------------------------------------------------------------

func (b *birchImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeatureSet | db.FeatureGet | db.FeatureContains |
		db.FeatureDelete | db.FeatureSetBatch | db.FeatureDeleteBatch |
		db.FeatureClear | db.FeatureFlush | db.FeatureCompact |
		db.FeatureKeys | db.FeaturePersistence
	return supported&feature == feature
}

// Stats returns a snapshot of the engine state.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *birchImpl) Stats() db.EngineStats {
	fr := b.fref.Load()
	fileLen := fr.app.End()

	b.mu.Lock()
	indexUsed := b.header.IndexUsed
	indexSpace := b.header.IndexSpace
	b.mu.Unlock()

	valueBytes := b.sizes.TotalBytes()
	reclaimable := fileLen - valueBytes - b.headerSize() - int64(indexSpace)
	if reclaimable < 0 {
		reclaimable = 0
	}

	return db.EngineStats{
		DbType:      db.ImplBirch,
		LiveCount:   b.Count(),
		FileLength:  fileLen,
		ValueBytes:  valueBytes,
		IndexUsed:   indexUsed,
		IndexSpace:  indexSpace,
		Reclaimable: reclaimable,
		ValueSizes: db.SizeSummary{
			Count:  b.sizes.GetCount(),
			Mean:   b.sizes.AverageSize(),
			Median: b.sizes.MedianEstimate(),
			P95:    b.sizes.GetPercentileEstimate(95),
		},
		Compacting: b.compacting.Load(),
		Dirty:      b.dirty.Load(),
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// flushDriver periodically flushes and, if warranted, compacts.
func (b *birchImpl) flushDriver(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Flush(); err != nil && !db.IsKind(err, db.KindClosed) {
				b.opts.Logger.Errorf("background flush failed: %v", err)
			}
		case <-b.flushStop:
			return
		}
	}
}

// Close flushes pending state and releases all resources.
func (b *birchImpl) Close() error {
	if b.closed.Load() {
		return nil
	}

	// final barrier before teardown
	flushErr := b.Flush()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed.Store(true)

	if b.flushStop != nil {
		close(b.flushStop)
	}
	if b.memCache != nil {
		b.memCache.Close()
	}

	fr := b.fref.Load()
	if err := fr.app.Close(); err != nil && flushErr == nil {
		flushErr = db.WrapError(db.KindIO, "flush appender", err)
	}
	if err := fr.file.Close(); err != nil && flushErr == nil {
		flushErr = db.WrapError(db.KindIO, "close file", err)
	}

	return flushErr
}
