package birch

import (
	"bufio"
	"io"
	"os"
	"sort"

	"github.com/ValentinKolb/fsKV/lib/db"
	"github.com/ValentinKolb/fsKV/lib/db/engines/birch/internal"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Compaction Triggering
// --------------------------------------------------------------------------

// shouldCompactLocked estimates the dead bytes of the file: everything that
// is neither a live value, the current index region (pad included), nor the
// header. Compaction pays off once that share crosses the threshold.
func (b *birchImpl) shouldCompactLocked(fr *fileRef) bool {
	fileLen := fr.app.End()
	if fileLen <= b.headerSize() {
		return false
	}

	free := fileLen - b.sizes.TotalBytes() - b.headerSize() - int64(b.header.IndexSpace)
	if free <= 0 {
		return false
	}

	return free > int64(b.opts.AutoCompactThreshold)*fileLen/100
}

// --------------------------------------------------------------------------
// Compaction
// --------------------------------------------------------------------------

// Compact rewrites the file so that only live entries remain. The rewrite
// happens into a shadow file which atomically replaces the original; on any
// failure during the swap the original is restored from its backup.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *birchImpl) Compact(full bool) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// persist pending state first so the rewrite sees a consistent index
	if err := b.flushLocked(b.fref.Load()); err != nil {
		return err
	}

	return b.performCompactLocked(full)
}

// performCompactLocked runs the compaction with the write lock held.
//
//  1. copy every live value into the shadow file, ordered by position so
//     random reads become one sequential sweep
//  2. write a fresh contiguous index region (+ growth pad unless full)
//  3. write the new header and verify it round-trips
//  4. swap the files under the read-protection lock, backup-first
//  5. swap in the rebuilt in-memory state
//
// Unreadable values are logged and dropped, never aborting the run; the
// shrunken live count is visible to the caller through Stats.
func (b *birchImpl) performCompactLocked(full bool) error {
	if !b.compacting.CompareAndSwap(false, true) {
		return nil
	}
	defer b.compacting.Store(false)

	fr := b.fref.Load()
	if err := fr.app.Flush(); err != nil {
		return db.WrapError(db.KindIO, "flush appender", err)
	}

	tmpPath := b.path + ".compact.tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return db.WrapError(db.KindIO, "create shadow file", err)
	}
	abort := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return cause
	}

	// placeholder header: correct codecs, zeroed index fields
	placeholder := *b.header
	placeholder.IndexStart = 0
	placeholder.IndexUsed = 0
	placeholder.IndexSpace = 0
	placeholder.IndexCount = 0
	if err := internal.WriteHeader(tmp, &placeholder, b.pipeline, nowMS()); err != nil {
		return abort(err)
	}

	// sort live entries by position for a sequential read pattern
	entries := make([]*internal.Entry, 0, b.idx.Load().Size())
	b.idx.Load().Range(func(_ string, e *internal.Entry) bool {
		entries = append(entries, e)
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ValuePosition < entries[j].ValuePosition
	})

	if _, err := tmp.Seek(b.headerSize(), io.SeekStart); err != nil {
		return abort(db.WrapError(db.KindIO, "seek shadow file", err))
	}
	w := bufio.NewWriterSize(tmp, b.opts.FileStreamBufferKB<<10)

	cursor := b.headerSize()
	survivors := make([]*internal.Entry, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		valBuf := make([]byte, e.ValueLength)
		if _, err := fr.file.ReadAt(valBuf, e.ValuePosition); err != nil {
			b.opts.Logger.Errorf("compact: dropping unreadable value at %d: %v", e.ValuePosition, err)
			dropped++
			continue
		}
		if b.pipeline.Stamp(valBuf) != e.ValueHash {
			b.opts.Logger.Errorf("compact: dropping value with hash mismatch at %d", e.ValuePosition)
			dropped++
			continue
		}
		if _, err := w.Write(valBuf); err != nil {
			return abort(db.WrapError(db.KindIO, "write shadow value", err))
		}

		survivors = append(survivors, &internal.Entry{
			Key:           e.Key,
			ValuePosition: cursor,
			ValueLength:   e.ValueLength,
			ValueHash:     e.ValueHash,
			TimestampMS:   e.TimestampMS,
			KeyPosition:   internal.Unassigned,
		})
		cursor += int64(e.ValueLength)
	}

	// fresh contiguous index region
	var ibuf []byte
	for _, ne := range survivors {
		bs, err := ne.Marshal(b.pipeline)
		if err != nil {
			return abort(err)
		}
		ne.KeyPosition = cursor + int64(len(ibuf))
		ibuf = append(ibuf, bs...)
	}
	if _, err := w.Write(ibuf); err != nil {
		return abort(db.WrapError(db.KindIO, "write shadow index", err))
	}
	if err := w.Flush(); err != nil {
		return abort(db.WrapError(db.KindIO, "flush shadow file", err))
	}

	used := len(ibuf)
	pad := 0
	if !full {
		pad = b.indexPad(used, len(survivors))
	}
	fileEnd := cursor + int64(used) + int64(pad)
	if pad > 0 {
		if err := tmp.Truncate(fileEnd); err != nil {
			return abort(db.WrapError(db.KindIO, "reserve shadow pad", err))
		}
	}

	newHeader := &internal.Header{
		Version:     internal.CurrentVersion,
		Compression: b.header.Compression,
		Encryption:  b.header.Encryption,
		Hash:        b.header.Hash,
		CreatedMS:   b.header.CreatedMS,
		IndexStart:  cursor,
		IndexUsed:   uint32(used),
		IndexSpace:  uint32(used + pad),
		IndexCount:  uint32(len(survivors)),
	}
	if err := internal.WriteHeader(tmp, newHeader, b.pipeline, nowMS()); err != nil {
		return abort(err)
	}
	if err := tmp.Sync(); err != nil {
		return abort(db.WrapError(db.KindIO, "sync shadow file", err))
	}

	// the new header must round-trip before the original is touched
	reread, err := internal.ReadHeader(tmp, b.pipeline)
	if err != nil {
		return abort(db.WrapError(db.KindCompactVerifyFailure, "re-read shadow header", err))
	}
	if !reread.Equal(newHeader) {
		return abort(db.NewError(db.KindCompactVerifyFailure, "shadow header does not round-trip"))
	}
	if err := tmp.Close(); err != nil {
		return abort(db.WrapError(db.KindIO, "close shadow file", err))
	}

	// atomic swap under the read-protection lock
	backupPath := b.path + ".backup"

	b.rpmu.Lock()
	defer b.rpmu.Unlock()

	_ = fr.app.Close()
	_ = fr.file.Close()

	reopenOriginal := func(cause error) error {
		f, err := os.OpenFile(b.path, os.O_RDWR, 0o644)
		if err != nil {
			return db.WrapError(db.KindIO, "reopen original after failed swap", err)
		}
		st, _ := f.Stat()
		b.fref.Store(&fileRef{
			file: f,
			app:  internal.NewAppender(f, st.Size(), b.opts.writeBufferSize(), b.opts.writeBufferInterval()),
		})
		return cause
	}

	if err := os.Rename(b.path, backupPath); err != nil {
		_ = os.Remove(tmpPath)
		return reopenOriginal(db.WrapError(db.KindIO, "rename original to backup", err))
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		_ = os.Rename(backupPath, b.path)
		_ = os.Remove(tmpPath)
		return reopenOriginal(db.WrapError(db.KindIO, "rename shadow into place", err))
	}

	newFile, err := os.OpenFile(b.path, os.O_RDWR, 0o644)
	if err != nil {
		_ = os.Rename(backupPath, b.path)
		return reopenOriginal(db.WrapError(db.KindIO, "open compacted file", err))
	}

	// swap in the detached state graph
	newIdx := xsync.NewMapOf[string, *internal.Entry]()
	b.sizes.Reset()
	for _, ne := range survivors {
		newIdx.Store(string(ne.Key), ne)
		b.sizes.AddSample(int(ne.ValueLength))
	}
	b.idx.Store(newIdx)
	b.fref.Store(&fileRef{
		file: newFile,
		app:  internal.NewAppender(newFile, fileEnd, b.opts.writeBufferSize(), b.opts.writeBufferInterval()),
	})
	b.header = newHeader
	b.tombstones = make(map[string]*internal.Entry)
	b.indexWaste = 0
	b.dirty.Store(false)

	_ = os.Remove(backupPath)

	if dropped > 0 {
		b.opts.Logger.Warningf("compaction dropped %d unreadable entries", dropped)
	}
	b.opts.Logger.Infof("compaction finished: %d live entries, file is now %d bytes", len(survivors), fileEnd)

	return nil
}
