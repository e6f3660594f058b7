package birch

import (
	"bytes"
	"sort"

	"github.com/ValentinKolb/fsKV/lib/db"
	"github.com/ValentinKolb/fsKV/lib/db/engines/birch/internal"
)

// --------------------------------------------------------------------------
// Flush
// --------------------------------------------------------------------------

// Flush is the durability barrier: appender drained, index persisted, header
// rewritten, file synced. When auto-compaction is enabled and the dead-byte
// ratio crosses the threshold, the flush ends in a compaction.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *birchImpl) Flush() error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	fr := b.fref.Load()
	if err := b.flushLocked(fr); err != nil {
		return err
	}

	if b.opts.AutoCompactEnabled && b.shouldCompactLocked(fr) {
		return b.performCompactLocked(false)
	}
	return nil
}

// flushLocked performs the flush with the write lock held. A clean engine
// returns after draining the appender without touching the index or header.
func (b *birchImpl) flushLocked(fr *fileRef) error {
	if err := fr.app.Flush(); err != nil {
		return db.WrapError(db.KindIO, "flush appender", err)
	}

	if !b.dirty.Load() {
		return nil
	}

	if err := b.persistIndexLocked(fr); err != nil {
		return err
	}

	b.header.IndexCount = uint32(b.idx.Load().Size())
	if err := internal.WriteHeader(fr.file, b.header, b.pipeline, nowMS()); err != nil {
		return err
	}
	if err := fr.file.Sync(); err != nil {
		return db.WrapError(db.KindIO, "sync file", err)
	}

	b.dirty.Store(false)
	b.tombstones = make(map[string]*internal.Entry)

	return nil
}

// --------------------------------------------------------------------------
// Index Persistence Strategies
// --------------------------------------------------------------------------

// persistIndexLocked picks the persistence strategy:
//
//  1. full rebuild, in place or to a fresh appended region (few entries,
//     rebuild threshold off, deletion waste past the threshold, or no region yet)
//  2. tail append of never-persisted entries into the growth pad
//  3. in-place patch of dirty already-persisted entries
//  4. tombstone patch for removed entries
//
// New entries land first, then patches, then tombstones; the header is
// written last by the caller. If the pad fills mid-append the remainder is
// handled by switching to a full rebuild, which supersedes everything else.
func (b *birchImpl) persistIndexLocked(fr *fileRef) error {
	idx := b.idx.Load()
	liveCount := idx.Size()

	var newEntries, patches []*internal.Entry
	idx.Range(func(_ string, e *internal.Entry) bool {
		if e.IsUpdated {
			if e.KeyPosition == internal.Unassigned {
				newEntries = append(newEntries, e)
			} else {
				patches = append(patches, e)
			}
		}
		return true
	})

	rebuild := b.header.IndexStart == 0 ||
		liveCount < 10 ||
		b.opts.IndexRebuildThreshold == 0
	if !rebuild && b.header.IndexSpace > 0 &&
		b.indexWaste > int64(b.opts.IndexRebuildThreshold)*int64(b.header.IndexSpace)/100 {
		rebuild = true
	}
	if rebuild {
		return b.rebuildIndexLocked(fr, false)
	}

	// strategy 2: tail append into the growth pad
	// deterministic placement order keeps reopen scans stable
	sort.Slice(newEntries, func(i, j int) bool {
		return newEntries[i].ValuePosition < newEntries[j].ValuePosition
	})
	writePos := b.header.IndexStart + int64(b.header.IndexUsed)
	for _, e := range newEntries {
		buf, err := e.Marshal(b.pipeline)
		if err != nil {
			return err
		}
		if int64(b.header.IndexUsed)+int64(len(buf)) > int64(b.header.IndexSpace) {
			// pad exhausted: the rebuild re-persists everything, including
			// the entries already appended this round
			return b.rebuildIndexLocked(fr, false)
		}
		if err := fr.app.WriteAt(writePos, buf); err != nil {
			return db.WrapError(db.KindIO, "append index entry", err)
		}
		e.KeyPosition = writePos
		e.IsUpdated = false
		writePos += int64(len(buf))
		b.header.IndexUsed += uint32(len(buf))
	}

	// strategy 3: in-place patches
	for _, e := range patches {
		buf, err := e.MarshalPatch(b.pipeline)
		if err != nil {
			return err
		}
		if err := fr.app.WriteAt(e.KeyPosition, buf); err != nil {
			return db.WrapError(db.KindIO, "patch index entry", err)
		}
		e.IsUpdated = false
	}

	// strategy 4: tombstone patches
	for _, e := range b.tombstones {
		if e.KeyPosition < 0 {
			continue
		}
		if err := fr.app.WriteAt(e.KeyPosition, e.MarshalTombstone(b.pipeline)); err != nil {
			return db.WrapError(db.KindIO, "tombstone index entry", err)
		}
	}

	return nil
}

// indexPad computes the growth pad for a freshly written index region of the
// given size. Small regions skip the pad entirely; otherwise the pad is the
// configured percentage of the payload, clamped from below to one
// average-sized entry so a large threshold over a tiny payload still yields
// usable headroom.
func (b *birchImpl) indexPad(used, count int) int {
	if count < 10 || b.opts.IndexRebuildThreshold == 0 {
		return 0
	}
	pad := used * int(b.opts.IndexRebuildThreshold) / 100
	if minPad := used / count; pad < minPad {
		pad = minPad
	}
	return pad
}

// rebuildIndexLocked serializes every live entry, reserves the growth pad and
// repoints the header fields. If the result fits the current region it is
// rewritten in place; otherwise it goes to a fresh region at the end of the
// file and the abandoned old region stays as dead bytes until compaction.
func (b *birchImpl) rebuildIndexLocked(fr *fileRef, noPad bool) error {
	idx := b.idx.Load()

	var buf bytes.Buffer
	type placed struct {
		e   *internal.Entry
		off int
	}
	entries := make([]placed, 0, idx.Size())

	var marshalErr error
	idx.Range(func(_ string, e *internal.Entry) bool {
		bs, err := e.Marshal(b.pipeline)
		if err != nil {
			marshalErr = err
			return false
		}
		entries = append(entries, placed{e: e, off: buf.Len()})
		buf.Write(bs)
		return true
	})
	if marshalErr != nil {
		return marshalErr
	}

	used := buf.Len()
	pad := 0
	if !noPad {
		pad = b.indexPad(used, len(entries))
	}

	// when the rebuilt region (pad included) still fits the allocated space,
	// rewrite it in place instead of abandoning it; steady-state flushes of a
	// replace-mode workload then never grow the file
	if b.header.IndexStart > 0 && uint32(used+pad) <= b.header.IndexSpace {
		if err := fr.app.WriteAt(b.header.IndexStart, buf.Bytes()); err != nil {
			return db.WrapError(db.KindIO, "rewrite index region", err)
		}
		for _, p := range entries {
			p.e.KeyPosition = b.header.IndexStart + int64(p.off)
			p.e.IsUpdated = false
		}
		b.header.IndexUsed = uint32(used)
		b.indexWaste = 0
		return nil
	}

	start, err := fr.app.Append(buf.Bytes())
	if err != nil {
		return db.WrapError(db.KindIO, "append index region", err)
	}
	if err := fr.app.Flush(); err != nil {
		return db.WrapError(db.KindIO, "flush index region", err)
	}

	if pad > 0 {
		// reserve the pad so the region invariant holds against file length
		if err := fr.file.Truncate(start + int64(used) + int64(pad)); err != nil {
			return db.WrapError(db.KindIO, "reserve index pad", err)
		}
		fr.app.Clear(start + int64(used) + int64(pad))
	}

	for _, p := range entries {
		p.e.KeyPosition = start + int64(p.off)
		p.e.IsUpdated = false
	}

	b.header.IndexStart = start
	b.header.IndexUsed = uint32(used)
	b.header.IndexSpace = uint32(used + pad)
	b.indexWaste = 0

	return nil
}
