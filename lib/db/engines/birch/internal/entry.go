package internal

import (
	"encoding/binary"

	"github.com/ValentinKolb/fsKV/lib/db"
	"github.com/ValentinKolb/fsKV/lib/db/codec"
)

// --------------------------------------------------------------------------
// Index Entry
// --------------------------------------------------------------------------

// Plaintext on-disk entry layout (little-endian, 40 bytes fixed + inline key):
//
//	off  0  magic          "IDXE"
//	off  4  is_deleted     byte
//	off  5  key length     uint32
//	off  9  value position uint64 (file-absolute, ^0 when unassigned)
//	off 17  value length   uint32 (stored, i.e. processed size)
//	off 21  value hash     uint64 (8-byte stamp over the processed bytes)
//	off 29  timestamp ms   uint64
//	off 37  reserved       3 bytes
//	off 40  key bytes
//
// Encrypted on-disk entry layout (20-byte envelope + sealed payload):
//
//	off  0  magic          "IDXE"
//	off  4  is_deleted     byte
//	off  5  payload hash   uint64 (stamp over the sealed payload)
//	off 13  payload length uint32
//	off 17  reserved       3 bytes
//	off 20  sealed payload (AEAD over the 40-byte plaintext entry + key)
//
// The envelope duplicates the deleted flag so tombstoning never has to
// re-seal the payload.
const (
	EntryMagic        = "IDXE"
	PlainEntryFixed   = 40
	SealedEnvelopeLen = 20

	// Unassigned marks a value or key position that has not been placed yet.
	Unassigned int64 = -1
)

// Entry is the in-memory primary-index record. The on-disk forms carry the
// same fields minus the bookkeeping flags.
type Entry struct {
	Key           []byte
	ValuePosition int64  // file-absolute offset of the processed value bytes
	ValueLength   uint32 // processed (stored) size
	ValueHash     uint64 // stamp over the processed bytes
	TimestampMS   uint64

	IsDeleted   bool
	IsUpdated   bool  // dirty: differs from the persisted form
	KeyPosition int64 // file-absolute offset of this entry in the index region, Unassigned if never persisted

	// Envelope bookkeeping for the encrypted form: tombstone patches rewrite
	// only the 20-byte envelope and need its hash/length fields verbatim.
	EnvelopeHash uint64
	EnvelopeLen  uint32
}

// StoredSize returns the on-disk footprint of the entry.
func (e *Entry) StoredSize(encrypted bool) int {
	if encrypted {
		return SealedEnvelopeLen + PlainEntryFixed + len(e.Key) + codec.SealOverhead
	}
	return PlainEntryFixed + len(e.Key)
}

// marshalFixed writes the 40-byte fixed part (without the key).
func (e *Entry) marshalFixed() []byte {
	buf := make([]byte, PlainEntryFixed)
	copy(buf[0:4], EntryMagic)
	if e.IsDeleted {
		buf[4] = 1
	}
	binary.LittleEndian.PutUint32(buf[5:9], uint32(len(e.Key)))
	binary.LittleEndian.PutUint64(buf[9:17], uint64(e.ValuePosition))
	binary.LittleEndian.PutUint32(buf[17:21], e.ValueLength)
	binary.LittleEndian.PutUint64(buf[21:29], e.ValueHash)
	binary.LittleEndian.PutUint64(buf[29:37], e.TimestampMS)
	return buf
}

// MarshalPlain serializes the full plaintext form (fixed part + key).
func (e *Entry) MarshalPlain() []byte {
	return append(e.marshalFixed(), e.Key...)
}

// Marshal serializes the entry in the form the pipeline dictates.
func (e *Entry) Marshal(p *codec.Pipeline) ([]byte, error) {
	plain := e.MarshalPlain()
	if !p.Encrypted() {
		return plain, nil
	}

	sealed, err := p.Seal(plain)
	if err != nil {
		return nil, db.WrapError(db.KindIO, "seal index entry", err)
	}
	e.EnvelopeHash = p.Stamp(sealed)
	e.EnvelopeLen = uint32(len(sealed))

	buf := make([]byte, SealedEnvelopeLen, SealedEnvelopeLen+len(sealed))
	copy(buf[0:4], EntryMagic)
	if e.IsDeleted {
		buf[4] = 1
	}
	binary.LittleEndian.PutUint64(buf[5:13], e.EnvelopeHash)
	binary.LittleEndian.PutUint32(buf[13:17], e.EnvelopeLen)
	return append(buf, sealed...), nil
}

// MarshalPatch returns the byte run a dirty already-persisted entry rewrites
// in place. In plaintext mode only the fixed header changes (the key bytes
// that follow are unchanged by design); in encrypted mode the whole entry is
// re-sealed, which keeps its stored size because the seal is length-preserving.
func (e *Entry) MarshalPatch(p *codec.Pipeline) ([]byte, error) {
	if !p.Encrypted() {
		return e.marshalFixed(), nil
	}
	return e.Marshal(p)
}

// MarshalTombstone returns the byte run that flips the persisted entry to
// deleted. In encrypted mode only the small envelope is rewritten; the sealed
// payload on disk is left intact.
func (e *Entry) MarshalTombstone(p *codec.Pipeline) []byte {
	if !p.Encrypted() {
		fixed := e.marshalFixed()
		fixed[4] = 1
		return fixed
	}

	buf := make([]byte, SealedEnvelopeLen)
	copy(buf[0:4], EntryMagic)
	buf[4] = 1
	binary.LittleEndian.PutUint64(buf[5:13], e.EnvelopeHash)
	binary.LittleEndian.PutUint32(buf[13:17], e.EnvelopeLen)
	return buf
}

// --------------------------------------------------------------------------
// Parsing
// --------------------------------------------------------------------------

// unmarshalPlainFixed decodes a 40-byte fixed part. It performs no
// validation beyond the buffer length.
func unmarshalPlainFixed(buf []byte) (Entry, uint32) {
	e := Entry{
		IsDeleted:     buf[4] != 0,
		ValuePosition: int64(binary.LittleEndian.Uint64(buf[9:17])),
		ValueLength:   binary.LittleEndian.Uint32(buf[17:21]),
		ValueHash:     binary.LittleEndian.Uint64(buf[21:29]),
		TimestampMS:   binary.LittleEndian.Uint64(buf[29:37]),
	}
	return e, binary.LittleEndian.Uint32(buf[5:9])
}

// ParseEntryAt attempts to decode one index entry at offset off of the index
// region bytes. On success it returns the entry and its stored size. The
// caller decides how to advance on failure (the load-time scan hunts for the
// next magic).
//
// maxKeyLength bounds the accepted key length so a corrupted length field
// cannot cause a huge allocation.
func ParseEntryAt(buf []byte, off int, p *codec.Pipeline, maxKeyLength int) (*Entry, int, error) {
	if off+4 > len(buf) || string(buf[off:off+4]) != EntryMagic {
		return nil, 0, db.NewError(db.KindCorruptEntry, "bad entry magic")
	}

	if !p.Encrypted() {
		if off+PlainEntryFixed > len(buf) {
			return nil, 0, db.NewError(db.KindCorruptEntry, "truncated entry header")
		}
		e, keyLen := unmarshalPlainFixed(buf[off : off+PlainEntryFixed])
		if keyLen == 0 || int(keyLen) > maxKeyLength {
			return nil, 0, db.NewError(db.KindCorruptEntry, "implausible key length")
		}
		end := off + PlainEntryFixed + int(keyLen)
		if end > len(buf) {
			return nil, 0, db.NewError(db.KindCorruptEntry, "entry exceeds region")
		}
		e.Key = append([]byte(nil), buf[off+PlainEntryFixed:end]...)
		return &e, PlainEntryFixed + int(keyLen), nil
	}

	if off+SealedEnvelopeLen > len(buf) {
		return nil, 0, db.NewError(db.KindCorruptEntry, "truncated entry envelope")
	}
	deleted := buf[off+4] != 0
	payloadHash := binary.LittleEndian.Uint64(buf[off+5 : off+13])
	payloadLen := binary.LittleEndian.Uint32(buf[off+13 : off+17])
	if payloadLen < PlainEntryFixed+codec.SealOverhead ||
		int(payloadLen) > PlainEntryFixed+maxKeyLength+codec.SealOverhead {
		return nil, 0, db.NewError(db.KindCorruptEntry, "implausible payload length")
	}
	end := off + SealedEnvelopeLen + int(payloadLen)
	if end > len(buf) {
		return nil, 0, db.NewError(db.KindCorruptEntry, "entry exceeds region")
	}

	sealed := buf[off+SealedEnvelopeLen : end]
	if p.Stamp(sealed) != payloadHash {
		return nil, 0, db.NewError(db.KindCorruptEntry, "payload hash mismatch")
	}
	plain, err := p.Open(sealed)
	if err != nil {
		return nil, 0, db.WrapError(db.KindCorruptEntry, "unseal entry", err)
	}
	if len(plain) < PlainEntryFixed {
		return nil, 0, db.NewError(db.KindCorruptEntry, "short sealed entry")
	}

	e, keyLen := unmarshalPlainFixed(plain[:PlainEntryFixed])
	if int(keyLen) != len(plain)-PlainEntryFixed {
		return nil, 0, db.NewError(db.KindCorruptEntry, "key length mismatch")
	}
	e.Key = append([]byte(nil), plain[PlainEntryFixed:]...)
	// the envelope flag wins: tombstone patches only touch the envelope
	e.IsDeleted = deleted
	e.EnvelopeHash = payloadHash
	e.EnvelopeLen = payloadLen
	return &e, SealedEnvelopeLen + int(payloadLen), nil
}
