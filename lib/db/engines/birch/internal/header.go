package internal

import (
	"encoding/binary"
	"io"

	"github.com/ValentinKolb/fsKV/lib/db"
	"github.com/ValentinKolb/fsKV/lib/db/codec"
	"github.com/ValentinKolb/fsKV/lib/db/util"
)

// --------------------------------------------------------------------------
// File Header
// --------------------------------------------------------------------------

// On-disk header layout (little-endian, 64 bytes):
//
//	off  0  magic            "FSKV"
//	off  4  version          byte
//	off  5  compression id   byte
//	off  6  encryption id    byte
//	off  7  hash id          byte
//	off  8  created epoch ms uint64
//	off 16  last update ms   uint64
//	off 24  index start      uint64 (file-absolute)
//	off 32  index used       uint32
//	off 36  index space      uint32
//	off 40  index count      uint32
//	off 44  reserved         16 bytes
//	off 60  checksum         uint32 (FNV-1a over [0,44) with checksum zeroed)
//
// When the engine is encrypted the 64-byte header is AEAD-sealed as a whole,
// so the stored preamble grows by the 28-byte seal overhead.
const (
	HeaderMagic    = "FSKV"
	HeaderSize     = 64
	CurrentVersion = 1

	checksumRange  = 44 // reserved tail is excluded from the checksum
	checksumOffset = 60
)

// Header is the parsed form of the file preamble. The codec IDs are fixed at
// create time; the index fields track the current index region.
type Header struct {
	Version      byte
	Compression  codec.CompressionID
	Encryption   codec.EncryptionID
	Hash         codec.HashID
	CreatedMS    uint64
	LastUpdateMS uint64
	IndexStart   int64
	IndexUsed    uint32
	IndexSpace   uint32
	IndexCount   uint32
}

// StoredHeaderSize returns the number of bytes the header occupies at the
// start of the file, including the seal overhead when encrypted.
func StoredHeaderSize(encrypted bool) int64 {
	if encrypted {
		return HeaderSize + codec.SealOverhead
	}
	return HeaderSize
}

// NewHeader creates a header for a fresh file with zeroed index fields.
func NewHeader(c codec.CompressionID, e codec.EncryptionID, h codec.HashID, nowMS uint64) *Header {
	return &Header{
		Version:      CurrentVersion,
		Compression:  c,
		Encryption:   e,
		Hash:         h,
		CreatedMS:    nowMS,
		LastUpdateMS: nowMS,
	}
}

// Marshal serializes the header into its 64-byte plaintext form, computing
// the checksum.
func (h *Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], HeaderMagic)
	buf[4] = h.Version
	buf[5] = byte(h.Compression)
	buf[6] = byte(h.Encryption)
	buf[7] = byte(h.Hash)
	binary.LittleEndian.PutUint64(buf[8:16], h.CreatedMS)
	binary.LittleEndian.PutUint64(buf[16:24], h.LastUpdateMS)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.IndexStart))
	binary.LittleEndian.PutUint32(buf[32:36], h.IndexUsed)
	binary.LittleEndian.PutUint32(buf[36:40], h.IndexSpace)
	binary.LittleEndian.PutUint32(buf[40:44], h.IndexCount)
	binary.LittleEndian.PutUint32(buf[checksumOffset:checksumOffset+4], util.FNV1a32(buf[:checksumRange]))
	return buf
}

// UnmarshalHeader parses and validates a 64-byte plaintext header.
func UnmarshalHeader(buf []byte) (*Header, error) {
	if len(buf) != HeaderSize {
		return nil, db.NewError(db.KindCorruptHeader, "short header")
	}
	if string(buf[0:4]) != HeaderMagic {
		return nil, db.NewError(db.KindCorruptHeader, "bad magic")
	}
	if buf[4] > CurrentVersion {
		return nil, db.NewError(db.KindCorruptHeader, "unsupported version")
	}
	if binary.LittleEndian.Uint32(buf[checksumOffset:checksumOffset+4]) != util.FNV1a32(buf[:checksumRange]) {
		return nil, db.NewError(db.KindCorruptHeader, "checksum mismatch")
	}

	h := &Header{
		Version:      buf[4],
		Compression:  codec.CompressionID(buf[5]),
		Encryption:   codec.EncryptionID(buf[6]),
		Hash:         codec.HashID(buf[7]),
		CreatedMS:    binary.LittleEndian.Uint64(buf[8:16]),
		LastUpdateMS: binary.LittleEndian.Uint64(buf[16:24]),
		IndexStart:   int64(binary.LittleEndian.Uint64(buf[24:32])),
		IndexUsed:    binary.LittleEndian.Uint32(buf[32:36]),
		IndexSpace:   binary.LittleEndian.Uint32(buf[36:40]),
		IndexCount:   binary.LittleEndian.Uint32(buf[40:44]),
	}
	return h, nil
}

// ReadHeader reads the header from the start of the file, unsealing it when
// the pipeline is encrypted. A failed unseal is reported as an auth failure
// (wrong key); everything else that does not parse is a corrupt header.
func ReadHeader(r io.ReaderAt, p *codec.Pipeline) (*Header, error) {
	buf := make([]byte, StoredHeaderSize(p.Encrypted()))
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, db.WrapError(db.KindCorruptHeader, "read header", err)
	}

	if p.Encrypted() {
		plain, err := p.Open(buf)
		if err != nil {
			return nil, db.WrapError(db.KindAuthFailure, "unseal header", err)
		}
		buf = plain
	}

	return UnmarshalHeader(buf)
}

// WriteHeader stamps the update time, seals if configured, and writes the
// header at offset 0.
func WriteHeader(w io.WriterAt, h *Header, p *codec.Pipeline, nowMS uint64) error {
	h.LastUpdateMS = nowMS
	buf := h.Marshal()
	if p.Encrypted() {
		sealed, err := p.Seal(buf)
		if err != nil {
			return db.WrapError(db.KindIO, "seal header", err)
		}
		buf = sealed
	}
	if _, err := w.WriteAt(buf, 0); err != nil {
		return db.WrapError(db.KindIO, "write header", err)
	}
	return nil
}

// ValidateCompatibility checks that the codecs the file was created with
// match the codecs of the opening configuration.
func (h *Header) ValidateCompatibility(c codec.CompressionID, e codec.EncryptionID, hash codec.HashID) error {
	if h.Compression != c || h.Encryption != e || h.Hash != hash {
		return db.NewError(db.KindConfigMismatch, "file codecs differ from configuration")
	}
	return nil
}

// Equal reports whether two headers describe the same file state.
// Used by the compactor to verify its rewritten header round-trips.
func (h *Header) Equal(o *Header) bool {
	return h.Version == o.Version &&
		h.Compression == o.Compression &&
		h.Encryption == o.Encryption &&
		h.Hash == o.Hash &&
		h.CreatedMS == o.CreatedMS &&
		h.IndexStart == o.IndexStart &&
		h.IndexUsed == o.IndexUsed &&
		h.IndexSpace == o.IndexSpace &&
		h.IndexCount == o.IndexCount
}
