package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/fsKV/lib/db"
	"github.com/ValentinKolb/fsKV/lib/db/codec"
)

func plainPipeline(t *testing.T) *codec.Pipeline {
	t.Helper()
	p, err := codec.NewPipeline(codec.CompressionNone, codec.EncryptionNone, codec.HashXXH3, "")
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p
}

func sealedPipeline(t *testing.T) *codec.Pipeline {
	t.Helper()
	p, err := codec.NewPipeline(codec.CompressionNone, codec.EncryptionAES256GCM, codec.HashXXH3, "MySecure32ByteEncryptionKey12345")
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p
}

// --------------------------------------------------------------------------
// Header
// --------------------------------------------------------------------------

func TestHeaderMarshalRoundTrip(t *testing.T) {
	h := NewHeader(codec.CompressionZstd, codec.EncryptionNone, codec.HashBLAKE3, 1234567890)
	h.IndexStart = 4096
	h.IndexUsed = 100
	h.IndexSpace = 120
	h.IndexCount = 3

	parsed, err := UnmarshalHeader(h.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalHeader failed: %v", err)
	}
	if !parsed.Equal(h) {
		t.Errorf("header round-trip mismatch: %+v != %+v", parsed, h)
	}
}

func TestHeaderRejectsCorruption(t *testing.T) {
	h := NewHeader(codec.CompressionNone, codec.EncryptionNone, codec.HashXXH3, 1)

	// bad magic
	buf := h.Marshal()
	buf[0] = 'X'
	if _, err := UnmarshalHeader(buf); !db.IsKind(err, db.KindCorruptHeader) {
		t.Errorf("expected CorruptHeader for bad magic, got %v", err)
	}

	// future version
	buf = h.Marshal()
	buf[4] = CurrentVersion + 1
	if _, err := UnmarshalHeader(buf); !db.IsKind(err, db.KindCorruptHeader) {
		t.Errorf("expected CorruptHeader for future version, got %v", err)
	}

	// flipped payload byte invalidates the checksum
	buf = h.Marshal()
	buf[10] ^= 0xff
	if _, err := UnmarshalHeader(buf); !db.IsKind(err, db.KindCorruptHeader) {
		t.Errorf("expected CorruptHeader for checksum mismatch, got %v", err)
	}

	// short buffer
	if _, err := UnmarshalHeader(buf[:32]); !db.IsKind(err, db.KindCorruptHeader) {
		t.Errorf("expected CorruptHeader for short buffer, got %v", err)
	}
}

func TestHeaderFileRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name     string
		pipeline func(*testing.T) *codec.Pipeline
	}{
		{"plain", plainPipeline},
		{"sealed", sealedPipeline},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.pipeline(t)

			file, err := os.Create(filepath.Join(t.TempDir(), "header.birch"))
			if err != nil {
				t.Fatalf("create temp file: %v", err)
			}
			defer file.Close()

			h := NewHeader(p.Compression, p.Encryption, p.Hash, 42)
			h.IndexStart = 777
			h.IndexUsed = 88
			h.IndexSpace = 99
			h.IndexCount = 5

			if err := WriteHeader(file, h, p, 43); err != nil {
				t.Fatalf("WriteHeader failed: %v", err)
			}

			read, err := ReadHeader(file, p)
			if err != nil {
				t.Fatalf("ReadHeader failed: %v", err)
			}
			if !read.Equal(h) {
				t.Errorf("header file round-trip mismatch")
			}
			if read.LastUpdateMS != 43 {
				t.Errorf("expected update timestamp 43, got %d", read.LastUpdateMS)
			}
		})
	}
}

func TestHeaderWrongKeyIsAuthFailure(t *testing.T) {
	p1 := sealedPipeline(t)
	p2, err := codec.NewPipeline(codec.CompressionNone, codec.EncryptionAES256GCM, codec.HashXXH3, "a-different-key-0123456789")
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}

	file, err := os.Create(filepath.Join(t.TempDir(), "header.birch"))
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer file.Close()

	h := NewHeader(p1.Compression, p1.Encryption, p1.Hash, 1)
	if err := WriteHeader(file, h, p1, 1); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}

	if _, err := ReadHeader(file, p2); !db.IsKind(err, db.KindAuthFailure) {
		t.Errorf("expected AuthFailure with wrong key, got %v", err)
	}
}

func TestHeaderValidateCompatibility(t *testing.T) {
	h := NewHeader(codec.CompressionGzip, codec.EncryptionNone, codec.HashSHA256, 1)

	if err := h.ValidateCompatibility(codec.CompressionGzip, codec.EncryptionNone, codec.HashSHA256); err != nil {
		t.Errorf("expected matching codecs to validate, got %v", err)
	}
	if err := h.ValidateCompatibility(codec.CompressionZstd, codec.EncryptionNone, codec.HashSHA256); !db.IsKind(err, db.KindConfigMismatch) {
		t.Errorf("expected ConfigMismatch for differing compression, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Index Entries
// --------------------------------------------------------------------------

func TestEntryRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name     string
		pipeline func(*testing.T) *codec.Pipeline
	}{
		{"plain", plainPipeline},
		{"sealed", sealedPipeline},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.pipeline(t)

			e := &Entry{
				Key:           []byte("some-key"),
				ValuePosition: 4096,
				ValueLength:   512,
				ValueHash:     0xdeadbeefcafe,
				TimestampMS:   1234567,
			}

			buf, err := e.Marshal(p)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if len(buf) != e.StoredSize(p.Encrypted()) {
				t.Errorf("expected stored size %d, got %d", e.StoredSize(p.Encrypted()), len(buf))
			}

			parsed, size, err := ParseEntryAt(buf, 0, p, 4096)
			if err != nil {
				t.Fatalf("ParseEntryAt failed: %v", err)
			}
			if size != len(buf) {
				t.Errorf("expected consumed size %d, got %d", len(buf), size)
			}
			if !bytes.Equal(parsed.Key, e.Key) ||
				parsed.ValuePosition != e.ValuePosition ||
				parsed.ValueLength != e.ValueLength ||
				parsed.ValueHash != e.ValueHash ||
				parsed.TimestampMS != e.TimestampMS ||
				parsed.IsDeleted {
				t.Errorf("entry round-trip mismatch: %+v", parsed)
			}
		})
	}
}

func TestEntryTombstonePatch(t *testing.T) {
	for _, tc := range []struct {
		name     string
		pipeline func(*testing.T) *codec.Pipeline
	}{
		{"plain", plainPipeline},
		{"sealed", sealedPipeline},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.pipeline(t)

			e := &Entry{
				Key:           []byte("doomed-key"),
				ValuePosition: 100,
				ValueLength:   10,
				ValueHash:     7,
				TimestampMS:   1,
			}
			buf, err := e.Marshal(p)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}

			// overlay the tombstone patch exactly how the flush path does it
			patch := e.MarshalTombstone(p)
			copy(buf, patch)

			parsed, _, err := ParseEntryAt(buf, 0, p, 4096)
			if err != nil {
				t.Fatalf("ParseEntryAt failed after tombstone: %v", err)
			}
			if !parsed.IsDeleted {
				t.Errorf("expected tombstoned entry to parse as deleted")
			}
		})
	}
}

func TestParseEntryRejectsCorruption(t *testing.T) {
	p := plainPipeline(t)
	e := &Entry{Key: []byte("k"), ValuePosition: 64, ValueLength: 1, ValueHash: 1, TimestampMS: 1}
	buf, _ := e.Marshal(p)

	// bad magic
	bad := append([]byte(nil), buf...)
	bad[0] = 'X'
	if _, _, err := ParseEntryAt(bad, 0, p, 4096); !db.IsKind(err, db.KindCorruptEntry) {
		t.Errorf("expected CorruptEntry for bad magic, got %v", err)
	}

	// truncated region
	if _, _, err := ParseEntryAt(buf[:10], 0, p, 4096); !db.IsKind(err, db.KindCorruptEntry) {
		t.Errorf("expected CorruptEntry for truncation, got %v", err)
	}

	// implausible key length
	bad = append([]byte(nil), buf...)
	bad[5] = 0xff
	bad[6] = 0xff
	bad[7] = 0xff
	bad[8] = 0xff
	if _, _, err := ParseEntryAt(bad, 0, p, 4096); !db.IsKind(err, db.KindCorruptEntry) {
		t.Errorf("expected CorruptEntry for implausible key length, got %v", err)
	}
}

func TestSealedEntryRejectsPayloadTampering(t *testing.T) {
	p := sealedPipeline(t)
	e := &Entry{Key: []byte("key"), ValuePosition: 64, ValueLength: 1, ValueHash: 1, TimestampMS: 1}
	buf, _ := e.Marshal(p)

	buf[len(buf)-1] ^= 0x01
	if _, _, err := ParseEntryAt(buf, 0, p, 4096); !db.IsKind(err, db.KindCorruptEntry) {
		t.Errorf("expected CorruptEntry for tampered payload, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Appender
// --------------------------------------------------------------------------

func newTestAppender(t *testing.T, capacity int) (*Appender, *os.File) {
	t.Helper()
	file, err := os.Create(filepath.Join(t.TempDir(), "appender.bin"))
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	t.Cleanup(func() { file.Close() })
	return NewAppender(file, 0, capacity, 0), file
}

func TestAppenderPositions(t *testing.T) {
	app, file := newTestAppender(t, 1024)

	pos1, err := app.Append([]byte("hello"))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	pos2, err := app.Append([]byte("world"))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if pos1 != 0 || pos2 != 5 {
		t.Errorf("expected positions 0 and 5, got %d and %d", pos1, pos2)
	}
	if app.End() != 10 {
		t.Errorf("expected logical end 10, got %d", app.End())
	}

	// nothing flushed yet: the bytes are still staged
	if app.FlushedEnd() != 0 {
		t.Errorf("expected flushed end 0, got %d", app.FlushedEnd())
	}

	if err := app.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	buf := make([]byte, 10)
	if _, err := file.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if string(buf) != "helloworld" {
		t.Errorf("expected flushed bytes 'helloworld', got %q", buf)
	}
}

func TestAppenderOversizedWriteBypassesBuffer(t *testing.T) {
	app, file := newTestAppender(t, 16)

	if _, err := app.Append([]byte("small")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	big := bytes.Repeat([]byte("x"), 64)
	pos, err := app.Append(big)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if pos != 5 {
		t.Errorf("expected oversized write at position 5, got %d", pos)
	}

	// the oversized write and everything staged before it must be on disk
	buf := make([]byte, 5+64)
	if _, err := file.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if string(buf[:5]) != "small" || !bytes.Equal(buf[5:], big) {
		t.Errorf("unexpected file content after oversized append")
	}
}

func TestAppenderWriteAtDrainsBuffer(t *testing.T) {
	app, file := newTestAppender(t, 1024)

	if _, err := app.Append([]byte("0123456789")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := app.WriteAt(2, []byte("xy")); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}

	buf := make([]byte, 10)
	if _, err := file.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if string(buf) != "01xy456789" {
		t.Errorf("expected positioned write to land after drain, got %q", buf)
	}
}

func TestAppenderPreallocateDoesNotMoveAppends(t *testing.T) {
	app, file := newTestAppender(t, 1024)

	if _, err := app.Append([]byte("head")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := app.Preallocate(100); err != nil {
		t.Fatalf("Preallocate failed: %v", err)
	}

	pos, err := app.Append([]byte("tail"))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if pos != 4 {
		t.Errorf("expected append after preallocation at position 4, got %d", pos)
	}
	if err := app.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	buf := make([]byte, 8)
	if _, err := file.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if string(buf) != "headtail" {
		t.Errorf("expected contiguous data despite preallocation, got %q", buf)
	}
}

func TestAppenderClear(t *testing.T) {
	app, file := newTestAppender(t, 1024)

	if _, err := app.Append([]byte("discard-me")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	app.Clear(0)

	if err := app.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	stat, err := file.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if stat.Size() != 0 {
		t.Errorf("expected discarded bytes to never reach the file, size is %d", stat.Size())
	}
}

func TestAppenderAutoFlushTimer(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "appender.bin"))
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer file.Close()

	app := NewAppender(file, 0, 1024, 20*time.Millisecond)
	defer app.Close()

	if _, err := app.Append([]byte("timed")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for app.FlushedEnd() != 5 {
		if time.Now().After(deadline) {
			t.Fatalf("expected the timer to flush the buffer, flushed end is %d", app.FlushedEnd())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
