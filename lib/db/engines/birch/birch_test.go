package birch

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/fsKV/lib/db"
	"github.com/ValentinKolb/fsKV/lib/db/codec"
	"github.com/ValentinKolb/fsKV/lib/logger"
)

func testOptions() *Options {
	opts := DefaultOptions()
	opts.Logger = logger.Discard()
	return opts
}

func openTestEngine(t *testing.T, path string, opts *Options) db.Engine {
	t.Helper()
	if opts == nil {
		opts = testOptions()
	}
	eng, err := Open(path, opts)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", path, err)
	}
	return eng
}

func fileLength(t *testing.T, path string) int64 {
	t.Helper()
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	return stat.Size()
}

// --------------------------------------------------------------------------
// End-to-end scenarios
// --------------------------------------------------------------------------

func TestSetFlushReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")

	eng := openTestEngine(t, path, nil)
	if err := eng.Set([]byte("alpha"), []byte("one")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Set([]byte("beta"), []byte("two")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	eng = openTestEngine(t, path, nil)
	defer eng.Close()

	for key, want := range map[string]string{"alpha": "one", "beta": "two"} {
		value, ok, err := eng.Get([]byte(key))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !ok || string(value) != want {
			t.Errorf("expected %s=%s after reopen, got %q (exists=%v)", key, want, value, ok)
		}
	}
	if eng.Count() != 2 {
		t.Errorf("expected count 2 after reopen, got %d", eng.Count())
	}
}

func TestEncryptedReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")
	key := "MySecure32ByteEncryptionKey12345"

	opts := testOptions()
	opts.Encryption = codec.EncryptionAES256GCM
	opts.EncryptionKey = key

	eng := openTestEngine(t, path, opts)
	if err := eng.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// reopen with the same key
	opts = testOptions()
	opts.Encryption = codec.EncryptionAES256GCM
	opts.EncryptionKey = key
	eng = openTestEngine(t, path, opts)
	value, ok, err := eng.Get([]byte("k"))
	if err != nil || !ok || string(value) != "v" {
		t.Errorf("expected k=v after encrypted reopen, got %q (exists=%v, err=%v)", value, ok, err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	lenBefore := fileLength(t, path)

	// reopen with a different (valid length) key must fail with AuthFailure
	opts = testOptions()
	opts.Encryption = codec.EncryptionAES256GCM
	opts.EncryptionKey = "WrongKeyButLongEnough123"
	if _, err := Open(path, opts); !db.IsKind(err, db.KindAuthFailure) {
		t.Errorf("expected AuthFailure with wrong key, got %v", err)
	}

	// the failed open must not mutate the file
	if fileLength(t, path) != lenBefore {
		t.Errorf("expected failed open to leave the file untouched")
	}
}

func TestConfigMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")

	opts := testOptions()
	opts.Compression = codec.CompressionZstd
	eng := openTestEngine(t, path, opts)
	if err := eng.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	opts = testOptions()
	opts.Compression = codec.CompressionSnappy
	if _, err := Open(path, opts); !db.IsKind(err, db.KindConfigMismatch) {
		t.Errorf("expected ConfigMismatch with differing compression, got %v", err)
	}
}

func TestReplaceModeReusesSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")

	opts := testOptions()
	opts.FileUpdateMode = UpdateReplace
	eng := openTestEngine(t, path, opts)
	defer eng.Close()

	if err := eng.Set([]byte("k"), []byte("AAAA")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	impl := eng.(*birchImpl)
	first, _ := impl.idx.Load().Load("k")
	posBefore := first.ValuePosition
	lenBefore := fileLength(t, path)

	if err := eng.Set([]byte("k"), []byte("BBBB")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	second, _ := impl.idx.Load().Load("k")
	if second.ValuePosition != posBefore {
		t.Errorf("expected replace-mode update to keep the value position (%d -> %d)", posBefore, second.ValuePosition)
	}
	if got := fileLength(t, path); got != lenBefore {
		t.Errorf("expected replace-mode update to keep the file length (%d -> %d)", lenBefore, got)
	}

	value, ok, err := eng.Get([]byte("k"))
	if err != nil || !ok || string(value) != "BBBB" {
		t.Errorf("expected k=BBBB, got %q (exists=%v, err=%v)", value, ok, err)
	}
}

func TestAppendModePositionIncreases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")

	eng := openTestEngine(t, path, nil)
	defer eng.Close()

	if err := eng.Set([]byte("k"), []byte("first")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	impl := eng.(*birchImpl)
	first, _ := impl.idx.Load().Load("k")

	if err := eng.Set([]byte("k"), []byte("second")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	second, _ := impl.idx.Load().Load("k")

	if second.ValuePosition <= first.ValuePosition {
		t.Errorf("expected append-mode update to move forward (%d -> %d)", first.ValuePosition, second.ValuePosition)
	}
}

func TestDeleteHalfThenCompact(t *testing.T) {
	n := 100000
	if testing.Short() {
		n = 10000
	}

	path := filepath.Join(t.TempDir(), "db.birch")
	eng := openTestEngine(t, path, nil)
	defer eng.Close()

	items := make([]db.Item, n)
	for i := 0; i < n; i++ {
		items[i] = db.Item{
			Key:   []byte(fmt.Sprintf("k%d", i)),
			Value: []byte(fmt.Sprintf("v%d", i)),
		}
	}
	if _, err := eng.SetBatch(items, false); err != nil {
		t.Fatalf("SetBatch failed: %v", err)
	}

	keys := make([][]byte, 0, n/2)
	for i := 0; i < n; i += 2 {
		keys = append(keys, []byte(fmt.Sprintf("k%d", i)))
	}
	if _, err := eng.DeleteBatch(keys); err != nil {
		t.Fatalf("DeleteBatch failed: %v", err)
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if eng.Count() != n/2 {
		t.Fatalf("expected %d live entries, got %d", n/2, eng.Count())
	}

	lenBefore := fileLength(t, path)
	if err := eng.Compact(false); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	lenAfter := fileLength(t, path)

	if lenAfter >= lenBefore {
		t.Errorf("expected compaction to shrink the file (%d -> %d)", lenBefore, lenAfter)
	}
	if eng.Count() != n/2 {
		t.Errorf("expected %d live entries after compaction, got %d", n/2, eng.Count())
	}

	if value, ok, err := eng.Get([]byte("k1")); err != nil || !ok || string(value) != "v1" {
		t.Errorf("expected k1=v1 after compaction, got %q (exists=%v, err=%v)", value, ok, err)
	}
	if _, ok, _ := eng.Get([]byte("k0")); ok {
		t.Errorf("expected deleted k0 to stay gone after compaction")
	}

	// random sample of survivors must read correctly
	for i := 0; i < 100; i++ {
		j := rand.Intn(n/2)*2 + 1
		value, ok, err := eng.Get([]byte(fmt.Sprintf("k%d", j)))
		if err != nil || !ok || string(value) != fmt.Sprintf("v%d", j) {
			t.Fatalf("expected k%d=v%d after compaction, got %q (exists=%v, err=%v)", j, j, value, ok, err)
		}
	}
}

func TestBatchInsertReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")
	eng := openTestEngine(t, path, nil)

	items := make([]db.Item, 2000)
	for i := range items {
		items[i] = db.Item{
			Key:   []byte(fmt.Sprintf("batch-%d", i)),
			Value: []byte(fmt.Sprintf("payload-%d", i)),
		}
	}
	if n, err := eng.SetBatch(items, false); err != nil || n != 2000 {
		t.Fatalf("SetBatch wrote %d items, err=%v", n, err)
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	eng = openTestEngine(t, path, nil)
	defer eng.Close()

	if eng.Count() != 2000 {
		t.Errorf("expected 2000 entries after reopen, got %d", eng.Count())
	}
	for i := 0; i < 100; i++ {
		j := rand.Intn(2000)
		value, ok, err := eng.Get([]byte(fmt.Sprintf("batch-%d", j)))
		if err != nil || !ok || string(value) != fmt.Sprintf("payload-%d", j) {
			t.Fatalf("expected batch-%d to round-trip, got %q (exists=%v, err=%v)", j, value, ok, err)
		}
	}
}

// --------------------------------------------------------------------------
// Boundary behaviors
// --------------------------------------------------------------------------

func TestKeyLengthLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")

	opts := testOptions()
	opts.MaxKeyLength = 64
	eng := openTestEngine(t, path, opts)
	defer eng.Close()

	atLimit := bytes.Repeat([]byte("k"), 64)
	if err := eng.Set(atLimit, []byte("v")); err != nil {
		t.Errorf("expected key at the limit to be accepted, got %v", err)
	}

	over := bytes.Repeat([]byte("k"), 65)
	if err := eng.Set(over, []byte("v")); !db.IsKind(err, db.KindKeyTooLarge) {
		t.Errorf("expected KeyTooLarge one byte over the limit, got %v", err)
	}
}

func TestClearResetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")
	eng := openTestEngine(t, path, nil)
	defer eng.Close()

	for i := 0; i < 50; i++ {
		if err := eng.Set([]byte(fmt.Sprintf("k%d", i)), []byte("v")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if err := eng.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	impl := eng.(*birchImpl)
	if got := fileLength(t, path); got != impl.headerSize() {
		t.Errorf("expected file to drop back to header size %d, got %d", impl.headerSize(), got)
	}

	// a subsequent set + flush must rebuild the index fields
	if err := eng.Set([]byte("reborn"), []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if impl.header.IndexCount != 1 || impl.header.IndexUsed == 0 {
		t.Errorf("expected rebuilt header index fields, got count=%d used=%d",
			impl.header.IndexCount, impl.header.IndexUsed)
	}
}

func TestFileLengthMonotoneBeforeCompact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")
	eng := openTestEngine(t, path, nil)
	defer eng.Close()

	prev := int64(0)
	for round := 0; round < 5; round++ {
		for i := 0; i < 20; i++ {
			if err := eng.Set([]byte(fmt.Sprintf("k%d-%d", round, i)), []byte("value")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		}
		if err := eng.Flush(); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
		if got := fileLength(t, path); got < prev {
			t.Errorf("expected file length to grow monotonically before compaction (%d -> %d)", prev, got)
		} else {
			prev = got
		}
	}
}

func TestAutoCompactTriggersOnFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")

	opts := testOptions()
	opts.AutoCompactEnabled = true
	opts.AutoCompactThreshold = 30
	opts.FlushIntervalS = 0
	eng := openTestEngine(t, path, opts)
	defer eng.Close()

	for i := 0; i < 500; i++ {
		if err := eng.Set([]byte(fmt.Sprintf("k%d", i)), bytes.Repeat([]byte("v"), 128)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	lenBefore := fileLength(t, path)

	// delete most entries so the dead ratio crosses the threshold
	for i := 0; i < 450; i++ {
		if _, err := eng.Delete([]byte(fmt.Sprintf("k%d", i))); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if got := fileLength(t, path); got >= lenBefore {
		t.Errorf("expected the threshold-crossing flush to compact the file (%d -> %d)", lenBefore, got)
	}
	if eng.Count() != 50 {
		t.Errorf("expected 50 survivors, got %d", eng.Count())
	}
}

func TestCorruptValueReadsAsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")

	opts := testOptions()
	opts.Compression = codec.CompressionGzip
	opts.FlushIntervalS = 0
	eng := openTestEngine(t, path, opts)
	defer eng.Close()

	if err := eng.Set([]byte("victim"), bytes.Repeat([]byte("data"), 64)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Set([]byte("bystander"), []byte("fine")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// smash the victim's stored bytes directly in the file
	impl := eng.(*birchImpl)
	e, _ := impl.idx.Load().Load("victim")
	garbage := bytes.Repeat([]byte{0xff}, int(e.ValueLength))
	if _, err := impl.fref.Load().file.WriteAt(garbage, e.ValuePosition); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}

	value, ok, err := eng.Get([]byte("victim"))
	if err != nil {
		t.Fatalf("expected corrupt value to surface as missing, not as error: %v", err)
	}
	if ok {
		t.Errorf("expected corrupt value to read as missing, got %q", value)
	}

	// the engine must stay live for other keys
	value, ok, err = eng.Get([]byte("bystander"))
	if err != nil || !ok || string(value) != "fine" {
		t.Errorf("expected bystander to survive, got %q (exists=%v, err=%v)", value, ok, err)
	}
}

func TestVerifyHashesOnReadDetectsBitRot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")

	opts := testOptions()
	opts.VerifyHashesOnRead = true
	opts.FlushIntervalS = 0
	eng := openTestEngine(t, path, opts)
	defer eng.Close()

	if err := eng.Set([]byte("k"), []byte("uncompressed plain value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	impl := eng.(*birchImpl)
	e, _ := impl.idx.Load().Load("k")
	if _, err := impl.fref.Load().file.WriteAt([]byte{'X'}, e.ValuePosition); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}

	// without compression the bytes would decode fine; only the stamp check
	// can catch the flip
	if _, ok, err := eng.Get([]byte("k")); err != nil || ok {
		t.Errorf("expected flipped byte to be caught by the stamp check (exists=%v, err=%v)", ok, err)
	}
}

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

func TestUpdateValidationPassesOnHealthyWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")

	opts := testOptions()
	opts.UpdateValidationEnabled = true
	eng := openTestEngine(t, path, opts)
	defer eng.Close()

	for i := 0; i < 50; i++ {
		if err := eng.Set([]byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i))); err != nil {
			t.Fatalf("validated Set failed: %v", err)
		}
	}
	if _, err := eng.SetBatch([]db.Item{
		{Key: []byte("b1"), Value: []byte("v1")},
		{Key: []byte("b2"), Value: []byte("v2")},
	}, false); err != nil {
		t.Fatalf("validated SetBatch failed: %v", err)
	}
}

func TestValidateWriteDetectsMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")

	opts := testOptions()
	opts.FlushIntervalS = 0
	eng := openTestEngine(t, path, opts)
	defer eng.Close()

	impl := eng.(*birchImpl)

	if err := eng.Set([]byte("k"), []byte("stored")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	e, _ := impl.idx.Load().Load("k")

	// read-back matches
	if err := impl.validateWrite(impl.fref.Load(), e, []byte("stored")); err != nil {
		t.Errorf("expected matching read-back to validate, got %v", err)
	}

	// read-back differs
	if err := impl.validateWrite(impl.fref.Load(), e, []byte("expected-something-else")); !db.IsKind(err, db.KindValidationFailure) {
		t.Errorf("expected ValidationFailure on mismatch, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Misc
// --------------------------------------------------------------------------

func TestFlushIdempotenceKeepsFileLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")
	eng := openTestEngine(t, path, nil)
	defer eng.Close()

	for i := 0; i < 20; i++ {
		if err := eng.Set([]byte(fmt.Sprintf("k%d", i)), []byte("v")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	lenBefore := fileLength(t, path)
	for i := 0; i < 3; i++ {
		if err := eng.Flush(); err != nil {
			t.Fatalf("repeated Flush failed: %v", err)
		}
	}
	if got := fileLength(t, path); got != lenBefore {
		t.Errorf("expected clean flushes to leave the file untouched (%d -> %d)", lenBefore, got)
	}
}

func TestDuplicateSetIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")
	eng := openTestEngine(t, path, nil)
	defer eng.Close()

	if err := eng.Set([]byte("k"), []byte("same")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	impl := eng.(*birchImpl)
	first, _ := impl.idx.Load().Load("k")

	if err := eng.Set([]byte("k"), []byte("same")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	second, _ := impl.idx.Load().Load("k")

	if first != second {
		t.Errorf("expected the duplicate set to leave the entry untouched")
	}
}

func TestCacheModeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")

	opts := testOptions()
	opts.CacheEnabled = true
	opts.CacheTTL = time.Minute
	eng := openTestEngine(t, path, opts)
	defer eng.Close()

	if err := eng.Set([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// first get populates the cache, second get hits it
	for i := 0; i < 2; i++ {
		value, ok, err := eng.Get([]byte("k"))
		if err != nil || !ok || string(value) != "v1" {
			t.Fatalf("Get %d returned %q (exists=%v, err=%v)", i, value, ok, err)
		}
	}

	// set must invalidate the cached value
	if err := eng.Set([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, ok, err := eng.Get([]byte("k"))
	if err != nil || !ok || string(value) != "v2" {
		t.Errorf("expected updated value after invalidation, got %q (exists=%v, err=%v)", value, ok, err)
	}

	// delete must invalidate as well
	if _, err := eng.Delete([]byte("k")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := eng.Get([]byte("k")); ok {
		t.Errorf("expected deleted key to miss the cache")
	}
}

func TestCompressedEncryptedEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")

	opts := testOptions()
	opts.Compression = codec.CompressionZstd
	opts.Encryption = codec.EncryptionChaCha20Poly1305
	opts.EncryptionKey = "MySecure32ByteEncryptionKey12345"
	opts.Hash = codec.HashBLAKE3

	eng := openTestEngine(t, path, opts)
	want := map[string][]byte{}
	for i := 0; i < 200; i++ {
		k := fmt.Sprintf("key-%d", i)
		v := bytes.Repeat([]byte(fmt.Sprintf("value-%d ", i)), 20)
		if err := eng.Set([]byte(k), v); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		want[k] = v
	}
	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := eng.Compact(false); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	eng = openTestEngine(t, path, opts)
	defer eng.Close()

	for k, v := range want {
		value, ok, err := eng.Get([]byte(k))
		if err != nil || !ok || !bytes.Equal(value, v) {
			t.Fatalf("expected %s to round-trip through zstd+chacha20, got %d bytes (exists=%v, err=%v)", k, len(value), ok, err)
		}
	}

	// the raw file must not contain the plaintext
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if bytes.Contains(raw, []byte("value-0 value-0")) {
		t.Errorf("expected no plaintext values in the encrypted file")
	}
	if bytes.Contains(raw, []byte("key-0")) {
		t.Errorf("expected no plaintext keys in the encrypted file")
	}
}

func TestStatsReportsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")
	eng := openTestEngine(t, path, nil)
	defer eng.Close()

	for i := 0; i < 30; i++ {
		if err := eng.Set([]byte(fmt.Sprintf("k%d", i)), bytes.Repeat([]byte("v"), 100)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	stats := eng.Stats()
	if stats.DbType != db.ImplBirch {
		t.Errorf("expected db type birch, got %s", stats.DbType)
	}
	if stats.LiveCount != 30 {
		t.Errorf("expected live count 30, got %d", stats.LiveCount)
	}
	if !stats.Dirty {
		t.Errorf("expected dirty engine before flush")
	}
	if stats.ValueBytes != 30*100 {
		t.Errorf("expected 3000 value bytes, got %d", stats.ValueBytes)
	}
	if stats.ValueSizes.Count != 30 {
		t.Errorf("expected 30 size samples, got %d", stats.ValueSizes.Count)
	}

	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	stats = eng.Stats()
	if stats.Dirty {
		t.Errorf("expected clean engine after flush")
	}
	if stats.IndexUsed == 0 || stats.IndexSpace < stats.IndexUsed {
		t.Errorf("expected a persisted index region, got used=%d space=%d", stats.IndexUsed, stats.IndexSpace)
	}
}

func TestOperationsOnClosedEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.birch")
	eng := openTestEngine(t, path, nil)
	if err := eng.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := eng.Set([]byte("k"), []byte("v")); !db.IsKind(err, db.KindClosed) {
		t.Errorf("expected Closed error from Set, got %v", err)
	}
	if _, _, err := eng.Get([]byte("k")); !db.IsKind(err, db.KindClosed) {
		t.Errorf("expected Closed error from Get, got %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Errorf("expected double Close to be a no-op, got %v", err)
	}
}
