package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/fsKV/lib/db"
)

// EngineFactory is a function that creates a new instance of an Engine
// implementation over fresh storage.
type EngineFactory func() db.Engine

// RunEngineTests runs a comprehensive test suite for an Engine implementation.
// The reopen factory must return an engine over the same storage the previous
// factory call produced (after that engine was closed); implementations
// without persistence pass nil to skip the reopen tests.
func RunEngineTests(t *testing.T, name string, factory EngineFactory, reopen EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Contains", func(t *testing.T) {
			testContains(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Batch", func(t *testing.T) {
			testBatch(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("Keys&Count", func(t *testing.T) {
			testKeysCount(t, factory())
		})

		t.Run("FlushIdempotence", func(t *testing.T) {
			testFlushIdempotence(t, factory())
		})

		t.Run("Compact", func(t *testing.T) {
			testCompact(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentUsage", func(t *testing.T) {
			testConcurrentUsage(t, factory())
		})

		if reopen != nil {
			t.Run("Reopen", func(t *testing.T) {
				testReopen(t, factory, reopen)
			})
		}
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the engine supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, engine db.Engine, feature db.Feature) {
	if !engine.SupportsFeature(feature) {
		t.Skip()
	}
}

func mustSet(t testing.TB, engine db.Engine, key, value string) {
	t.Helper()
	if err := engine.Set([]byte(key), []byte(value)); err != nil {
		t.Fatalf("Set(%q) failed: %v", key, err)
	}
}

func mustGet(t testing.TB, engine db.Engine, key string) ([]byte, bool) {
	t.Helper()
	value, ok, err := engine.Get([]byte(key))
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return value, ok
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	if err := engine.Set([]byte(testKey), testValue1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, exists := mustGet(t, engine, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	if err := engine.Set([]byte(testKey), testValue2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, exists = mustGet(t, engine, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists = mustGet(t, engine, "nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _ := mustGet(t, engine, testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := mustGet(t, engine, testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// setting the identical value again must be accepted (and is a no-op)
	if err := engine.Set([]byte(testKey), testValue2); err != nil {
		t.Errorf("Set with identical value failed: %v", err)
	}
	result, _ = mustGet(t, engine, testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s after identical Set, got %s", testValue2, result)
	}
}

func testContains(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureSet|db.FeatureContains)

	mustSet(t, engine, "present", "value")

	ok, err := engine.Contains([]byte("present"))
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !ok {
		t.Errorf("Expected Contains to report existing key")
	}

	ok, err = engine.Contains([]byte("absent"))
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if ok {
		t.Errorf("Expected Contains to report missing key as absent")
	}
}

func testDelete(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	mustSet(t, engine, "doomed", "value")

	existed, err := engine.Delete([]byte("doomed"))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !existed {
		t.Errorf("Expected Delete to report the key existed")
	}

	if _, exists := mustGet(t, engine, "doomed"); exists {
		t.Errorf("Expected deleted key to be gone")
	}

	existed, err = engine.Delete([]byte("doomed"))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if existed {
		t.Errorf("Expected second Delete to report the key missing")
	}

	// set after delete must resurrect the key
	mustSet(t, engine, "doomed", "revived")
	result, exists := mustGet(t, engine, "doomed")
	if !exists || string(result) != "revived" {
		t.Errorf("Expected key to be revivable after delete, got %q (exists=%v)", result, exists)
	}
}

func testBatch(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureSetBatch|db.FeatureDeleteBatch|db.FeatureGet)

	items := make([]db.Item, 100)
	for i := range items {
		items[i] = db.Item{
			Key:   []byte(fmt.Sprintf("batch-key-%d", i)),
			Value: []byte(fmt.Sprintf("batch-value-%d", i)),
		}
	}

	n, err := engine.SetBatch(items, false)
	if err != nil {
		t.Fatalf("SetBatch failed: %v", err)
	}
	if n != len(items) {
		t.Errorf("Expected %d written items, got %d", len(items), n)
	}

	for i := range items {
		value, exists := mustGet(t, engine, string(items[i].Key))
		if !exists || !bytes.Equal(value, items[i].Value) {
			t.Errorf("Expected batch item %d to round-trip, got %q (exists=%v)", i, value, exists)
		}
	}

	// re-inserting the same items with skipDuplicates must write nothing
	n, err = engine.SetBatch(items, true)
	if err != nil {
		t.Fatalf("SetBatch failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 written items with skipDuplicates, got %d", n)
	}

	keys := make([][]byte, 0, 50)
	for i := 0; i < 100; i += 2 {
		keys = append(keys, items[i].Key)
	}
	deleted, err := engine.DeleteBatch(keys)
	if err != nil {
		t.Fatalf("DeleteBatch failed: %v", err)
	}
	if deleted != 50 {
		t.Errorf("Expected 50 deleted keys, got %d", deleted)
	}
	if engine.Count() != 50 {
		t.Errorf("Expected 50 remaining keys, got %d", engine.Count())
	}
}

func testClear(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureSet|db.FeatureClear)

	for i := 0; i < 25; i++ {
		mustSet(t, engine, fmt.Sprintf("key-%d", i), "value")
	}

	if err := engine.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if engine.Count() != 0 {
		t.Errorf("Expected empty engine after Clear, got %d entries", engine.Count())
	}

	// the engine must stay usable after a clear
	mustSet(t, engine, "after-clear", "value")
	if err := engine.Flush(); err != nil {
		t.Fatalf("Flush after Clear failed: %v", err)
	}
	if engine.Count() != 1 {
		t.Errorf("Expected 1 entry after Clear+Set, got %d", engine.Count())
	}
}

func testKeysCount(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureSet|db.FeatureKeys|db.FeatureDelete)

	want := map[string]bool{}
	for i := 0; i < 30; i++ {
		k := fmt.Sprintf("key-%d", i)
		mustSet(t, engine, k, "value")
		want[k] = true
	}
	for i := 0; i < 30; i += 3 {
		k := fmt.Sprintf("key-%d", i)
		if _, err := engine.Delete([]byte(k)); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		delete(want, k)
	}

	if engine.Count() != len(want) {
		t.Errorf("Expected count %d, got %d", len(want), engine.Count())
	}

	got := map[string]bool{}
	for _, k := range engine.Keys() {
		got[string(k)] = true
	}
	if len(got) != len(want) {
		t.Errorf("Expected %d keys, got %d", len(want), len(got))
	}
	for k := range want {
		if !got[k] {
			t.Errorf("Expected key %s in Keys() snapshot", k)
		}
	}
}

func testFlushIdempotence(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureSet|db.FeatureFlush)

	mustSet(t, engine, "key", "value")

	if err := engine.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	statsBefore := engine.Stats()
	if err := engine.Flush(); err != nil {
		t.Fatalf("Second Flush failed: %v", err)
	}
	statsAfter := engine.Stats()

	if statsAfter.FileLength != statsBefore.FileLength {
		t.Errorf("Expected a clean Flush to leave the file length unchanged (%d -> %d)",
			statsBefore.FileLength, statsAfter.FileLength)
	}
	if statsAfter.Dirty {
		t.Errorf("Expected engine to be clean after Flush")
	}
}

func testCompact(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureSet|db.FeatureDelete|db.FeatureCompact|db.FeatureFlush)

	for i := 0; i < 200; i++ {
		mustSet(t, engine, fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}
	for i := 0; i < 200; i += 2 {
		if _, err := engine.Delete([]byte(fmt.Sprintf("key-%d", i))); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
	}
	if err := engine.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	before := engine.Stats()

	if err := engine.Compact(false); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	after := engine.Stats()
	if after.FileLength > before.FileLength {
		t.Errorf("Expected compaction to shrink the file (%d -> %d)", before.FileLength, after.FileLength)
	}
	if engine.Count() != 100 {
		t.Errorf("Expected 100 live entries after compaction, got %d", engine.Count())
	}

	for i := 1; i < 200; i += 2 {
		value, exists := mustGet(t, engine, fmt.Sprintf("key-%d", i))
		if !exists || string(value) != fmt.Sprintf("value-%d", i) {
			t.Errorf("Expected key-%d to survive compaction, got %q (exists=%v)", i, value, exists)
		}
	}
	for i := 0; i < 200; i += 2 {
		if _, exists := mustGet(t, engine, fmt.Sprintf("key-%d", i)); exists {
			t.Errorf("Expected deleted key-%d to stay gone after compaction", i)
		}
	}

	// compacting a freshly compacted engine must be safe
	if err := engine.Compact(false); err != nil {
		t.Fatalf("Second Compact failed: %v", err)
	}
	if engine.Count() != 100 {
		t.Errorf("Expected 100 live entries after second compaction, got %d", engine.Count())
	}
}

func testEdgeCases(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureSet|db.FeatureGet)

	// empty value
	if err := engine.Set([]byte("empty-value"), []byte{}); err != nil {
		t.Fatalf("Set with empty value failed: %v", err)
	}
	value, exists := mustGet(t, engine, "empty-value")
	if !exists || len(value) != 0 {
		t.Errorf("Expected empty value to round-trip, got %q (exists=%v)", value, exists)
	}

	// binary key and value
	binKey := []byte{0x00, 0xff, 0x10, 0x80}
	binValue := []byte{0xde, 0xad, 0xbe, 0xef, 0x00}
	if err := engine.Set(binKey, binValue); err != nil {
		t.Fatalf("Set with binary key failed: %v", err)
	}
	got, ok, err := engine.Get(binKey)
	if err != nil {
		t.Fatalf("Get with binary key failed: %v", err)
	}
	if !ok || !bytes.Equal(got, binValue) {
		t.Errorf("Expected binary key/value to round-trip, got %x (exists=%v)", got, ok)
	}

	// large value (bigger than typical write buffers)
	large := bytes.Repeat([]byte("0123456789abcdef"), 1<<16) // 1 MiB
	if err := engine.Set([]byte("large"), large); err != nil {
		t.Fatalf("Set with large value failed: %v", err)
	}
	got, ok = mustGet(t, engine, "large")
	if !ok || !bytes.Equal(got, large) {
		t.Errorf("Expected large value to round-trip (got %d bytes, exists=%v)", len(got), ok)
	}

	// empty key must be rejected
	if err := engine.Set([]byte{}, []byte("value")); err == nil {
		t.Errorf("Expected Set with empty key to fail")
	}
}

func testConcurrentUsage(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	const (
		goroutines = 8
		perWorker  = 200
	)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := []byte(fmt.Sprintf("worker-%d-key-%d", g, i))
				value := []byte(fmt.Sprintf("worker-%d-value-%d", g, i))
				if err := engine.Set(key, value); err != nil {
					t.Errorf("concurrent Set failed: %v", err)
					return
				}
				got, ok, err := engine.Get(key)
				if err != nil {
					t.Errorf("concurrent Get failed: %v", err)
					return
				}
				if !ok || !bytes.Equal(got, value) {
					t.Errorf("concurrent Get returned %q (exists=%v), want %q", got, ok, value)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if engine.Count() != goroutines*perWorker {
		t.Errorf("Expected %d entries after concurrent writes, got %d", goroutines*perWorker, engine.Count())
	}
}

func testReopen(t *testing.T, factory, reopen EngineFactory) {
	engine := factory()

	requireFeature(t, engine, db.FeatureSet|db.FeatureFlush|db.FeaturePersistence)

	want := map[string]string{}
	for i := 0; i < 100; i++ {
		k := fmt.Sprintf("key-%d", i)
		v := fmt.Sprintf("value-%d", i)
		mustSet(t, engine, k, v)
		want[k] = v
	}
	for i := 0; i < 100; i += 4 {
		k := fmt.Sprintf("key-%d", i)
		if _, err := engine.Delete([]byte(k)); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		delete(want, k)
	}

	if err := engine.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	engine = reopen()
	defer engine.Close()

	if engine.Count() != len(want) {
		t.Errorf("Expected %d entries after reopen, got %d", len(want), engine.Count())
	}
	for k, v := range want {
		value, exists := mustGet(t, engine, k)
		if !exists || string(value) != v {
			t.Errorf("Expected %s=%s after reopen, got %q (exists=%v)", k, v, value, exists)
		}
	}
}
