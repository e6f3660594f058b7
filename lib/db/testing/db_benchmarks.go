package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/fsKV/lib/db"
)

// RunEngineBenchmarks runs all benchmarks for an Engine implementation
func RunEngineBenchmarks(b *testing.B, name string, factory EngineFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("SetExisting", func(b *testing.B) {
		benchmarkSetExisting(b, factory())
	})

	b.Run("SetLargeValue", func(b *testing.B) {
		benchmarkSetLargeValue(b, factory())
	})

	b.Run("SetBatch", func(b *testing.B) {
		benchmarkSetBatch(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory())
	})

	b.Run("Contains", func(b *testing.B) {
		benchmarkContains(b, factory())
	})

	b.Run("Contains(not)", func(b *testing.B) {
		benchmarkContainsNot(b, factory())
	})

	b.Run("Flush", func(b *testing.B) {
		benchmarkFlush(b, factory())
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Set operation
func benchmarkSet(b *testing.B, engine db.Engine) {

	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureSet)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := rand.Int()
		for pb.Next() {
			key := []byte(fmt.Sprintf("test-key-%d", counter))
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			_ = engine.Set(key, value)
			counter++
		}
	})
}

// Benchmark for Set operation with existing keys
func benchmarkSetExisting(b *testing.B, engine db.Engine) {

	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureSet)

	// Prepare data
	const numKeys = 1 << 12
	for i := 0; i < numKeys; i++ {
		_ = engine.Set([]byte(fmt.Sprintf("test-key-%d", i)), []byte("initial"))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := rand.Int()
		for pb.Next() {
			key := []byte(fmt.Sprintf("test-key-%d", counter%numKeys))
			value := []byte(fmt.Sprintf("updated-value-%d", counter))
			_ = engine.Set(key, value)
			counter++
		}
	})
}

// Benchmark for Set operation with a 64 KiB value
func benchmarkSetLargeValue(b *testing.B, engine db.Engine) {

	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureSet)

	value := make([]byte, 64<<10)
	rand.Read(value)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// vary the head so deduplication never kicks in
		value[0] = byte(i)
		_ = engine.Set([]byte(fmt.Sprintf("large-key-%d", i)), value)
	}
}

// Benchmark for SetBatch with 100-item batches
func benchmarkSetBatch(b *testing.B, engine db.Engine) {

	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureSetBatch)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		items := make([]db.Item, 100)
		for j := range items {
			items[j] = db.Item{
				Key:   []byte(fmt.Sprintf("batch-%d-%d", i, j)),
				Value: []byte(fmt.Sprintf("value-%d-%d", i, j)),
			}
		}
		_, _ = engine.SetBatch(items, false)
	}
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, engine db.Engine) {

	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureSet|db.FeatureGet)

	// Prepare data
	const numKeys = 1 << 12
	for i := 0; i < numKeys; i++ {
		_ = engine.Set([]byte(fmt.Sprintf("test-key-%d", i)), []byte(fmt.Sprintf("test-value-%d", i)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := rand.Int()
		for pb.Next() {
			_, _, _ = engine.Get([]byte(fmt.Sprintf("test-key-%d", counter%numKeys)))
			counter++
		}
	})
}

// Benchmark for Delete operation
func benchmarkDelete(b *testing.B, engine db.Engine) {

	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureSet|db.FeatureDelete)

	// Prepare data
	for i := 0; i < b.N; i++ {
		_ = engine.Set([]byte(fmt.Sprintf("test-key-%d", i)), []byte("value"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.Delete([]byte(fmt.Sprintf("test-key-%d", i)))
	}
}

// Benchmark for Contains with existing keys
func benchmarkContains(b *testing.B, engine db.Engine) {

	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureSet|db.FeatureContains)

	const numKeys = 1 << 12
	for i := 0; i < numKeys; i++ {
		_ = engine.Set([]byte(fmt.Sprintf("test-key-%d", i)), []byte("value"))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := rand.Int()
		for pb.Next() {
			_, _ = engine.Contains([]byte(fmt.Sprintf("test-key-%d", counter%numKeys)))
			counter++
		}
	})
}

// Benchmark for Contains with missing keys
func benchmarkContainsNot(b *testing.B, engine db.Engine) {

	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureContains)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := rand.Int()
		for pb.Next() {
			_, _ = engine.Contains([]byte(fmt.Sprintf("missing-key-%d", counter)))
			counter++
		}
	})
}

// Benchmark for the flush barrier with a small dirty set per iteration
func benchmarkFlush(b *testing.B, engine db.Engine) {

	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureSet|db.FeatureFlush)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = engine.Set([]byte(fmt.Sprintf("flush-key-%d", i)), []byte("value"))
		_ = engine.Flush()
	}
}

// Benchmark simulating mixed realistic usage (70% reads, 20% writes, 10% deletes)
func benchmarkMixedUsage(b *testing.B, engine db.Engine) {

	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	const numKeys = 1 << 12
	for i := 0; i < numKeys; i++ {
		_ = engine.Set([]byte(fmt.Sprintf("test-key-%d", i)), []byte(fmt.Sprintf("test-value-%d", i)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := rand.Int()
		for pb.Next() {
			key := []byte(fmt.Sprintf("test-key-%d", counter%numKeys))
			switch counter % 10 {
			case 0:
				_, _ = engine.Delete(key)
			case 1, 2:
				_ = engine.Set(key, []byte(fmt.Sprintf("updated-%d", counter)))
			default:
				_, _, _ = engine.Get(key)
			}
			counter++
		}
	})
}
