package util

import (
	"testing"
)

func TestSizeHistogramAddRemove(t *testing.T) {
	h := NewSizeHistogram()

	sizes := []int{10, 100, 1000, 10000, 100000}
	for _, s := range sizes {
		h.AddSample(s)
	}

	if h.GetCount() != int64(len(sizes)) {
		t.Errorf("Expected %d samples, got %d", len(sizes), h.GetCount())
	}

	var sum int64
	for _, s := range sizes {
		sum += int64(s)
	}
	if h.TotalBytes() != sum {
		t.Errorf("Expected total %d bytes, got %d", sum, h.TotalBytes())
	}
	if h.AverageSize() != int(sum)/len(sizes) {
		t.Errorf("Expected average %d, got %d", int(sum)/len(sizes), h.AverageSize())
	}

	// removals must keep count and sum honest
	h.RemoveSample(100000)
	if h.GetCount() != 4 || h.TotalBytes() != sum-100000 {
		t.Errorf("Expected 4 samples totalling %d after removal, got %d / %d",
			sum-100000, h.GetCount(), h.TotalBytes())
	}
}

func TestSizeHistogramEstimates(t *testing.T) {
	h := NewSizeHistogram()

	// fill with a known skew: mostly small, some large
	for i := 0; i < 900; i++ {
		h.AddSample(100)
	}
	for i := 0; i < 100; i++ {
		h.AddSample(1 << 20)
	}

	median := h.MedianEstimate()
	if median > 1024 {
		t.Errorf("Expected a small median for a mostly-small distribution, got %d", median)
	}

	p99 := h.GetPercentileEstimate(99)
	if p99 < median {
		t.Errorf("Expected p99 (%d) >= median (%d)", p99, median)
	}
}

func TestSizeHistogramReset(t *testing.T) {
	h := NewSizeHistogram()
	h.AddSample(42)
	h.Reset()

	if h.GetCount() != 0 || h.TotalBytes() != 0 || h.AverageSize() != 0 {
		t.Errorf("Expected empty histogram after Reset")
	}
}

func TestSizeHistogramEmpty(t *testing.T) {
	h := NewSizeHistogram()

	if h.MedianEstimate() != 0 || h.GetPercentileEstimate(95) != 0 || h.AverageSize() != 0 {
		t.Errorf("Expected zero estimates for an empty histogram")
	}

	// removing from an empty histogram must be a no-op
	h.RemoveSample(100)
	if h.GetCount() != 0 {
		t.Errorf("Expected RemoveSample on empty histogram to be a no-op")
	}
}

func TestNewStats(t *testing.T) {
	stats := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})

	if stats.Mean != 5 {
		t.Errorf("Expected mean 5, got %f", stats.Mean)
	}
	if stats.Min != 2 || stats.Max != 9 {
		t.Errorf("Expected min/max 2/9, got %f/%f", stats.Min, stats.Max)
	}
	if stats.StdDeviation != 2 {
		t.Errorf("Expected standard deviation 2, got %f", stats.StdDeviation)
	}

	empty := NewStats(nil)
	if empty.Mean != 0 {
		t.Errorf("Expected zero stats for empty input")
	}
}

func TestHashBytes(t *testing.T) {
	seed := GenerateSeed()

	h1 := HashBytes([]byte("key-a"), seed)
	h2 := HashBytes([]byte("key-b"), seed)
	if h1 == h2 {
		t.Errorf("Expected distinct hashes for distinct keys")
	}

	if HashBytes([]byte("key-a"), seed) != h1 {
		t.Errorf("Expected hash to be deterministic for the same seed")
	}

	if HashBytes([]byte("key-a"), seed+1) == h1 {
		t.Errorf("Expected different seeds to decorrelate hashes")
	}
}

func TestFNV1a32(t *testing.T) {
	// reference vectors for FNV-1a 32-bit
	if got := FNV1a32(nil); got != 2166136261 {
		t.Errorf("Expected offset basis for empty input, got %d", got)
	}
	if got := FNV1a32([]byte("a")); got != 0xe40c292c {
		t.Errorf("Unexpected FNV-1a hash for 'a': %#x", got)
	}
	if got := FNV1a32([]byte("foobar")); got != 0xbf9cf968 {
		t.Errorf("Unexpected FNV-1a hash for 'foobar': %#x", got)
	}
}
