package kv

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/fsKV/cmd/util"
	vmetrics "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for local fsKV databases",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfOpsPerThread     = 1000
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Operations per thread and benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfOpsPerThread = viper.GetInt("ops")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func shouldSkip(name string) bool {
	for _, s := range perfSkip {
		if strings.TrimSpace(s) == name {
			return true
		}
	}
	return false
}

// perfResult is one finished benchmark: a latency histogram plus the counters
// accumulated while it ran.
type perfResult struct {
	name      string
	histogram gometrics.Histogram
	ops       uint64
	errors    uint64
	elapsed   time.Duration
}

// runBenchmark drives op from perfNumThreads goroutines, sampling per-call
// latency into an exponentially decaying histogram.
func runBenchmark(name string, counters *vmetrics.Set, op func(thread, i int) error) perfResult {
	histogram := gometrics.NewHistogram(gometrics.NewExpDecaySample(1028, 0.015))
	opsCounter := counters.GetOrCreateCounter(fmt.Sprintf(`fskv_perf_ops_total{bench=%q}`, name))
	errCounter := counters.GetOrCreateCounter(fmt.Sprintf(`fskv_perf_errors_total{bench=%q}`, name))

	var wg sync.WaitGroup

	start := time.Now()
	for t := 0; t < perfNumThreads; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			for i := 0; i < perfOpsPerThread; i++ {
				opStart := time.Now()
				err := op(t, i)

				// the histogram sample is internally synchronized
				histogram.Update(time.Since(opStart).Nanoseconds())
				opsCounter.Inc()
				if err != nil {
					errCounter.Inc()
				}
			}
		}(t)
	}
	wg.Wait()

	return perfResult{
		name:      name,
		histogram: histogram,
		ops:       uint64(perfNumThreads * perfOpsPerThread),
		errors:    uint64(errCounter.Get()),
		elapsed:   time.Since(start),
	}
}

func printResult(r perfResult) {
	opsPerSec := float64(r.ops) / r.elapsed.Seconds()
	ps := r.histogram.Percentiles([]float64{0.5, 0.95, 0.99})
	fmt.Printf("%-12s %10.0f ops/s   p50=%-10s p95=%-10s p99=%-10s errors=%d\n",
		r.name,
		opsPerSec,
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		time.Duration(ps[2]),
		r.errors,
	)
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for local fsKV databases")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Ops per thread: %d\n", perfOpsPerThread)
	fmt.Printf("Key spread: %d\n", perfKeySpread)
	fmt.Println()

	fmt.Println("starting tests...")

	counters := vmetrics.NewSet()
	results := make([]perfResult, 0, 4)
	perfKey := func(bench string, i int) []byte {
		return []byte(fmt.Sprintf("%s-%s-%d", perfKeyPrefix, bench, i%perfKeySpread))
	}

	if !shouldSkip("set") {
		r := runBenchmark("set", counters, func(t, i int) error {
			return engine.Set(perfKey("set", t*perfOpsPerThread+i), []byte("test"))
		})
		results = append(results, r)
		printResult(r)
	}

	if !shouldSkip("set-large") {
		largeValue := make([]byte, perfLargeValueSizeKB*1024)
		r := runBenchmark("set-large", counters, func(t, i int) error {
			// vary the head so deduplication never kicks in
			largeValue[0] = byte(t)
			largeValue[1] = byte(i)
			return engine.Set(perfKey("set-large", t*perfOpsPerThread+i), largeValue)
		})
		results = append(results, r)
		printResult(r)
	}

	if !shouldSkip("get") {
		// warm the key space
		for i := 0; i < perfKeySpread; i++ {
			if err := engine.Set(perfKey("get", i), []byte("test")); err != nil {
				return err
			}
		}
		r := runBenchmark("get", counters, func(t, i int) error {
			_, _, err := engine.Get(perfKey("get", i))
			return err
		})
		results = append(results, r)
		printResult(r)
	}

	if !shouldSkip("has") {
		r := runBenchmark("has", counters, func(t, i int) error {
			_, err := engine.Contains(perfKey("get", i))
			return err
		})
		results = append(results, r)
		printResult(r)
	}

	if !shouldSkip("delete") {
		r := runBenchmark("delete", counters, func(t, i int) error {
			_, err := engine.Delete(perfKey("set", t*perfOpsPerThread+i))
			return err
		})
		results = append(results, r)
		printResult(r)
	}

	if !shouldSkip("flush") {
		r := runBenchmark("flush", counters, func(t, i int) error {
			if err := engine.Set(perfKey("flush", t*perfOpsPerThread+i), []byte("test")); err != nil {
				return err
			}
			return engine.Flush()
		})
		results = append(results, r)
		printResult(r)
	}

	// cleanup the benchmark key space
	for _, bench := range []string{"set", "set-large", "get", "flush"} {
		for i := 0; i < perfNumThreads*perfOpsPerThread; i++ {
			if _, err := engine.Delete(perfKey(bench, i)); err != nil {
				break
			}
		}
	}
	if err := engine.Flush(); err != nil {
		return err
	}

	// optionally persist the results as CSV
	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeCSV(csvPath, results); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}

	return nil
}

func writeCSV(path string, results []perfResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"benchmark", "ops", "errors", "ops_per_sec", "p50_ns", "p95_ns", "p99_ns"}); err != nil {
		return err
	}
	for _, r := range results {
		ps := r.histogram.Percentiles([]float64{0.5, 0.95, 0.99})
		record := []string{
			r.name,
			strconv.FormatUint(r.ops, 10),
			strconv.FormatUint(r.errors, 10),
			strconv.FormatFloat(float64(r.ops)/r.elapsed.Seconds(), 'f', 1, 64),
			strconv.FormatFloat(ps[0], 'f', 0, 64),
			strconv.FormatFloat(ps[1], 'f', 0, 64),
			strconv.FormatFloat(ps[2], 'f', 0, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
