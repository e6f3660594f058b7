// Package testing provides standardised tests and benchmarks for
// engine implementations that satisfy the db.Engine interface.
//
// The package contains:
//   - testing: A comprehensive test suite for validating conformance to the Engine interface contract
//   - benchmark: Performance tests for measuring throughput of common engine operations
//
// This package is particularly useful for:
//   - Applications that need to select the most appropriate engine implementation
//     based on performance characteristics
//   - Engine developers implementing the db.Engine interface
//
// Example usage:
//
//	// Creating factory functions for your implementation
//	factory := func() db.Engine {
//		eng, _ := birch.Open(freshPath(), nil)
//		return eng
//	}
//	reopen := func() db.Engine {
//		eng, _ := birch.Open(samePath, nil)
//		return eng
//	}
//
//	// Running the standard test suite
//	testing.RunEngineTests(t, "birch", factory, reopen)
//
//	// Running performance benchmarks
//	testing.RunEngineBenchmarks(b, "birch", factory)
package testing
