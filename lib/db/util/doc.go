// Package util provides utility components for
// engine implementations that satisfy the db.Engine interface.
//
// The package contains:
//   - statistics: Utility tools for analyzing engine characteristics and a SizeHistogram for tracking value size distribution
//   - functions: FNV-1a hash functions (seeded 64-bit for shard distribution, 32-bit for the file-header checksum) and a secure seed generator
//   - expiryheap: A deadline-ordered priority queue with key-based access, used by cache sweepers
//
// This package is particularly useful for:
//   - Engine developers implementing the db.Engine interface
//   - Implementation of TTL sweeping or other priority queue systems
//   - Monitoring systems that need to track value size and distribution metrics
//
// Each component is designed to work with any implementation of the db.Engine interface,
// allowing for consistent validation and measurement across different storage backends.
package util
