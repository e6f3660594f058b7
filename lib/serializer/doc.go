// Package serializer provides key/value serialization for applications that
// store typed values in the byte-oriented engines. It defines a common
// interface and multiple implementations for converting application values
// to and from the byte slices the db.Engine interface consumes.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Offering multiple implementations with different performance characteristics
//   - Minimizing memory allocations and processing overhead
//
// Key Components:
//
//   - IValueSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format implementation optimized for speed
//     and space efficiency. Uses a one-byte type tag followed by the raw payload
//     and supports the primitive types applications typically use as keys and
//     small values (byte slices, strings, bools, integers, floats).
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding, offering
//     good compatibility with Go's type system but with larger serialized sizes.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with other systems, but with lower performance.
//
// Performance Characteristics (based on benchmarks across various value types):
//
//   - Binary: Delivers superior performance with the smallest payload size for
//     primitive values and is recommended wherever the value types allow it.
//
//   - JSON: Offers acceptable performance with moderate payload sizes. Provides
//     human-readable output beneficial for debugging and integration scenarios,
//     and handles arbitrary structured values.
//
//   - GOB: Handles arbitrary Go values but with consistently larger payloads and
//     slower round-trips than the alternatives; prefer Binary or JSON.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the application:
//
//	  s := serializer.NewBinarySerializer()
//	  data, err := s.Serialize("some value")
//	  // ... eng.Set(key, data) ...
//	  var out string
//	  err = s.Deserialize(data, &out)
package serializer
