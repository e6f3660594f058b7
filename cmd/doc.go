// Package cmd implements the command-line interface for the fsKV embedded
// key-value store. It provides a hierarchical command structure with
// operations for inspecting and manipulating local database files.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value store operations (get, set, delete, stats,
//     compact, etc.) plus a perf subcommand benchmarking a local database
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See fskv -help for a list of all commands.
package cmd
