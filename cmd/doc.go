// Package cmd implements the command-line interface of kvmap. The CLI opens
// the configured database for the duration of one command and works on it
// through the persistence router.
//
// The package is organized into several subpackages:
//
//   - obj: Commands storing and reading JSON documents (put, get, get-many, del, list, collections)
//   - info: Engine information and the Prometheus exposition of the metrics
//   - perf: Latency of the router operations per calling idiom
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as a KVMAP_ prefixed environment variable, for
// example KVMAP_ENGINE=leveldb, or in a .env file.
//
// See kvmap -help for a list of all commands.
package cmd
