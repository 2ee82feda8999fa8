// Package stores provides the persistence layer: a file-based environment
// repository with per-environment advisory locking, and a SQLite-backed
// history store for command execution records.
//
// The environment repository keeps one JSON document per environment at
// <workspace>/data/<name>/environment.json and replaces it atomically
// (write to a temp file in the same directory, then rename). The lock is a
// sidecar file holding the owning process ID; stale locks left behind by
// dead processes are reclaimed.
package stores
