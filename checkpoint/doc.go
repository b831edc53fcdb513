// Package checkpoint persists workflow run snapshots keyed by run ID.
//
// The machine saves a Record before invoking each stage, so a crash between
// "stage completed" and "checkpoint written" re-runs the stage from its
// last known input rather than silently skipping it.
//
// Three stores are provided: MemoryStore for tests, FileStore (one JSON
// file per run), and SQLiteStore for a single durable database.
package checkpoint
