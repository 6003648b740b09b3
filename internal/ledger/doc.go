// Package ledger keeps a history of recipe runs.
//
// Every run produces one Entry. The SQLite store persists entries across
// invocations; the memory store backs tests and runs with history turned
// off. Recording is best effort: callers log a failed Record and carry on.
package ledger
