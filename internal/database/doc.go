// Package database is the durable state store: the volume registry and the
// per-volume scan progress, backed by SQLite in WAL mode. CommitBatch is the
// single transactional mutation path for indexing progress.
package database
