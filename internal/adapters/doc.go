// Package adapters holds the content-extraction side of the indexing
// pipeline: a static registry of named ContentAdapter implementations
// selected by document type.
package adapters
