// Package registry is the validation and lookup layer for volume
// definitions. It enforces the naming and pattern rules at the API boundary,
// persists definitions through the database store, and combines durable
// progress with live mount state for status reporting.
package registry
