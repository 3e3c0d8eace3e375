// Package engine is the daemon core. A scheduler loop sweeps registered
// volumes on a fixed tick and drives each eligible one through a scan pass:
// an optional discovery count, then sequential batches of candidates pulled
// from the tree scanner, resolved through the content pipeline, and committed
// atomically to the progress store. At most one pass runs per volume; passes
// for different volumes run concurrently.
package engine
