// Package scanner produces restartable, deterministic file-tree scans.
//
// The ordered walk (Scan) emits candidates in a stable depth-first order so a
// persisted cursor resumes a scan exactly where it left off, across process
// restarts. The parallel walk (Discover) only counts matching files for
// progress reporting.
package scanner
