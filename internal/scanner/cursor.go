package scanner

import "strings"

// CompareCursor orders two volume-relative slash paths by their position in
// the deterministic depth-first traversal produced by Scan. It compares path
// segments, not raw bytes: a directory's contents sort before the directory's
// lexicographic successors ("a/b" < "a.txt" because the walk descends into
// "a" before reaching "a.txt").
//
// Returns -1 if a scans before b, 0 if equal, 1 if a scans after b.
// The empty string sorts before every path and is the start-of-volume cursor.
func CompareCursor(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}

	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")

	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			if as[i] < bs[i] {
				return -1
			}
			return 1
		}
	}

	// One path is a prefix of the other; the shorter (the ancestor) scans first.
	if len(as) < len(bs) {
		return -1
	}
	return 1
}

// isUnder reports whether path p lies inside directory dir.
func isUnder(p, dir string) bool {
	return strings.HasPrefix(p, dir+"/")
}
