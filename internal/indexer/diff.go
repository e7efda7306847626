package indexer

import (
	"github.com/semindex/semindex/internal/scanner"
)

// Changes classifies the scanned file set against the persisted index state.
// The three sets are disjoint.
type Changes struct {
	ToUpsert  []scanner.ScannedFile // new or fingerprint-changed
	ToDelete  []string              // in state, absent on disk
	Unchanged int
}

// Diff compares current fingerprints with the persisted state. Comparison is
// by fingerprint equality only; mtime never decides. Files that failed to
// scan are excluded from both sets, so their state stays untouched and they
// retry on the next update instead of being treated as deletions.
func Diff(scanned []scanner.ScannedFile, scanErrs []scanner.ScanError, state map[string]string) Changes {
	var changes Changes

	seen := make(map[string]bool, len(scanned)+len(scanErrs))

	for _, sf := range scanned {
		seen[sf.Path] = true
		if state[sf.Path] == sf.Fingerprint {
			changes.Unchanged++
			continue
		}
		changes.ToUpsert = append(changes.ToUpsert, sf)
	}

	for _, se := range scanErrs {
		seen[se.Path] = true
	}

	for path := range state {
		if !seen[path] {
			changes.ToDelete = append(changes.ToDelete, path)
		}
	}

	return changes
}
