package indexer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/semindex/semindex/internal/scanner"
)

func scanned(path, fingerprint string) scanner.ScannedFile {
	return scanner.ScannedFile{Path: path, Fingerprint: fingerprint}
}

func TestDiff_NewFiles(t *testing.T) {
	changes := Diff([]scanner.ScannedFile{scanned("a.py", "f1")}, nil, map[string]string{})

	assert.Len(t, changes.ToUpsert, 1)
	assert.Empty(t, changes.ToDelete)
	assert.Equal(t, 0, changes.Unchanged)
}

func TestDiff_UnchangedFingerprint(t *testing.T) {
	state := map[string]string{"a.py": "f1"}
	changes := Diff([]scanner.ScannedFile{scanned("a.py", "f1")}, nil, state)

	assert.Empty(t, changes.ToUpsert)
	assert.Empty(t, changes.ToDelete)
	assert.Equal(t, 1, changes.Unchanged)
}

func TestDiff_ChangedFingerprint(t *testing.T) {
	state := map[string]string{"a.py": "old"}
	changes := Diff([]scanner.ScannedFile{scanned("a.py", "new")}, nil, state)

	assert.Len(t, changes.ToUpsert, 1)
	assert.Equal(t, "a.py", changes.ToUpsert[0].Path)
}

func TestDiff_DeletedFiles(t *testing.T) {
	state := map[string]string{"a.py": "f1", "b.py": "f2"}
	changes := Diff([]scanner.ScannedFile{scanned("a.py", "f1")}, nil, state)

	assert.Equal(t, []string{"b.py"}, changes.ToDelete)
	assert.Equal(t, 1, changes.Unchanged)
}

func TestDiff_ScanErrorIsNotDeletion(t *testing.T) {
	// A file that failed to read stays in the index untouched.
	state := map[string]string{"flaky.py": "f1"}
	scanErrs := []scanner.ScanError{{Path: "flaky.py", Err: errors.New("permission denied")}}

	changes := Diff(nil, scanErrs, state)

	assert.Empty(t, changes.ToUpsert)
	assert.Empty(t, changes.ToDelete)
}

func TestUpdateLock(t *testing.T) {
	var lock UpdateLock

	assert.True(t, lock.TryAcquire())
	assert.False(t, lock.TryAcquire())

	lock.Release()
	assert.True(t, lock.TryAcquire())
}
