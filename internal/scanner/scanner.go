// Package scanner enumerates indexable files under the codebase root and
// computes a content fingerprint per file. Fingerprints, not mtimes, decide
// whether a file changed: a touch without an edit must not trigger re-indexing.
package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/semindex/semindex/internal/config"
)

// maxFileSize is the largest file considered for indexing (1 MB).
const maxFileSize = 1 << 20

// ScannedFile holds metadata about a discovered source file.
type ScannedFile struct {
	Path        string // Relative to root, slash-separated
	AbsPath     string
	Fingerprint string // SHA-256 hex of file content
	ModTime     time.Time
	Size        int64
}

// ScanError records a per-file failure. Failed files are excluded from the
// cycle's result so a transient read error is retried on the next update
// rather than treated as a deletion.
type ScanError struct {
	Path string
	Err  error
}

func (e ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

// Scanner walks a codebase root and fingerprints every indexable file.
type Scanner struct {
	root    string
	allowed map[string]bool // extensions without the dot
	workers int
}

// New creates a Scanner for the given root. allowedExts holds the extensions
// the chunker registry can split; everything else is ignored.
func New(root string, allowedExts map[string]bool, workers int) *Scanner {
	if workers <= 0 {
		workers = 4
	}
	return &Scanner{
		root:    root,
		allowed: allowedExts,
		workers: workers,
	}
}

// Scan enumerates indexable files and computes their fingerprints with a
// bounded worker pool. Per-file read failures are collected, never fatal.
func (s *Scanner) Scan() ([]ScannedFile, []ScanError, error) {
	candidates, err := s.walk()
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", s.root, err)
	}

	var (
		mu       sync.Mutex
		files    []ScannedFile
		scanErrs []ScanError
	)

	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for _, cand := range candidates {
		g.Go(func() error {
			sf, err := s.fingerprint(cand)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				scanErrs = append(scanErrs, ScanError{Path: cand.rel, Err: err})
				return nil
			}
			if sf != nil {
				files = append(files, *sf)
			}
			return nil
		})
	}

	// Workers never return errors; they record them per file.
	_ = g.Wait()

	return files, scanErrs, nil
}

// candidate is a file found by the walk, pending fingerprinting.
type candidate struct {
	abs string
	rel string
}

// walk collects candidate files under the root, applying the exclusion
// patterns and extension filter.
func (s *Scanner) walk() ([]candidate, error) {
	var candidates []candidate

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directory entries are skipped, not fatal.
			return nil
		}

		if d.IsDir() {
			if path == s.root {
				return nil
			}
			if skipDir(d.Name(), config.MarkerDir) {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip symlinks.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if skipFile(d.Name()) || !hasAllowedExt(path, s.allowed) {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}

		candidates = append(candidates, candidate{
			abs: path,
			rel: filepath.ToSlash(rel),
		})
		return nil
	})

	return candidates, err
}

// fingerprint reads and hashes one candidate. Returns (nil, nil) for files
// that should be silently skipped: empty, oversized, or binary.
func (s *Scanner) fingerprint(cand candidate) (*ScannedFile, error) {
	info, err := os.Stat(cand.abs)
	if err != nil {
		return nil, err
	}

	if info.Size() == 0 || info.Size() > maxFileSize {
		return nil, nil
	}

	content, err := os.ReadFile(cand.abs)
	if err != nil {
		return nil, err
	}

	// Skip binary files, mirroring the decode-failure skip on text read.
	if !utf8.Valid(content) {
		return nil, nil
	}

	h := sha256.Sum256(content)

	return &ScannedFile{
		Path:        cand.rel,
		AbsPath:     cand.abs,
		Fingerprint: hex.EncodeToString(h[:]),
		ModTime:     info.ModTime(),
		Size:        info.Size(),
	}, nil
}
