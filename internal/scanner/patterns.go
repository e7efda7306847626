package scanner

import (
	"path/filepath"
	"strings"
)

// excludedDirs are directory names skipped during the walk. Generated and
// dependency trees are never indexed.
var excludedDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	".idea":        true,
	".vscode":      true,
	"node_modules": true,
	"__pycache__":  true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
}

// excludedFileSuffixes are file name suffixes skipped regardless of extension.
var excludedFileSuffixes = []string{
	".min.js",
	".min.css",
	".lock",
}

// excludedFileNames are exact file names skipped during the walk.
var excludedFileNames = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"Cargo.lock":        true,
	"go.sum":            true,
}

// IsExcludedDir reports whether a directory name is excluded from indexing.
// The index directory itself is always excluded.
func IsExcludedDir(name, indexDirName string) bool {
	return skipDir(name, indexDirName)
}

// skipDir reports whether a directory should be excluded from the walk.
// indexDirName is additionally excluded so the index never indexes itself.
func skipDir(name, indexDirName string) bool {
	if name == indexDirName {
		return true
	}
	if excludedDirs[name] {
		return true
	}
	// Hidden directories.
	return strings.HasPrefix(name, ".")
}

// skipFile reports whether a file name should be excluded from the walk.
func skipFile(name string) bool {
	if excludedFileNames[name] {
		return true
	}
	for _, suffix := range excludedFileSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// hasAllowedExt reports whether path carries one of the registered extensions.
func hasAllowedExt(path string, allowed map[string]bool) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return allowed[ext]
}
