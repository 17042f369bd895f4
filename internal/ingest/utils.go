package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/sical-tracker/constants"
)

// AllowedPath reports whether path has one of exts (defaults to constants.AllowedExtensions)
// and is not hidden.
func AllowedPath(path string, exts map[string]struct{}) bool {
	if IsHidden(path) {
		return false
	}
	if exts == nil {
		exts = constants.AllowedExtensions
	}
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
