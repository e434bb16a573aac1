package session

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
)

// PrivacyFilter masks sensitive fields in published snapshots. File paths
// and session identifiers can reveal project names and directory layouts;
// operators sharing a dashboard outside their machine can mask them without
// affecting the core's internal state. The zero value is a no-op filter.
type PrivacyFilter struct {
	MaskSessionIDs bool
	MaskFilePaths  bool
	BlockedPaths   []string
}

// AllowsPath reports whether a tracked file path may appear in snapshots.
// Paths matching any BlockedPaths pattern (directly or via a parent
// directory) are suppressed entirely.
func (f *PrivacyFilter) AllowsPath(path string) bool {
	for _, pattern := range f.BlockedPaths {
		if matchPathOrParent(pattern, path) {
			return false
		}
	}
	return true
}

// MaskPath reduces a file path to its base name when masking is on.
func (f *PrivacyFilter) MaskPath(path string) string {
	if !f.MaskFilePaths || path == "" {
		return path
	}
	return filepath.Base(path)
}

// MaskSessionID replaces a session identifier with a short stable hash when
// masking is on.
func (f *PrivacyFilter) MaskSessionID(id string) string {
	if !f.MaskSessionIDs || id == "" {
		return id
	}
	return shortHash(id)
}

// IsNoop reports whether the filter does nothing.
func (f *PrivacyFilter) IsNoop() bool {
	return !f.MaskSessionIDs && !f.MaskFilePaths && len(f.BlockedPaths) == 0
}

// matchPathOrParent checks if pattern matches path or any of its parent
// directories, so "/home/user/secret*" blocks files nested below a matching
// directory.
func matchPathOrParent(pattern, path string) bool {
	for p := path; p != "." && p != "" && p != filepath.Dir(p); p = filepath.Dir(p) {
		if matched, _ := filepath.Match(pattern, p); matched {
			return true
		}
	}
	return false
}

// shortHash returns a truncated SHA-256 hex digest for an opaque identifier.
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:6])
}
