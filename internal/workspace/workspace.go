// Package workspace decides whether a stored session belongs to a directory.
// The decision uses only the workspace path the backend recorded in its own
// session metadata; mere existence of files near a directory proves nothing.
package workspace

import (
	"path/filepath"
	"strings"
)

// Canonical resolves a path to cleaned absolute form. Relative paths are
// resolved against the current working directory.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// Related reports whether two canonical paths are equal or one is an
// ancestor of the other.
func Related(a, b string) bool {
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, b+sep) || strings.HasPrefix(b, a+sep)
}

// Matches reports whether a session recorded under recorded belongs to the
// candidate directory. An empty recorded workspace means the session record
// could not be read; such sessions are excluded, never defaulted to included.
func Matches(recorded, candidate string) bool {
	if recorded == "" || candidate == "" {
		return false
	}
	recAbs, err := Canonical(recorded)
	if err != nil {
		return false
	}
	candAbs, err := Canonical(candidate)
	if err != nil {
		return false
	}
	return Related(recAbs, candAbs)
}
