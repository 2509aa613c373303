// Package layout maps a declared project layout onto filesystem paths and
// creates the empty scaffolding it describes.
package layout

import (
	"path/filepath"
	"strings"
)

// RootMarker is the leading path segment meaning "relative to the session root".
const RootMarker = "ROOT"

// StripRootMarker removes a leading RootMarker segment from a declared path.
// The marker must be the whole path or be followed by a separator; "ROOTS/x"
// is left alone.
func StripRootMarker(declared string) string {
	if declared == RootMarker {
		return ""
	}
	if strings.HasPrefix(declared, RootMarker+"/") || strings.HasPrefix(declared, RootMarker+`\`) {
		return declared[len(RootMarker)+1:]
	}
	return declared
}

// IsRootAlias reports whether a top-level node name stands for the session
// root itself rather than a directory below it.
func IsRootAlias(name string) bool {
	return name == "" || name == RootMarker
}

// Resolve joins base, the declared path (root marker stripped) and the file name.
// It does no I/O; a malformed declared path yields a path the filesystem rejects later.
func Resolve(base, declared, name string) string {
	return filepath.Join(base, StripRootMarker(declared), name)
}
