package backend

import (
	"path"
	"strings"

	"github.com/package-register/deepagent-go/dagent/dagerr"
)

// validateAbsolute enforces the §3 file-path invariant: every path
// presented to a backend must be absolute ("/"-rooted). It does not by
// itself guard against escaping a disk root — FilesystemBackend layers
// SafeJoin on top for that.
func validateAbsolute(p string) error {
	if !strings.HasPrefix(p, "/") {
		return dagerr.New(dagerr.KindPath, dagerr.CodeNotAbsolute, "path must be absolute: %q", p)
	}
	return nil
}

// normalizePath collapses "." segments and repeated separators in an
// already-absolute path, rejecting any ".." that would escape above root
// ("/"). The escape check walks p's own segments rather than inspecting
// path.Clean's output: for an absolute path, Clean silently discards any
// ".." that would climb above "/" (path.Clean("/../etc/passwd") ==
// "/etc/passwd"), so a Contains(clean, "..") check run after Clean can
// never observe the attempt.
func normalizePath(p string) (string, error) {
	if err := validateAbsolute(p); err != nil {
		return "", err
	}
	depth := 0
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return "", dagerr.New(dagerr.KindPath, dagerr.CodeTraversal, "path traversal denied: %q", p)
			}
		default:
			depth++
		}
	}
	clean := path.Clean(p)
	if clean == "." {
		clean = "/"
	}
	return clean, nil
}
