// Package pathutil implements the shared pure path/content helpers used by
// every backend and the filesystem middleware (§4.B): normalization, safe
// joining under a root, string-replace editing, structural grep, and
// doublestar glob matching.
package pathutil

import (
	"bufio"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/package-register/deepagent-go/dagent/dagerr"
)

// Normalize returns path as an absolute, slash-cleaned form: no "." or ".."
// segments, no repeated separators, case preserved.
func Normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return filepath.Clean(abs)
}

// SafeJoin joins root and rel, rejecting any result that would escape root
// (path traversal), and returns an OS-native absolute path.
func SafeJoin(root, rel string) (string, error) {
	cleanRoot := filepath.Clean(root)
	full := filepath.Join(cleanRoot, filepath.FromSlash(rel))
	full = filepath.Clean(full)
	if full != cleanRoot && !strings.HasPrefix(full, cleanRoot+string(filepath.Separator)) {
		return "", dagerr.New(dagerr.KindPath, dagerr.CodeOutsideRoot, "path escapes root: %s", rel)
	}
	return full, nil
}

// ApplyEdit replaces old with new in content. When replaceAll is false, old
// must match exactly once (CodeOldNotUnique otherwise); when true, all
// occurrences are replaced. old == "" fails CodeEmptyOldString; old == new
// fails CodeNoChange.
func ApplyEdit(content, old, new string, replaceAll bool) (string, error) {
	if old == "" {
		return "", dagerr.New(dagerr.KindEdit, dagerr.CodeEmptyOldString, "old_string must not be empty")
	}
	if old == new {
		return "", dagerr.New(dagerr.KindEdit, dagerr.CodeNoChange, "old_string and new_string are identical")
	}
	count := strings.Count(content, old)
	if count == 0 {
		return "", dagerr.New(dagerr.KindEdit, dagerr.CodeOldNotFound, "old_string not found")
	}
	if !replaceAll && count > 1 {
		return "", dagerr.New(dagerr.KindEdit, dagerr.CodeOldNotUnique, "old_string occurs %d times, expected 1", count)
	}
	if replaceAll {
		return strings.ReplaceAll(content, old, new), nil
	}
	return strings.Replace(content, old, new, 1), nil
}

// GrepMatch is one line matched by StructuralGrep.
type GrepMatch struct {
	LineNo int
	Line   string
}

// StructuralGrep scans content line by line for pattern (a Go regexp),
// returning every matching line with its 1-based line number. It is
// stream-friendly: content is consumed through a bufio.Scanner rather than
// split wholesale, so it scales to large files.
func StructuralGrep(content, pattern string, caseInsensitive bool) ([]GrepMatch, error) {
	expr := pattern
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("pathutil: invalid pattern: %w", err)
	}

	var matches []GrepMatch
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if re.MatchString(line) {
			matches = append(matches, GrepMatch{LineNo: lineNo, Line: line})
		}
	}
	return matches, scanner.Err()
}

// DoublestarMatch reports whether path matches pattern using doublestar
// semantics: "**" matches zero or more path segments, "*" matches within a
// single segment, "?" matches exactly one character.
func DoublestarMatch(pattern, path string) (bool, error) {
	return doublestar.Match(pattern, path)
}

// DoublestarGlob expands pattern against the provided candidate paths
// (typically gathered by a backend's Walk), returning the matches in
// stable sorted order.
func DoublestarGlob(pattern string, candidates []string) ([]string, error) {
	var out []string
	for _, c := range candidates {
		ok, err := doublestar.Match(pattern, c)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out, nil
}
