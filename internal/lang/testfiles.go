package lang

import (
	"path"
	"strings"
)

// IsTestFile returns true if the slash-separated relative path names a test
// file under the language's conventions.
func IsTestFile(relPath string, language Language) bool {
	spec := ForLanguage(language)
	if spec == nil {
		return false
	}
	base := path.Base(relPath)
	for _, s := range spec.TestSuffixes {
		if strings.HasSuffix(base, s) {
			return true
		}
	}
	if len(spec.TestDirs) > 0 {
		return containsTestDir(path.Dir(relPath), spec.TestDirs...)
	}
	return false
}

// SourceForTest returns the relative path of the source file a test file
// exercises: "dom/dom_test.js" -> "dom/dom.js". ok is false when the path
// does not follow a suffix convention.
func SourceForTest(relPath string, language Language) (string, bool) {
	spec := ForLanguage(language)
	if spec == nil {
		return "", false
	}
	return TestSource(relPath, spec.TestSuffixes)
}

// TestSource is SourceForTest with an explicit suffix list.
func TestSource(relPath string, suffixes []string) (string, bool) {
	dir, base := path.Split(relPath)
	for _, s := range suffixes {
		if !strings.HasSuffix(base, s) || len(base) == len(s) {
			continue
		}
		return dir + strings.TrimSuffix(base, s) + path.Ext(base), true
	}
	return "", false
}

// containsTestDir returns true if any segment of dir matches one of the patterns.
func containsTestDir(dir string, patterns ...string) bool {
	for _, seg := range strings.Split(dir, "/") {
		for _, p := range patterns {
			if seg == p {
				return true
			}
		}
	}
	return false
}
