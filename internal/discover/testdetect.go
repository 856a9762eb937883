package discover

import (
	"path/filepath"
	"strings"

	"github.com/DeusData/callpath-mapper/internal/lang"
)

// isTestFile returns true if the file path indicates a test file for the given language.
func isTestFile(relPath string, language lang.Language) bool {
	spec := lang.ForLanguage(language)
	if spec == nil {
		return false
	}

	base := filepath.Base(relPath)
	noExt := strings.TrimSuffix(base, filepath.Ext(base))
	for _, s := range spec.TestStemSuffixes {
		if strings.HasSuffix(noExt, s) {
			return true
		}
	}
	return containsTestDir(filepath.Dir(relPath), spec.TestDirs...)
}

// containsTestDir returns true if any segment of dir matches one of the patterns.
func containsTestDir(dir string, patterns ...string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(dir), "/") {
		for _, p := range patterns {
			if seg == p {
				return true
			}
		}
	}
	return false
}
