package lang

import "strings"

// Language represents a supported source language.
type Language string

const (
	TypeScript Language = "typescript"
	JavaScript Language = "javascript"
	CSharp     Language = "c-sharp"
)

// Layer tags which side of the application a file belongs to.
type Layer string

const (
	Frontend Layer = "frontend"
	Backend  Layer = "backend"
)

// AllLanguages returns all supported languages.
func AllLanguages() []Language {
	return []Language{TypeScript, JavaScript, CSharp}
}

// LanguageSpec describes how files of one language are recognized.
type LanguageSpec struct {
	Language       Language
	Layer          Layer
	FileExtensions []string

	// TestStemSuffixes are checked on the base name after stripping the
	// extension (e.g. ".spec" for "order.service.spec.ts").
	TestStemSuffixes []string
	// TestDirs are directory names that hold test sources.
	TestDirs []string
}

// registry maps file extensions to language specs.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".ts").
// Lookup is case-insensitive.
func ForExtension(ext string) *LanguageSpec {
	return registry[strings.ToLower(ext)]
}

// ForLanguage returns the LanguageSpec for a language.
func ForLanguage(l Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == l {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := ForExtension(ext)
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}

// LayerForExtension returns the default layer for a file extension.
func LayerForExtension(ext string) (Layer, bool) {
	spec := ForExtension(ext)
	if spec == nil {
		return "", false
	}
	return spec.Layer, true
}
