package lang

func init() {
	Register(&LanguageSpec{
		Language:         TypeScript,
		Layer:            Frontend,
		FileExtensions:   []string{".ts"},
		TestStemSuffixes: []string{".spec", ".test", ".e2e-spec"},
		TestDirs:         []string{"__tests__", "e2e"},
	})
}
