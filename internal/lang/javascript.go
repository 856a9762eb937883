package lang

func init() {
	Register(&LanguageSpec{
		Language:         JavaScript,
		Layer:            Frontend,
		FileExtensions:   []string{".js"},
		TestStemSuffixes: []string{".spec", ".test"},
		TestDirs:         []string{"__tests__"},
	})
}
