package lang

func init() {
	Register(&LanguageSpec{
		Language:         CSharp,
		Layer:            Backend,
		FileExtensions:   []string{".cs"},
		TestStemSuffixes: []string{"Test", "Tests"},
		TestDirs:         []string{"Tests", "tests"},
	})
}
