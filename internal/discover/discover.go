package discover

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/DeusData/callpath-mapper/internal/lang"
)

// ErrRootInaccessible is returned when a scan root cannot be read at all.
var ErrRootInaccessible = errors.New("root inaccessible")

// IGNORE_PATTERNS are directory names to skip during discovery.
var IGNORE_PATTERNS = map[string]bool{
	".angular": true, ".cache": true, ".git": true, ".hg": true,
	".idea": true, ".npm": true, ".nyc_output": true, ".pnpm-store": true,
	".svn": true, ".tmp": true, ".vs": true, ".vscode": true, ".yarn": true,
	"bin": true, "bower_components": true, "build": true, "coverage": true,
	"dist": true, "node_modules": true, "obj": true, "out": true,
	"packages": true, "temp": true, "tmp": true, "vendor": true,
}

// IGNORE_SUFFIXES are file suffixes to skip even when the extension is known.
var IGNORE_SUFFIXES = []string{".d.ts", ".min.js", ".Designer.cs", ".g.cs", ".AssemblyInfo.cs"}

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // relative to its scan root
	Root     string        // absolute scan root
	Language lang.Language // detected language, empty for configured extra extensions
	Layer    lang.Layer
}

// Root is a directory to scan. An empty Layer means the layer is inferred
// from each file's extension; a set Layer keeps only files of that layer.
type Root struct {
	Path  string
	Layer lang.Layer
}

// Options configures file discovery.
type Options struct {
	IgnoreFile   string   // path to .callpathignore file (optional)
	ExcludeDirs  []string // extra directory names or filepath.Match patterns
	ExcludeGlobs []string // gobwas/glob patterns matched against slash-separated rel paths
	ExcludeTests bool

	// Extensions overrides extension -> layer assignment. Nil uses the lang registry.
	Extensions map[string]lang.Layer
}

// CheckRoots verifies every root exists and is a readable directory.
func CheckRoots(roots []Root) error {
	if len(roots) == 0 {
		return fmt.Errorf("%w: no roots given", ErrRootInaccessible)
	}
	for _, r := range roots {
		info, err := os.Stat(r.Path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrRootInaccessible, r.Path, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s: not a directory", ErrRootInaccessible, r.Path)
		}
		if _, err := os.ReadDir(r.Path); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrRootInaccessible, r.Path, err)
		}
	}
	return nil
}

// shouldSkipDir returns true if the directory should be skipped during discovery.
func shouldSkipDir(name, rel string, extraIgnore []string) bool {
	if IGNORE_PATTERNS[name] {
		return true
	}
	for _, pattern := range extraIgnore {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	matchers := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude glob %q: %w", pattern, err)
		}
		matchers = append(matchers, g)
	}
	return matchers, nil
}

func matchesAny(matchers []glob.Glob, rel string) bool {
	for _, m := range matchers {
		if m.Match(rel) {
			return true
		}
	}
	return false
}

// Discover walks every root and returns the relevant source files ordered by
// absolute path. Files reachable from more than one root are reported once.
func Discover(ctx context.Context, roots []Root, opts *Options) ([]FileInfo, error) {
	if opts == nil {
		opts = &Options{}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckRoots(roots); err != nil {
		return nil, err
	}

	excludeGlobs, err := compileGlobs(opts.ExcludeGlobs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []FileInfo
	for _, r := range roots {
		found, err := walkRoot(ctx, r, opts, excludeGlobs)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if seen[f.Path] {
				continue
			}
			seen[f.Path] = true
			files = append(files, f)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func walkRoot(ctx context.Context, r Root, opts *Options, excludeGlobs []glob.Glob) ([]FileInfo, error) {
	rootPath, err := filepath.Abs(r.Path)
	if err != nil {
		return nil, err
	}

	extraIgnore := append([]string(nil), opts.ExcludeDirs...)
	ignPath := opts.IgnoreFile
	if ignPath == "" {
		ignPath = filepath.Join(rootPath, ".callpathignore")
	}
	if patterns, err := loadIgnoreFile(ignPath); err == nil {
		extraIgnore = append(extraIgnore, patterns...)
	}

	var files []FileInfo
	err = filepath.Walk(rootPath, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			slog.Warn("discover.walk.err", "path", path, "err", walkErr)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(rootPath, path)
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if path != rootPath && shouldSkipDir(info.Name(), rel, extraIgnore) {
				return filepath.SkipDir
			}
			return nil
		}

		for _, suffix := range IGNORE_SUFFIXES {
			if strings.HasSuffix(info.Name(), suffix) {
				return nil
			}
		}
		if matchesAny(excludeGlobs, rel) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		layer, ok := layerFor(ext, opts)
		if !ok || (r.Layer != "" && r.Layer != layer) {
			return nil
		}
		language, _ := lang.LanguageForExtension(ext)

		if opts.ExcludeTests && isTestFile(rel, language) {
			slog.Debug("discover.skip.test", "path", rel)
			return nil
		}

		files = append(files, FileInfo{
			Path:     path,
			RelPath:  rel,
			Root:     rootPath,
			Language: language,
			Layer:    layer,
		})
		return nil
	})
	return files, err
}

func layerFor(ext string, opts *Options) (lang.Layer, bool) {
	if opts.Extensions != nil {
		l, ok := opts.Extensions[ext]
		return l, ok
	}
	return lang.LayerForExtension(ext)
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
