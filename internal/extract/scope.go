package extract

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// lineIndex holds the byte offset of every line start, computed once per file
// so each match's line number is a binary search.
type lineIndex []int

func newLineIndex(src string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

// line returns the 1-based line number containing offset.
func (li lineIndex) line(offset int) int {
	return sort.Search(len(li), func(i int) bool { return li[i] > offset })
}

// maskComments blanks out line and block comments, keeping every newline and
// the overall length so offsets and line numbers stay valid. String literals
// are copied verbatim, which keeps "http://" inside quotes intact.
func maskComments(src string) string {
	out := []byte(src)
	n := len(src)
	for i := 0; i < n; i++ {
		ch := src[i]
		switch {
		case ch == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				out[i] = ' '
				i++
			}
		case ch == '/' && i+1 < n && src[i+1] == '*':
			out[i], out[i+1] = ' ', ' '
			i += 2
			for i < n && !(src[i] == '*' && i+1 < n && src[i+1] == '/') {
				if src[i] != '\n' {
					out[i] = ' '
				}
				i++
			}
			if i < n {
				out[i] = ' '
				if i+1 < n {
					out[i+1] = ' '
				}
				i++
			}
		case ch == '"' || ch == '\'' || ch == '`':
			i = skipString(src, i)
		}
	}
	return string(out)
}

// skipString returns the offset of the closing quote of the literal opening
// at i, or len(src)-1 if it never closes. C# verbatim strings (@"...") use
// doubled quotes instead of backslash escapes.
func skipString(src string, i int) int {
	quote := src[i]
	verbatim := quote == '"' && i > 0 && src[i-1] == '@'
	for j := i + 1; j < len(src); j++ {
		switch {
		case verbatim && src[j] == '"' && j+1 < len(src) && src[j+1] == '"':
			j++
		case !verbatim && src[j] == '\\':
			j++
		case src[j] == quote:
			return j
		case src[j] == '\n' && quote != '`' && !verbatim:
			// unterminated single-line literal
			return j
		}
	}
	return len(src) - 1
}

// matchDelim returns the offset of the delimiter closing the one at open, or
// -1 when the text ends first. src must already have comments masked.
func matchDelim(src string, open int, o, c byte) int {
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '"', '\'', '`':
			i = skipString(src, i)
		case o:
			depth++
		case c:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits a parameter list on commas that are not nested in
// brackets of any kind.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '<', '[', '{':
			depth++
		case ')', '>', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])

	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// span is the body of an operation, [start, end) in bytes.
type span struct {
	name       string
	start, end int
}

// enclosing returns the name of the innermost span containing off.
func enclosing(spans []span, off int) string {
	name := ""
	best := -1
	for _, s := range spans {
		if off >= s.start && off < s.end && s.start > best {
			name = s.name
			best = s.start
		}
	}
	return name
}

// nameFromFile derives a stable PascalCase label from a file name:
// "order-screen.component.ts" -> "OrderScreenComponent".
func nameFromFile(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// baseTypeName strips generic arguments, array and nullable markers, and any
// namespace qualifier: "Core.ILogger<Foo>[]?" -> "ILogger".
func baseTypeName(t string) string {
	t = strings.TrimSpace(t)
	if i := strings.IndexAny(t, "<[?"); i >= 0 {
		t = t[:i]
	}
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimSpace(t)
}

// blankStrings replaces the contents of string literals with spaces, keeping
// the quotes and every offset. src must already have comments masked.
func blankStrings(src string) string {
	out := []byte(src)
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '"', '\'', '`':
			end := skipString(src, i)
			for j := i + 1; j < end; j++ {
				if out[j] != '\n' {
					out[j] = ' '
				}
			}
			i = end
		}
	}
	return string(out)
}
