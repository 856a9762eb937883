package httplink

import "sort"

// Suggestion is a route template close to a call path that did not match it.
type Suggestion struct {
	Template   string  `json:"template"`
	Similarity float64 `json:"similarity"`
}

// Nearest ranks templates by normalized edit distance to callPath and returns
// up to n whose similarity reaches minSimilarity, best first. Templates that
// already match are skipped.
func Nearest(callPath string, templates []string, n int, minSimilarity float64) []Suggestion {
	norm := NormalizePath(callPath)
	var out []Suggestion
	seen := make(map[string]bool)
	for _, tmpl := range templates {
		if seen[tmpl] {
			continue
		}
		seen[tmpl] = true

		normTmpl := NormalizePath(tmpl)
		if matchNormalized(norm, normTmpl) {
			continue
		}
		sim := normalizedLevenshtein(norm, normTmpl)
		if ng := ngramOverlap(norm, normTmpl, 3); ng > sim {
			sim = (sim + ng) / 2
		}
		if sim >= minSimilarity {
			out = append(out, Suggestion{Template: tmpl, Similarity: sim})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}

	// two rows instead of the full matrix
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, min(prev[j]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// normalizedLevenshtein returns 1.0 - (distance / maxLen), so 1.0 = identical.
func normalizedLevenshtein(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshteinDistance(a, b))/float64(maxLen)
}

// ngramOverlap computes the character n-gram overlap coefficient:
// |ngrams(a) ∩ ngrams(b)| / min(|ngrams(a)|, |ngrams(b)|).
func ngramOverlap(a, b string, n int) float64 {
	if len(a) < n || len(b) < n {
		return 0
	}

	ngramsA := buildNgrams(a, n)
	ngramsB := buildNgrams(b, n)

	intersection := 0
	for ng := range ngramsA {
		if ngramsB[ng] {
			intersection++
		}
	}

	minSize := min(len(ngramsA), len(ngramsB))
	if minSize == 0 {
		return 0
	}
	return float64(intersection) / float64(minSize)
}

func buildNgrams(s string, n int) map[string]bool {
	ngrams := make(map[string]bool)
	for i := 0; i <= len(s)-n; i++ {
		ngrams[s[i:i+n]] = true
	}
	return ngrams
}

// ConfidenceBand labels a Score value.
func ConfidenceBand(score float64) string {
	switch {
	case score >= 0.7:
		return "high"
	case score >= 0.45:
		return "medium"
	case score > 0:
		return "speculative"
	default:
		return ""
	}
}
