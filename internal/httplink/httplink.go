// Package httplink decides whether a UI network-call path and a backend route
// template denote the same endpoint.
//
// Matching is deliberately permissive: after normalization two paths match
// when they are equal or either one contains the other. "orders" therefore
// matches "orders/archive", and an empty path matches everything. Callers
// that need a ranking use Score, which never changes the match decision.
package httplink

import (
	"regexp"
	"strings"
)

// placeholder shapes, all rewritten to a single "*" segment
var (
	// {id}, {id:int}, ${order.id}
	braceParamRe = regexp.MustCompile(`\$?\{[^}]*\}`)
	// [controller], [action]
	bracketParamRe = regexp.MustCompile(`\[[^\]]*\]`)
	// :id
	colonParamRe = regexp.MustCompile(`:[A-Za-z_]\w*`)
)

// NormalizePath trims leading and trailing slashes, case-folds, and replaces
// every placeholder segment (brace, bracket, colon, or all-digit literal) with
// "*".
func NormalizePath(path string) string {
	path = strings.ToLower(strings.Trim(path, "/"))
	path = braceParamRe.ReplaceAllString(path, "*")
	path = bracketParamRe.ReplaceAllString(path, "*")
	path = colonParamRe.ReplaceAllString(path, "*")

	segs := strings.Split(path, "/")
	for i, s := range segs {
		if isDigits(s) {
			segs[i] = "*"
		}
	}
	return strings.Join(segs, "/")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Matches reports whether callPath and routeTemplate denote the same endpoint:
// their normalized forms are equal or one is a substring of the other. It is
// symmetric.
func Matches(callPath, routeTemplate string) bool {
	return matchNormalized(NormalizePath(callPath), NormalizePath(routeTemplate))
}

func matchNormalized(a, b string) bool {
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// Score returns a confidence (0.0-1.0) for a pair that Matches, or 0 when it
// does not. The value only ranks matches for display.
//
//	confidence = matchBase × (0.5 × jaccard + 0.5 × depthFactor) + methodBonus
//
// matchBase is 0.95 for equal paths, 0.75 for a suffix, 0.55 for a prefix and
// 0.35 for containment anywhere else.
func Score(callPath, routeTemplate, callVerb, routeVerb string) float64 {
	normCall := NormalizePath(callPath)
	normRoute := NormalizePath(routeTemplate)
	if !matchNormalized(normCall, normRoute) {
		return 0
	}

	var matchBase float64
	callSegs := splitSegments(normCall)
	routeSegs := splitSegments(normRoute)

	switch {
	case normCall == normRoute:
		matchBase = 0.95
	case strings.HasSuffix(normCall, normRoute):
		matchBase = 0.75
		callSegs = routeSegs
	case strings.HasSuffix(normRoute, normCall):
		matchBase = 0.75
		routeSegs = callSegs
	case strings.HasPrefix(normCall, normRoute), strings.HasPrefix(normRoute, normCall):
		matchBase = 0.55
	default:
		matchBase = 0.35
	}

	jaccard := segmentJaccard(callSegs, routeSegs)

	depthFactor := float64(min(len(callSegs), len(routeSegs))) / 3.0
	if depthFactor > 1.0 {
		depthFactor = 1.0
	}

	score := matchBase*(0.5*jaccard+0.5*depthFactor) + methodBonus(callVerb, routeVerb)
	return max(0, min(score, 1.0))
}

// splitSegments splits a normalized path into non-empty segments.
func splitSegments(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// segmentJaccard computes Jaccard similarity on non-wildcard path segments.
// Wildcards (*) are excluded from both sets since they match anything.
func segmentJaccard(segsA, segsB []string) float64 {
	setA := make(map[string]bool)
	setB := make(map[string]bool)
	for _, s := range segsA {
		if s != "*" {
			setA[s] = true
		}
	}
	for _, s := range segsB {
		if s != "*" {
			setB[s] = true
		}
	}

	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}

	union := len(setA)
	for k := range setB {
		if !setA[k] {
			union++
		}
	}

	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// methodBonus returns a confidence adjustment based on HTTP verb agreement.
//
//	+0.10 if both verbs are known and match
//	 0.00 if one or both verbs are unknown
//	-0.15 if both verbs are known and differ
func methodBonus(callVerb, routeVerb string) float64 {
	if callVerb == "" || routeVerb == "" {
		return 0
	}
	if strings.EqualFold(callVerb, routeVerb) {
		return 0.10
	}
	return -0.15
}
