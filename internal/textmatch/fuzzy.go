package textmatch

import "strings"

// Levenshtein returns the classic edit distance (unit-cost insert, delete,
// substitute) between two strings, computed over runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// FuzzyTokenMatch reports whether two normalized tokens are close enough to
// count as the same term: equal, one containing the other, or within a small
// edit distance relative to the longer token. Tokens shorter than three runes
// never match by distance.
func FuzzyTokenMatch(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen < 3 {
		return false
	}

	allowed := 1
	if maxLen >= 5 {
		allowed = 2
	}
	return Levenshtein(a, b) <= allowed
}

// FuzzyMatchAny reports whether the token fuzzy-matches any of the given
// tokens.
func FuzzyMatchAny(token string, tokens []string) bool {
	for _, t := range tokens {
		if FuzzyTokenMatch(token, t) {
			return true
		}
	}
	return false
}
