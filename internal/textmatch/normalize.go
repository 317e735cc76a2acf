// Package textmatch provides the pure text utilities behind subscription
// matching: case and diacritic folding tuned for Azerbaijani, tokenization,
// and edit-distance fuzzy comparison.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// azFold maps Azerbaijani letters whose canonical decomposition is absent or
// ambiguous onto their plain latin base. Everything else is handled by the
// generic mark-stripping transform.
var azFold = map[rune]rune{
	'ə': 'e', 'Ə': 'e',
	'ı': 'i', 'İ': 'i',
	'ç': 'c', 'Ç': 'c',
	'ş': 's', 'Ş': 's',
	'ğ': 'g', 'Ğ': 'g',
	'ö': 'o', 'Ö': 'o',
	'ü': 'u', 'Ü': 'u',
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds text for matching: lower-case, Azerbaijani letter folding,
// diacritic stripping, removal of non-alphanumerics except spaces, whitespace
// collapse, trim. Normalize("Əli və Vergi!") == "eli ve vergi".
func Normalize(s string) string {
	var folded strings.Builder
	folded.Grow(len(s))
	for _, r := range s {
		if f, ok := azFold[r]; ok {
			folded.WriteRune(f)
			continue
		}
		folded.WriteRune(unicode.ToLower(r))
	}

	plain, _, err := transform.String(stripMarks, folded.String())
	if err != nil {
		plain = folded.String()
	}

	var out strings.Builder
	out.Grow(len(plain))
	prevSpace := true // also swallows leading whitespace
	for _, r := range plain {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			out.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace {
				out.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimRight(out.String(), " ")
}

// minTokenLen filters out noise tokens after splitting.
const minTokenLen = 2

// Tokenize normalizes the text and splits it into tokens of at least two
// runes.
func Tokenize(s string) []string {
	fields := strings.Fields(Normalize(s))
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// queryConnectors are joined-list markers removed from user queries so that a
// multi-term query behaves as a plain token list.
var queryConnectors = map[string]bool{
	"and": true,
	"ve":  true, // "və" after normalization
}

var queryPunct = strings.NewReplacer("&", " ", "+", " ", ",", " ", ";", " ")

// QueryTokens tokenizes a user-supplied query, additionally dropping
// connector words ("and", "və") and list-separator punctuation.
func QueryTokens(s string) []string {
	fields := Tokenize(queryPunct.Replace(s))
	tokens := fields[:0]
	for _, f := range fields {
		if queryConnectors[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
