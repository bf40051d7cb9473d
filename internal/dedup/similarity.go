// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import "strings"

// maxInitialismLen caps how long a token can be and still be treated as a
// possible initialism of a token run on the other side.
const maxInitialismLen = 6

// Similarity scores two texts in [0,1]: the Jaccard coefficient over their
// normalized token sets, after folding initialisms. A token on one side that
// spells the first letters of a consecutive token run on the other ("cse"
// against "civil services exam") is replaced by that run, so an abbreviated
// title and its expansion compare as near-identical. Symmetric by
// construction, and 1.0 for normalized-identical texts, which keeps the
// exact tier transitive.
func Similarity(a, b string) float64 {
	toksA := tokens(a)
	toksB := tokens(b)
	if len(toksA) == 0 || len(toksB) == 0 {
		return 0
	}

	setA := foldedSet(toksA, toksB)
	setB := foldedSet(toksB, toksA)

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// tokens returns the normalized tokens in document order.
func tokens(text string) []string {
	return strings.Fields(NormalizeTitle(text))
}

// foldedSet builds the token set of toks, expanding any token that reads as
// an initialism of a consecutive run in other. Tokens both sides share are
// never expanded.
func foldedSet(toks, other []string) map[string]bool {
	otherSet := make(map[string]bool, len(other))
	for _, tok := range other {
		otherSet[tok] = true
	}

	set := make(map[string]bool, len(toks))
	for _, tok := range toks {
		if !otherSet[tok] {
			if run, ok := initialismRun(tok, other); ok {
				for _, t := range run {
					set[t] = true
				}
				continue
			}
		}
		set[tok] = true
	}
	return set
}

// initialismRun finds a consecutive run in toks whose first letters spell
// abbr. Only short, purely alphabetic tokens qualify as abbreviations.
func initialismRun(abbr string, toks []string) ([]string, bool) {
	if len(abbr) < 2 || len(abbr) > maxInitialismLen || !alphabetic(abbr) {
		return nil, false
	}
	for i := 0; i+len(abbr) <= len(toks); i++ {
		match := true
		for j := 0; j < len(abbr); j++ {
			if toks[i+j][0] != abbr[j] {
				match = false
				break
			}
		}
		if match {
			return toks[i : i+len(abbr)], true
		}
	}
	return nil, false
}

func alphabetic(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
