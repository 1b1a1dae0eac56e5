// Package suggest ranks known labels by similarity to a query that matched
// nothing, so callers can offer "did you mean" hints.
package suggest

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultLimit is the number of suggestions attached to a filter miss.
const DefaultLimit = 5

// MinScore is the lowest similarity a candidate may have to be suggested.
const MinScore = 0.35

// Normalize folds case, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}

// Score compares two normalised strings and returns a similarity in [0, 1].
func Score(query, candidate string) float64 {
	switch {
	case query == "" || candidate == "":
		return 0
	case query == candidate:
		return 1
	case strings.HasPrefix(candidate, query):
		return 0.9
	case strings.Contains(candidate, query):
		return 0.8
	}
	longest := utf8.RuneCountInString(query)
	if n := utf8.RuneCountInString(candidate); n > longest {
		longest = n
	}
	distance := levenshtein.ComputeDistance(query, candidate)
	return 1 - float64(distance)/float64(longest)
}

type scored struct {
	label string
	score float64
}

// Rank returns up to limit labels from universe ordered by descending score,
// ties broken by label. The result is never nil.
func Rank(query string, universe []string, limit int) []string {
	out := make([]string, 0)
	if limit <= 0 || len(universe) == 0 {
		return out
	}
	q := Normalize(query)
	if q == "" {
		return out
	}

	seen := make(map[string]struct{}, len(universe))
	candidates := make([]scored, 0, len(universe))
	for _, label := range universe {
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		s := Score(q, Normalize(label))
		if s < MinScore {
			continue
		}
		candidates = append(candidates, scored{label: label, score: s})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].label < candidates[j].label
	})
	for _, c := range candidates {
		if len(out) == limit {
			break
		}
		out = append(out, c.label)
	}
	return out
}
