package similarity

import "strings"

// Scorer rates how alike two free-text descriptions are, in [0,1].
// Implementations must be deterministic for identical inputs, and more
// shared meaningful tokens must never lower the score. The index takes the
// scorer as a strategy so the metric can evolve without touching the
// aggregator's contract.
type Scorer interface {
	Score(a, b string) float64
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"is": true, "it": true, "for": true, "with": true, "this": true,
	"that": true, "there": true, "are": true, "was": true, "has": true,
}

// TokenOverlapScorer scores descriptions by the Jaccard overlap of their
// meaningful tokens (lowercased alphanumeric words, stopwords removed).
type TokenOverlapScorer struct{}

func (TokenOverlapScorer) Score(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for tok := range ta {
		if tb[tok] {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	var word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		tok := word.String()
		word.Reset()
		if !stopwords[tok] {
			tokens[tok] = true
		}
	}

	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
