package sentiment

import (
	"math"
	"strings"
	"unicode"
)

// normAlpha matches the VADER compound normalization.
const normAlpha = 15.0

const (
	negationScalar   = -0.74
	intensifierBoost = 0.293
	negationWindow   = 3
)

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "nobody": true,
	"nothing": true, "neither": true, "nor": true, "cannot": true,
	"don't": true, "doesn't": true, "didn't": true, "isn't": true,
	"aren't": true, "wasn't": true, "weren't": true, "won't": true,
	"can't": true, "couldn't": true, "shouldn't": true, "wouldn't": true,
	"dont": true, "cant": true, "wont": true, "isnt": true,
}

var intensifiers = map[string]bool{
	"very": true, "really": true, "extremely": true, "so": true,
	"totally": true, "absolutely": true, "incredibly": true, "super": true,
	"completely": true, "highly": true, "most": true,
}

// Lexicon is a word-weight scorer with negation and intensifier handling,
// for callers that need a small fixed vocabulary.
type Lexicon struct {
	weights map[string]float64
}

// NewLexicon builds a scorer from explicit weights. Keys are matched
// case-insensitively.
func NewLexicon(weights map[string]float64) *Lexicon {
	w := make(map[string]float64, len(weights))
	for k, v := range weights {
		w[strings.ToLower(k)] = v
	}
	return &Lexicon{weights: w}
}

// Score implements Scorer.
func (l *Lexicon) Score(text string) float64 {
	tokens := tokenize(text)
	var sum float64
	for i, tok := range tokens {
		w, ok := l.weights[tok]
		if !ok || w == 0 {
			continue
		}
		if i > 0 && intensifiers[tokens[i-1]] {
			if w > 0 {
				w += intensifierBoost
			} else {
				w -= intensifierBoost
			}
		}
		for j := max(0, i-negationWindow); j < i; j++ {
			if negations[tokens[j]] {
				w *= negationScalar
				break
			}
		}
		sum += w
	}
	if sum == 0 {
		return 0
	}
	return sum / math.Sqrt(sum*sum+normAlpha)
}

func tokenize(s string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
		})
		word = strings.Trim(word, "'")
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}
