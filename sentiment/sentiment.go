// Package sentiment scores short social-media texts with VADER and buckets
// the compound score into positive, neutral or negative.
package sentiment

import (
	"sync"

	"github.com/jonreiter/govader"
)

// Class is the sentiment bucket a text falls into.
type Class int

const (
	Neutral Class = iota
	Positive
	Negative
)

func (c Class) String() string {
	switch c {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "neutral"
	}
}

// DefaultThreshold is the absolute score a text must exceed to leave the
// neutral bucket.
const DefaultThreshold = 0.05

// Scorer maps a text to a score in [-1, 1]. Implementations must be
// deterministic and safe for concurrent use.
type Scorer interface {
	Score(text string) float64
}

// Classify buckets a score. A score exactly on a boundary is neutral.
func Classify(score, threshold float64) Class {
	switch {
	case score > threshold:
		return Positive
	case score < -threshold:
		return Negative
	default:
		return Neutral
	}
}

// Vader scores texts by the VADER compound score. Safe for concurrent use.
type Vader struct {
	sia *govader.SentimentIntensityAnalyzer
}

// NewVader loads the VADER lexicon and emoji table.
func NewVader() *Vader {
	return &Vader{sia: govader.NewSentimentIntensityAnalyzer()}
}

// Score implements Scorer.
func (v *Vader) Score(text string) float64 {
	return v.sia.PolarityScores(text).Compound
}

var shared = sync.OnceValue(NewVader)

// Default returns the process-wide Vader, loaded on first use.
func Default() *Vader {
	return shared()
}
