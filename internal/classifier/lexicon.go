package classifier

import (
	"context"
	"strings"
	"unicode"

	"github.com/pscheid92/brandpulse/internal/domain"
)

const (
	// LexiconVersion is the model version stamped on fallback results so
	// persisted records are attributable to the scorer that produced them.
	LexiconVersion = "lexicon/v1"

	methodLexicon = "lexicon"

	// neutralBand: mean polarity within ±0.1 is reported neutral,
	// matching the thresholds of the original TextBlob-style scorer.
	neutralBand = 0.1
)

// polarity maps known words to a sentiment weight in [-1, 1].
var polarity = map[string]float64{
	"amazing": 0.9, "awesome": 0.9, "excellent": 0.9, "fantastic": 0.9,
	"love": 0.8, "loving": 0.8, "loved": 0.8, "great": 0.8, "wonderful": 0.8,
	"perfect": 0.8, "best": 0.8, "brilliant": 0.8, "delighted": 0.8,
	"happy": 0.6, "good": 0.6, "nice": 0.6, "enjoy": 0.6, "enjoyed": 0.6,
	"like": 0.4, "liked": 0.4, "cool": 0.4, "fine": 0.3, "helpful": 0.5,
	"fast": 0.3, "smooth": 0.4, "recommend": 0.6, "thanks": 0.4, "thank": 0.4,
	"impressive": 0.7, "solid": 0.4, "works": 0.3, "useful": 0.5,

	"terrible": -0.9, "horrible": -0.9, "awful": -0.9, "worst": -0.9,
	"hate": -0.8, "hated": -0.8, "disgusting": -0.8, "garbage": -0.8,
	"broken": -0.7, "useless": -0.7, "disappointed": -0.7, "disappointing": -0.7,
	"bad": -0.6, "poor": -0.6, "slow": -0.4, "bug": -0.5, "bugs": -0.5,
	"buggy": -0.6, "crash": -0.6, "crashes": -0.6, "crashed": -0.6,
	"annoying": -0.5, "frustrating": -0.6, "dislike": -0.4, "problem": -0.4,
	"problems": -0.4, "issue": -0.3, "issues": -0.3, "fail": -0.6,
	"failed": -0.6, "failure": -0.6, "scam": -0.8, "expensive": -0.3,
}

// Lexicon is an in-process polarity scorer used as a fallback when the
// external model is unavailable. It never fails: text with no known words
// is neutral at 0.5 confidence.
type Lexicon struct{}

func NewLexicon() *Lexicon {
	return &Lexicon{}
}

func (l *Lexicon) Classify(_ context.Context, text string) (domain.SentimentResult, error) {
	var sum float64
	var matched int

	for _, word := range tokenize(text) {
		if p, ok := polarity[word]; ok {
			sum += p
			matched++
		}
	}

	result := domain.SentimentResult{
		Label:        domain.LabelNeutral,
		Confidence:   0.5,
		ModelVersion: LexiconVersion,
		Method:       methodLexicon,
	}
	if matched == 0 {
		return result, nil
	}

	mean := sum / float64(matched)
	switch {
	case mean > neutralBand:
		result.Label = domain.LabelPositive
		result.Confidence = scaleConfidence(mean)
	case mean < -neutralBand:
		result.Label = domain.LabelNegative
		result.Confidence = scaleConfidence(-mean)
	}
	return result, nil
}

// scaleConfidence maps a mean polarity magnitude (0, 1] into (0.5, 1].
func scaleConfidence(magnitude float64) float64 {
	if magnitude > 1 {
		magnitude = 1
	}
	return 0.5 + magnitude/2
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
