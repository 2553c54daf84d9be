// Package sentiment scores market headlines with a weighted keyword lexicon
// tuned for Indian market news. It is deterministic and works offline.
package sentiment

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/seenimoa/optionpulse/pkg/models"
)

// Tone is the coarse reading of a score.
type Tone string

const (
	ToneBullish Tone = "Bullish"
	ToneBearish Tone = "Bearish"
	ToneNeutral Tone = "Neutral"
)

// toneCutoff is the absolute score beyond which a headline has a tone.
const toneCutoff = 0.3

// bullish / bearish keyword dictionaries (lowercase stems).
var bullishWords = map[string]float64{
	"bullish": 0.7, "rally": 0.6, "rallies": 0.6, "surge": 0.7, "upbeat": 0.5,
	"positive": 0.4, "growth": 0.4, "upgrade": 0.6, "outperform": 0.6,
	"buy": 0.5, "strong": 0.4, "recovery": 0.5, "rebound": 0.5, "breakout": 0.6,
	"record high": 0.7, "all-time high": 0.7, "beat": 0.5, "gain": 0.4,
	"higher": 0.3, "jump": 0.5, "soar": 0.7, "short covering": 0.5,
	"fii buying": 0.6, "rate cut": 0.5, "profit": 0.3, "dividend": 0.4,
}

var bearishWords = map[string]float64{
	"bearish": 0.7, "crash": 0.8, "plunge": 0.7, "slump": 0.6, "slip": 0.5,
	"negative": 0.4, "downgrade": 0.6, "underperform": 0.6, "tumble": 0.7,
	"sell": 0.5, "weak": 0.4, "decline": 0.5, "loss": 0.4, "lower": 0.3,
	"selloff": 0.7, "sell-off": 0.7, "fall": 0.4, "correction": 0.5,
	"profit booking": 0.6, "fii selling": 0.6, "rate hike": 0.5,
	"default": 0.7, "fraud": 0.8, "investigation": 0.5,
	"miss": 0.5, "warning": 0.5, "concern": 0.3, "volatile": 0.3,
}

// ScoreHeadline returns a score from -1.0 (very bearish) to +1.0 (very
// bullish) and a confidence that grows with the number of matched terms.
func ScoreHeadline(text string) (score, confidence float64) {
	words := tokenize(text)
	joined := " " + strings.Join(words, " ") + " "

	bull, bear, matches := 0.0, 0.0, 0
	for term, w := range bullishWords {
		if hasTerm(words, joined, term) {
			bull += w
			matches++
		}
	}
	for term, w := range bearishWords {
		if hasTerm(words, joined, term) {
			bear += w
			matches++
		}
	}
	if matches == 0 || bull+bear == 0 {
		return 0, 0.1
	}

	score = (bull - bear) / (bull + bear)
	confidence = math.Min(float64(matches)*0.15+0.2, 0.85)
	return score, confidence
}

// ScoreArticle scores an article's title and summary.
func ScoreArticle(a models.NewsArticle) float64 {
	text := a.Title
	if a.Summary != "" {
		text += " " + a.Summary
	}
	score, _ := ScoreHeadline(text)
	return score
}

// Classify maps a score onto a tone.
func Classify(score float64) Tone {
	switch {
	case score > toneCutoff:
		return ToneBullish
	case score < -toneCutoff:
		return ToneBearish
	default:
		return ToneNeutral
	}
}

// Marker is the emoji appended to toned headlines; neutral has none.
func (t Tone) Marker() string {
	switch t {
	case ToneBullish:
		return "🟢"
	case ToneBearish:
		return "🔴"
	default:
		return ""
	}
}

// Agrees reports whether the tone points the same way as an option direction.
func (t Tone) Agrees(dir models.Direction) bool {
	return (t == ToneBullish && dir == models.DirectionCE) ||
		(t == ToneBearish && dir == models.DirectionPE)
}

// Aggregate combines article scores, halving an article's weight every 24
// hours of age at now and weighting by keyword confidence.
func Aggregate(articles []models.NewsArticle, now time.Time) (float64, Tone) {
	var weighted, total float64
	for _, a := range articles {
		text := a.Title
		if a.Summary != "" {
			text += " " + a.Summary
		}
		score, conf := ScoreHeadline(text)

		age := now.Sub(a.PublishedAt).Hours()
		if age < 0 || a.PublishedAt.IsZero() {
			age = 0
		}
		w := math.Exp(-math.Ln2*age/24) * conf
		weighted += score * w
		total += w
	}
	if total == 0 {
		return 0, ToneNeutral
	}
	avg := weighted / total
	return avg, Classify(avg)
}

// tokenize lower-cases text and splits it into words, keeping hyphens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// hasTerm matches phrases as whole-word sequences and single words as a stem
// followed by at most a short inflection ("surge" → "surges", "surged").
func hasTerm(words []string, joined, term string) bool {
	if strings.Contains(term, " ") {
		return strings.Contains(joined, " "+term+" ") || strings.Contains(joined, " "+term+"s ")
	}
	for _, w := range words {
		if strings.HasPrefix(w, term) && len(w)-len(term) <= 3 {
			return true
		}
	}
	return false
}
