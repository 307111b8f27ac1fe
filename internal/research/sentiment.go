package research

import (
	"strings"
	"unicode"

	"alpha_portfolios/internal/models"
)

var lexicon = map[string]float64{
	"beat": 0.6, "beats": 0.6, "bullish": 0.8, "gain": 0.5, "gains": 0.5, "growth": 0.5,
	"high": 0.2, "higher": 0.4, "jump": 0.6, "jumps": 0.6, "outperform": 0.7, "profit": 0.5,
	"rally": 0.7, "record": 0.4, "rise": 0.5, "rises": 0.5, "soar": 0.8, "soars": 0.8,
	"strong": 0.5, "surge": 0.8, "surges": 0.8, "upgrade": 0.7, "upgraded": 0.7, "win": 0.5,
	"bearish": -0.8, "crash": -0.9, "cut": -0.4, "cuts": -0.4, "decline": -0.5, "declines": -0.5,
	"downgrade": -0.7, "downgraded": -0.7, "drop": -0.5, "drops": -0.5, "fall": -0.5, "falls": -0.5,
	"fraud": -0.9, "loss": -0.6, "losses": -0.6, "miss": -0.6, "misses": -0.6, "plunge": -0.8,
	"plunges": -0.8, "lawsuit": -0.6, "recall": -0.5, "slump": -0.7, "weak": -0.5, "low": -0.2,
	"lower": -0.4, "underperform": -0.7, "warning": -0.5,
}

var negators = map[string]bool{"not": true, "no": true, "never": true, "without": true}

// Sentiment is the mean headline polarity in [-1, 1]. No news is neutral.
func Sentiment(items []models.NewsItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += polarity(it.Headline)
	}
	return sum / float64(len(items))
}

// polarity averages the scores of the sentiment-bearing words in text. A
// negator directly before a word flips its sign.
func polarity(text string) float64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	var sum float64
	var n int
	for i, w := range words {
		score, ok := lexicon[w]
		if !ok {
			continue
		}
		if i > 0 && negators[words[i-1]] {
			score = -score
		}
		sum += score
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
