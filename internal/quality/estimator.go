package quality

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// Score holds the four quality axes plus their rounded mean, each in
// the range 0-100.
type Score struct {
	Accuracy           int `json:"accuracy"`
	Fluency            int `json:"fluency"`
	Consistency        int `json:"consistency"`
	CulturalAdaptation int `json:"cultural_adaptation"`
	Overall            int `json:"overall"`
}

// fallbackValue is substituted for any axis the model failed to score.
const fallbackValue = 75

// FallbackScore is returned whenever assessment cannot be completed.
func FallbackScore() Score {
	s := Score{
		Accuracy:           fallbackValue,
		Fluency:            fallbackValue,
		Consistency:        fallbackValue,
		CulturalAdaptation: fallbackValue,
	}
	s.Overall = overall(s)
	return s
}

// Assessor is the provider call the estimator depends on; satisfied by
// the provider Gateway.
type Assessor interface {
	AssessQuality(ctx context.Context, original, translated, targetLang string) (string, error)
}

// Estimator scores translations through an Assessor.
type Estimator struct {
	assessor Assessor
}

// NewEstimator creates a quality estimator backed by the given assessor.
func NewEstimator(a Assessor) *Estimator {
	return &Estimator{assessor: a}
}

// Assess scores translated against original for the target language.
// It never returns an error: provider failures and unparseable
// responses yield the fallback score set instead.
func (e *Estimator) Assess(ctx context.Context, original, translated, targetLang string) Score {
	raw, err := e.assessor.AssessQuality(ctx, original, translated, targetLang)
	if err != nil {
		return FallbackScore()
	}
	return ParseScores(raw)
}

// ParseScores extracts axis scores from a structured-but-free-text
// model response of "axis: value" lines. Missing fields get the
// fallback default; every parsed value is clamped into [0,100].
func ParseScores(raw string) Score {
	s := Score{
		Accuracy:           fallbackValue,
		Fluency:            fallbackValue,
		Consistency:        fallbackValue,
		CulturalAdaptation: fallbackValue,
	}

	for _, line := range strings.Split(raw, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		n, ok := parseScoreValue(value)
		if !ok {
			continue
		}
		switch normalizeKey(key) {
		case "accuracy":
			s.Accuracy = n
		case "fluency":
			s.Fluency = n
		case "consistency":
			s.Consistency = n
		case "culturaladaptation":
			s.CulturalAdaptation = n
		}
	}

	s.Overall = overall(s)
	return s
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.TrimPrefix(key, "- ")
	key = strings.TrimPrefix(key, "* ")
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, key)
}

func parseScoreValue(value string) (int, bool) {
	value = strings.TrimSpace(value)
	// Tolerate trailing decoration like "87/100" or "87.".
	end := 0
	for end < len(value) && value[end] >= '0' && value[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(value[:end])
	if err != nil {
		return 0, false
	}
	return clamp(n), true
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func overall(s Score) int {
	mean := float64(s.Accuracy+s.Fluency+s.Consistency+s.CulturalAdaptation) / 4
	return int(math.Round(mean))
}
