// Package scoring turns a response set into an overall score and maturity level.
package scoring

import (
	"math"
	"sort"

	"github.com/okian/cxdiag/internal/domain/model"
)

// band is a half-open lower bound: scores >= min map to level.
type band struct {
	min   float64
	level model.Level
}

// bands are evaluated highest first. Anything below the last bound is inicial.
var bands = []band{ //nolint:gochecknoglobals // fixed threshold table
	{min: 4.5, level: model.LevelOptimizado},
	{min: 3.5, level: model.LevelAvanzado},
	{min: 2.5, level: model.LevelIntermedio},
	{min: 1.5, level: model.LevelBasico},
}

// Result contains the computed score for a response set.
type Result struct {
	Score    float64     `json:"score"`
	Level    model.Level `json:"level"`
	Answered int         `json:"answered"`
}

// Rounded returns the score rounded to two decimals for display.
func (r Result) Rounded() float64 { return Round2(r.Score) }

// Score computes the arithmetic mean of all answers and its level.
// An empty response set scores 0.
func Score(responses model.ResponseSet) Result {
	score := Mean(Values(responses))
	return Result{
		Score:    score,
		Level:    LevelFor(score),
		Answered: len(responses),
	}
}

// LevelFor maps an unrounded score to its maturity level.
func LevelFor(score float64) model.Level {
	for _, b := range bands {
		if score >= b.min {
			return b.level
		}
	}
	return model.LevelInicial
}

// Mean returns the arithmetic mean of values, or 0 when values is empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Values returns the answers of responses ordered by question key, so sums
// over the same set are bit-for-bit reproducible.
func Values(responses model.ResponseSet) []float64 {
	keys := make([]string, 0, len(responses))
	for k := range responses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = responses[k]
	}
	return out
}

// Round2 rounds x to two decimals, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Round1 rounds x to one decimal, half away from zero.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}
