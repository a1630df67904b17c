// Package benchmark aggregates stored diagnostics into the per-dimension snapshot.
package benchmark

import (
	"maps"
	"math"
	"slices"

	"github.com/okian/cxdiag/internal/domain/model"
	"github.com/okian/cxdiag/internal/domain/questionnaire"
	"github.com/okian/cxdiag/internal/domain/scoring"
)

// Stats describes a set of record-level values.
type Stats struct {
	Average float64
	Min     float64
	Max     float64
	Count   int
}

func statsOf(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	st := Stats{Min: math.Inf(1), Max: math.Inf(-1), Count: len(values)}
	for _, v := range values {
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}
	st.Average = scoring.Mean(values)
	return st
}

// DimensionStats pairs a dimension with its aggregated statistics.
type DimensionStats struct {
	Dimension questionnaire.DimensionInfo
	Stats
}

// Result is the outcome of aggregating one corpus.
type Result struct {
	Diagnostics int
	Dimensions  []DimensionStats
	Overall     Stats
}

// DimensionScores returns the record-local mean per known dimension of one
// response set, keyed by snapshot name. Unknown or missing prefixes are dropped.
func DimensionScores(c *questionnaire.Catalog, responses model.ResponseSet) map[string]float64 {
	grouped := make(map[string][]float64)
	for _, key := range slices.Sorted(maps.Keys(responses)) {
		d, ok := c.Resolve(key)
		if !ok {
			continue
		}
		grouped[d.Name] = append(grouped[d.Name], responses[key])
	}
	out := make(map[string]float64, len(grouped))
	for name, values := range grouped {
		out[name] = scoring.Mean(values)
	}
	return out
}

// Compute aggregates records into per-dimension and overall statistics.
// Each record contributes at most one value per dimension, its own mean,
// so the global average is a mean of record means. Dimensions are returned
// in catalog order and only when at least one record contributed.
func Compute(c *questionnaire.Catalog, records []model.DiagnosticResponses) (Result, error) {
	if len(records) == 0 {
		return Result{}, ErrNoCorpus
	}

	perDim := make(map[string][]float64)
	overall := make([]float64, 0, len(records))
	for _, r := range records {
		for name, mean := range DimensionScores(c, r.Responses) {
			perDim[name] = append(perDim[name], mean)
		}
		overall = append(overall, r.Score)
	}

	res := Result{Diagnostics: len(records), Overall: statsOf(overall)}
	for _, d := range c.Dimensions() {
		values, ok := perDim[d.Name]
		if !ok {
			continue
		}
		res.Dimensions = append(res.Dimensions, DimensionStats{Dimension: d, Stats: statsOf(values)})
	}
	return res, nil
}
