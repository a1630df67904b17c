package benchmark

import (
	"github.com/okian/cxdiag/internal/domain/model"
	"github.com/okian/cxdiag/internal/domain/questionnaire"
	"github.com/okian/cxdiag/internal/domain/scoring"
)

// DimensionComparison is a tenant's dimension score against the snapshot.
type DimensionComparison struct {
	Dimension  string  `json:"dimension"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
	Average    float64 `json:"average"`
	Difference float64 `json:"difference"`
}

// Comparison is a tenant's position relative to the benchmark.
type Comparison struct {
	TenantID         string                `json:"tenant_id"`
	OverallScore     float64               `json:"overall_score"`
	Level            model.Level           `json:"level"`
	OverallAverage   float64               `json:"overall_average"`
	OverallVsAverage float64               `json:"overall_vs_average"`
	PercentileRank   float64               `json:"percentile_rank"`
	Dimensions       []DimensionComparison `json:"dimensions"`
}

// Compare builds the comparison of d against the snapshot. Only dimensions
// present in both the tenant's answers and the snapshot are compared.
// Surfaced values are rounded to two decimals.
func Compare(
	c *questionnaire.Catalog,
	d model.Diagnostic,
	dims []model.DimensionSnapshot,
	overall model.OverallSnapshot,
	percentile float64,
) Comparison {
	averages := make(map[string]float64, len(dims))
	for _, s := range dims {
		averages[s.Dimension] = s.Average
	}
	scores := DimensionScores(c, d.Responses)

	out := Comparison{
		TenantID:         d.TenantID,
		OverallScore:     scoring.Round2(d.Score),
		Level:            d.Level,
		OverallAverage:   scoring.Round2(overall.Average),
		OverallVsAverage: scoring.Round2(d.Score - overall.Average),
		PercentileRank:   percentile,
		Dimensions:       make([]DimensionComparison, 0, len(scores)),
	}
	for _, info := range c.Dimensions() {
		score, ok := scores[info.Name]
		if !ok {
			continue
		}
		avg, ok := averages[info.Name]
		if !ok {
			continue
		}
		out.Dimensions = append(out.Dimensions, DimensionComparison{
			Dimension:  info.Name,
			Title:      info.Title,
			Score:      scoring.Round2(score),
			Average:    scoring.Round2(avg),
			Difference: scoring.Round2(score - avg),
		})
	}
	return out
}
