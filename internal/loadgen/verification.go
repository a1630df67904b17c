package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/cxdiag/internal/domain/benchmark"
	"github.com/okian/cxdiag/internal/domain/model"
	"github.com/okian/cxdiag/internal/domain/questionnaire"
	"github.com/okian/cxdiag/internal/domain/scoring"
	"github.com/okian/cxdiag/pkg/logger"
)

// Surfaced averages are rounded to two decimals.
const tolerance = 0.005 + 1e-9

// ErrMismatch reports a benchmark that differs from the local computation.
var ErrMismatch = errors.New("benchmark mismatch")

// expected computes the snapshot the server should hold for subs.
func expected(c *questionnaire.Catalog, subs []Submission) (benchmark.Result, error) {
	records := make([]model.DiagnosticResponses, 0, len(subs))
	for i, s := range subs {
		records = append(records, model.DiagnosticResponses{
			ID:        int64(i + 1),
			TenantID:  s.TenantID,
			Responses: s.Responses,
			Score:     scoring.Score(s.Responses).Score,
		})
	}
	return benchmark.Compute(c, records)
}

// verify compares the fetched benchmark with the local expectation.
// The server must start from an empty corpus for counts to match.
func verify(ctx context.Context, cfg *Config, want benchmark.Result, got Benchmark, stats *Stats) error {
	log := logger.Get()
	byName := make(map[string]Dimension, len(got.Dimensions))
	for _, d := range got.Dimensions {
		byName[d.Dimension] = d
	}

	for _, w := range want.Dimensions {
		name := w.Dimension.Name
		g, ok := byName[name]
		switch {
		case !ok:
			stats.Mismatches++
			log.Warn(ctx, "dimension missing from benchmark", logger.String("dimension", name))
		case g.Count != w.Count || math.Abs(g.Average-w.Average) > tolerance:
			stats.Mismatches++
			if cfg.Verbose {
				log.Warn(ctx, "dimension differs",
					logger.String("dimension", name),
					logger.Float64("want_average", w.Average),
					logger.Float64("got_average", g.Average),
					logger.Int("want_count", w.Count),
					logger.Int("got_count", g.Count))
			}
		default:
			stats.Verified++
		}
	}

	if stats.Mismatches > 0 {
		return fmt.Errorf("%w: %d of %d dimensions", ErrMismatch, stats.Mismatches, len(want.Dimensions))
	}
	log.Info(ctx, "benchmark verified", logger.Int("dimensions", stats.Verified))
	return nil
}
