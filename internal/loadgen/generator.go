package loadgen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/cxdiag/internal/domain/model"
	"github.com/okian/cxdiag/internal/domain/questionnaire"
	"github.com/okian/cxdiag/pkg/logger"
)

// Answer range of the questionnaire scale.
const (
	minAnswer = 1
	maxAnswer = 5
)

// generate builds cfg.Tenants submissions over the catalog. A share of
// tenants answers every item; the rest answer a random subset of dimensions
// and items, so partially answered dimensions also reach the benchmark.
func generate(ctx context.Context, cfg *Config, c *questionnaire.Catalog, stats *Stats) ([]Submission, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	dims := c.Dimensions()

	logger.Get().Info(ctx, "generating submissions",
		logger.Int("tenants", cfg.Tenants),
		logger.Int("items_per_dimension", cfg.ItemsPerDimension),
		logger.Any("seed", seed))

	out := make([]Submission, 0, cfg.Tenants)
	for i := 0; i < cfg.Tenants; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation cancelled: %w", err)
		}
		complete := rng.Float64() < cfg.CompleteShare
		responses := make(model.ResponseSet)
		for _, d := range dims {
			if !complete && rng.IntN(2) == 0 {
				continue
			}
			for item := 1; item <= cfg.ItemsPerDimension; item++ {
				if !complete && rng.IntN(3) == 0 {
					continue
				}
				responses[fmt.Sprintf("%s.%d", d.ID, item)] = float64(minAnswer + rng.IntN(maxAnswer-minAnswer+1))
			}
		}
		if len(responses) == 0 {
			// Every tenant submits at least one answer.
			responses[dims[0].ID+".1"] = float64(minAnswer + rng.IntN(maxAnswer-minAnswer+1))
		}
		if complete {
			stats.Complete++
		}
		out = append(out, Submission{TenantID: "seed-" + uuid.NewString(), Responses: responses})
	}

	stats.Generated = len(out)
	logger.Get().Info(ctx, "generated submissions", logger.Int("count", len(out)), logger.Int("complete", stats.Complete))
	return out, nil
}
