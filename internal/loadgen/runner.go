package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/cxdiag/internal/domain/questionnaire"
	"github.com/okian/cxdiag/pkg/logger"
)

const (
	directoryPermission = 0750
	filePermission      = 0600
	percent             = 100
)

// ErrInvalidConfig reports an unusable seed configuration.
var ErrInvalidConfig = errors.New("invalid seed configuration")

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url must not be empty", ErrInvalidConfig)
	case c.Tenants < 1:
		return fmt.Errorf("%w: tenants must be positive", ErrInvalidConfig)
	case c.ItemsPerDimension < 1:
		return fmt.Errorf("%w: items per dimension must be positive", ErrInvalidConfig)
	case c.CompleteShare < 0 || c.CompleteShare > 1:
		return fmt.Errorf("%w: complete share must be within [0, 1]", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.TenantHeader == "":
		return fmt.Errorf("%w: tenant header must not be empty", ErrInvalidConfig)
	}
	return nil
}

// Run seeds the server, recalculates the benchmark and verifies it.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()
	catalog := questionnaire.Default()
	c := newClient(cfg)

	log.Info(ctx, "starting seed run",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("tenants", cfg.Tenants),
		logger.Float64("complete_share", cfg.CompleteShare),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	if err := c.checkHealth(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	subs, err := generate(ctx, cfg, catalog, stats)
	if err != nil {
		return stats, fmt.Errorf("generation failed: %w", err)
	}

	c.submit(ctx, cfg, subs, stats)
	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d of %d submissions failed", stats.Failed, stats.Submitted)
	}

	summary, err := c.recalculate(ctx)
	stats.Recalculate = summary
	if err != nil {
		return stats, fmt.Errorf("recalculation failed: %w", err)
	}
	log.Info(ctx, summary.Message, logger.Int("dimensions_updated", summary.DimensionsUpdated))

	got, err := c.benchmark(ctx, subs[0].TenantID)
	if err != nil {
		return stats, fmt.Errorf("benchmark retrieval failed: %w", err)
	}
	want, err := expected(catalog, subs)
	if err != nil {
		return stats, fmt.Errorf("local computation failed: %w", err)
	}
	verifyErr := verify(ctx, cfg, want, got, stats)

	if cfg.OutputFile != "" {
		if err := saveSubmissions(cfg.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.Error(err))
		} else {
			log.Info(ctx, "submissions saved", logger.String("file", cfg.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, verifyErr
}

// saveSubmissions writes subs as an indented JSON array.
func saveSubmissions(path string, subs []Submission) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal submissions: %w", err)
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, perSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Successful) / float64(stats.Submitted) * percent
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("complete", stats.Complete),
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
		logger.Int("dimensions_verified", stats.Verified),
		logger.Int("dimensions_mismatched", stats.Mismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("success_rate", successRate),
		logger.Float64("submissions_per_second", perSecond))
}
