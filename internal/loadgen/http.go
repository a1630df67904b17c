package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/cxdiag/pkg/logger"
)

const progressInterval = time.Second

// client wraps http.Client with the tenant and admin headers.
type client struct {
	http         *http.Client
	baseURL      string
	tenantHeader string
	adminToken   string
}

func newClient(cfg *Config) *client {
	return &client{
		http:         &http.Client{Timeout: cfg.Timeout},
		baseURL:      cfg.BaseURL,
		tenantHeader: cfg.TenantHeader,
		adminToken:   cfg.AdminToken,
	}
}

// do sends a request and decodes a JSON body into out when out is non-nil.
func (c *client) do(ctx context.Context, method, path, tenant string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tenant != "" {
		req.Header.Set(c.tenantHeader, tenant)
	}
	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// checkHealth verifies the service answers on /healthz.
func (c *client) checkHealth(ctx context.Context) error {
	status, err := c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
	if err != nil {
		return fmt.Errorf("connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("health check returned status %d", status)
	}
	return nil
}

// submit posts every submission with cfg.Workers concurrent senders.
func (c *client) submit(ctx context.Context, cfg *Config, subs []Submission, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting diagnostics", logger.Int("count", len(subs)), logger.Int("workers", cfg.Workers))

	var submitted, successful, failed atomic.Int64
	var lastReport atomic.Int64

	work := make(chan Submission, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range work {
				status, err := c.do(ctx, http.MethodPost, "/api/diagnostic", s.TenantID,
					map[string]any{"responses": s.Responses}, nil)
				submitted.Add(1)
				if err != nil || status != http.StatusOK {
					failed.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "submission failed", logger.String("tenant", s.TenantID), logger.Int("status", status), logger.Error(err))
					}
				} else {
					successful.Add(1)
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if time.Duration(now-last) >= progressInterval && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Int64("submitted", submitted.Load()),
						logger.Int("total", len(subs)),
						logger.Int64("failed", failed.Load()))
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, s := range subs {
			select {
			case <-ctx.Done():
				return
			case work <- s:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Successful = int(successful.Load())
	stats.Failed = int(failed.Load())
	log.Info(ctx, "submission completed",
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed))
}

// recalculate asks the server for a synchronous benchmark run.
func (c *client) recalculate(ctx context.Context) (Summary, error) {
	var s Summary
	status, err := c.do(ctx, http.MethodPost, "/api/admin/recalculate-benchmark", "", nil, &s)
	if err != nil {
		return s, err
	}
	if status != http.StatusOK {
		return s, fmt.Errorf("recalculation returned status %d: %s", status, s.Message)
	}
	return s, nil
}

// benchmark fetches the snapshot on behalf of tenant.
func (c *client) benchmark(ctx context.Context, tenant string) (Benchmark, error) {
	var b Benchmark
	status, err := c.do(ctx, http.MethodGet, "/api/benchmark", tenant, nil, &b)
	if err != nil {
		return b, err
	}
	if status != http.StatusOK {
		return b, fmt.Errorf("benchmark returned status %d", status)
	}
	return b, nil
}
