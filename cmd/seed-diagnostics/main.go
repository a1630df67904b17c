package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/cxdiag/internal/loadgen"
)

// Default configuration constants.
const (
	defaultTenants       = 200
	defaultCompleteShare = 0.5
	defaultItems         = 10
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL      = flag.String("url", "http://localhost:9080", "Base URL of the service")
		tenants      = flag.Int("tenants", defaultTenants, "Number of tenants to generate")
		complete     = flag.Float64("complete", defaultCompleteShare, "Share of tenants answering every item")
		items        = flag.Int("items", defaultItems, "Questions per dimension")
		workers      = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		tenantHeader = flag.String("tenant-header", "X-Tenant-ID", "Header carrying the tenant id")
		adminToken   = flag.String("admin-token", os.Getenv("CXDIAG_ADMIN_TOKEN"), "Bearer token for admin routes")
		seed         = flag.Uint64("seed", 0, "Random seed, 0 for a clock based seed")
		outputFile   = flag.String("output", "", "Write the generated submissions to this JSON file")
		logFile      = flag.String("log", "", "Log file (default: seed_log_TIMESTAMP.log)")
		verbose      = flag.Bool("verbose", false, "Log every mismatch")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return 0
	}

	closer, err := loadgen.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:           *baseURL,
		Tenants:           *tenants,
		CompleteShare:     *complete,
		ItemsPerDimension: *items,
		Workers:           *workers,
		Timeout:           *timeout,
		TenantHeader:      *tenantHeader,
		AdminToken:        *adminToken,
		Seed:              *seed,
		OutputFile:        *outputFile,
		Verbose:           *verbose,
	}

	if _, err := loadgen.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Seed run failed: " + err.Error() + "\n")
		return 1
	}
	return 0
}
