package loadgen

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/cxdiag/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging logs to stdout and to logFile. An empty logFile gets a
// timestamped name. The returned closer releases the file.
func SetupLogging(logFile string) (io.Closer, error) {
	if logFile == "" {
		logFile = "seed_log_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return file, nil
}

// ShowHelp prints usage information for the seed tool.
func ShowHelp() {
	os.Stdout.WriteString(`cxdiag seed tool
================

Seeds a running cxdiag server with generated diagnostics, triggers an admin
recalculation and verifies the benchmark against a local computation. Run it
against an empty database; existing diagnostics change the expected averages.

Usage:
  go run ./cmd/seed-diagnostics [options]

Options:
  -url string         Base URL of the service (default "http://localhost:9080")
  -tenants int        Number of tenants to generate (default 200)
  -complete float     Share of tenants answering every item (default 0.5)
  -items int          Questions per dimension (default 10)
  -workers int        Concurrent submitters (default CPU cores * 2)
  -timeout duration   HTTP request timeout (default 30s)
  -tenant-header      Header carrying the tenant id (default "X-Tenant-ID")
  -admin-token        Bearer token for admin routes (default $CXDIAG_ADMIN_TOKEN)
  -seed uint          Random seed, 0 for a clock based seed
  -output string      Write the generated submissions to this JSON file
  -log string         Log file (default: seed_log_TIMESTAMP.log)
  -verbose            Log every mismatch
  -help               Show this help message
`)
}
