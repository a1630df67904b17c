package repository

import (
	"strconv"
	"strings"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type dialect struct {
	driver   string
	idColumn string
	numbered bool
	pragmas  []string
}

var dialects = map[string]dialect{ //nolint:gochecknoglobals // static driver table
	DriverSQLite: {
		driver:   DriverSQLite,
		idColumn: "INTEGER PRIMARY KEY AUTOINCREMENT",
		pragmas: []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA foreign_keys = ON",
		},
	},
	DriverPostgres: {
		driver:   DriverPostgres,
		idColumn: "BIGSERIAL PRIMARY KEY",
		numbered: true,
	},
}

// rebind rewrites "?" placeholders to "$n" for drivers that need it.
// Queries in this package never contain literal question marks.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS diagnostics (
			id ` + d.idColumn + `,
			tenant_id TEXT NOT NULL UNIQUE,
			responses TEXT NOT NULL,
			answered INTEGER NOT NULL DEFAULT 0,
			score DOUBLE PRECISION NOT NULL DEFAULT 0,
			level TEXT NOT NULL,
			completed_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_diagnostics_completed_at ON diagnostics (completed_at)`,
		`CREATE TABLE IF NOT EXISTS benchmark_dimensions (
			dimension TEXT PRIMARY KEY,
			average DOUBLE PRECISION NOT NULL,
			min_score DOUBLE PRECISION NOT NULL,
			max_score DOUBLE PRECISION NOT NULL,
			diagnostics_count INTEGER NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS benchmark_overall (
			id INTEGER PRIMARY KEY,
			average DOUBLE PRECISION NOT NULL,
			min_score DOUBLE PRECISION NOT NULL,
			max_score DOUBLE PRECISION NOT NULL,
			diagnostics_count INTEGER NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
	}
}
