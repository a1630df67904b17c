// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file and CXDIAG_* env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBDriver selects the SQL driver: sqlite or postgres.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is the driver data source name (a file path for sqlite).
	DBDSN string `koanf:"db_dsn"`

	// FullQuestionnaireItemCount is the answered-item count at which a
	// submission counts as complete and triggers a benchmark recalculation.
	FullQuestionnaireItemCount int `koanf:"full_questionnaire_item_count"`

	// AutoRecalculate enables the completion trigger.
	AutoRecalculate bool `koanf:"auto_recalculate"`

	// RecalculateOnStart queues one recalculation when the service starts.
	RecalculateOnStart bool `koanf:"recalculate_on_start"`

	// TriggerQueueSize bounds pending recalculation triggers.
	TriggerQueueSize int `koanf:"trigger_queue_size"`

	// MaxPageSize caps per_page on admin listings.
	MaxPageSize int `koanf:"max_page_size"`

	// TenantHeader names the header carrying the verified tenant id.
	TenantHeader string `koanf:"tenant_header"`

	// AdminToken is the bearer token for admin routes. Empty disables them.
	AdminToken string `koanf:"admin_token"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                   "info",
		LogFormat:                  "text",
		Addr:                       ":9080",
		DBDriver:                   DriverSQLite,
		DBDSN:                      "cxdiag.db",
		FullQuestionnaireItemCount: 60,
		AutoRecalculate:            true,
		TriggerQueueSize:           1,
		MaxPageSize:                100,
		TenantHeader:               "X-Tenant-ID",
	}
}
