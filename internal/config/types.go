package config

import "time"

// LogConfig holds logging configuration shared by ostorectl and ostore-vacuumd.
type LogConfig struct {
	Level        string   `mapstructure:"level"`         // debug, info, warn, error
	Format       string   `mapstructure:"format"`        // text, json, pretty
	Output       string   `mapstructure:"output"`        // stdout, stderr, or file path
	FilePath     string   `mapstructure:"file_path"`     // path to log file (in addition to output)
	MaxSizeMB    int      `mapstructure:"max_size_mb"`   // max size in MB before rotation
	MaxBackups   int      `mapstructure:"max_backups"`   // max number of old log files to keep
	MaxAgeDays   int      `mapstructure:"max_age_days"`  // max days to retain old log files
	EnableCaller bool     `mapstructure:"enable_caller"` // include source file/line in logs
	NoColor      bool     `mapstructure:"no_color"`      // passed to the pretty handler, which does not read it; colors are not disabled
	RedactFields []string `mapstructure:"redact_fields"` // field names to redact from logs, e.g. dsn passwords
}

// EngineConfig is the configuration of a storage engine instance. Field
// names and defaults follow the storage backend's __init__ parameters.
type EngineConfig struct {
	// DSN is the PostgreSQL connection string. May reference a secret via
	// the env:// or file:// prefixes, resolved by resolveSecrets.
	DSN string `mapstructure:"dsn"`

	// PoolSize is the maximum number of connections held by the pool,
	// including the one reserved connection used for read-only sessions.
	PoolSize int `mapstructure:"pool_size"`

	// ReadOnly rejects store/delete operations and opens sessions in
	// read-only transaction mode.
	ReadOnly bool `mapstructure:"read_only"`

	// TransactionStrategy names the upper layer's transaction strategy
	// (default "resolve_readcommitted"). The engine itself only
	// distinguishes "none" and "tidonly", for which Commit logs no warning
	// when there is no backend transaction; every strategy begins backend
	// transactions at read committed.
	TransactionStrategy string `mapstructure:"transaction_strategy"`

	// CacheStrategy selects the object cache used by callers of the
	// engine. The engine itself only exposes cache invalidation hooks;
	// "dummy" disables caching.
	CacheStrategy string `mapstructure:"cache_strategy"`

	// ConnAcquireTimeout bounds how long each pool Acquire waits for a
	// free connection before returning AcquisitionTimeout.
	ConnAcquireTimeout time.Duration `mapstructure:"conn_acquire_timeout"`

	// ObjectsTableName and BlobsTableName let a single database host more
	// than one engine instance side by side.
	ObjectsTableName string `mapstructure:"objects_table_name"`
	BlobsTableName   string `mapstructure:"blobs_table_name"`
}

// VacuumConfig configures the background vacuum worker (ostore-vacuumd).
type VacuumConfig struct {
	Engine EngineConfig `mapstructure:"engine"`

	// Interval is loaded and logged by ostore-vacuumd but not read by the
	// vacuum worker, which drains its queue continuously rather than in
	// timed sweeps.
	Interval time.Duration `mapstructure:"interval"`

	// BatchSize sets the vacuum worker's queue capacity to 4*BatchSize
	// (default BatchSize 200). It does not limit how many trashed oids
	// the startup scan reads.
	BatchSize int `mapstructure:"batch_size"`

	PIDFile string `mapstructure:"pid_file"`

	// MetricsAddr is the listen address for the Prometheus metrics
	// endpoint (e.g. ":9090"). Empty disables it.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// CtlConfig is the complete configuration for the ostorectl CLI.
type CtlConfig struct {
	Log    LogConfig    `mapstructure:"log"`
	Engine EngineConfig `mapstructure:"engine"`
}

// VacuumdConfig is the complete configuration for the ostore-vacuumd daemon.
type VacuumdConfig struct {
	Log    LogConfig    `mapstructure:"log"`
	Vacuum VacuumConfig `mapstructure:"vacuum"`
}

// DefaultEngineConfig returns the backend's documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DSN:                 "",
		PoolSize:            13,
		ReadOnly:            false,
		TransactionStrategy: "resolve_readcommitted",
		CacheStrategy:       "dummy",
		ConnAcquireTimeout:  20 * time.Second,
		ObjectsTableName:    "objects",
		BlobsTableName:      "blobs",
	}
}

// DefaultCtlConfig returns sensible defaults for ostorectl.
func DefaultCtlConfig() *CtlConfig {
	return &CtlConfig{
		Log: LogConfig{
			Level:        "info",
			Format:       "text",
			Output:       "stderr",
			MaxSizeMB:    100,
			MaxBackups:   3,
			MaxAgeDays:   28,
			EnableCaller: false,
			RedactFields: []string{"password", "dsn", "token", "key", "secret", "credential"},
		},
		Engine: DefaultEngineConfig(),
	}
}

// DefaultVacuumdConfig returns sensible defaults for ostore-vacuumd.
func DefaultVacuumdConfig() *VacuumdConfig {
	return &VacuumdConfig{
		Log: LogConfig{
			Level:        "info",
			Format:       "pretty",
			Output:       "stdout",
			MaxSizeMB:    100,
			MaxBackups:   3,
			MaxAgeDays:   28,
			EnableCaller: true,
			RedactFields: []string{"password", "dsn", "token", "key", "secret", "credential"},
		},
		Vacuum: VacuumConfig{
			Engine:      DefaultEngineConfig(),
			Interval:    30 * time.Second,
			BatchSize:   200,
			PIDFile:     "/var/run/ostore-vacuumd.pid",
			MetricsAddr: ":9090",
		},
	}
}
