package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	AppCtl     = "ostorectl"
	AppVacuumd = "ostore-vacuumd"
)

// configSearchPaths returns the paths to search for config files, in the
// order Viper searches them (the first path holding a config file wins).
func configSearchPaths(appName string) []string {
	paths := []string{}

	paths = append(paths, filepath.Join("/etc", appName))

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName))
	}

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, cwd)
	}

	return paths
}

// UserConfigDir returns the user-specific config directory for the app.
func UserConfigDir(appName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// newViper creates and configures a new Viper instance for the given app.
func newViper(appName string) *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for _, path := range configSearchPaths(appName) {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(appName, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadCtl loads the configuration for the ostorectl CLI.
func LoadCtl(cfgFile string) (*CtlConfig, error) {
	v := newViper(AppCtl)

	defaults := DefaultCtlConfig()
	setViperDefaults(v, defaults)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg CtlConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := resolveSecrets(&cfg); err != nil {
		return nil, fmt.Errorf("failed to resolve secrets: %w", err)
	}

	return &cfg, nil
}

// LoadVacuumd loads the configuration for the ostore-vacuumd daemon.
func LoadVacuumd(cfgFile string) (*VacuumdConfig, error) {
	v := newViper(AppVacuumd)

	defaults := DefaultVacuumdConfig()
	setViperDefaults(v, defaults)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg VacuumdConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := resolveSecrets(&cfg); err != nil {
		return nil, fmt.Errorf("failed to resolve secrets: %w", err)
	}

	return &cfg, nil
}

// setViperDefaults sets default values in Viper from a config struct so that
// env-var overrides (e.g. OSTORECTL_ENGINE_POOL_SIZE) apply even when no
// config file defines the key.
func setViperDefaults(v *viper.Viper, cfg interface{}) {
	switch c := cfg.(type) {
	case *CtlConfig:
		setLogDefaults(v, "log", c.Log)
		setEngineDefaults(v, "engine", c.Engine)
	case *VacuumdConfig:
		setLogDefaults(v, "log", c.Log)
		setEngineDefaults(v, "vacuum.engine", c.Vacuum.Engine)
		v.SetDefault("vacuum.interval", c.Vacuum.Interval)
		v.SetDefault("vacuum.batch_size", c.Vacuum.BatchSize)
		v.SetDefault("vacuum.pid_file", c.Vacuum.PIDFile)
		v.SetDefault("vacuum.metrics_addr", c.Vacuum.MetricsAddr)
	}
}

func setLogDefaults(v *viper.Viper, prefix string, l LogConfig) {
	v.SetDefault(prefix+".level", l.Level)
	v.SetDefault(prefix+".format", l.Format)
	v.SetDefault(prefix+".output", l.Output)
	v.SetDefault(prefix+".file_path", l.FilePath)
	v.SetDefault(prefix+".max_size_mb", l.MaxSizeMB)
	v.SetDefault(prefix+".max_backups", l.MaxBackups)
	v.SetDefault(prefix+".max_age_days", l.MaxAgeDays)
	v.SetDefault(prefix+".enable_caller", l.EnableCaller)
	v.SetDefault(prefix+".no_color", l.NoColor)
	v.SetDefault(prefix+".redact_fields", l.RedactFields)
}

func setEngineDefaults(v *viper.Viper, prefix string, e EngineConfig) {
	v.SetDefault(prefix+".dsn", e.DSN)
	v.SetDefault(prefix+".pool_size", e.PoolSize)
	v.SetDefault(prefix+".read_only", e.ReadOnly)
	v.SetDefault(prefix+".transaction_strategy", e.TransactionStrategy)
	v.SetDefault(prefix+".cache_strategy", e.CacheStrategy)
	v.SetDefault(prefix+".conn_acquire_timeout", e.ConnAcquireTimeout)
	v.SetDefault(prefix+".objects_table_name", e.ObjectsTableName)
	v.SetDefault(prefix+".blobs_table_name", e.BlobsTableName)
}

// ConfigFileUsed returns the config file path that was loaded, if any.
func ConfigFileUsed(appName string) string {
	v := newViper(appName)
	_ = v.ReadInConfig()
	return v.ConfigFileUsed()
}

// NewViperFromConfig creates a viper instance populated with values from a
// config struct.
func NewViperFromConfig(appName string, cfg interface{}) *viper.Viper {
	v := viper.New()

	switch c := cfg.(type) {
	case *CtlConfig:
		setLogDefaults(v, "log", c.Log)
		setEngineDefaults(v, "engine", c.Engine)
	case *VacuumdConfig:
		setLogDefaults(v, "log", c.Log)
		setEngineDefaults(v, "vacuum.engine", c.Vacuum.Engine)
		v.Set("vacuum.interval", c.Vacuum.Interval)
		v.Set("vacuum.batch_size", c.Vacuum.BatchSize)
		v.Set("vacuum.pid_file", c.Vacuum.PIDFile)
		v.Set("vacuum.metrics_addr", c.Vacuum.MetricsAddr)
	}

	return v
}
