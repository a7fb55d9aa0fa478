package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConfigWatcher watches for configuration file changes and triggers
// callbacks. ostore-vacuumd does not use it: the daemon reads its
// configuration once at startup.
type ConfigWatcher struct {
	v           *viper.Viper
	appName     string
	cfgFile     string
	mu          sync.RWMutex
	callbacks   []func(interface{})
	lastConfig  interface{}
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewConfigWatcher creates a new configuration watcher.
func NewConfigWatcher(appName, cfgFile string) (*ConfigWatcher, error) {
	v := newViper(appName)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	if err := v.ReadInConfig(); err != nil {
		if notFound, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config file not found: %w", notFound)
		}
	}

	return &ConfigWatcher{
		v:           v,
		appName:     appName,
		cfgFile:     cfgFile,
		callbacks:   []func(interface{}){},
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}, nil
}

// OnChange registers a callback invoked when configuration changes. The
// callback receives the new configuration struct.
func (cw *ConfigWatcher) OnChange(callback func(interface{})) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// Start begins watching for configuration changes.
func (cw *ConfigWatcher) Start() error {
	cw.v.OnConfigChange(func(e fsnotify.Event) {
		cw.handleChange()
	})

	cw.v.WatchConfig()

	return nil
}

func (cw *ConfigWatcher) handleChange() {
	cw.mu.RLock()
	callbacks := make([]func(interface{}), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	var cfg interface{}
	var err error

	switch cw.appName {
	case AppCtl:
		cfg, err = cw.loadCtlConfig()
	case AppVacuumd:
		cfg, err = cw.loadVacuumdConfig()
	}

	if err != nil {
		return
	}

	for _, cb := range callbacks {
		cb(cfg)
	}

	cw.mu.Lock()
	cw.lastConfig = cfg
	cw.mu.Unlock()
}

func (cw *ConfigWatcher) loadCtlConfig() (*CtlConfig, error) {
	defaults := DefaultCtlConfig()
	setViperDefaults(cw.v, defaults)

	var cfg CtlConfig
	if err := cw.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := resolveSecrets(&cfg); err != nil {
		return nil, fmt.Errorf("failed to resolve secrets: %w", err)
	}

	return &cfg, nil
}

func (cw *ConfigWatcher) loadVacuumdConfig() (*VacuumdConfig, error) {
	defaults := DefaultVacuumdConfig()
	setViperDefaults(cw.v, defaults)

	var cfg VacuumdConfig
	if err := cw.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := resolveSecrets(&cfg); err != nil {
		return nil, fmt.Errorf("failed to resolve secrets: %w", err)
	}

	return &cfg, nil
}

// CurrentConfig returns the last loaded configuration.
func (cw *ConfigWatcher) CurrentConfig() interface{} {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.lastConfig
}

// Reload forces a configuration reload.
func (cw *ConfigWatcher) Reload() error {
	if err := cw.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	cw.handleChange()
	return nil
}
