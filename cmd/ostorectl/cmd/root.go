package cmd

import (
	"context"
	"fmt"
	"os"

	"ostore/internal/config"
	"ostore/internal/logger"
	"ostore/internal/storage/postgres"

	"github.com/spf13/cobra"
)

var (
	// cfgFile is the path to the config file (set via --config flag)
	cfgFile string

	// cfg holds the loaded configuration
	cfg *config.CtlConfig

	// log is the logger instance
	log *logger.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ostorectl",
	Short: "Administer an ostore PostgreSQL object-storage engine",
	Long: `ostorectl manages the schema, configuration, and trash backlog of
an ostore engine instance: schema bootstrap/reset, config inspection,
object counts, and vacuum backlog listing.`,
	TraverseChildren: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}

		var err error
		log, err = logger.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if log != nil {
			log.Close()
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(); it only needs to run
// once against rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/ostorectl/config.yaml)")
}

// loadConfig loads the CLI configuration.
func loadConfig() error {
	var err error
	cfg, err = config.LoadCtl(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// Config returns the loaded configuration (for use by subcommands).
func Config() *config.CtlConfig {
	return cfg
}

// ConfigFile returns the config file path (for use by subcommands).
func ConfigFile() string {
	return cfgFile
}

// Log returns the logger instance (for use by subcommands).
func Log() *logger.Logger {
	return log
}

// openEngine opens and initializes an engine against the loaded
// configuration's DSN. Callers must Close it when done.
func openEngine(ctx context.Context) (*postgres.Engine, error) {
	e, err := postgres.New(ctx, cfg.Engine, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	if err := e.Initialize(ctx, config.VacuumConfig{Engine: cfg.Engine, BatchSize: 200}); err != nil {
		e.Close(ctx)
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	return e, nil
}
