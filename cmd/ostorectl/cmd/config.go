package cmd

import (
	"encoding/json"
	"fmt"

	"ostore/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View the ostorectl configuration currently in effect.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration values that are in effect, with secrets redacted.`,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Long:  `Display the path to the configuration file being used.`,
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	currentCfg := Config()
	if currentCfg == nil {
		var err error
		currentCfg, err = config.LoadCtl(ConfigFile())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	// DSNs may carry embedded credentials; never print them verbatim.
	redacted := *currentCfg
	redacted.Engine.DSN = redactDSN(currentCfg.Engine.DSN)

	output, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println(string(output))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	if ConfigFile() != "" {
		fmt.Println(ConfigFile())
		return nil
	}

	if path := config.ConfigFileUsed(config.AppCtl); path != "" {
		fmt.Println(path)
		return nil
	}

	fmt.Println("No config file found, using defaults")
	return nil
}

// redactDSN replaces a non-empty connection string with a fixed
// placeholder so config show never leaks a password.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	return "***redacted***"
}
