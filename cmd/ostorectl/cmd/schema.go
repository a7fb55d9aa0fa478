package cmd

import (
	"fmt"

	"ostore/internal/storage/postgres"
	"ostore/internal/version"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the engine's database schema",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var schemaBootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create tables, indexes, and the trash root if they don't exist",
	Long: `bootstrap runs the same idempotent schema creation an engine
performs on first Initialize: CREATE TABLE/INDEX/SEQUENCE statements,
the (parent_id, id) uniqueness constraint, and the trash root object.
Safe to run against an already-bootstrapped database.`,
	RunE: runSchemaBootstrap,
}

var schemaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop the objects and blobs tables",
	Long: `reset drops both tables. This is destructive and is only
permitted against a development build (see ostorectl version); release
builds refuse to run it.`,
	RunE: runSchemaReset,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaBootstrapCmd)
	schemaCmd.AddCommand(schemaResetCmd)
}

func runSchemaBootstrap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	fmt.Println("schema bootstrap complete")
	return nil
}

func runSchemaReset(cmd *cobra.Command, args []string) error {
	if !version.IsDev() {
		return fmt.Errorf("schema reset is disabled in release builds; rebuild with DevMode=true to use it")
	}

	ctx := cmd.Context()
	e, err := postgres.New(ctx, Config().Engine, Log())
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer e.Close(ctx)

	if err := e.Remove(ctx); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}

	fmt.Println("schema dropped")
	return nil
}
