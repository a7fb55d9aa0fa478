package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Inspect the vacuum backlog",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var trashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List oids reparented into the trash subtree awaiting vacuum",
	Long: `list shows every oid currently reparented under the trash
root. Entries here have already been logically deleted and are waiting
for the background vacuum worker (or ostore-vacuumd) to physically
remove them.`,
	RunE: runTrashList,
}

func init() {
	rootCmd.AddCommand(trashCmd)
	trashCmd.AddCommand(trashListCmd)
}

func runTrashList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	oids, err := e.GetTrashedObjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list trashed objects: %w", err)
	}

	if len(oids) == 0 {
		fmt.Println("trash is empty")
		return nil
	}

	for _, oid := range oids {
		fmt.Println(oid)
	}
	fmt.Printf("%d object(s) awaiting vacuum\n", len(oids))
	return nil
}
