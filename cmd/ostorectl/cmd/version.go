package cmd

import (
	"fmt"

	"ostore/internal/version"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build info of ostorectl.`,
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Printf("ostorectl %s\n", info.String())
		fmt.Println(info.Full())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
