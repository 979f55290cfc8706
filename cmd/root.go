package cmd

import (
	"fmt"
	"os"

	"acytel/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "acytel",
	Short: "Acytel is a personal music library and streaming service.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
