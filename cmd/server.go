package cmd

import (
	"acytel/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Acytel streaming server",
	Long:  `Start the Acytel HTTP server: secure-link issuance and the range-aware delivery proxy.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
