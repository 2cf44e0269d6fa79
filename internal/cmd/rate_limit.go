package cmd

import "github.com/spf13/cobra"

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and reset persisted rate limit state",
	Long: `Inspect and reset rate limit state in the configured store.

Keys are "ip:<address>" and "phone:<E.164 number>". Only the libsql and redis
backends keep state outside a running server.`,
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
