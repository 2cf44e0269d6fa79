package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/callgate/callgate/internal/core"
	"github.com/callgate/callgate/internal/core/phone"
	"github.com/callgate/callgate/internal/output"
)

var (
	blacklistOutput string
	blacklistReason string
	blacklistSource string
)

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage blacklisted phone numbers",
	Long: `Manage the phone blacklist in the configured store.

Blacklisted numbers are rejected before rate limiting. Numbers are added
automatically when their rejection count passes rate_limit.blacklist_threshold.`,
}

var blacklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blacklisted numbers",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(blacklistOutput)
		if err != nil {
			return err
		}

		b, _, err := openAdminBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close() // nolint:errcheck // best-effort cleanup

		entries, err := b.blacklist.List(cmd.Context())
		if err != nil {
			return err
		}
		if source := strings.TrimSpace(blacklistSource); source != "" {
			filtered := entries[:0]
			for _, entry := range entries {
				if entry.Source == source {
					filtered = append(filtered, entry)
				}
			}
			entries = filtered
		}
		return output.WriteBlacklist(cmd.OutOrStdout(), format, entries)
	},
}

var blacklistAddCmd = &cobra.Command{
	Use:   "add <number>...",
	Short: "Blacklist phone numbers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		numbers, err := normalizeNumbers(args)
		if err != nil {
			return err
		}

		b, _, err := openAdminBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close() // nolint:errcheck // best-effort cleanup

		now := time.Now().UTC()
		for _, number := range numbers {
			added, err := b.blacklist.Add(cmd.Context(), core.BlacklistEntry{
				Phone:   number,
				Reason:  strings.TrimSpace(blacklistReason),
				Source:  core.BlacklistSourceManual,
				AddedAt: now,
			})
			if err != nil {
				return err
			}
			if added {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", number)
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s already blacklisted\n", number)
			}
		}
		return nil
	},
}

var blacklistRemoveCmd = &cobra.Command{
	Use:     "remove <number>...",
	Aliases: []string{"rm"},
	Short:   "Remove phone numbers from the blacklist",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		numbers, err := normalizeNumbers(args)
		if err != nil {
			return err
		}

		b, _, err := openAdminBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close() // nolint:errcheck // best-effort cleanup

		for _, number := range numbers {
			removed, err := b.blacklist.Remove(cmd.Context(), number)
			if err != nil {
				return err
			}
			if removed {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", number)
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s was not blacklisted\n", number)
			}
		}
		return nil
	},
}

// normalizeNumbers cleans each argument and requires E.164. Pattern rules are
// not applied: an operator may list any well-formed number.
func normalizeNumbers(args []string) ([]string, error) {
	numbers := make([]string, 0, len(args))
	for _, raw := range args {
		number := phone.Clean(raw)
		if !phone.IsE164Format(number) {
			return nil, fmt.Errorf("%q: %w", raw, phone.ErrFormat)
		}
		numbers = append(numbers, number)
	}
	return numbers, nil
}

func init() {
	blacklistListCmd.Flags().StringVar(&blacklistOutput, "output-format", string(output.FormatTable), "Output format: table|markdown|json")
	blacklistListCmd.Flags().StringVar(&blacklistSource, "source", "", "Only show entries from this source (auto|config|manual)")
	blacklistAddCmd.Flags().StringVar(&blacklistReason, "reason", "", "Reason recorded with the entry")

	blacklistCmd.AddCommand(blacklistListCmd)
	blacklistCmd.AddCommand(blacklistAddCmd)
	blacklistCmd.AddCommand(blacklistRemoveCmd)
	rootCmd.AddCommand(blacklistCmd)
}
