package cmd

import (
	"github.com/spf13/cobra"

	"github.com/callgate/callgate/internal/core/phone"
	"github.com/callgate/callgate/internal/output"
)

var (
	phoneCheckOutput    string
	phoneCheckBlacklist bool
)

var phoneCmd = &cobra.Command{
	Use:   "phone",
	Short: "Phone number utilities",
}

var phoneCheckCmd = &cobra.Command{
	Use:   "check <number>",
	Short: "Validate a number the way the gate does",
	Long: `Validate a number with the gate's rules: E.164 after removing spaces and
hyphens, no single repeated digit, no ascending run like 12345.

With --blacklist the configured store is consulted as well.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(phoneCheckOutput)
		if err != nil {
			return err
		}

		check := output.PhoneCheck{Input: args[0]}
		number, verr := phone.Validate(args[0])
		if verr != nil {
			check.Reason = verr.Error()
		} else {
			check.Valid = true
			check.Normalized = number
		}

		if check.Valid && phoneCheckBlacklist {
			b, _, err := openAdminBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close() // nolint:errcheck // best-effort cleanup

			listed, err := b.blacklist.IsBlacklisted(cmd.Context(), number)
			if err != nil {
				return err
			}
			check.Blacklisted = &listed
		}

		return output.WritePhoneCheck(cmd.OutOrStdout(), format, check)
	},
}

func init() {
	phoneCheckCmd.Flags().StringVar(&phoneCheckOutput, "output-format", string(output.FormatTable), "Output format: table|markdown|json")
	phoneCheckCmd.Flags().BoolVar(&phoneCheckBlacklist, "blacklist", false, "Also look the number up in the store's blacklist")

	phoneCmd.AddCommand(phoneCheckCmd)
	rootCmd.AddCommand(phoneCmd)
}
