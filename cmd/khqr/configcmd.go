package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the KHQR and Bakong configuration in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			b := cfg.Bakong
			w := cmd.OutOrStdout()

			fmt.Fprintln(w, "Merchant:")
			fmt.Fprintf(w, "  account:   %s\n", valueOrMissing(b.AccountID))
			fmt.Fprintf(w, "  name:      %s\n", valueOrMissing(b.MerchantName))
			fmt.Fprintf(w, "  city:      %s\n", valueOrMissing(b.MerchantCity))
			fmt.Fprintf(w, "  bank:      %s\n", valueOrMissing(b.AcquiringBank))

			fmt.Fprintln(w, "\nSwitch:")
			fmt.Fprintf(w, "  api url:   %s\n", valueOrMissing(b.APIURL))
			fmt.Fprintf(w, "  token:     %s\n", tokenStatus(b.Token))
			fmt.Fprintf(w, "  timeout:   %s\n", b.APITimeout)

			fmt.Fprintln(w, "\nSessions:")
			fmt.Fprintf(w, "  ttl:       %s\n", cfg.Payment.QRTTL)
			fmt.Fprintf(w, "  poll:      first after %s, then every %s\n", cfg.Payment.InitialPollDelay, cfg.Payment.PollInterval)
			fmt.Fprintf(w, "  currency:  %s\n", cfg.Payment.DefaultCurrency)

			missing := append(b.MissingMerchantFields(), b.MissingAPIFields()...)
			if len(missing) > 0 {
				fmt.Fprintf(w, "\nMissing: %s\n", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

func valueOrMissing(v string) string {
	if v == "" {
		return "(missing)"
	}
	return v
}

// tokenStatus never prints the credential itself.
func tokenStatus(token string) string {
	if token == "" {
		return "(missing)"
	}
	return fmt.Sprintf("configured (%d chars)", len(token))
}
