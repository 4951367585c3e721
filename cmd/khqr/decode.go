package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coffeeshop/internal/khqr"
)

func decodeCmd() *cobra.Command {
	var showFields bool

	cmd := &cobra.Command{
		Use:   "decode [payload]",
		Short: "Decode a KHQR payload and check its checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := strings.TrimSpace(args[0])
			d, err := khqr.Decode(payload)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "md5:       %s\n", khqr.ContentHash(payload))
			fmt.Fprintf(w, "dynamic:   %t\n", d.Dynamic())
			fmt.Fprintf(w, "account:   %s\n", d.AccountID)
			if d.AcquiringBank != "" {
				fmt.Fprintf(w, "bank:      %s\n", d.AcquiringBank)
			}
			fmt.Fprintf(w, "merchant:  %s, %s\n", d.MerchantName, d.MerchantCity)
			if !d.Amount.IsZero() {
				fmt.Fprintf(w, "amount:    %s %s\n", d.Amount.StringFixed(d.Currency.MinorUnits()), d.Currency)
			}
			if d.BillNumber != "" {
				fmt.Fprintf(w, "bill:      %s\n", d.BillNumber)
			}
			if !d.ExpiresAt.IsZero() {
				state := "valid"
				if d.Expired(time.Now()) {
					state = "expired"
				}
				fmt.Fprintf(w, "expires:   %s (%s)\n", d.ExpiresAt.Format(time.RFC3339), state)
			}
			fmt.Fprintf(w, "crc:       %s\n", d.CRC)

			if showFields {
				fmt.Fprintln(w, "\nfields:")
				for _, f := range d.Fields {
					fmt.Fprintf(w, "  %s  %s\n", f.Tag, f.Value)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showFields, "fields", "f", false, "List raw top-level fields")

	return cmd
}
