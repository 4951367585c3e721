package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coffeeshop/internal/domain"
	"coffeeshop/internal/khqr"
)

type encodeOutput struct {
	QRCode    string    `json:"qrCode"`
	MD5       string    `json:"md5"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	ExpiresAt time.Time `json:"expiresAt"`
	DeepLink  string    `json:"deepLink"`
}

func encodeCmd() *cobra.Command {
	var (
		amount   float64
		currency string
		bill     string
		ttl      time.Duration
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a dynamic KHQR payload for the configured merchant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			cur, ok := domain.ParseCurrency(currency)
			if !ok {
				return fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, currency)
			}
			if ttl <= 0 {
				ttl = cfg.Payment.QRTTL
			}

			encoder := khqr.NewEncoder(cfg.Bakong.Merchant(), khqr.WithTTL(ttl))
			payload, err := encoder.Encode(amount, cur, bill)
			if err != nil {
				return err
			}

			out := encodeOutput{
				QRCode:    payload.EncodedString,
				MD5:       payload.ContentHash,
				Amount:    payload.FormattedAmount(),
				Currency:  string(payload.Currency),
				ExpiresAt: payload.ExpiresAt,
				DeepLink:  khqr.DeepLink(payload.EncodedString),
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, out.QRCode)
			fmt.Fprintf(w, "  md5:      %s\n", out.MD5)
			fmt.Fprintf(w, "  amount:   %s %s\n", out.Amount, out.Currency)
			fmt.Fprintf(w, "  expires:  %s\n", out.ExpiresAt.Format(time.RFC3339))
			fmt.Fprintf(w, "  deeplink: %s\n", out.DeepLink)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&amount, "amount", "a", 0, "Amount to charge")
	cmd.Flags().StringVarP(&currency, "currency", "c", "USD", "Currency (USD, KHR)")
	cmd.Flags().StringVarP(&bill, "bill", "b", "", "Bill number (tag 62.01)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Validity window (default from KHQR_TTL)")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
