package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"coffeeshop/internal/bakong"
	"coffeeshop/internal/domain"
)

// errNotSettled makes the command exit non-zero when a payment is still open.
var errNotSettled = errors.New("payment not settled")

func verifyCmd() *cobra.Command {
	var (
		wait     time.Duration
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "verify [md5]",
		Short: "Ask the Bakong switch whether a payment has settled",
		Long: `Look up a KHQR payment by the md5 of its payload.

With --wait the lookup is repeated every --interval until the payment
settles or the wait elapses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := bakong.NewClient(cfg.Bakong)
			outcome, err := poll(ctx, client, strings.ToLower(strings.TrimSpace(args[0])), wait, interval)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if !outcome.Verified() {
				fmt.Fprintf(w, "%s: %s\n", outcome.Status, outcome.Message)
				return errNotSettled
			}

			fmt.Fprintf(w, "VERIFIED: %s\n", outcome.TransactionID)
			if outcome.Synthesized {
				fmt.Fprintln(w, "  note: the switch returned no reference; the id above was generated locally")
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&wait, "wait", "w", 0, "Keep polling for up to this long")
	cmd.Flags().DurationVarP(&interval, "interval", "i", 3*time.Second, "Delay between lookups when waiting")

	return cmd
}

// poll verifies once, then again every interval until settled, wait elapses or ctx is done.
func poll(ctx context.Context, v bakong.Lookup, contentHash string, wait, interval time.Duration) (domain.VerificationOutcome, error) {
	deadline := time.Now().Add(wait)
	if interval <= 0 {
		interval = 3 * time.Second
	}

	for {
		outcome, err := v.Verify(ctx, contentHash)
		if err != nil || outcome.Verified() || !time.Now().Add(interval).Before(deadline) {
			return outcome, err
		}

		select {
		case <-ctx.Done():
			return outcome, ctx.Err()
		case <-time.After(interval):
		}
	}
}
