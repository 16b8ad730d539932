package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/examgen/internal/resilience"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or reset the persisted failure ledger",
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show failure counts and the circuit breaker decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ledger := resilience.NewLedger(resilience.WithPersistence(s.LedgerRepo()))
		ledger.Load(cmd.Context())

		bypass, _ := cmd.Flags().GetBool("bypass")
		d := resilience.NewBreaker(ledger, resilience.DefaultBreakerConfig(), func() bool { return bypass }).Evaluate()
		st := ledger.State()

		fmt.Printf("Breaker:      %s (allow=%v, preferFallback=%v)\n", d.Reason, d.Allow, d.PreferFallback)
		fmt.Printf("Generic:      %d active (raw %d, window from %s)\n",
			ledger.Count(resilience.KindGeneric), st.GenericCount, formatStamp(st.GenericWindowStart))
		fmt.Printf("Transport:    %d active (raw %d, window from %s)\n",
			ledger.Count(resilience.KindTransport), st.TransportCount, formatStamp(st.TransportWindowStart))
		fmt.Printf("Last issue:   %s\n", formatStamp(st.RecentIssueAt))
		return nil
	},
}

var ledgerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all recorded failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ledger := resilience.NewLedger(resilience.WithPersistence(s.LedgerRepo()))
		ledger.Load(cmd.Context())
		ledger.RecordSuccess()

		fmt.Println("Failure ledger cleared.")
		return nil
	},
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s (%s ago)", t.Local().Format("2006-01-02 15:04:05"), time.Since(t).Round(time.Second))
}

func init() {
	ledgerShowCmd.Flags().Bool("bypass", true, "Evaluate as if a bypass transport is available")

	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerResetCmd)
}
