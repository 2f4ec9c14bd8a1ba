package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/portfolio"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display trade journal records from the SQL journal.

Subcommands:
  trades - List every closed trade
  trade  - Get details of a specific trade by ID
  today  - Summarize trades closed today
  day    - Summarize trades closed on a specific day

Examples:
  trader journal trades
  trader journal trade 01JNC8Q4S1N0W3J5YQ8F4C7B2H
  trader journal day 2025-03-01`,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List every closed trade",
	Args:  cobra.NoArgs,
	RunE:  runJournalTrades,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Summarize trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "Summarize trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalDSN string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDSN, "db", "d", "", "journal DSN (defaults to journal.dsn)")
}

// openStore opens the SQL journal and the configured day-boundary timezone.
func openStore() (*journal.Store, *time.Location, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Risk.Location()
	if err != nil {
		return nil, nil, err
	}
	dsn := journalDSN
	if dsn == "" {
		dsn = cfg.Journal.DSN
	}
	s, err := journal.Open(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	return s, loc, nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	s, _, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	trades, err := s.ListTrades(context.Background())
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	printTrades(cmd.OutOrStdout(), trades)
	return nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	s, _, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	t, err := s.GetTrade(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Trade:    %s\n", t.ID)
	fmt.Fprintf(out, "Symbol:   %s\n", t.Symbol)
	fmt.Fprintf(out, "Side:     %s\n", t.Side)
	fmt.Fprintf(out, "Quantity: %.8f\n", t.Quantity)
	fmt.Fprintf(out, "Entry:    %.8f @ %s\n", t.EntryPrice, t.OpenedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Exit:     %.8f @ %s\n", t.ExitPrice, t.ClosedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "P/L:      %+.8f\n", t.RealizedPnL)
	fmt.Fprintf(out, "Reason:   %s\n", t.Reason)
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	s, loc, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	return printDay(cmd.OutOrStdout(), s, time.Now(), loc)
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	s, loc, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	day, err := time.ParseInLocation("2006-01-02", args[0], loc)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	return printDay(cmd.OutOrStdout(), s, day, loc)
}

func printDay(out io.Writer, s *journal.Store, day time.Time, loc *time.Location) error {
	r, err := s.Day(context.Background(), day, loc)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Fprintf(out, "%s (%s)\n", r.Day.Format("2006-01-02"), loc)
	fmt.Fprintf(out, "Trades: %d  Wins: %d  Losses: %d  P/L: %+.4f", len(r.Trades), r.Wins, r.Losses, r.RealizedPnL)
	if r.ProfitFactor > 0 {
		fmt.Fprintf(out, "  Profit Factor: %.2f", r.ProfitFactor)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out)
	printTrades(out, r.Trades)
	return nil
}

func printTrades(w io.Writer, trades []portfolio.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(w, "no trades")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLOSED\tID\tSYMBOL\tSIDE\tQTY\tENTRY\tEXIT\tP/L\tREASON")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.8f\t%.4f\t%.4f\t%+.4f\t%s\n",
			t.ClosedAt.Format(time.RFC3339), t.ID, t.Symbol, t.Side,
			t.Quantity, t.EntryPrice, t.ExitPrice, t.RealizedPnL, t.Reason)
	}
	tw.Flush()
}
