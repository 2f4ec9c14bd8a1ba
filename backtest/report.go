package backtest

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// PrintReport writes a human-readable summary of r.
func PrintReport(w io.Writer, r Result) {
	m := r.Metrics

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", m.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", m.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", m.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", m.WinRate*100)
	fmt.Fprintf(w, "Avg Win:       %.4f\n", m.AvgWin)
	fmt.Fprintf(w, "Avg Loss:      %.4f\n", m.AvgLoss)
	fmt.Fprintf(w, "Rejections:    %d\n", len(r.Rejections))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Balance: %.4f\n", m.InitialCapital)
	fmt.Fprintf(w, "End Balance:   %.4f\n", m.FinalBalance)
	fmt.Fprintf(w, "Net P/L:       %.4f\n", m.TotalPnL)
	fmt.Fprintf(w, "Return:        %.2f%%\n", m.ReturnPct)

	if m.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", m.ProfitFactor)
	}
	if m.MaxDrawdownPct > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", m.MaxDrawdownPct)
	}
	if n := r.Summary.OpenCount; n > 0 {
		fmt.Fprintf(w, "Still Open:    %d (unrealized %.4f)\n", n, r.Summary.TotalUnrealizedPnL)
	}

	if len(r.Trades) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Trades")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, t := range r.Trades {
			fmt.Fprintf(w, "%s  %-10s %-5s qty=%.8f  %.4f -> %.4f  pnl=%+.4f  %s\n",
				t.ClosedAt.Format(time.RFC3339), t.Symbol, t.Side, t.Quantity,
				t.EntryPrice, t.ExitPrice, t.RealizedPnL, t.Reason)
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "- %v\n", err)
		}
	}

	fmt.Fprintln(w)
}

// WriteJSON writes the trades and metrics of r as indented JSON.
func WriteJSON(w io.Writer, r Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Trades  any     `json:"trades"`
		Metrics Metrics `json:"metrics"`
	}{r.Trades, r.Metrics})
}
