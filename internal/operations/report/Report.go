package report

import (
	"fmt"
	"io"
	"os"

	"PerpTradeBot/internal/operations/backtest"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Places is the precision reports are rounded to
const Places = 8

// Document is the file written for one run
type Document struct {
	RunID       string                  `json:"runId"`
	Strategy    string                  `json:"strategy"`
	Mode        backtest.SimulationMode `json:"mode"`
	Symbols     []string                `json:"symbols"`
	Report      *backtest.Report        `json:"report"`
	EquityCurve []backtest.EquityPoint  `json:"equityCurve,omitempty"`
}

// RoundAmount rounds v to Places decimals
func RoundAmount(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(Places).Float64()
	return f
}

// Round returns a copy of r with every money and ratio field rounded. A nil
// report stays nil.
func Round(r *backtest.Report) *backtest.Report {
	if r == nil {
		return nil
	}
	out := *r

	out.Summary.InitialBalance = RoundAmount(r.Summary.InitialBalance)
	out.Summary.FinalBalance = RoundAmount(r.Summary.FinalBalance)
	out.Summary.TotalReturn = RoundAmount(r.Summary.TotalReturn)
	out.Summary.TotalPnL = RoundAmount(r.Summary.TotalPnL)
	out.Summary.TotalFees = RoundAmount(r.Summary.TotalFees)

	out.Performance.WinRate = RoundAmount(r.Performance.WinRate)
	out.Performance.AverageWin = RoundAmount(r.Performance.AverageWin)
	out.Performance.AverageLoss = RoundAmount(r.Performance.AverageLoss)
	out.Performance.ProfitFactor = RoundAmount(r.Performance.ProfitFactor)
	out.Performance.SharpeRatio = RoundAmount(r.Performance.SharpeRatio)

	out.Risk.MaxDrawdown = RoundAmount(r.Risk.MaxDrawdown)

	out.Trades = make([]backtest.TradeRecord, len(r.Trades))
	for i, t := range r.Trades {
		t.EntryPrice = RoundAmount(t.EntryPrice)
		t.ExitPrice = RoundAmount(t.ExitPrice)
		t.Units = RoundAmount(t.Units)
		t.PnL = RoundAmount(t.PnL)
		t.Fees = RoundAmount(t.Fees)
		out.Trades[i] = t
	}
	return &out
}

// NewDocument rounds the run's report into a writable document
func NewDocument(runID string, symbols []string, results *backtest.BacktestResults) Document {
	return Document{
		RunID:       runID,
		Strategy:    results.Strategy,
		Mode:        results.Mode,
		Symbols:     symbols,
		Report:      Round(results.Report),
		EquityCurve: results.EquityCurve,
	}
}

// WriteJSON encodes doc as indented JSON
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteFile writes doc to path
func WriteFile(path string, doc Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := WriteJSON(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// PrintSummary writes the human readable summary of one run
func PrintSummary(w io.Writer, runID string, results *backtest.BacktestResults) {
	fmt.Fprintf(w, "\n=== Backtest Results %s ===\n", runID)
	fmt.Fprintf(w, "Strategy: %s (%s, %d ticks)\n", results.Strategy, results.Mode, results.Ticks)

	r := results.Report
	if r == nil {
		fmt.Fprintf(w, "No trades. Balance: $%.2f\n", results.FinalBalance)
		return
	}

	fmt.Fprintf(w, "Total Trades: %d\n", r.Performance.TotalTrades)
	fmt.Fprintf(w, "Winning Trades: %d (%.2f%%)\n", r.Performance.WinningTrades, r.Performance.WinRate)
	fmt.Fprintf(w, "Average Win/Loss: $%.2f / $%.2f\n", r.Performance.AverageWin, r.Performance.AverageLoss)
	fmt.Fprintf(w, "Profit Factor: %.2f\n", r.Performance.ProfitFactor)
	fmt.Fprintf(w, "Sharpe Ratio: %.2f\n", r.Performance.SharpeRatio)
	fmt.Fprintf(w, "Max Drawdown: %.2f%%\n", r.Risk.MaxDrawdown*100)
	fmt.Fprintf(w, "Max Consecutive Losses: %d\n", r.Risk.MaxConsecutiveLosses)
	fmt.Fprintf(w, "Fees Paid: $%.2f\n", r.Summary.TotalFees)
	fmt.Fprintf(w, "Final Balance: $%.2f (%+.2f%%, %dx)\n", r.Summary.FinalBalance, r.Summary.TotalReturn, r.Summary.Leverage)
}
