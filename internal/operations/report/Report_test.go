package report

import (
	"bytes"
	"strings"
	"testing"

	"PerpTradeBot/internal/operations/backtest"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() *backtest.BacktestResults {
	trades := []backtest.TradeRecord{{
		Symbol:      "BTCUSDT",
		Action:      "long",
		EntryPrice:  100.123456789123,
		ExitPrice:   105,
		Units:       0.333333333333333,
		PnL:         1.123456789987,
		Fees:        0.0411111111111,
		Reason:      backtest.ReasonTarget,
		IsPartial:   true,
		TargetIndex: 0,
	}}
	return &backtest.BacktestResults{
		Mode:         backtest.ModeStandard,
		Strategy:     "LEVEL",
		Ticks:        36,
		FinalBalance: 1001.123456789987,
		Trades:       trades,
		Report: &backtest.Report{
			Summary:     backtest.SummaryReport{InitialBalance: 1000, FinalBalance: 1001.123456789987, TotalReturn: 0.1123456789987, Leverage: 2},
			Performance: backtest.PerformanceReport{TotalTrades: 1, WinningTrades: 1, WinRate: 100, AverageWin: 1.123456789987},
			Trades:      trades,
		},
	}
}

func TestRound(t *testing.T) {
	results := sampleResults()
	rounded := Round(results.Report)

	assert.Equal(t, 1001.12345679, rounded.Summary.FinalBalance)
	assert.Equal(t, 0.11234568, rounded.Summary.TotalReturn)
	assert.Equal(t, 100.12345679, rounded.Trades[0].EntryPrice)
	assert.Equal(t, 0.33333333, rounded.Trades[0].Units)

	// the original is untouched
	assert.Equal(t, 100.123456789123, results.Report.Trades[0].EntryPrice)
	assert.Nil(t, Round(nil))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	doc := NewDocument("run-1", []string{"BTCUSDT"}, sampleResults())
	require.NoError(t, WriteJSON(&buf, doc))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["runId"])

	report := decoded["report"].(map[string]any)
	summary := report["summary"].(map[string]any)
	assert.Equal(t, 2.0, summary["leverage"])
	trades := report["trades"].([]any)
	assert.Equal(t, 0.0, trades[0].(map[string]any)["targetIndex"])
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, "run-1", sampleResults())
	out := buf.String()
	assert.Contains(t, out, "Total Trades: 1")
	assert.Contains(t, out, "Winning Trades: 1 (100.00%)")
	assert.Contains(t, out, "2x")

	buf.Reset()
	empty := sampleResults()
	empty.Report = nil
	PrintSummary(&buf, "run-2", empty)
	assert.True(t, strings.Contains(buf.String(), "No trades"))
}
