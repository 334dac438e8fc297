package backtest

import "math"

// LogicalTrade is every fill sharing one entry collapsed into one trade
type LogicalTrade struct {
	Symbol         string
	Action         string
	EntryPrice     float64
	ExitPrice      float64
	Units          float64
	PnL            float64
	Fees           float64
	Reason         string
	EntryTimestamp int64
	ExitTimestamp  int64
	Duration       int64 // ms from entry to the last fill
	Fills          int
}

type tradeKey struct {
	symbol string
	entry  int64
}

// RegroupTrades collapses records by (symbol, entry timestamp), keeping the
// order in which each group first appears.
func RegroupTrades(records []TradeRecord) []LogicalTrade {
	index := make(map[tradeKey]int)
	var trades []LogicalTrade

	for _, rec := range records {
		key := tradeKey{symbol: rec.Symbol, entry: rec.Timestamp}
		i, ok := index[key]
		if !ok {
			index[key] = len(trades)
			trades = append(trades, LogicalTrade{
				Symbol:         rec.Symbol,
				Action:         rec.Action,
				EntryPrice:     rec.EntryPrice,
				EntryTimestamp: rec.Timestamp,
			})
			i = len(trades) - 1
		}

		t := &trades[i]
		t.PnL += rec.PnL
		t.Fees += rec.Fees
		t.Units += rec.Units
		t.Fills++
		if rec.ExitTimestamp >= t.ExitTimestamp {
			t.ExitPrice = rec.ExitPrice
			t.ExitTimestamp = rec.ExitTimestamp
			t.Reason = rec.Reason
		}
		t.Duration = t.ExitTimestamp - t.EntryTimestamp
	}
	return trades
}

type MetricsAggregator struct {
	config SimulationConfig
}

func NewMetricsAggregator(config SimulationConfig) *MetricsAggregator {
	return &MetricsAggregator{config: config}
}

// Compute builds the final report. It returns nil when nothing was traded.
func (m *MetricsAggregator) Compute(account *AccountState) *Report {
	if account == nil || len(account.Trades) == 0 {
		return nil
	}

	trades := RegroupTrades(account.Trades)
	reference := m.config.ReferenceInvestment()

	var (
		winners, losers     int
		winSum, lossSum     float64
		totalPnL, totalFees float64
		duration            int64
		returns             = make([]float64, 0, len(trades))
	)
	for _, t := range trades {
		totalPnL += t.PnL
		totalFees += t.Fees
		duration += t.Duration
		if t.PnL > 0 {
			winners++
			winSum += t.PnL
		} else {
			losers++
			lossSum += math.Abs(t.PnL)
		}
		if reference > 0 {
			returns = append(returns, t.PnL/reference)
		}
	}

	perf := PerformanceReport{
		TotalTrades:     len(trades),
		WinningTrades:   winners,
		LosingTrades:    losers,
		WinRate:         float64(winners) / float64(len(trades)) * 100,
		SharpeRatio:     sharpeRatio(returns),
		AverageDuration: duration / int64(len(trades)),
	}
	if winners > 0 {
		perf.AverageWin = winSum / float64(winners)
	}
	if losers > 0 {
		perf.AverageLoss = lossSum / float64(losers)
	}
	if perf.AverageLoss > 0 {
		perf.ProfitFactor = perf.AverageWin / perf.AverageLoss
	}

	return &Report{
		Summary: SummaryReport{
			InitialBalance: account.InitialBalance,
			FinalBalance:   account.Balance,
			TotalReturn:    (account.Balance - account.InitialBalance) / account.InitialBalance * 100,
			TotalPnL:       totalPnL,
			TotalFees:      totalFees,
			Leverage:       m.config.Leverage,
		},
		Performance: perf,
		Risk: RiskReport{
			MaxDrawdown:          account.MaxDrawdown,
			MaxConsecutiveLosses: account.MaxConsecutiveLosses,
		},
		Trades: account.Trades,
	}
}

// sharpeRatio is mean over sample standard deviation, 0 when undefined
const zeroDeviation = 1e-12

func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := average(returns)
	sd := stdDev(returns, mean)
	// equal returns leave rounding noise in sd
	if sd <= zeroDeviation*math.Max(1, math.Abs(mean)) {
		return 0
	}
	return mean / sd
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
