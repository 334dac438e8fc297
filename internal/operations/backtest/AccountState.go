package backtest

// AccountState is the running balance and statistics of one run. Fills move
// the balance; only full closes count towards wins, losses and drawdown.
type AccountState struct {
	InitialBalance       float64
	Balance              float64
	PeakBalance          float64
	MaxDrawdown          float64 // fraction of peak, never decreases
	TotalFees            float64
	Wins                 int
	Losses               int
	ConsecutiveLosses    int
	MaxConsecutiveLosses int
	Trades               []TradeRecord
	Equity               []EquityPoint
}

func NewAccountState(initialBalance float64) *AccountState {
	return &AccountState{
		InitialBalance: initialBalance,
		Balance:        initialBalance,
		PeakBalance:    initialBalance,
	}
}

// ApplyFill books a partial or full fill
func (a *AccountState) ApplyFill(rec TradeRecord) {
	a.Balance += rec.PnL
	a.TotalFees += rec.Fees
	a.Trades = append(a.Trades, rec)
	a.Equity = append(a.Equity, EquityPoint{Timestamp: rec.ExitTimestamp, Balance: a.Balance})
}

// CloseTrade updates the statistics once a position is fully closed. pnl is
// the net result of all of the position's fills.
func (a *AccountState) CloseTrade(pnl float64) {
	if pnl > 0 {
		a.Wins++
		a.ConsecutiveLosses = 0
	} else {
		a.Losses++
		a.ConsecutiveLosses++
		if a.ConsecutiveLosses > a.MaxConsecutiveLosses {
			a.MaxConsecutiveLosses = a.ConsecutiveLosses
		}
	}

	if a.Balance > a.PeakBalance {
		a.PeakBalance = a.Balance
	}
	if a.PeakBalance > 0 {
		if dd := (a.PeakBalance - a.Balance) / a.PeakBalance; dd > a.MaxDrawdown {
			a.MaxDrawdown = dd
		}
	}
}

// WinRate in percent over closed trades
func (a *AccountState) WinRate() float64 {
	closed := a.Wins + a.Losses
	if closed == 0 {
		return 0
	}
	return float64(a.Wins) / float64(closed) * 100
}
