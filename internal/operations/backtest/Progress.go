package backtest

// Progress is a point-in-time view of a running backtest
type Progress struct {
	Tick          int
	TotalTicks    int
	Timestamp     int64
	Balance       float64
	OpenPositions int
	UnrealizedPnL float64 // gross, over the remaining units of open positions
	MarginInUse   float64
	Trades        int
	MaxDrawdown   float64
	WinRate       float64
}

// ProgressReporter receives progress every ProgressInterval ticks. It must
// not block; reporting has no effect on the simulation.
type ProgressReporter interface {
	ReportProgress(p Progress)
}

type ProgressFunc func(p Progress)

func (f ProgressFunc) ReportProgress(p Progress) {
	f(p)
}

type noopProgress struct{}

func (noopProgress) ReportProgress(Progress) {}
