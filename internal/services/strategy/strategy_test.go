package strategy

import (
	"testing"

	"PerpTradeBot/internal/models"
	"PerpTradeBot/internal/services/analysis"
	"PerpTradeBot/internal/services/indicators"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bullishSnapshot() *analysis.MarketSnapshot {
	return &analysis.MarketSnapshot{
		Symbol: "BTCUSDT",
		Price:  100,
		Indicators: &indicators.IndicatorSet{
			RSI:           55,
			MACD:          0.8,
			MACDSignal:    0.5,
			MACDHistogram: 0.3,
			EMAFast:       101,
			EMASlow:       99,
			ATR:           2,
			ADX:           30,
			PlusDI:        30,
			MinusDI:       10,
			BBUpper:       106,
			BBMiddle:      100,
			BBLower:       94,
			BBPercentB:    0.5,
			StochK:        60,
			VWAP:          100,
		},
		Volume:   analysis.VolumeData{VolumeRatio: 1.5},
		Momentum: analysis.PriceData{Signal: 1, Volatility: 0.005},
	}
}

func TestNew(t *testing.T) {
	for _, name := range Names() {
		s, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}

	s, err := New("promax")
	require.NoError(t, err)
	assert.Equal(t, StrategyProMax, s.Name())

	_, err = New("unknown")
	assert.Error(t, err)
}

func TestDefaultStrategyLong(t *testing.T) {
	cfg := DefaultConfig()
	d, err := NewStrategyManager().AnalyzeTrade(0.0004, bullishSnapshot(), 100, 50, cfg)
	require.NoError(t, err)
	require.NotNil(t, d)

	assert.Equal(t, models.TradeActionLong, d.Action)
	assert.Equal(t, 100.0, d.Entry)
	assert.Equal(t, []float64{102, 104, 106}, d.Targets)
	assert.Equal(t, []float64{97}, d.StopLosses)
	assert.Equal(t, 97.0, d.Stop)
	assert.Equal(t, 106.0, d.Target)
	assert.GreaterOrEqual(t, d.Confidence, cfg.MinConfidence)
}

func TestDefaultStrategyRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *analysis.MarketSnapshot)
		fee    float64
	}{
		{name: "rsi overbought", mutate: func(s *analysis.MarketSnapshot) { s.Indicators.RSI = 80 }},
		{name: "low volume", mutate: func(s *analysis.MarketSnapshot) { s.Volume.VolumeRatio = 0.2 }},
		{name: "no atr", mutate: func(s *analysis.MarketSnapshot) { s.Indicators.ATR = 0 }},
		{name: "fees exceed first target", mutate: func(s *analysis.MarketSnapshot) {}, fee: 0.02},
		{name: "missing indicators", mutate: func(s *analysis.MarketSnapshot) { s.Indicators = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := bullishSnapshot()
			tt.mutate(snap)
			d, err := NewStrategyManager().AnalyzeTrade(tt.fee, snap, 100, 50, DefaultConfig())
			require.NoError(t, err)
			assert.Nil(t, d)
		})
	}
}

func TestDefaultStrategyShort(t *testing.T) {
	snap := bullishSnapshot()
	snap.Indicators.RSI = 45
	snap.Indicators.EMAFast, snap.Indicators.EMASlow = 99, 101
	snap.Indicators.MACD, snap.Indicators.MACDSignal, snap.Indicators.MACDHistogram = -0.8, -0.5, -0.3
	snap.Momentum.Signal = -1

	d, err := NewStrategyManager().AnalyzeTrade(0.0004, snap, 100, 50, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, models.TradeActionShort, d.Action)
	assert.Equal(t, []float64{98, 96, 94}, d.Targets)
	assert.Equal(t, 103.0, d.Stop)
}

func TestProMaxMarketFilter(t *testing.T) {
	s := NewProMaxStrategy()

	d, err := s.AnalyzeTrade(0.0004, bullishSnapshot(), 100, 50, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, models.TradeActionLong, d.Action)
	assert.Equal(t, []float64{97, 95}, d.StopLosses)
	assert.InDelta(t, 0.6, d.Confidence, 1e-12)

	d, err = s.AnalyzeTrade(0.0004, bullishSnapshot(), 100, 75, DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, d, "stretched market should block longs")

	weak := bullishSnapshot()
	weak.Indicators.ADX = 10
	d, err = s.AnalyzeTrade(0.0004, weak, 100, 50, DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestLevelStrategyTargets(t *testing.T) {
	snap := bullishSnapshot()
	snap.Price = 93
	snap.Indicators.BBPercentB = 0
	snap.Indicators.StochK = 10
	snap.Indicators.VWAP = 98

	d, err := NewLevelStrategy().AnalyzeTrade(0.0004, snap, 100, 50, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, models.TradeActionLong, d.Action)
	assert.Equal(t, []float64{98, 100, 106}, d.Targets)
	assert.Equal(t, []float64{90, 88}, d.StopLosses)

	snap = bullishSnapshot()
	snap.Price = 107
	snap.Indicators.BBPercentB = 1
	snap.Indicators.StochK = 90
	d, err = NewLevelStrategy().AnalyzeTrade(0.0004, snap, 100, 50, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, models.TradeActionShort, d.Action)
	assert.Equal(t, []float64{100, 94}, d.Targets)
}

func TestOrderTargets(t *testing.T) {
	assert.Equal(t, []float64{101, 102}, orderTargets(100, true, 102, 99, 101, 102))
	assert.Equal(t, []float64{99, 97}, orderTargets(100, false, 97, 99, 103))
}
