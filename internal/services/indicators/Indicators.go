package indicators

import (
	"errors"
	"fmt"

	"PerpTradeBot/internal/models"
)

// Periods used by Compute
const (
	RSIPeriod        = 14
	RSISmoothPeriod  = 3
	MACDFast         = 12
	MACDSlow         = 26
	MACDSignal       = 9
	EMAFast          = 8
	EMASlow          = 21
	BBandsPeriod     = 20
	BBandsDeviations = 2.0
	ATRPeriod        = 14
	ADXPeriod        = 14
	StochK           = 14
	StochD           = 3
	VWAPDeviations   = 2.0

	// MinimumCandles is the shortest window Compute accepts.
	MinimumCandles = MACDSlow + MACDSignal - 1
)

var ErrInsufficientData = errors.New("insufficient candles for indicators")

// IndicatorSet holds the latest value of every indicator for one window
type IndicatorSet struct {
	RSI       float64   `json:"rsi"`
	RSISignal float64   `json:"rsiSignal"`
	RSIPoint  *RSIPoint `json:"-"`

	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macdSignal"`
	MACDHistogram float64 `json:"macdHistogram"`

	EMAFast  float64      `json:"emaFast"`
	EMASlow  float64      `json:"emaSlow"`
	EMACross *CrossSignal `json:"-"`

	BBUpper    float64 `json:"bbUpper"`
	BBMiddle   float64 `json:"bbMiddle"`
	BBLower    float64 `json:"bbLower"`
	BBWidth    float64 `json:"bbWidth"`
	BBPercentB float64 `json:"bbPercentB"`

	ATR     float64 `json:"atr"`
	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plusDI"`
	MinusDI float64 `json:"minusDI"`

	StochK float64 `json:"stochK"`
	StochD float64 `json:"stochD"`

	VWAP      float64 `json:"vwap"`
	VWAPUpper float64 `json:"vwapUpper"`
	VWAPLower float64 `json:"vwapLower"`
}

// Compute derives the indicator set from a trailing candle window. It is a
// pure function of the window; the last candle is the current one.
func Compute(window []models.Candle) (*IndicatorSet, error) {
	if len(window) < MinimumCandles {
		return nil, fmt.Errorf("%w: have %d", ErrInsufficientData, len(window))
	}

	n := len(window)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range window {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
		volumes[i] = c.Volume
	}
	last := n - 1
	set := &IndicatorSet{}

	if rsi := NewRSIService().Calculate(closes, RSIPeriod, RSISmoothPeriod); rsi != nil {
		set.RSI = rsi.RSI[last]
		set.RSISignal = rsi.Signal[last]
		set.RSIPoint = rsi.Latest()
	}

	if macd := NewMACDService().Calculate(closes, MACDFast, MACDSlow, MACDSignal); macd != nil {
		set.MACD = macd.MACD[last]
		set.MACDSignal = macd.Signal[last]
		set.MACDHistogram = macd.Histogram[last]
	}

	ema := NewEMAService()
	fast := ema.Calculate(closes, EMAFast)
	slow := ema.Calculate(closes, EMASlow)
	if fast != nil && slow != nil {
		set.EMAFast = fast[last]
		set.EMASlow = slow[last]
		set.EMACross = ema.CheckCrossover(fast, slow)
	}

	if bb := NewBBandsService().Calculate(closes, BBandsPeriod, BBandsDeviations); bb != nil {
		set.BBUpper = bb.Upper[last]
		set.BBMiddle = bb.Middle[last]
		set.BBLower = bb.Lower[last]
		set.BBWidth = bb.Width[last]
		set.BBPercentB = bb.PercentB[last]
	}

	if atr := NewATRService().Calculate(highs, lows, closes, ATRPeriod); atr != nil {
		set.ATR = atr[last]
	}

	if adx := NewADXService().Calculate(highs, lows, closes, ADXPeriod); adx != nil {
		set.ADX = adx.ADX[last]
		set.PlusDI = adx.PlusDI[last]
		set.MinusDI = adx.MinusDI[last]
	}

	if stoch := NewStochasticService().Calculate(highs, lows, closes, StochK, StochD); stoch != nil {
		set.StochK = stoch.K[last]
		set.StochD = stoch.D[last]
	}

	if vwap := NewVWAPService().Calculate(highs, lows, closes, volumes, VWAPDeviations); vwap != nil {
		set.VWAP = vwap.VWAP
		set.VWAPUpper = vwap.Upper
		set.VWAPLower = vwap.Lower
	}

	return set, nil
}
