package indicators

import "math"

// ADXService computes the Average Directional Index with +DI/-DI
type ADXService struct {
	atr *ATRService
}

type ADXResult struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

func NewADXService() *ADXService {
	return &ADXService{atr: NewATRService()}
}

func (s *ADXService) Calculate(highs, lows, closes []float64, period int) *ADXResult {
	n := len(closes)
	if period <= 0 || n < 2*period+1 || len(highs) != n || len(lows) != n {
		return nil
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	tr := wilderSmooth(s.atr.TrueRange(highs, lows, closes), period)
	plus := wilderSmooth(plusDM, period)
	minus := wilderSmooth(minusDM, period)

	plusDI := make([]float64, n)
	minusDI := make([]float64, n)
	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if tr[i] == 0 {
			continue
		}
		plusDI[i] = 100 * plus[i] / tr[i]
		minusDI[i] = 100 * minus[i] / tr[i]
		if sum := plusDI[i] + minusDI[i]; sum != 0 {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
		}
	}

	// ADX is the Wilder average of DX, seeded over the first period DX values.
	adx := make([]float64, n)
	start := 2*period - 1
	sum := 0.0
	for i := period; i <= start; i++ {
		sum += dx[i]
	}
	adx[start] = sum / float64(period)
	for i := start + 1; i < n; i++ {
		adx[i] = (adx[i-1]*float64(period-1) + dx[i]) / float64(period)
	}

	return &ADXResult{
		ADX:     adx,
		PlusDI:  plusDI,
		MinusDI: minusDI,
	}
}
