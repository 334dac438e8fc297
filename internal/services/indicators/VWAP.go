package indicators

import "math"

// VWAPService computes a volume weighted average price over a window with
// standard deviation bands
type VWAPService struct{}

type VWAPResult struct {
	VWAP  float64
	Upper float64
	Lower float64
}

func NewVWAPService() *VWAPService {
	return &VWAPService{}
}

// Calculate uses the typical price (h+l+c)/3. Returns nil when the window
// carries no volume.
func (s *VWAPService) Calculate(highs, lows, closes, volumes []float64, deviations float64) *VWAPResult {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n || len(volumes) != n {
		return nil
	}

	var pv, vol float64
	typical := make([]float64, n)
	for i := range closes {
		typical[i] = (highs[i] + lows[i] + closes[i]) / 3
		pv += typical[i] * volumes[i]
		vol += volumes[i]
	}
	if vol == 0 {
		return nil
	}
	vwap := pv / vol

	variance := 0.0
	for i := range typical {
		diff := typical[i] - vwap
		variance += volumes[i] * diff * diff
	}
	stdDev := math.Sqrt(variance / vol)

	return &VWAPResult{
		VWAP:  vwap,
		Upper: vwap + deviations*stdDev,
		Lower: vwap - deviations*stdDev,
	}
}
