package indicators

import "math"

// ATRService computes Wilder's Average True Range
type ATRService struct{}

func NewATRService() *ATRService {
	return &ATRService{}
}

// TrueRange returns the true range series; index 0 is high-low.
func (s *ATRService) TrueRange(highs, lows, closes []float64) []float64 {
	tr := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			tr[i] = highs[i] - lows[i]
			continue
		}
		tr[i] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}
	return tr
}

func (s *ATRService) Calculate(highs, lows, closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return nil
	}

	return wilderSmooth(s.TrueRange(highs, lows, closes), period)
}

// wilderSmooth seeds with the average of values[1..period] and then applies
// Wilder's recursive smoothing. Output before index period is zero.
func wilderSmooth(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period+1 {
		return out
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += values[i]
	}
	out[period] = sum / float64(period)

	for i := period + 1; i < len(values); i++ {
		out[i] = (out[i-1]*float64(period-1) + values[i]) / float64(period)
	}
	return out
}
