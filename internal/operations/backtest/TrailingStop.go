package backtest

import "PerpTradeBot/internal/models"

// TrailingStop returns the stop to use after price moved to currentPrice. It
// only trails while the position is in profit and never loosens: the result
// is currentStop unless the candidate is strictly more protective. A
// currentStop of 0 means no stop is set.
func TrailingStop(currentPrice, entryPrice float64, action string, distance, currentStop float64) float64 {
	if distance <= 0 || currentPrice <= 0 {
		return currentStop
	}
	if action == models.TradeActionLong {
		if currentPrice <= entryPrice {
			return currentStop
		}
		candidate := currentPrice * (1 - distance)
		if currentStop == 0 || candidate > currentStop {
			return candidate
		}
		return currentStop
	}

	if currentPrice >= entryPrice {
		return currentStop
	}
	candidate := currentPrice * (1 + distance)
	if currentStop == 0 || candidate < currentStop {
		return candidate
	}
	return currentStop
}

// trailStops moves the trailing stop of pos after price. The decision stops
// are left alone so disabling stop losses keeps them out of play.
func trailStops(pos *Position, price, distance float64) {
	pos.TrailingStop = TrailingStop(price, pos.EntryPrice, pos.Action, distance, pos.TrailingStop)
}
