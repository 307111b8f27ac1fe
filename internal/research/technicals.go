package research

import (
	"github.com/markcheno/go-talib"

	"alpha_portfolios/internal/models"
)

const minTechnicalBars = 50

// ComputeTechnicals derives RSI(14), SMA(20) and SMA(50) from daily closes.
func ComputeTechnicals(points []models.PricePoint) models.Technicals {
	if len(points) < minTechnicalBars {
		return models.Technicals{}
	}
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}
	last := len(closes) - 1
	return models.Technicals{
		Available: true,
		RSI14:     talib.Rsi(closes, 14)[last],
		SMA20:     talib.Sma(closes, 20)[last],
		SMA50:     talib.Sma(closes, 50)[last],
		LastClose: closes[last],
	}
}
