package market

import "time"

// Regime is the coarse market-state label attached to every analysis pass.
type Regime string

const (
	RegimeBullish  Regime = "bullish"
	RegimeBearish  Regime = "bearish"
	RegimeSideways Regime = "sideways"
	RegimeVolatile Regime = "volatile"
)

// RegimeSnapshot captures the market state observed during one cycle.
type RegimeSnapshot struct {
	Regime     Regime    `json:"regime"`
	Volatility float64   `json:"volatility"`
	Volume     float64   `json:"volume"`
	Timestamp  time.Time `json:"timestamp"`
}
