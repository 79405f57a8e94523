package core

import "fmt"

// Leverage bounds accepted by the exchange
const (
	MinLeverage = 1
	MaxLeverage = 100
)

// ValidationError describes a rejected trading settings update,
// identifying the offending field
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TradingSettings holds the user-tunable trade parameters applied when a
// new listing triggers an order. Mutated only through a SettingsStore.
type TradingSettings struct {
	Quantity      float64 `json:"quantity"`
	StopLossPct   float64 `json:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct"`
	Leverage      int     `json:"leverage"`
}

// DefaultTradingSettings mirrors the exchange-side defaults used before
// the user tunes anything
func DefaultTradingSettings() TradingSettings {
	return TradingSettings{
		Quantity:      10.0,
		StopLossPct:   2.0,
		TakeProfitPct: 4.0,
		Leverage:      1,
	}
}

// Validate checks the settings invariants. It returns a *ValidationError
// naming the first field that fails.
func (s TradingSettings) Validate() error {
	if s.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}

	if s.StopLossPct < 0 || s.StopLossPct >= 100 {
		return &ValidationError{Field: "stop_loss_pct", Reason: "must be within [0, 100)"}
	}

	if s.TakeProfitPct < 0 || s.TakeProfitPct >= 100 {
		return &ValidationError{Field: "take_profit_pct", Reason: "must be within [0, 100)"}
	}

	if s.Leverage < MinLeverage || s.Leverage > MaxLeverage {
		return &ValidationError{
			Field:  "leverage",
			Reason: fmt.Sprintf("must be within [%d, %d]", MinLeverage, MaxLeverage),
		}
	}

	return nil
}

// StopLossPrice computes the stop-loss trigger price for a long entry
// at the given fill price
func (s TradingSettings) StopLossPrice(fillPrice float64) float64 {
	return fillPrice * (1 - s.StopLossPct/100)
}

// TakeProfitPrice computes the take-profit trigger price for a long entry
// at the given fill price
func (s TradingSettings) TakeProfitPrice(fillPrice float64) float64 {
	return fillPrice * (1 + s.TakeProfitPct/100)
}

// TradingPatch is a partial settings update, nil fields are left unchanged
type TradingPatch struct {
	Quantity      *float64
	StopLossPct   *float64
	TakeProfitPct *float64
	Leverage      *int
}

// Apply merges the patch over the receiver and returns the result.
// The receiver is not modified.
func (s TradingSettings) Apply(patch TradingPatch) TradingSettings {
	if patch.Quantity != nil {
		s.Quantity = *patch.Quantity
	}
	if patch.StopLossPct != nil {
		s.StopLossPct = *patch.StopLossPct
	}
	if patch.TakeProfitPct != nil {
		s.TakeProfitPct = *patch.TakeProfitPct
	}
	if patch.Leverage != nil {
		s.Leverage = *patch.Leverage
	}
	return s
}
