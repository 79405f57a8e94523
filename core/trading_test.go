package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradingSettings_Validate(t *testing.T) {
	settings := DefaultTradingSettings()
	require.NoError(t, settings.Validate())

	tt := []struct {
		name  string
		mod   func(*TradingSettings)
		field string
	}{
		{"negative quantity", func(s *TradingSettings) { s.Quantity = -5 }, "quantity"},
		{"zero quantity", func(s *TradingSettings) { s.Quantity = 0 }, "quantity"},
		{"stop loss too high", func(s *TradingSettings) { s.StopLossPct = 100 }, "stop_loss_pct"},
		{"negative stop loss", func(s *TradingSettings) { s.StopLossPct = -1 }, "stop_loss_pct"},
		{"take profit too high", func(s *TradingSettings) { s.TakeProfitPct = 150 }, "take_profit_pct"},
		{"leverage below minimum", func(s *TradingSettings) { s.Leverage = 0 }, "leverage"},
		{"leverage above maximum", func(s *TradingSettings) { s.Leverage = 101 }, "leverage"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultTradingSettings()
			tc.mod(&s)

			err := s.Validate()
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
		})
	}
}

func TestTradingSettings_Prices(t *testing.T) {
	settings := TradingSettings{StopLossPct: 2.0, TakeProfitPct: 4.0}

	assert.InDelta(t, 98.0, settings.StopLossPrice(100), 1e-9)
	assert.InDelta(t, 104.0, settings.TakeProfitPrice(100), 1e-9)
}

func TestTradingSettings_Apply(t *testing.T) {
	settings := DefaultTradingSettings()

	quantity := 25.0
	leverage := 5
	patched := settings.Apply(TradingPatch{Quantity: &quantity, Leverage: &leverage})

	assert.Equal(t, 25.0, patched.Quantity)
	assert.Equal(t, 5, patched.Leverage)
	assert.Equal(t, settings.StopLossPct, patched.StopLossPct)
	assert.Equal(t, settings.TakeProfitPct, patched.TakeProfitPct)

	// receiver untouched
	assert.Equal(t, DefaultTradingSettings(), settings)
}
