package core

import "math"

// AssetInfo contains market information about a trading pair
type AssetInfo struct {
	BaseAsset          string
	QuoteAsset         string
	MinQuantity        float64
	MaxQuantity        float64
	StepSize           float64
	TickSize           float64
	QuotePrecision     int
	BaseAssetPrecision int
}

// NewAssetInfo creates a new AssetInfo instance with validation
func NewAssetInfo(baseAsset, quoteAsset string, minQuantity, maxQuantity, stepSize, tickSize float64,
	quotePrecision, baseAssetPrecision int) (AssetInfo, error) {

	assetInfo := AssetInfo{
		BaseAsset:          baseAsset,
		QuoteAsset:         quoteAsset,
		MinQuantity:        minQuantity,
		MaxQuantity:        maxQuantity,
		StepSize:           stepSize,
		TickSize:           tickSize,
		QuotePrecision:     quotePrecision,
		BaseAssetPrecision: baseAssetPrecision,
	}

	return assetInfo, assetInfo.validate()
}

// NormalizeQuantity clamps the quantity into the pair limits and rounds
// it to the nearest lot step
func (a AssetInfo) NormalizeQuantity(quantity float64) float64 {
	if a.MinQuantity > 0 {
		quantity = math.Max(quantity, a.MinQuantity)
	}

	if a.MaxQuantity > 0 {
		quantity = math.Min(quantity, a.MaxQuantity)
	}

	if a.StepSize > 0 {
		steps := math.Round(quantity / a.StepSize)
		quantity = steps * a.StepSize
	}

	return quantity
}

// RoundPrice rounds a price to the pair tick size. When no tick size is
// known it falls back to four decimal places.
func (a AssetInfo) RoundPrice(price float64) float64 {
	if a.TickSize <= 0 {
		return math.Round(price*1e4) / 1e4
	}

	ticks := math.Round(price / a.TickSize)
	return ticks * a.TickSize
}

// validate ensures that the AssetInfo has valid base and quote assets
func (a AssetInfo) validate() error {
	if len(a.BaseAsset) == 0 {
		return ErrBaseAssetEmpty
	}

	if len(a.QuoteAsset) == 0 {
		return ErrQuoteAssetEmpty
	}

	if a.MinQuantity < 0 || a.MaxQuantity < 0 || a.StepSize < 0 || a.TickSize < 0 {
		return ErrNegativeValue
	}

	return nil
}
