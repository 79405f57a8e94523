package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raykavin/launchwatch/core"
	"github.com/raykavin/launchwatch/exchange"
)

// instrumentsResult mirrors the /v5/market/instruments-info response
type instrumentsResult struct {
	List []struct {
		Symbol        string `json:"symbol"`
		BaseCoin      string `json:"baseCoin"`
		QuoteCoin     string `json:"quoteCoin"`
		LotSizeFilter struct {
			MinOrderQty string `json:"minOrderQty"`
			MaxOrderQty string `json:"maxOrderQty"`
			QtyStep     string `json:"qtyStep"`
		} `json:"lotSizeFilter"`
		PriceFilter struct {
			TickSize string `json:"tickSize"`
		} `json:"priceFilter"`
	} `json:"list"`
}

// tickersResult mirrors the /v5/market/tickers response
type tickersResult struct {
	List []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"list"`
}

// AssetsInfo returns the lot size rules for a trading pair. Results are
// cached for the process lifetime, instrument rules rarely change.
func (e *Exchange) AssetsInfo(ctx context.Context, pair string) (core.AssetInfo, error) {
	e.mu.Lock()
	if info, ok := e.assetsInfo[pair]; ok {
		e.mu.Unlock()
		return info, nil
	}
	e.mu.Unlock()

	raw, err := e.doRequest(ctx, http.MethodGet, "/v5/market/instruments-info", map[string]string{
		"category": categoryLinear,
		"symbol":   pair,
	}, false)
	if err != nil {
		return core.AssetInfo{}, fmt.Errorf("failed to fetch instrument info for %s: %w", pair, err)
	}

	var result instrumentsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return core.AssetInfo{}, fmt.Errorf("failed to decode instrument info for %s: %w", pair, err)
	}

	if len(result.List) == 0 {
		return core.AssetInfo{}, fmt.Errorf("%w: no instrument info for pair %s", exchange.ErrInvalidAsset, pair)
	}

	instrument := result.List[0]
	info, err := core.NewAssetInfo(
		instrument.BaseCoin,
		instrument.QuoteCoin,
		parseFloat(instrument.LotSizeFilter.MinOrderQty),
		parseFloat(instrument.LotSizeFilter.MaxOrderQty),
		parseFloat(instrument.LotSizeFilter.QtyStep),
		parseFloat(instrument.PriceFilter.TickSize),
		0, 0,
	)
	if err != nil {
		return core.AssetInfo{}, err
	}

	e.mu.Lock()
	e.assetsInfo[pair] = info
	e.mu.Unlock()

	return info, nil
}

// LastQuote returns the most recent traded price for a pair
func (e *Exchange) LastQuote(ctx context.Context, pair string) (float64, error) {
	raw, err := e.doRequest(ctx, http.MethodGet, "/v5/market/tickers", map[string]string{
		"category": categoryLinear,
		"symbol":   pair,
	}, false)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch ticker for %s: %w", pair, err)
	}

	var result tickersResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("failed to decode ticker for %s: %w", pair, err)
	}

	if len(result.List) == 0 {
		return 0, fmt.Errorf("no ticker for pair %s", pair)
	}

	return parseFloat(result.List[0].LastPrice), nil
}
