package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/raykavin/launchwatch/core"
	"github.com/raykavin/launchwatch/exchange"
)

// walletBalanceResult mirrors the /v5/account/wallet-balance response
type walletBalanceResult struct {
	List []struct {
		AccountType string `json:"accountType"`
		Coin        []struct {
			Coin          string `json:"coin"`
			WalletBalance string `json:"walletBalance"`
			Locked        string `json:"locked"`
		} `json:"coin"`
	} `json:"list"`
}

// orderCreateResult mirrors the /v5/order/create response
type orderCreateResult struct {
	OrderID string `json:"orderId"`
}

// orderListResult mirrors the /v5/order/realtime response
type orderListResult struct {
	List []struct {
		OrderID     string `json:"orderId"`
		Symbol      string `json:"symbol"`
		Side        string `json:"side"`
		OrderType   string `json:"orderType"`
		OrderStatus string `json:"orderStatus"`
		AvgPrice    string `json:"avgPrice"`
		Price       string `json:"price"`
		Qty         string `json:"qty"`
		CumExecQty  string `json:"cumExecQty"`
		StopLoss    string `json:"stopLoss"`
		TakeProfit  string `json:"takeProfit"`
	} `json:"list"`
}

// Account retrieves the unified account balances
func (e *Exchange) Account(ctx context.Context) (core.Account, error) {
	raw, err := e.doRequest(ctx, http.MethodGet, "/v5/account/wallet-balance", map[string]string{
		"accountType": "UNIFIED",
	}, true)
	if err != nil {
		return core.Account{}, fmt.Errorf("failed to fetch wallet balance: %w", err)
	}

	var result walletBalanceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return core.Account{}, fmt.Errorf("failed to decode wallet balance: %w", err)
	}

	if len(result.List) == 0 {
		return core.Account{}, fmt.Errorf("empty wallet balance response")
	}

	balances := make([]core.Balance, 0, len(result.List[0].Coin))
	for _, coin := range result.List[0].Coin {
		locked := parseFloat(coin.Locked)
		balances = append(balances, core.Balance{
			Asset: coin.Coin,
			Free:  parseFloat(coin.WalletBalance) - locked,
			Lock:  locked,
		})
	}

	return core.NewAccount(balances)
}

// SetLeverage applies the leverage multiplier to a pair. Bybit answers
// with a dedicated code when the leverage already matches; that is not
// an error.
func (e *Exchange) SetLeverage(ctx context.Context, pair string, leverage int) error {
	value := strconv.Itoa(leverage)
	_, err := e.doRequest(ctx, http.MethodPost, "/v5/position/set-leverage", map[string]string{
		"category":     categoryLinear,
		"symbol":       pair,
		"buyLeverage":  value,
		"sellLeverage": value,
	}, true)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeLeverageNotModified {
		return nil
	}

	return err
}

// CreateOrderMarket places a market order, optionally with attached
// stop-loss and take-profit trigger prices
func (e *Exchange) CreateOrderMarket(ctx context.Context, side core.SideType, pair string, quantity float64, stop, take *float64) (core.Order, error) {
	info, err := e.AssetsInfo(ctx, pair)
	if err != nil {
		return core.Order{}, &exchange.OrderError{Err: err, Pair: pair, Quantity: quantity}
	}

	quantity = info.NormalizeQuantity(quantity)
	if quantity <= 0 {
		return core.Order{}, &exchange.OrderError{Err: exchange.ErrInvalidQuantity, Pair: pair, Quantity: quantity}
	}

	e.log.Infof("placing MARKET %s order for %s, quantity %f", side, pair, quantity)

	params := map[string]string{
		"category":    categoryLinear,
		"symbol":      pair,
		"side":        sideToBybit(side),
		"orderType":   "Market",
		"qty":         formatQuantity(info, quantity),
		"timeInForce": "GTC",
		"positionIdx": "0",
	}

	if stop != nil {
		params["stopLoss"] = formatPrice(info, *stop)
	}
	if take != nil {
		params["takeProfit"] = formatPrice(info, *take)
	}

	raw, err := e.doRequest(ctx, http.MethodPost, "/v5/order/create", params, true)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeInsufficientBalance {
			err = fmt.Errorf("%w: %w", exchange.ErrInsufficientFunds, err)
		}
		return core.Order{}, &exchange.OrderError{Err: err, Pair: pair, Quantity: quantity}
	}

	var created orderCreateResult
	if err := json.Unmarshal(raw, &created); err != nil {
		return core.Order{}, fmt.Errorf("failed to decode order creation response: %w", err)
	}

	now := time.Now()
	order := core.Order{
		ExchangeID: created.OrderID,
		Pair:       pair,
		Side:       side,
		Type:       core.OrderTypeMarket,
		Status:     core.OrderStatusTypeNew,
		Quantity:   quantity,
		Stop:       stop,
		Take:       take,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Best effort fill reconciliation, the created order is valid even
	// when the realtime query lags behind
	if filled, err := e.Order(ctx, pair, created.OrderID); err != nil {
		e.log.WithError(err).Warn("could not reconcile order fill")
	} else {
		order.Status = filled.Status
		if filled.Price > 0 {
			order.Price = filled.Price
		}
		if filled.Quantity > 0 {
			order.Quantity = filled.Quantity
		}
	}

	return order, nil
}

// Order queries the realtime state of an order by exchange ID
func (e *Exchange) Order(ctx context.Context, pair, exchangeID string) (core.Order, error) {
	raw, err := e.doRequest(ctx, http.MethodGet, "/v5/order/realtime", map[string]string{
		"category": categoryLinear,
		"symbol":   pair,
		"orderId":  exchangeID,
	}, true)
	if err != nil {
		return core.Order{}, fmt.Errorf("failed to fetch order %s: %w", exchangeID, err)
	}

	var result orderListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return core.Order{}, fmt.Errorf("failed to decode order %s: %w", exchangeID, err)
	}

	if len(result.List) == 0 {
		return core.Order{}, fmt.Errorf("order %s not found", exchangeID)
	}

	entry := result.List[0]

	price := parseFloat(entry.AvgPrice)
	if price == 0 {
		price = parseFloat(entry.Price)
	}

	quantity := parseFloat(entry.CumExecQty)
	if quantity == 0 {
		quantity = parseFloat(entry.Qty)
	}

	order := core.Order{
		ExchangeID: entry.OrderID,
		Pair:       entry.Symbol,
		Side:       sideFromBybit(entry.Side),
		Type:       typeFromBybit(entry.OrderType),
		Status:     statusFromBybit(entry.OrderStatus),
		Price:      price,
		Quantity:   quantity,
		UpdatedAt:  time.Now(),
	}

	if stop := parseFloat(entry.StopLoss); stop > 0 {
		order.Stop = &stop
	}
	if take := parseFloat(entry.TakeProfit); take > 0 {
		order.Take = &take
	}

	return order, nil
}

// ---------------------
// Conversion helpers
// ---------------------

func sideToBybit(side core.SideType) string {
	if side == core.SideTypeSell {
		return "Sell"
	}
	return "Buy"
}

func sideFromBybit(side string) core.SideType {
	if side == "Sell" {
		return core.SideTypeSell
	}
	return core.SideTypeBuy
}

func typeFromBybit(orderType string) core.OrderType {
	if orderType == "Limit" {
		return core.OrderTypeLimit
	}
	return core.OrderTypeMarket
}

func statusFromBybit(status string) core.OrderStatusType {
	switch status {
	case "Filled":
		return core.OrderStatusTypeFilled
	case "PartiallyFilled":
		return core.OrderStatusTypePartiallyFilled
	case "Cancelled", "Deactivated":
		return core.OrderStatusTypeCanceled
	case "Rejected":
		return core.OrderStatusTypeRejected
	default:
		return core.OrderStatusTypeNew
	}
}

// formatQuantity formats a quantity according to the pair lot step
func formatQuantity(info core.AssetInfo, value float64) string {
	return strconv.FormatFloat(value, 'f', stepPrecision(info.StepSize), 64)
}

// formatPrice formats a price according to the pair tick size
func formatPrice(info core.AssetInfo, value float64) string {
	return strconv.FormatFloat(value, 'f', stepPrecision(info.TickSize), 64)
}

// stepPrecision derives the number of decimal places from a step value
func stepPrecision(step float64) int {
	if step <= 0 {
		return 4
	}

	precision := 0
	for step < 1 && precision < 10 {
		step *= 10
		precision++
	}

	return precision
}
