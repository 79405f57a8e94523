// Package exchange provides shared types for cryptocurrency exchange
// adapters.
package exchange

import (
	"errors"
	"fmt"
)

// Common errors that can occur during exchange operations
var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInsufficientFunds = errors.New("insufficient funds or locked")
	ErrInvalidAsset      = errors.New("invalid asset")
)

// OrderError encapsulates an error related to an order
type OrderError struct {
	Err      error
	Pair     string
	Quantity float64
}

// Error implements the error interface
func (o *OrderError) Error() string {
	return fmt.Sprintf("order error: %v", o.Err)
}

// Unwrap exposes the underlying cause
func (o *OrderError) Unwrap() error {
	return o.Err
}

// Known quote currencies for pair splitting
var quotes = []string{
	"USDT",
	"USDC",
	"BTC",
	"ETH",
	"EUR",
	"BRL",
	"TRY",
	"USD",
}

// SplitAssetQuote splits a trading pair into base asset and quote asset
func SplitAssetQuote(pair string) (asset, quote string) {
	for _, q := range quotes {
		if len(pair) > len(q) && pair[len(pair)-len(q):] == q {
			return pair[:len(pair)-len(q)], pair[len(pair)-len(q):]
		}
	}
	return pair[:len(pair)/2], pair[len(pair)/2:]
}
