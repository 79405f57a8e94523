package core

import "fmt"

// Balance represents the available funds for a specific asset
type Balance struct {
	Asset string
	Free  float64
	Lock  float64
}

// Total returns free plus locked amounts
func (b Balance) Total() float64 {
	return b.Free + b.Lock
}

// Account represents a trading account with multiple asset balances
type Account struct {
	Balances []Balance
}

// NewAccount creates an account wrapper over the given balances
func NewAccount(balances []Balance) (Account, error) {
	if len(balances) == 0 {
		return Account{}, fmt.Errorf("invalid account balances")
	}

	return Account{Balances: balances}, nil
}

// Balance retrieves the balance for a specific asset.
// An empty Balance is returned when the asset is not held.
func (a Account) Balance(asset string) Balance {
	for _, balance := range a.Balances {
		if balance.Asset == asset {
			return balance
		}
	}
	return Balance{Asset: asset}
}

// Equity calculates the total equity in the account, the sum of free
// and locked amounts across all assets
func (a Account) Equity() float64 {
	var total float64
	for _, balance := range a.Balances {
		total += balance.Total()
	}
	return total
}
