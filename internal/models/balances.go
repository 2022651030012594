package models

import sdkmath "cosmossdk.io/math"

// TokenBalance is a raw bank module balance entry
type TokenBalance struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type Pagination struct {
	NextKey *string `json:"next_key"`
	Total   string  `json:"total"`
}

// InitiaBalanceResponse represents GET /cosmos/bank/v1beta1/balances/{address}
type InitiaBalanceResponse struct {
	Balances   []TokenBalance `json:"balances"`
	Pagination *Pagination    `json:"pagination,omitempty"`
}

type CelestiaBalance struct {
	Currency  string `json:"currency"`
	Spendable string `json:"spendable"`
	Delegated string `json:"delegated"`
	Unbonding string `json:"unbonding"`
}

// CelestiaAddressResponse represents GET /v1/address/{address}
type CelestiaAddressResponse struct {
	ID          int64           `json:"id"`
	FirstHeight int64           `json:"first_height"`
	LastHeight  int64           `json:"last_height"`
	Hash        string          `json:"hash"`
	Balance     CelestiaBalance `json:"balance"`
}

// StandardizedBalance is the chain-agnostic view of one denom held by an address.
// Amount is always in base units.
type StandardizedBalance struct {
	TokenName       string            `json:"tokenName"`
	OriginalDenom   string            `json:"originalDenom"`
	Amount          sdkmath.Int       `json:"amount"`
	FormattedAmount string            `json:"formattedAmount,omitempty"`
	Network         ChainFamily       `json:"network"`
	AdditionalInfo  map[string]string `json:"additionalInfo,omitempty"`
}

// FindDenom returns the balance entry for denom, if present
func FindDenom(balances []StandardizedBalance, denom string) (StandardizedBalance, bool) {
	for _, b := range balances {
		if b.OriginalDenom == denom {
			return b, true
		}
	}
	return StandardizedBalance{}, false
}
