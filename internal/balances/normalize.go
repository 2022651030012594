package balances

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"github.com/kelsos/weave-sweep/internal/models"
)

// DisplayExponent is the fixed divisor (10^6) applied to scaled denoms
const DisplayExponent = 6

// UnknownTokenLabel is what Initia shows for unmapped denoms
const UnknownTokenLabel = "Unknown"

var tokenNames = map[string]string{
	"move/39be751fb1af0a64eda97ce59f569ef903ac7a90d0d44d40287b059024f363c0": "sINIT",
	"move/9017f312a3df7e612d3ca453bee0bbc6c93b040861d235b8ad0406d3674e1abe": "nINIT",
	"uinit": "INIT",
	"utia":  "TIA",
}

// FamilyPolicy controls how one chain family's denoms are presented.
// An empty FallbackLabel means the literal denom is shown.
type FamilyPolicy struct {
	FallbackLabel string
	ScaledDenoms  map[string]bool
}

// Policies holds the per-family display rules. Initia labels unmapped denoms
// "Unknown" while Celestia shows the denom itself.
var Policies = map[models.ChainFamily]FamilyPolicy{
	models.FamilyInitia: {
		FallbackLabel: UnknownTokenLabel,
		ScaledDenoms:  map[string]bool{"uinit": true},
	},
	models.FamilyCelestia: {
		FallbackLabel: "",
		ScaledDenoms:  map[string]bool{"utia": true},
	},
}

// TokenName maps a denom to its display name under the family's policy
func TokenName(family models.ChainFamily, denom string) string {
	if name, ok := tokenNames[denom]; ok {
		return name
	}
	if label := Policies[family].FallbackLabel; label != "" {
		return label
	}
	return denom
}

// FormatAmount renders a base-unit amount with the fixed display exponent
func FormatAmount(amount sdkmath.Int) string {
	return decimal.NewFromBigInt(amount.BigInt(), -DisplayExponent).StringFixed(DisplayExponent)
}

// ParseAmount parses a base-unit integer string
func ParseAmount(raw string) (sdkmath.Int, error) {
	if raw == "" {
		return sdkmath.ZeroInt(), nil
	}
	amount, ok := sdkmath.NewIntFromString(raw)
	if !ok || amount.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("invalid base-unit amount %q", raw)
	}
	return amount, nil
}

func standardize(family models.ChainFamily, denom, rawAmount string) (models.StandardizedBalance, error) {
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return models.StandardizedBalance{}, fmt.Errorf("%s: %w", denom, err)
	}
	b := models.StandardizedBalance{
		TokenName:     TokenName(family, denom),
		OriginalDenom: denom,
		Amount:        amount,
		Network:       family,
	}
	if Policies[family].ScaledDenoms[denom] {
		b.FormattedAmount = FormatAmount(amount)
	}
	return b, nil
}

// NormalizeInitia converts a bank balances page into standardized records
func NormalizeInitia(balances []models.TokenBalance) ([]models.StandardizedBalance, error) {
	out := make([]models.StandardizedBalance, 0, len(balances))
	for _, tb := range balances {
		b, err := standardize(models.FamilyInitia, tb.Denom, tb.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// NormalizeCelestia converts the single aggregate address record into exactly
// one standardized balance. Delegated and unbonding amounts ride along in
// AdditionalInfo and are not added to Amount.
func NormalizeCelestia(resp *models.CelestiaAddressResponse) ([]models.StandardizedBalance, error) {
	denom := resp.Balance.Currency
	if denom == "" {
		denom = "utia"
	}
	b, err := standardize(models.FamilyCelestia, denom, resp.Balance.Spendable)
	if err != nil {
		return nil, err
	}
	b.AdditionalInfo = map[string]string{
		"delegated": resp.Balance.Delegated,
		"unbonding": resp.Balance.Unbonding,
	}
	return []models.StandardizedBalance{b}, nil
}

// ParseDisplayAmount converts a whole-token amount such as "0.5" to base
// units, dropping digits beyond the display exponent.
func ParseDisplayAmount(raw string) (sdkmath.Int, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if !d.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("amount must be positive, got %s", raw)
	}
	base := d.Shift(DisplayExponent).Floor()
	if !base.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("amount %s is below one base unit", raw)
	}
	return sdkmath.NewIntFromBigInt(base.BigInt()), nil
}

// FormatFor formats amount when denom is scaled for the family, else returns ""
func FormatFor(family models.ChainFamily, denom string, amount sdkmath.Int) string {
	if !Policies[family].ScaledDenoms[denom] {
		return ""
	}
	return FormatAmount(amount)
}
