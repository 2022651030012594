package sweep

import (
	sdkmath "cosmossdk.io/math"

	"github.com/kelsos/weave-sweep/internal/models"
)

// SkipReason explains why no plan was produced. The zero value means a plan exists.
type SkipReason string

const (
	NoSkip           SkipReason = ""
	SkipBelowReserve SkipReason = "balance at or below reserve"
	SkipGasStation   SkipReason = "gas station address"
)

// Planner decides how much of a balance can be returned to the gas station
type Planner struct {
	gasStation string
	reserve    sdkmath.Int
}

// NewPlanner creates a planner for one chain family
func NewPlanner(gasStation string, reserve sdkmath.Int) *Planner {
	return &Planner{gasStation: gasStation, reserve: reserve}
}

// Plan returns the transfer to make for address, or the reason to skip it.
// Comparison and subtraction are exact integer arithmetic.
func (p *Planner) Plan(address string, balance models.StandardizedBalance) (*models.SweepPlan, SkipReason) {
	if address == p.gasStation {
		return nil, SkipGasStation
	}
	if balance.Amount.IsNil() || balance.Amount.LTE(p.reserve) {
		return nil, SkipBelowReserve
	}
	return &models.SweepPlan{
		Address:      address,
		Denom:        balance.OriginalDenom,
		Balance:      balance.Amount,
		AmountToSend: balance.Amount.Sub(p.reserve),
		Reserve:      p.reserve,
	}, NoSkip
}
