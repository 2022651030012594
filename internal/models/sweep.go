package models

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// SweepPlan is computed per address and never persisted
type SweepPlan struct {
	Address      string
	Denom        string
	Balance      sdkmath.Int
	AmountToSend sdkmath.Int
	Reserve      sdkmath.Int
}

// TransactionResult is the outcome of one broadcast attempt
type TransactionResult struct {
	Hash         string `json:"hash,omitempty"`
	Height       int64  `json:"height,omitempty"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type Outcome string

const (
	OutcomeSwept   Outcome = "swept"
	OutcomePlanned Outcome = "planned"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// ReportEntry is the per-address line of a run summary
type ReportEntry struct {
	Name            string      `json:"name"`
	Address         string      `json:"address"`
	Family          ChainFamily `json:"family"`
	Outcome         Outcome     `json:"outcome"`
	Denom           string      `json:"denom,omitempty"`
	TokenName       string      `json:"tokenName,omitempty"`
	Amount          string      `json:"amount,omitempty"`
	FormattedAmount string      `json:"formattedAmount,omitempty"`
	Hash            string      `json:"hash,omitempty"`
	Height          int64       `json:"height,omitempty"`
	Reason          string      `json:"reason,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// Report is the summary of one consolidation run
type Report struct {
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	DryRun     bool          `json:"dryRun"`
	Entries    []ReportEntry `json:"entries"`
}

// Count returns how many entries ended with the given outcome
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}
