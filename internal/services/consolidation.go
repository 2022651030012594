package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kelsos/weave-sweep/internal/balances"
	"github.com/kelsos/weave-sweep/internal/broadcast"
	"github.com/kelsos/weave-sweep/internal/chain"
	"github.com/kelsos/weave-sweep/internal/config"
	"github.com/kelsos/weave-sweep/internal/inventory"
	"github.com/kelsos/weave-sweep/internal/logger"
	"github.com/kelsos/weave-sweep/internal/metrics"
	"github.com/kelsos/weave-sweep/internal/models"
	"github.com/kelsos/weave-sweep/internal/storage"
	"github.com/kelsos/weave-sweep/internal/sweep"
)

// RunIDLayout names runs by their UTC start time down to the microsecond
const RunIDLayout = "20060102-150405.000000"

// BalanceSource fetches the standardized balances of one address
type BalanceSource interface {
	Fetch(ctx context.Context, address string) (*balances.Result, error)
}

// TransferSender signs and broadcasts one transfer
type TransferSender interface {
	Send(ctx context.Context, req broadcast.SendRequest) models.TransactionResult
}

// TransferRecorder persists broadcast attempts
type TransferRecorder interface {
	Record(ctx context.Context, t storage.Transfer) error
}

// ConsolidationService returns surplus funds of operator accounts to the gas station
type ConsolidationService struct {
	config   *config.Config
	balances BalanceSource
	sender   TransferSender
	observer Observer
	recorder TransferRecorder
	metrics  *metrics.MetricManager
	now      func() time.Time
}

// NewConsolidationService creates the service with the required collaborators
func NewConsolidationService(cfg *config.Config, source BalanceSource, sender TransferSender) *ConsolidationService {
	return &ConsolidationService{
		config:   cfg,
		balances: source,
		sender:   sender,
		observer: noopObserver{},
		now:      time.Now,
	}
}

// WithObserver attaches a progress observer
func (s *ConsolidationService) WithObserver(o Observer) *ConsolidationService {
	if o != nil {
		s.observer = o
	}
	return s
}

// WithRecorder records every broadcast attempt
func (s *ConsolidationService) WithRecorder(r TransferRecorder) *ConsolidationService {
	s.recorder = r
	return s
}

// WithMetrics counts outcomes
func (s *ConsolidationService) WithMetrics(m *metrics.MetricManager) *ConsolidationService {
	s.metrics = m
	return s
}

// Run processes every inventory address in order, Initia first, and returns
// the per-address report. Failures of one address never stop the run.
func (s *ConsolidationService) Run(ctx context.Context, inv *inventory.Inventory, gasStation *models.GasStationConfig) *models.Report {
	started := s.now()
	report := &models.Report{
		RunID:     started.UTC().Format(RunIDLayout),
		StartedAt: started,
		DryRun:    s.config.DryRun,
	}

	var refs []AccountRef
	for _, family := range models.Families {
		for _, rec := range inv.Accounts(family) {
			refs = append(refs, AccountRef{Family: family, Name: rec.Name, Address: rec.Address})
		}
	}
	s.observer.AccountsLoaded(refs)
	logger.Info("Processing %d addresses (dry run: %t)", len(refs), s.config.DryRun)

	for _, family := range models.Families {
		policy := s.config.PolicyFor(family)
		planner := sweep.NewPlanner(gasStation.AddressFor(family), policy.Reserve)

		for _, rec := range inv.Accounts(family) {
			if err := ctx.Err(); err != nil {
				logger.Warn("Run cancelled: %v", err)
				report.FinishedAt = s.now()
				return report
			}

			entry := s.processAccount(ctx, family, policy, planner, gasStation, rec, report.RunID)
			report.Entries = append(report.Entries, entry)

			if s.metrics != nil {
				s.metrics.ObserveEntry(entry)
			}
			s.observer.Finished(entry)
		}
	}

	report.FinishedAt = s.now()
	s.logSummary(report)
	return report
}

func (s *ConsolidationService) processAccount(
	ctx context.Context,
	family models.ChainFamily,
	policy config.ChainPolicy,
	planner *sweep.Planner,
	gasStation *models.GasStationConfig,
	rec models.AccountRecord,
	runID string,
) models.ReportEntry {
	ref := AccountRef{Family: family, Name: rec.Name, Address: rec.Address}
	entry := models.ReportEntry{Name: rec.Name, Address: rec.Address, Family: family, Denom: policy.Denom, TokenName: policy.TokenName}

	skip := func(reason string) models.ReportEntry {
		logger.AccountInfo(rec.Name, rec.Address, "Skipping %s: %s", family, reason)
		entry.Outcome = models.OutcomeSkipped
		entry.Reason = reason
		return entry
	}
	fail := func(err error) models.ReportEntry {
		logger.AccountError(rec.Name, rec.Address, "Failed on %s: %v", family, err)
		entry.Outcome = models.OutcomeFailed
		entry.Error = err.Error()
		return entry
	}

	if rec.Address == gasStation.AddressFor(family) {
		return skip(string(sweep.SkipGasStation))
	}

	got, err := chain.Require(rec.Address)
	if err != nil {
		return fail(err)
	}
	if got != family {
		return fail(fmt.Errorf("%w: %s address listed under %s", chain.ErrInvalidAddress, got, family))
	}

	s.observer.StageChanged(ref, StageFetching, "Fetching balance...")
	result, err := s.balances.Fetch(ctx, rec.Address)
	if err != nil {
		return fail(err)
	}

	if result.Truncated {
		logger.AccountWarn(rec.Name, rec.Address, "Balance list truncated at %d denoms, %s may be missing", balances.PageLimit, policy.Denom)
	}

	balance, ok := models.FindDenom(result.Balances, policy.Denom)
	if !ok {
		return skip(fmt.Sprintf("no %s balance", policy.Denom))
	}

	s.observer.StageChanged(ref, StagePlanning, fmt.Sprintf("Balance %s%s", balance.Amount, policy.Denom))
	plan, reason := planner.Plan(rec.Address, balance)
	switch reason {
	case sweep.NoSkip:
	case sweep.SkipBelowReserve:
		return skip(fmt.Sprintf("%s (%s <= %s %s)", reason, balance.Amount, policy.Reserve, policy.Denom))
	default:
		return skip(string(reason))
	}

	entry.Amount = plan.AmountToSend.String()
	entry.FormattedAmount = balances.FormatFor(family, plan.Denom, plan.AmountToSend)

	if !rec.CanSign() {
		return skip("no mnemonic, account is read-only")
	}

	if s.config.DryRun {
		logger.AccountInfo(rec.Name, rec.Address, "Would send %s to %s", displayAmount(entry), gasStation.AddressFor(family))
		entry.Outcome = models.OutcomePlanned
		return entry
	}

	s.observer.StageChanged(ref, StageBroadcasting, fmt.Sprintf("Sending %s %s...", entry.Amount, plan.Denom))
	recipient := gasStation.AddressFor(family)
	res := s.sender.Send(ctx, broadcast.SendRequest{
		Mnemonic:       rec.Mnemonic,
		Prefix:         policy.Prefix,
		RPCEndpoint:    s.config.RPCFor(family),
		Recipient:      recipient,
		Amount:         plan.AmountToSend,
		Denom:          plan.Denom,
		GasPrice:       policy.GasPrice,
		GasLimit:       policy.GasLimit,
		Memo:           policy.Memo,
		ExpectedSender: rec.Address,
	})
	s.record(ctx, runID, family, rec, recipient, plan, res)

	entry.Hash = res.Hash
	entry.Height = res.Height
	if !res.Success {
		return fail(fmt.Errorf("broadcast failed: %s", res.ErrorMessage))
	}

	logger.AccountInfo(rec.Name, rec.Address, "Sent %s to gas station, tx %s at height %d", displayAmount(entry), res.Hash, res.Height)
	entry.Outcome = models.OutcomeSwept
	return entry
}

func (s *ConsolidationService) record(ctx context.Context, runID string, family models.ChainFamily, rec models.AccountRecord, recipient string, plan *models.SweepPlan, res models.TransactionResult) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.Record(ctx, storage.Transfer{
		RunID:     runID,
		CreatedAt: s.now(),
		Family:    family,
		Name:      rec.Name,
		Address:   rec.Address,
		Recipient: recipient,
		Denom:     plan.Denom,
		Amount:    plan.AmountToSend.String(),
		Success:   res.Success,
		TxHash:    res.Hash,
		Height:    res.Height,
		Error:     res.ErrorMessage,
	})
	if err != nil {
		logger.AccountWarn(rec.Name, rec.Address, "Failed to record transfer: %v", err)
	}
}

func (s *ConsolidationService) logSummary(report *models.Report) {
	logger.Info("Run %s finished in %s: %d swept, %d planned, %d skipped, %d failed",
		report.RunID,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
		report.Count(models.OutcomeSwept),
		report.Count(models.OutcomePlanned),
		report.Count(models.OutcomeSkipped),
		report.Count(models.OutcomeFailed))

	for _, e := range report.Entries {
		switch e.Outcome {
		case models.OutcomeSwept:
			logger.Info("  %-20s %s swept %s (tx %s, height %d)", e.Name, e.Family, displayAmount(e), e.Hash, e.Height)
		case models.OutcomePlanned:
			logger.Info("  %-20s %s would sweep %s", e.Name, e.Family, displayAmount(e))
		case models.OutcomeSkipped:
			logger.Info("  %-20s %s skipped: %s", e.Name, e.Family, e.Reason)
		case models.OutcomeFailed:
			logger.Info("  %-20s %s failed: %s", e.Name, e.Family, e.Error)
		}
	}
}

// displayAmount prefers the scaled amount with the policy token name
func displayAmount(e models.ReportEntry) string {
	if e.FormattedAmount != "" && e.TokenName != "" {
		return e.FormattedAmount + " " + e.TokenName
	}
	return e.Amount + " " + e.Denom
}
