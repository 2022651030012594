package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/weave-sweep/internal/balances"
	"github.com/kelsos/weave-sweep/internal/broadcast"
	"github.com/kelsos/weave-sweep/internal/chain"
	"github.com/kelsos/weave-sweep/internal/config"
	"github.com/kelsos/weave-sweep/internal/inventory"
	"github.com/kelsos/weave-sweep/internal/metrics"
	"github.com/kelsos/weave-sweep/internal/models"
	"github.com/kelsos/weave-sweep/internal/storage"
)

type fakeBalances struct {
	amounts map[string]int64
	failing map[string]bool
	fetched []string
}

func (f *fakeBalances) Fetch(ctx context.Context, address string) (*balances.Result, error) {
	f.fetched = append(f.fetched, address)
	if f.failing[address] {
		return nil, &balances.FetchError{Address: address, Err: errors.New("connection reset")}
	}
	family := chain.Classify(address)
	amount, ok := f.amounts[address]
	if !ok {
		return &balances.Result{Address: address, Family: family, Empty: true}, nil
	}
	denom := "uinit"
	if family == models.FamilyCelestia {
		denom = "utia"
	}
	return &balances.Result{
		Address: address,
		Family:  family,
		Balances: []models.StandardizedBalance{
			{OriginalDenom: "ibc/XYZ", Amount: sdkmath.NewInt(5), Network: family},
			{OriginalDenom: denom, Amount: sdkmath.NewInt(amount), Network: family},
		},
	}, nil
}

type fakeSender struct {
	requests []broadcast.SendRequest
	failFor  map[string]bool
}

func (f *fakeSender) Send(ctx context.Context, req broadcast.SendRequest) models.TransactionResult {
	f.requests = append(f.requests, req)
	if f.failFor[req.Mnemonic] {
		return models.TransactionResult{Success: false, ErrorMessage: "account sequence mismatch"}
	}
	return models.TransactionResult{Success: true, Hash: "HASH-" + req.Mnemonic, Height: 100}
}

type fakeRecorder struct {
	transfers []storage.Transfer
}

func (f *fakeRecorder) Record(ctx context.Context, t storage.Transfer) error {
	f.transfers = append(f.transfers, t)
	return nil
}

type recordingObserver struct {
	loaded   []AccountRef
	stages   []Stage
	finished []models.ReportEntry
}

func (o *recordingObserver) AccountsLoaded(accounts []AccountRef) { o.loaded = accounts }
func (o *recordingObserver) StageChanged(_ AccountRef, stage Stage, _ string) {
	o.stages = append(o.stages, stage)
}
func (o *recordingObserver) Finished(entry models.ReportEntry) { o.finished = append(o.finished, entry) }

var gasStation = &models.GasStationConfig{
	InitiaAddress:   "init1station",
	CelestiaAddress: "celestia1station",
}

func testInventory() *inventory.Inventory {
	inv := inventory.New()
	inv.Add(models.FamilyInitia, models.AccountRecord{Name: "validator", Address: "init1validator", Mnemonic: "m-validator"})
	inv.Add(models.FamilyInitia, models.AccountRecord{Name: "bridge_executor", Address: "init1executor", Mnemonic: "m-executor"})
	inv.Add(models.FamilyInitia, models.AccountRecord{Name: "station", Address: "init1station", Mnemonic: "m-station"})
	inv.Add(models.FamilyInitia, models.AccountRecord{Name: "challenger", Address: "init1challenger", Mnemonic: "m-challenger"})
	inv.Add(models.FamilyInitia, models.AccountRecord{Name: "genesis_account_0", Address: "init1genesis"})
	inv.Add(models.FamilyCelestia, models.AccountRecord{Name: "batch_submitter", Address: "celestia1batch", Mnemonic: "m-batch"})
	return inv
}

func byName(report *models.Report) map[string]models.ReportEntry {
	out := make(map[string]models.ReportEntry)
	for _, e := range report.Entries {
		out[e.Name] = e
	}
	return out
}

func TestRunPartialFailure(t *testing.T) {
	source := &fakeBalances{
		amounts: map[string]int64{
			"init1validator":  1000000,
			"init1executor":   150000,
			"init1station":    50000000,
			"init1challenger": 3000000,
			"init1genesis":    9000000,
			"celestia1batch":  700000,
		},
		failing: map[string]bool{"init1executor": true},
	}
	sender := &fakeSender{failFor: map[string]bool{"m-challenger": true}}
	recorder := &fakeRecorder{}
	observer := &recordingObserver{}
	m := metrics.NewMetricManager()

	svc := NewConsolidationService(config.NewConfig(), source, sender).
		WithObserver(observer).
		WithRecorder(recorder).
		WithMetrics(m)

	report := svc.Run(context.Background(), testInventory(), gasStation)
	require.Len(t, report.Entries, 6)

	// insertion order, Initia before Celestia
	names := make([]string, 0, len(report.Entries))
	for _, e := range report.Entries {
		names = append(names, e.Name)
	}
	require.Equal(t, []string{"validator", "bridge_executor", "station", "challenger", "genesis_account_0", "batch_submitter"}, names)

	entries := byName(report)

	require.Equal(t, models.OutcomeSwept, entries["validator"].Outcome)
	require.Equal(t, "800000", entries["validator"].Amount)
	require.Equal(t, "0.800000", entries["validator"].FormattedAmount)
	require.Equal(t, "INIT", entries["validator"].TokenName)
	require.Equal(t, "HASH-m-validator", entries["validator"].Hash)

	require.Equal(t, models.OutcomeFailed, entries["bridge_executor"].Outcome)
	require.Contains(t, entries["bridge_executor"].Error, "connection reset")

	require.Equal(t, models.OutcomeSkipped, entries["station"].Outcome)
	require.Equal(t, models.OutcomeFailed, entries["challenger"].Outcome)
	require.Contains(t, entries["challenger"].Error, "sequence mismatch")
	require.Equal(t, models.OutcomeSkipped, entries["genesis_account_0"].Outcome)
	require.Contains(t, entries["genesis_account_0"].Reason, "read-only")

	require.Equal(t, models.OutcomeSwept, entries["batch_submitter"].Outcome)
	require.Equal(t, "500000", entries["batch_submitter"].Amount)

	// the gas station is never fetched nor swept
	require.NotContains(t, source.fetched, "init1station")
	for _, req := range sender.requests {
		require.NotEqual(t, "m-station", req.Mnemonic)
	}

	require.Len(t, sender.requests, 3)
	first := sender.requests[0]
	require.Equal(t, "init1station", first.Recipient)
	require.Equal(t, "uinit", first.Denom)
	require.Equal(t, "init", first.Prefix)
	require.Equal(t, config.DefaultInitiaRPC, first.RPCEndpoint)
	require.True(t, first.Amount.Equal(sdkmath.NewInt(800000)))
	require.Equal(t, int64(200000), first.GasLimit)
	require.Equal(t, "Return to gas station", first.Memo)
	require.Equal(t, "init1validator", first.ExpectedSender)

	last := sender.requests[2]
	require.Equal(t, "celestia1station", last.Recipient)
	require.Equal(t, "celestia", last.Prefix)
	require.Equal(t, "utia", last.Denom)

	require.Len(t, recorder.transfers, 3)
	require.False(t, recorder.transfers[1].Success)

	require.Len(t, observer.loaded, 6)
	require.Len(t, observer.finished, 6)
	require.Contains(t, observer.stages, StageBroadcasting)

	require.Equal(t, 2, report.Count(models.OutcomeSwept))
	require.Equal(t, 2, report.Count(models.OutcomeFailed))
	require.Equal(t, 2, report.Count(models.OutcomeSkipped))
}

func TestRunFailsWhenKeyDoesNotOwnAddress(t *testing.T) {
	source := &fakeBalances{amounts: map[string]int64{"init1validator": 50000000}}
	sender, err := broadcast.NewSender(func(endpoint string) (broadcast.RPCClient, error) {
		t.Fatalf("dialed %s for a key that does not own the address", endpoint)
		return nil, nil
	}, time.Millisecond, time.Millisecond)
	require.NoError(t, err)

	inv := inventory.New()
	inv.Add(models.FamilyInitia, models.AccountRecord{
		Name:     "validator",
		Address:  "init1validator",
		Mnemonic: "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
	})

	report := NewConsolidationService(config.NewConfig(), source, sender).Run(context.Background(), inv, gasStation)
	require.Len(t, report.Entries, 1)
	entry := report.Entries[0]
	require.Equal(t, models.OutcomeFailed, entry.Outcome)
	require.Contains(t, entry.Error, broadcast.ErrSenderMismatch.Error())
	require.Empty(t, entry.Hash)
}

func TestRunUsesPolicyTokenName(t *testing.T) {
	cfg := config.NewConfig()
	cfg.DryRun = true
	cfg.Celestia.TokenName = "GAS"

	inv := inventory.New()
	inv.Add(models.FamilyCelestia, models.AccountRecord{Name: "batch_submitter", Address: "celestia1batch", Mnemonic: "m-batch"})

	source := &fakeBalances{amounts: map[string]int64{"celestia1batch": 1200000}}
	report := NewConsolidationService(cfg, source, &fakeSender{}).Run(context.Background(), inv, gasStation)

	require.Len(t, report.Entries, 1)
	entry := report.Entries[0]
	require.Equal(t, "GAS", entry.TokenName)
	require.Equal(t, "1.000000 GAS", displayAmount(entry))

	raw := models.ReportEntry{Amount: "42", Denom: "ufoo"}
	require.Equal(t, "42 ufoo", displayAmount(raw))
}

func TestRunIDsDifferWithinOneSecond(t *testing.T) {
	svc := NewConsolidationService(config.NewConfig(), &fakeBalances{}, &fakeSender{})
	start := time.Date(2026, 10, 17, 10, 15, 0, 0, time.UTC)

	svc.now = func() time.Time { return start }
	first := svc.Run(context.Background(), inventory.New(), gasStation)
	svc.now = func() time.Time { return start.Add(1500 * time.Microsecond) }
	second := svc.Run(context.Background(), inventory.New(), gasStation)

	require.Equal(t, "20261017-101500.000000", first.RunID)
	require.Equal(t, "20261017-101500.001500", second.RunID)
}

func TestRunBelowReserveNeverBroadcasts(t *testing.T) {
	inv := inventory.New()
	inv.Add(models.FamilyInitia, models.AccountRecord{Name: "validator", Address: "init1validator", Mnemonic: "m"})

	source := &fakeBalances{amounts: map[string]int64{"init1validator": 150000}}
	sender := &fakeSender{}

	report := NewConsolidationService(config.NewConfig(), source, sender).Run(context.Background(), inv, gasStation)
	require.Len(t, report.Entries, 1)
	require.Equal(t, models.OutcomeSkipped, report.Entries[0].Outcome)
	require.Empty(t, sender.requests)
}

func TestRunDryRun(t *testing.T) {
	cfg := config.NewConfig()
	cfg.DryRun = true

	source := &fakeBalances{amounts: map[string]int64{"init1validator": 1000000}}
	sender := &fakeSender{}
	inv := inventory.New()
	inv.Add(models.FamilyInitia, models.AccountRecord{Name: "validator", Address: "init1validator", Mnemonic: "m"})

	report := NewConsolidationService(cfg, source, sender).Run(context.Background(), inv, gasStation)
	require.True(t, report.DryRun)
	require.Equal(t, models.OutcomePlanned, report.Entries[0].Outcome)
	require.Equal(t, "800000", report.Entries[0].Amount)
	require.Empty(t, sender.requests)
}

func TestRunRejectsMisfiledAddressBeforeIO(t *testing.T) {
	inv := inventory.New()
	inv.Add(models.FamilyInitia, models.AccountRecord{Name: "odd", Address: "celestia1odd", Mnemonic: "m"})
	inv.Add(models.FamilyCelestia, models.AccountRecord{Name: "bad", Address: "osmo1bad", Mnemonic: "m"})

	source := &fakeBalances{}
	report := NewConsolidationService(config.NewConfig(), source, &fakeSender{}).Run(context.Background(), inv, gasStation)

	require.Len(t, report.Entries, 2)
	for _, e := range report.Entries {
		require.Equal(t, models.OutcomeFailed, e.Outcome)
		require.Contains(t, e.Error, chain.ErrInvalidAddress.Error())
	}
	require.Empty(t, source.fetched)
}

func TestRunMissingDenomSkips(t *testing.T) {
	inv := inventory.New()
	inv.Add(models.FamilyInitia, models.AccountRecord{Name: "fresh", Address: "init1fresh", Mnemonic: "m"})

	report := NewConsolidationService(config.NewConfig(), &fakeBalances{}, &fakeSender{}).Run(context.Background(), inv, gasStation)
	require.Equal(t, models.OutcomeSkipped, report.Entries[0].Outcome)
	require.Contains(t, report.Entries[0].Reason, "no uinit balance")
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeBalances{}
	report := NewConsolidationService(config.NewConfig(), source, &fakeSender{}).Run(ctx, testInventory(), gasStation)
	require.Empty(t, report.Entries)
	require.Empty(t, source.fetched)
}

func TestSchedulerRepeatsWithoutOverlap(t *testing.T) {
	var runs, active, maxActive int32
	var mu sync.Mutex

	s := NewScheduler(20*time.Millisecond, func(ctx context.Context) {
		n := atomic.AddInt32(&active, 1)
		mu.Lock()
		if n > maxActive {
			maxActive = n
		}
		mu.Unlock()
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		atomic.AddInt32(&runs, 1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	require.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(1))
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, int32(1), maxActive)
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	require.Error(t, NewScheduler(0, func(context.Context) {}).Run(context.Background()))
}
