package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kelsos/weave-sweep/internal/balances"
	"github.com/kelsos/weave-sweep/internal/broadcast"
	"github.com/kelsos/weave-sweep/internal/chain"
	"github.com/kelsos/weave-sweep/internal/config"
	"github.com/kelsos/weave-sweep/internal/evm"
	"github.com/kelsos/weave-sweep/internal/logger"
	"github.com/kelsos/weave-sweep/internal/models"
	"github.com/kelsos/weave-sweep/internal/services"
	"github.com/kelsos/weave-sweep/internal/storage"
)

var senderMnemonicEnv = map[models.ChainFamily]string{
	models.FamilyInitia:   "INITIA_SENDER_MNEMONIC",
	models.FamilyCelestia: "SENDER_MNEMONIC",
}

func runSchedule(ctx context.Context, cfg *config.Config, every time.Duration) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// fail fast on a broken config before the first tick
	if _, _, err := a.loadAccounts(); err != nil {
		return err
	}

	scheduler := services.NewScheduler(every, func(ctx context.Context) {
		if err := a.sweepOnce(ctx, false); err != nil {
			logger.Error("Scheduled run failed: %v", err)
		}
	})
	return scheduler.Run(ctx)
}

func printBalances(name, address string, result *balances.Result, policy config.ChainPolicy) {
	if result.Empty || len(result.Balances) == 0 {
		fmt.Printf("%s (%s): no balance\n", name, address)
		return
	}
	fmt.Printf("%s (%s):\n", name, address)
	for _, b := range result.Balances {
		if b.OriginalDenom == policy.Denom && policy.TokenName != "" {
			b.TokenName = policy.TokenName
		}
		if b.FormattedAmount != "" {
			fmt.Printf("  %s %s\n", b.FormattedAmount, b.TokenName)
		} else {
			fmt.Printf("  %s %s (%s)\n", b.Amount, b.TokenName, b.OriginalDenom)
		}
		if len(b.AdditionalInfo) > 0 {
			fmt.Printf("    delegated %s, unbonding %s\n", b.AdditionalInfo["delegated"], b.AdditionalInfo["unbonding"])
		}
	}
	if result.Truncated {
		fmt.Printf("  (only the first %d denoms are shown)\n", balances.PageLimit)
	}
}

func runBalances(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	inv, _, err := a.loadAccounts()
	if err != nil {
		return err
	}

	m := a.metrics
	for _, family := range models.Families {
		fmt.Printf("== %s ==\n", family)
		for _, rec := range inv.Accounts(family) {
			result, err := a.fetcher.Fetch(ctx, rec.Address)
			if err != nil {
				logger.AccountError(rec.Name, rec.Address, "Failed to fetch balance: %v", err)
				continue
			}
			printBalances(rec.Name, rec.Address, result, cfg.PolicyFor(family))
			if m != nil {
				for _, b := range result.Balances {
					m.ObserveBalance(rec.Name, rec.Address, b)
				}
			}
		}
	}

	if m != nil {
		path, err := config.ExpandHome(cfg.MetricsFile)
		if err != nil {
			return err
		}
		if err := m.WriteTextfile(path); err != nil {
			logger.Warn("%v", err)
		}
	}
	return nil
}

func runBalance(ctx context.Context, cfg *config.Config, address, network string) error {
	family, err := chain.Require(address)
	if err != nil {
		return err
	}
	if network != "" {
		if family == models.FamilyInitia {
			cfg.InitiaNetwork = network
		} else {
			cfg.CelestiaNetwork = network
		}
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.fetcher.Fetch(ctx, address)
	if err != nil {
		return err
	}
	printBalances(string(family), address, result, cfg.PolicyFor(family))
	return nil
}

func runSend(ctx context.Context, cfg *config.Config, recipient, rawAmount string) error {
	family, err := chain.Require(recipient)
	if err != nil {
		return err
	}

	envVar := senderMnemonicEnv[family]
	mnemonic := os.Getenv(envVar)
	if mnemonic == "" {
		return fmt.Errorf("%s environment variable is not set", envVar)
	}

	amount, err := balances.ParseDisplayAmount(rawAmount)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	policy := cfg.PolicyFor(family)
	wallet, err := a.sender.Wallet(mnemonic, policy.Prefix)
	if err != nil {
		return fmt.Errorf("%s: %w", envVar, err)
	}
	logger.Info("Sending %s %s (%s %s) from %s to %s via %s",
		rawAmount, policy.TokenName, amount, policy.Denom, wallet.Address, recipient, cfg.RPCFor(family))

	res := a.sender.Send(ctx, broadcast.SendRequest{
		Mnemonic:    mnemonic,
		Prefix:      policy.Prefix,
		RPCEndpoint: cfg.RPCFor(family),
		Recipient:   recipient,
		Amount:      amount,
		Denom:       policy.Denom,
		GasPrice:    policy.GasPrice,
		GasLimit:    policy.GasLimit,
		Memo:        broadcast.DefaultMemo,

		ExpectedSender: wallet.Address,
	})
	if !res.Success {
		return fmt.Errorf("transaction failed: %s", res.ErrorMessage)
	}

	fmt.Printf("Transaction successful!\n  Transaction Hash: %s\n  Block Height: %d\n", res.Hash, res.Height)
	return nil
}

func runConvert(address string) error {
	converted, err := evm.Convert(address)
	if err != nil {
		return err
	}
	fmt.Println(converted)
	return nil
}

func runEVMBalance(ctx context.Context, cfg *config.Config, address string) error {
	logger.Info("Fetching balance for %s from %s", address, cfg.EVMNodeURL)
	bal, err := evm.FetchGasBalance(ctx, cfg.EVMNodeURL, address)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s (%s wei)\n", bal.Address, bal.Formatted, bal.Wei)
	return nil
}

func runHistory(ctx context.Context, cfg *config.Config, limit int) error {
	if cfg.HistoryDB == "" {
		return fmt.Errorf("no history database configured, set --history-db or WEAVE_SWEEP_HISTORY_DB")
	}
	path, err := config.ExpandHome(cfg.HistoryDB)
	if err != nil {
		return err
	}

	ledger, err := storage.OpenLedger(ctx, path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	transfers, err := ledger.Recent(ctx, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCHAIN\tNAME\tAMOUNT\tSTATUS\tTX / ERROR")
	for _, t := range transfers {
		status, detail := "ok", t.TxHash
		if !t.Success {
			status, detail = "failed", t.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\t%s\n",
			t.CreatedAt.Format(time.RFC3339), t.Family, t.Name, t.Amount, t.Denom, status, detail)
	}
	return w.Flush()
}
