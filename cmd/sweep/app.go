package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kelsos/weave-sweep/internal/balances"
	"github.com/kelsos/weave-sweep/internal/broadcast"
	"github.com/kelsos/weave-sweep/internal/client"
	"github.com/kelsos/weave-sweep/internal/config"
	"github.com/kelsos/weave-sweep/internal/inventory"
	"github.com/kelsos/weave-sweep/internal/logger"
	"github.com/kelsos/weave-sweep/internal/metrics"
	"github.com/kelsos/weave-sweep/internal/models"
	"github.com/kelsos/weave-sweep/internal/services"
	"github.com/kelsos/weave-sweep/internal/storage"
	"github.com/kelsos/weave-sweep/internal/tui"
)

// app wires the validated configuration into the services of one process
type app struct {
	cfg     *config.Config
	fetcher *balances.Fetcher
	sender  *broadcast.Sender
	ledger  *storage.Ledger
	metrics *metrics.MetricManager
}

func prepareConfig(cfg *config.Config) error {
	if err := cfg.ResolvePaths(); err != nil {
		return err
	}
	if err := cfg.ApplyPolicyFile(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func newApp(cfg *config.Config) (*app, error) {
	if err := prepareConfig(cfg); err != nil {
		return nil, err
	}

	endpoints, err := balances.EndpointsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	sender, err := broadcast.NewSender(broadcast.DialHTTP, cfg.PollInterval, cfg.InclusionWait)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		fetcher: balances.NewFetcher(client.NewAPIClient(cfg.HTTPTimeout), endpoints),
		sender:  sender,
	}

	if cfg.MetricsFile != "" {
		a.metrics = metrics.NewMetricManager()
	}

	if cfg.HistoryDB != "" {
		path, err := config.ExpandHome(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		ledger, err := storage.OpenLedger(context.Background(), path)
		if err != nil {
			logger.Warn("Transfer history disabled: %v", err)
		} else {
			a.ledger = ledger
		}
	}

	return a, nil
}

func (a *app) Close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			logger.Warn("Failed to close history database: %v", err)
		}
	}
}

// loadAccounts reads the operator config and the gas station. Errors are fatal
// for the run.
func (a *app) loadAccounts() (*inventory.Inventory, *models.GasStationConfig, error) {
	minitia, err := inventory.LoadMinitiaConfig(a.cfg.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	gasStation, err := inventory.LoadGasStation(a.cfg.WeaveHome)
	if err != nil {
		return nil, nil, err
	}

	inv := inventory.Build(minitia, os.LookupEnv)
	logger.Info("Loaded %d addresses from %s", inv.Len(), a.cfg.ConfigFile)
	logger.Info("Gas station: %s / %s", gasStation.InitiaAddress, gasStation.CelestiaAddress)
	return inv, gasStation, nil
}

func (a *app) sweepOnce(ctx context.Context, useTUI bool) error {
	inv, gasStation, err := a.loadAccounts()
	if err != nil {
		return err
	}

	svc := services.NewConsolidationService(a.cfg, a.fetcher, a.sender).WithMetrics(a.metrics)
	if a.ledger != nil {
		svc.WithRecorder(a.ledger)
	}

	var report *models.Report
	if useTUI {
		if err := logger.InitFileOnly(""); err != nil {
			return err
		}
		defer logger.Close()

		monitor := tui.NewSweepMonitor()
		svc.WithObserver(monitor)
		err := monitor.Run(ctx, func(ctx context.Context) error {
			report = svc.Run(ctx, inv, gasStation)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		report = svc.Run(ctx, inv, gasStation)
	}

	if report == nil {
		return nil
	}

	if a.cfg.ReportDir != "" {
		if path, err := storage.SaveReport(a.cfg.ReportDir, report); err != nil {
			logger.Warn("Failed to save report: %v", err)
		} else {
			logger.Info("Report saved to %s", path)
		}
	}

	if a.metrics != nil {
		path, err := config.ExpandHome(a.cfg.MetricsFile)
		if err == nil {
			err = a.metrics.WriteTextfile(path)
		}
		if err != nil {
			logger.Warn("Failed to write metrics: %v", err)
		}
	}

	return nil
}
