package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kelsos/weave-sweep/internal/config"
	"github.com/kelsos/weave-sweep/internal/logger"
	"github.com/kelsos/weave-sweep/internal/storage"
	"github.com/kelsos/weave-sweep/internal/utils"
)

func main() {
	utils.LoadEnvironment()
	logger.Init()

	cfg := config.NewConfig()
	cfg.LoadFromEnvironment()
	if cfg.ReportDir == "" {
		dir, err := storage.DefaultReportDir()
		if err != nil {
			logger.Warn("Run reports disabled: %v", err)
		}
		cfg.ReportDir = dir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var useTUI bool

	rootCmd := &cobra.Command{
		Use:   "weave-sweep",
		Short: "Return surplus operator funds to the gas station",
		Long: `weave-sweep reads the operator accounts of a weave rollup, checks their Initia and
Celestia balances and sends everything above a fixed reserve back to the gas station.`,
		Run: func(cmd *cobra.Command, args []string) {
			runSweepCommand(ctx, cfg, useTUI)
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one consolidation pass (same as running without a subcommand)",
		Run: func(cmd *cobra.Command, args []string) {
			runSweepCommand(ctx, cfg, useTUI)
		},
	}

	var every time.Duration
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Repeat the consolidation pass at a fixed interval",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runSchedule(ctx, cfg, every); err != nil {
				logger.Fatal("%v", err)
			}
		},
	}
	scheduleCmd.Flags().DurationVar(&every, "every", time.Hour, "Interval between runs")

	balancesCmd := &cobra.Command{
		Use:   "balances",
		Short: "Print the balances of every operator address",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runBalances(ctx, cfg); err != nil {
				logger.Fatal("%v", err)
			}
		},
	}

	balanceCmd := &cobra.Command{
		Use:   "balance <address> [network]",
		Short: "Print the balances of a single Initia or Celestia address",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			network := ""
			if len(args) == 2 {
				network = args[1]
			}
			if err := runBalance(ctx, cfg, args[0], network); err != nil {
				logger.Fatal("%v", err)
			}
		},
	}

	sendCmd := &cobra.Command{
		Use:   "send <recipient> <amount>",
		Short: "Send INIT or TIA, chosen by the recipient prefix",
		Long: `Send a whole-token amount such as 0.5 to an init1 or celestia1 address. The sender
mnemonic is read from INITIA_SENDER_MNEMONIC or SENDER_MNEMONIC respectively.`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := runSend(ctx, cfg, args[0], args[1]); err != nil {
				logger.Fatal("%v", err)
			}
		},
	}

	convertCmd := &cobra.Command{
		Use:   "convert <address>",
		Short: "Convert between 0x EVM and init1 address formats",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := runConvert(args[0]); err != nil {
				logger.Fatal("%v", err)
			}
		},
	}

	evmBalanceCmd := &cobra.Command{
		Use:   "evm-balance <address>",
		Short: "Print the native gas token balance of an EVM address",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := runEVMBalance(ctx, cfg, args[0]); err != nil {
				logger.Fatal("%v", err)
			}
		},
	}
	evmBalanceCmd.Flags().StringVar(&cfg.EVMNodeURL, "evm-node", cfg.EVMNodeURL, "EVM JSON-RPC endpoint")

	var historyLimit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded transfer attempts",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runHistory(ctx, cfg, historyLimit); err != nil {
				logger.Fatal("%v", err)
			}
		},
	}
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")

	// Flags shared by every command
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfg.ConfigFile, "file", "f", cfg.ConfigFile, "Path to minitia.config.json or a directory holding .weave/data/minitia.config.json")
	flags.StringVar(&cfg.WeaveHome, "weave-home", cfg.WeaveHome, "Directory holding .weave/config.json (default: derived from --file)")
	flags.StringVar(&cfg.InitiaNetwork, "initia-network", cfg.InitiaNetwork, "Initia REST network (testnet, mainnet)")
	flags.StringVar(&cfg.CelestiaNetwork, "celestia-network", cfg.CelestiaNetwork, "Celestia REST network (mocha-4, mainnet, arabica-11)")
	flags.StringVar(&cfg.InitiaRPC, "initia-rpc", cfg.InitiaRPC, "Initia CometBFT RPC endpoint")
	flags.StringVar(&cfg.CelestiaRPC, "celestia-rpc", cfg.CelestiaRPC, "Celestia CometBFT RPC endpoint")
	flags.StringVar(&cfg.PolicyFile, "policy", cfg.PolicyFile, "TOML file overriding per-chain denom, reserve, gas and memo")
	flags.StringVar(&cfg.HistoryDB, "history-db", cfg.HistoryDB, "SQLite file recording every transfer attempt")
	flags.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics to this path")
	flags.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "Timeout of REST balance queries")

	for _, cmd := range []*cobra.Command{rootCmd, sweepCmd, scheduleCmd} {
		cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Plan transfers without broadcasting")
		cmd.Flags().StringVar(&cfg.ReportDir, "report-dir", cfg.ReportDir, "Directory for JSON run reports (empty disables)")
	}
	rootCmd.Flags().BoolVar(&useTUI, "tui", false, "Show an interactive progress view")
	sweepCmd.Flags().BoolVar(&useTUI, "tui", false, "Show an interactive progress view")

	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(balancesCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(evmBalanceCmd)
	rootCmd.AddCommand(historyCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to execute command: %v", err)
	}
}

func runSweepCommand(ctx context.Context, cfg *config.Config, useTUI bool) {
	app, err := newApp(cfg)
	if err != nil {
		logger.Fatal("%v", err)
	}
	defer app.Close()

	if err := app.sweepOnce(ctx, useTUI); err != nil {
		logger.Fatal("%v", err)
	}
}
