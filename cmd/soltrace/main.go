package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/soltrace/soltrace/internal/analyze"
	"github.com/soltrace/soltrace/internal/audit"
	"github.com/soltrace/soltrace/internal/authority"
	"github.com/soltrace/soltrace/internal/config"
	"github.com/soltrace/soltrace/internal/daemon"
	"github.com/soltrace/soltrace/internal/report"
	"github.com/soltrace/soltrace/internal/solana"
	"github.com/soltrace/soltrace/internal/web"
)

var (
	flagConfig string
	flagRPC    string
	flagJSON   bool
	flagStub   bool

	cfg    *config.Config
	client solana.Client
)

func main() {
	root := &cobra.Command{
		Use:   "soltrace",
		Short: "Solana wallet relationship discovery and program control analysis",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if flagConfig != "" {
				cfg, err = config.Load(flagConfig)
				if err != nil {
					return err
				}
			} else {
				cfg = config.Default()
			}
			if flagRPC != "" {
				cfg.Solana.Endpoint = flagRPC
			}
			setupLogging(cfg.General)

			if flagStub {
				client = solana.NewStubClient()
				log.Info().Msg("data source: STUB mode")
				return nil
			}

			live := solana.NewLiveClient(solana.ClientConfig{
				Endpoint:     cfg.Solana.Endpoint,
				WSEndpoint:   cfg.Solana.WSEndpoint,
				Timeout:      time.Duration(cfg.Solana.TimeoutS) * time.Second,
				MaxRetries:   cfg.Solana.MaxRetries,
				RateLimitRPS: cfg.Solana.RateLimitRPS,
			})
			client = live

			healthCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := client.Health(healthCtx); err != nil {
				log.Warn().Err(err).Str("endpoint", cfg.Solana.Endpoint).
					Msg("RPC health check failed (continuing, may be rate-limited)")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to configuration file")
	root.PersistentFlags().StringVar(&flagRPC, "rpc", "", "override RPC endpoint")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON instead of text")
	root.PersistentFlags().BoolVar(&flagStub, "stub", false, "use stub data source (no real connection)")

	root.AddCommand(
		walletCmd(),
		webCmd(),
		analyzeCmd(),
		auditCmd(),
		scanCmd(),
		authoritiesCmd(),
		daemonCmd(),
	)

	if err := root.ExecuteContext(signalContext()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func walletCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet <address>",
		Short: "Profile a single wallet: balance, token accounts, recent activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			address := solana.Pubkey(args[0])

			balance, err := client.GetBalance(ctx, address)
			if err != nil {
				return fmt.Errorf("balance lookup: %w", err)
			}
			accounts, err := client.GetTokenAccounts(ctx, address)
			if err != nil {
				log.Warn().Err(err).Msg("token account lookup failed")
			}
			sigs, err := client.GetRecentSignatures(ctx, address, 10)
			if err != nil {
				log.Warn().Err(err).Msg("signature lookup failed")
			}

			if flagJSON {
				return report.WriteJSON(os.Stdout, map[string]any{
					"address":        address,
					"balance_sol":    balance,
					"token_accounts": accounts,
					"signatures":     sigs,
				})
			}
			report.PrintWallet(os.Stdout, address, balance, accounts, sigs)
			return nil
		},
	}
}

func webCmd() *cobra.Command {
	var budget int
	cmd := &cobra.Command{
		Use:   "web <seed-address>",
		Short: "Crawl the wallet web around a seed via shared token holdings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := solana.Pubkey(args[0])

			crawlConfig := web.Config{
				Budget:          cfg.Crawl.Budget,
				HolderFanout:    cfg.Crawl.HolderFanout,
				ExpandThreshold: cfg.Crawl.ExpandThreshold,
				PaceDelay:       time.Duration(cfg.Crawl.PaceDelayMs) * time.Millisecond,
			}
			if budget > 0 {
				crawlConfig.Budget = budget
			}

			crawler := web.NewCrawler(crawlConfig, client, nil)
			ix := crawler.Crawl(cmd.Context(), seed)

			if flagJSON {
				return report.WriteJSON(os.Stdout, map[string]any{
					"seed":           seed,
					"index":          ix.Export(),
					"connections":    ix.ConnectingTokens(),
					"most_connected": ix.MostConnected(10),
					"stats":          crawler.Stats(),
				})
			}
			report.PrintWeb(os.Stdout, seed, ix)
			return nil
		},
	}
	cmd.Flags().IntVar(&budget, "budget", 0, "max wallets to visit (overrides config)")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var minShared int
	cmd := &cobra.Command{
		Use:   "analyze <address>...",
		Short: "Compare wallets: similarity, shared tokens, whales, clusters",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			graph := analyze.NewWalletGraph()

			for _, arg := range args {
				address := solana.Pubkey(arg)
				balance, err := client.GetBalance(ctx, address)
				if err != nil {
					log.Warn().Err(err).Str("wallet", arg).Msg("balance lookup failed")
				}
				mints, err := client.GetHoldings(ctx, address)
				if err != nil {
					log.Warn().Err(err).Str("wallet", arg).Msg("holdings lookup failed")
				}
				strs := make([]string, len(mints))
				for i, m := range mints {
					strs[i] = string(m)
				}
				graph.AddWallet(arg, balance.InexactFloat64(), strs)
			}

			if minShared <= 0 {
				minShared = cfg.Analyze.MinSharedTokens
			}

			if flagJSON {
				return report.WriteJSON(os.Stdout, map[string]any{
					"wallets":       graph.Wallets(),
					"total_sol":     graph.TotalSOL(),
					"common_tokens": graph.CommonTokens(),
					"whales":        graph.Whales(cfg.Analyze.WhaleCount),
					"clusters":      graph.Clusters(minShared),
				})
			}
			report.PrintAnalysis(os.Stdout, graph, minShared, cfg.Analyze.WhaleCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&minShared, "min-shared", 0, "min shared tokens for clustering (overrides config)")
	return cmd
}

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <program-id>",
		Short: "Audit a program account for risk signals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			auditor := audit.NewAuditor(audit.DefaultConfig(), client)
			result, err := auditor.Audit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if flagJSON {
				return report.WriteJSON(os.Stdout, result)
			}
			report.PrintAudit(os.Stdout, result)
			return nil
		},
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Audit the full DeFi program registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			auditor := audit.NewAuditor(audit.DefaultConfig(), client)
			entries, summary := auditor.ScanAll(cmd.Context())
			if flagJSON {
				return report.WriteJSON(os.Stdout, map[string]any{
					"entries": entries,
					"summary": summary,
				})
			}
			report.PrintScan(os.Stdout, entries, summary)
			return nil
		},
	}
}

func authoritiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authorities",
		Short: "Map upgrade authorities across the program registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mapper := authority.NewMapper(authority.DefaultConfig(), client)
			results := mapper.MapAll(cmd.Context())
			pm := authority.BuildPowerMap(results)
			if flagJSON {
				return report.WriteJSON(os.Stdout, map[string]any{
					"programs":  results,
					"power_map": pm,
				})
			}
			report.PrintPowerMap(os.Stdout, results, pm)
			return nil
		},
	}
}

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Continuously monitor program control changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			auditor := audit.NewAuditor(audit.DefaultConfig(), client)
			mapper := authority.NewMapper(authority.DefaultConfig(), client)
			guardian := daemon.NewGuardian(daemon.Config{
				Interval:        time.Duration(cfg.Daemon.IntervalS) * time.Second,
				BalanceShiftSOL: cfg.Daemon.BalanceShiftSOL,
			}, auditor, mapper)

			guardian.OnAlert = func(alert daemon.Alert) {
				if flagJSON {
					report.WriteJSON(os.Stdout, alert)
					return
				}
				fmt.Printf("[%s] %s %s: %s\n",
					alert.Timestamp.Format(time.RFC3339), alert.Severity, alert.Program, alert.Message)
			}

			var events <-chan solana.AccountEvent
			if len(cfg.Daemon.WatchAccounts) > 0 && !flagStub {
				watcherConfig := solana.DefaultWatcherConfig()
				watcherConfig.WSEndpoint = cfg.Solana.WSEndpoint
				watcherConfig.Accounts = cfg.Daemon.WatchAccounts
				watcher := solana.NewAccountWatcher(watcherConfig)
				ch, err := watcher.Start(ctx)
				if err != nil {
					log.Warn().Err(err).Msg("account watcher failed to start, polling only")
				} else {
					events = ch
				}
			}

			err := guardian.Run(ctx, events)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()
	return ctx
}

func setupLogging(general config.GeneralConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(general.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if general.LogFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Str("service", "soltrace").
			Str("instance", general.InstanceID).Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).
			With().Timestamp().Str("service", "soltrace").
			Str("instance", general.InstanceID).Logger()
	}
}
