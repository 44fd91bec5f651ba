package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondswap/internal/config"
	"github.com/rovshanmuradov/bondswap/internal/ledger/solrpc"
	"github.com/rovshanmuradov/bondswap/internal/logger"
	"github.com/rovshanmuradov/bondswap/internal/market"
	"github.com/rovshanmuradov/bondswap/internal/pool"
	"github.com/rovshanmuradov/bondswap/internal/ui/style"
)

var (
	configPath string
	debug      bool

	// set by PersistentPreRunE
	cfg *config.Config
	log *logger.Logger

	styles = style.NewStyles(style.DefaultPalette())

	rootCmd = &cobra.Command{
		Use:           "bondswap",
		Short:         "Bonding-curve pool tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if debug {
				cfg.DebugLogging = true
			}

			lcfg := logger.DefaultConfig()
			lcfg.LogFile = cfg.LogFile
			lcfg.Development = cfg.DebugLogging
			lcfg.Console = os.Stderr
			log, err = logger.New(lcfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if log != nil {
				return log.Sync()
			}
			return nil
		},
	}
)

func init() {
	cobra.EnablePrefixMatching = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (JSON or YAML)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	rootCmd.AddCommand(
		poolsCmd,
		quoteCmd,
		simulateCmd,
		supplyCmd,
	)
}

// supplySource dials the configured cluster. m may be nil.
func supplySource(m *market.Market) *solrpc.SupplySource {
	opts := solrpc.Options{
		Retries:    cfg.Retries,
		RetryDelay: time.Duration(cfg.RetryDelayMs) * time.Millisecond,
	}
	if m != nil {
		opts.Recorder = m.Metrics
	}
	return solrpc.Dial(cfg.RPCURL, opts, log.Logger)
}

// selectPool returns the pool for the given mints, or the first pool when
// both are empty.
func selectPool(m *market.Market, mintA, mintB string) (*pool.LiquidityPool, error) {
	if mintA == "" && mintB == "" {
		pools := m.Registry.List()
		if len(pools) == 0 {
			return nil, pool.ErrPoolNotFound
		}
		return pools[0], nil
	}
	a, err := solana.PublicKeyFromBase58(mintA)
	if err != nil {
		return nil, fmt.Errorf("invalid --mint-a: %w", err)
	}
	b, err := solana.PublicKeyFromBase58(mintB)
	if err != nil {
		return nil, fmt.Errorf("invalid --mint-b: %w", err)
	}
	return m.Registry.Get(a, b)
}

func openMarket(cmd *cobra.Command) (*market.Market, error) {
	m, err := market.Open(cmd.Context(), cfg, log.Named("bondswap"))
	if err != nil {
		return nil, err
	}
	return m, nil
}

func closeMarket(cmd *cobra.Command, m *market.Market) {
	if err := m.Close(cmd.Context()); err != nil {
		log.Warn("Event bus did not drain", zap.Error(err))
	}
}
