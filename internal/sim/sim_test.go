package sim

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/ledger"
	"github.com/rovshanmuradov/bondswap/internal/pool"
)

func setupPool(t *testing.T, params curve.Params) (*ledger.Memory, *pool.LiquidityPool) {
	t.Helper()
	ctx := context.Background()
	programID := solana.NewWallet().PublicKey()
	mintAuth := solana.NewWallet().PublicKey()
	l := ledger.NewMemory(programID, zap.NewNop())

	p, err := pool.New(programID, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), params)
	require.NoError(t, err)
	require.NoError(t, l.CreateMint(ctx, p.MintA, 0, mintAuth))
	require.NoError(t, l.CreateMint(ctx, p.MintB, 0, mintAuth))
	require.NoError(t, pool.Provision(ctx, l, p, pool.Liquidity{
		AmountA:       5_000,
		AmountB:       5_000,
		ReserveFunds:  50_000,
		MintAuthority: ledger.WalletSigner(mintAuth),
	}))
	return l, p
}

func TestRunConservesValue(t *testing.T) {
	l, p := setupPool(t, curve.Params{Divisor: 1000, BasePrice: 10, Scale: 1.0, Rate: 0.0001})

	cfg := DefaultConfig()
	cfg.Strategies = []curve.Strategy{curve.Linear, curve.Exponential}
	cfg.FaultRate = 0.1

	report, err := Run(context.Background(), l, p, cfg, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, report.Conserved(), "violations: %v", report.Violations)
	assert.Equal(t, cfg.Traders*cfg.TradesEach, report.Committed+report.Aborted)
	assert.Positive(t, report.Committed)
	assert.Positive(t, report.Aborted)
	assert.Equal(t, report.Before, report.After)
	assert.Len(t, report.Receipts, report.Committed)
}

func TestRunWithoutFaults(t *testing.T) {
	l, p := setupPool(t, curve.DefaultParams())

	cfg := DefaultConfig()
	cfg.FaultRate = 0
	cfg.Traders = 3
	cfg.TradesEach = 20

	report, err := Run(context.Background(), l, p, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, report.Conserved(), "violations: %v", report.Violations)
	assert.Zero(t, report.ByKind["SettlementAborted"])
}

func TestRunRejectsEmptyConfig(t *testing.T) {
	l, p := setupPool(t, curve.DefaultParams())
	_, err := Run(context.Background(), l, p, Config{}, zap.NewNop())
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	l, p := setupPool(t, curve.DefaultParams())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultConfig()
	cfg.TraderLamports = 0
	_, err := Run(ctx, l, p, cfg, zap.NewNop())
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunWithUnboundedTradeSize(t *testing.T) {
	l, p := setupPool(t, curve.DefaultParams())

	cfg := DefaultConfig()
	cfg.Traders = 2
	cfg.TradesEach = 10
	cfg.FaultRate = 0
	cfg.MaxAmount = math.MaxUint64

	report, err := Run(context.Background(), l, p, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, cfg.Traders*cfg.TradesEach, report.Committed+report.Aborted)
	assert.True(t, report.Conserved(), "violations: %v", report.Violations)
}

func TestDrawAmountStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, limit := range []uint64{0, 1, 25, math.MaxInt64, math.MaxUint64 - 1} {
		for i := 0; i < 100; i++ {
			assert.LessOrEqual(t, drawAmount(rng, limit), limit)
		}
	}
	assert.NotPanics(t, func() { drawAmount(rng, math.MaxUint64) })
}
