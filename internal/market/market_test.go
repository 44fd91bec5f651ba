package market

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondswap/internal/config"
	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/events"
	"github.com/rovshanmuradov/bondswap/internal/ledger"
	"github.com/rovshanmuradov/bondswap/internal/pool"
	"github.com/rovshanmuradov/bondswap/internal/swap"
)

func TestOpenDemoPoolAndTrade(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	m, err := Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)

	pools := m.Registry.List()
	require.Len(t, pools, 1)
	p := pools[0]

	custody, err := m.Ledger.TokenBalance(ctx, p.CustodyA)
	require.NoError(t, err)
	assert.Equal(t, uint64(DemoCustody), custody)

	journal := events.NewJournal(0)
	m.Bus.Subscribe(events.TradeSettled, journal)

	trader := solana.NewWallet().PublicKey()
	require.NoError(t, m.FundTrader(ctx, trader, 1_000_000))

	rc, err := m.Engine.Buy(ctx, swap.Request{Pool: p, Leg: pool.LegA, Amount: 10, Strategy: curve.Linear, Trader: trader})
	require.NoError(t, err)
	// supply equals the seeded custody: 1_000_000/1000 + 10 per unit
	assert.Equal(t, uint64(10*1_010), rc.TotalPrice)

	require.NoError(t, m.Close(ctx))
	got := journal.Events()
	require.Len(t, got, 1)
	assert.Equal(t, rc.ID, got[0].(events.TradeSettledEvent).TradeID)
}

func TestOpenConfiguredPools(t *testing.T) {
	ctx := context.Background()
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	c := solana.NewWallet().PublicKey()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Pools = []config.PoolConfig{
		{MintA: a.String(), MintB: b.String(), Curve: curve.DefaultParams(), Liquidity: config.LiquidityConfig{AmountA: 10, AmountB: 20, ReserveLamports: 30}},
		{MintA: a.String(), MintB: c.String(), Curve: curve.DefaultParams()},
	}

	m, err := Open(ctx, cfg, zap.NewNop(), swap.WithSupplySource(ledger.StaticSupply{a: 0, b: 0, c: 0}))
	require.NoError(t, err)
	defer func() { _ = m.Close(ctx) }()

	require.Len(t, m.Registry.List(), 2)
	p, err := m.Registry.Get(b, a)
	require.NoError(t, err)

	reserve, err := m.Ledger.Lamports(ctx, p.Reserve)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), reserve)

	// the shared mint was created once; its supply is the custody of the first pool
	supply, err := m.Ledger.Supply(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), supply)

	q, err := m.Engine.Quote(ctx, swap.Request{Pool: p, Leg: pool.LegA, Amount: 5, Strategy: curve.Linear})
	require.NoError(t, err)
	assert.Equal(t, uint64(50), q.TotalPrice)

	_, err = m.AddPool(ctx, b, a, curve.DefaultParams(), pool.Liquidity{})
	require.ErrorIs(t, err, pool.ErrPoolExists)
}

func TestLiquidityRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	m, err := Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = m.Close(ctx) }()
	p := m.Registry.List()[0]

	// an operator withdraws reserve and leg A, then puts the tokens back
	operator := solana.NewWallet().PublicKey()
	require.NoError(t, m.Withdraw(ctx, p, operator, pool.Amounts{A: 400, Lamports: 1_000}))

	custody, err := m.Ledger.TokenBalance(ctx, p.CustodyA)
	require.NoError(t, err)
	assert.Equal(t, uint64(DemoCustody-400), custody)
	reserve, err := m.Ledger.Lamports(ctx, p.Reserve)
	require.NoError(t, err)
	assert.Equal(t, uint64(DemoReserve-1_000), reserve)

	require.NoError(t, m.Deposit(ctx, p, operator, pool.Amounts{A: 400, Lamports: 1_000}))
	custody, err = m.Ledger.TokenBalance(ctx, p.CustodyA)
	require.NoError(t, err)
	assert.Equal(t, uint64(DemoCustody), custody)

	require.ErrorIs(t, m.Deposit(ctx, p, operator, pool.Amounts{Lamports: 1}), ledger.ErrInsufficientFunds)
}
