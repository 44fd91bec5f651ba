// ==================================
// File: internal/market/market.go
// ==================================
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondswap/internal/config"
	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/events"
	"github.com/rovshanmuradov/bondswap/internal/ledger"
	"github.com/rovshanmuradov/bondswap/internal/metrics"
	"github.com/rovshanmuradov/bondswap/internal/pool"
	"github.com/rovshanmuradov/bondswap/internal/swap"
)

// Seed inventory for the pool opened when the configuration declares none.
const (
	DemoCustody  = 1_000_000
	DemoReserve  = 10_000_000
	mintDecimals = 6
)

// Market wires one reference ledger, its pools and a swap engine together.
type Market struct {
	Config   *config.Config
	Ledger   *ledger.Memory
	Registry *pool.Registry
	Bus      *events.Bus
	Metrics  *metrics.Collector
	Engine   *swap.Engine

	logger        *zap.Logger
	mintAuthority solana.PublicKey
}

// Open builds the market described by cfg and provisions every configured
// pool. With no pools configured a demo pool over two fresh mints is opened.
// Extra engine options are applied after the bus and metrics wiring.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...swap.Option) (*Market, error) {
	programID, err := cfg.Program()
	if err != nil {
		return nil, fmt.Errorf("invalid program id: %w", err)
	}

	m := &Market{
		Config:        cfg,
		Ledger:        ledger.NewMemory(programID, logger),
		Registry:      pool.NewRegistry(programID, logger),
		Bus:           events.NewBus(logger, cfg.EventBuffer),
		Metrics:       metrics.NewCollector(),
		logger:        logger.Named("market"),
		mintAuthority: solana.NewWallet().PublicKey(),
	}

	engineOpts := append([]swap.Option{
		swap.WithPublisher(m.Bus),
		swap.WithRecorder(m.Metrics),
	}, opts...)
	m.Engine = swap.NewEngine(m.Ledger, logger, engineOpts...)

	pools := cfg.Pools
	if len(pools) == 0 {
		pools = []config.PoolConfig{{
			MintA: solana.NewWallet().PublicKey().String(),
			MintB: solana.NewWallet().PublicKey().String(),
			Curve: curve.DefaultParams(),
			Liquidity: config.LiquidityConfig{
				AmountA:         DemoCustody,
				AmountB:         DemoCustody,
				ReserveLamports: DemoReserve,
			},
		}}
		m.logger.Info("No pools configured, opening a demo pool")
	}

	for i, pc := range pools {
		a, b, err := pc.Mints()
		if err != nil {
			return nil, fmt.Errorf("pools[%d]: %w", i, err)
		}
		liq := pool.Liquidity{
			AmountA:      pc.Liquidity.AmountA,
			AmountB:      pc.Liquidity.AmountB,
			ReserveFunds: pc.Liquidity.ReserveLamports,
		}
		if _, err := m.AddPool(ctx, a, b, pc.Curve, liq); err != nil {
			return nil, fmt.Errorf("pools[%d]: %w", i, err)
		}
	}
	return m, nil
}

// AddPool registers a pool, creates its mints when missing and seeds its
// custody. liq.MintAuthority is filled in by the market.
func (m *Market) AddPool(ctx context.Context, mintA, mintB solana.PublicKey, params curve.Params, liq pool.Liquidity) (*pool.LiquidityPool, error) {
	p, err := m.Registry.Create(mintA, mintB, params)
	if err != nil {
		return nil, err
	}
	for _, mint := range []solana.PublicKey{mintA, mintB} {
		err := m.Ledger.CreateMint(ctx, mint, mintDecimals, m.mintAuthority)
		if err != nil && !errors.Is(err, ledger.ErrMintExists) {
			return nil, fmt.Errorf("failed to create mint %s: %w", mint, err)
		}
	}

	liq.MintAuthority = ledger.WalletSigner(m.mintAuthority)
	if err := pool.Provision(ctx, m.Ledger, p, liq); err != nil {
		return nil, err
	}

	m.logger.Info("Pool opened",
		zap.String("pool", p.Address.String()),
		zap.String("mint_a", mintA.String()),
		zap.String("mint_b", mintB.String()),
		zap.Uint64("custody_a", liq.AmountA),
		zap.Uint64("custody_b", liq.AmountB),
		zap.Uint64("reserve", liq.ReserveFunds))

	ev := events.PoolCreatedEvent{
		BaseEvent: events.BaseEvent{EventType: events.PoolCreated, EventTime: time.Now()},
		Pool:      p.Address.String(),
		MintA:     mintA.String(),
		MintB:     mintB.String(),
		Authority: p.Authority.String(),
		Reserve:   p.Reserve.String(),
	}
	if err := m.Bus.Publish(ev); err != nil {
		m.logger.Warn("Failed to publish pool event", zap.Error(err))
	}

	m.Observe(ctx, p)
	return p, nil
}

// FundTrader credits lamports to trader.
func (m *Market) FundTrader(ctx context.Context, trader solana.PublicKey, lamports uint64) error {
	return m.Ledger.Airdrop(ctx, trader, lamports)
}

// Deposit adds depositor's tokens and lamports to p's inventory.
func (m *Market) Deposit(ctx context.Context, p *pool.LiquidityPool, depositor solana.PublicKey, amt pool.Amounts) error {
	if err := pool.Deposit(ctx, m.Ledger, p, depositor, amt); err != nil {
		return err
	}
	m.logger.Info("Liquidity deposited",
		zap.String("pool", p.Address.String()),
		zap.String("depositor", depositor.String()),
		zap.Uint64("amount_a", amt.A),
		zap.Uint64("amount_b", amt.B),
		zap.Uint64("lamports", amt.Lamports))
	m.Observe(ctx, p)
	return nil
}

// Withdraw pays inventory out of p to recipient under the pool authority.
func (m *Market) Withdraw(ctx context.Context, p *pool.LiquidityPool, recipient solana.PublicKey, amt pool.Amounts) error {
	if err := pool.Withdraw(ctx, m.Ledger, p, recipient, amt); err != nil {
		return err
	}
	m.logger.Info("Liquidity withdrawn",
		zap.String("pool", p.Address.String()),
		zap.String("recipient", recipient.String()),
		zap.Uint64("amount_a", amt.A),
		zap.Uint64("amount_b", amt.B),
		zap.Uint64("lamports", amt.Lamports))
	m.Observe(ctx, p)
	return nil
}

// Observe publishes the custody and reserve balances of p as gauges.
func (m *Market) Observe(ctx context.Context, p *pool.LiquidityPool) {
	accounts := []struct {
		name string
		read func() (uint64, error)
	}{
		{"custody_a", func() (uint64, error) { return m.Ledger.TokenBalance(ctx, p.CustodyA) }},
		{"custody_b", func() (uint64, error) { return m.Ledger.TokenBalance(ctx, p.CustodyB) }},
		{"reserve", func() (uint64, error) { return m.Ledger.Lamports(ctx, p.Reserve) }},
	}
	for _, a := range accounts {
		v, err := a.read()
		if err != nil {
			m.logger.Debug("Balance unavailable", zap.String("account", a.name), zap.Error(err))
			continue
		}
		m.Metrics.SetCustody(p.Address.String(), a.name, v)
	}
}

// Close drains the event bus.
func (m *Market) Close(ctx context.Context) error {
	return m.Bus.Shutdown(ctx)
}
