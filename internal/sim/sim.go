// =============================
// File: internal/sim/sim.go
// =============================
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/ledger"
	"github.com/rovshanmuradov/bondswap/internal/pool"
	"github.com/rovshanmuradov/bondswap/internal/swap"
)

// Ledger is a ledger the simulation can fund traders on.
type Ledger interface {
	ledger.Ledger
	ledger.Provisioner
}

type Config struct {
	Traders        int
	TradesEach     int
	TraderLamports uint64
	MaxAmount      uint64
	// FaultRate is the chance any single ledger call fails.
	FaultRate  float64
	Strategies []curve.Strategy
	Seed       int64
}

func DefaultConfig() Config {
	return Config{
		Traders:        8,
		TradesEach:     50,
		TraderLamports: 100_000,
		MaxAmount:      25,
		FaultRate:      0.05,
		Strategies:     []curve.Strategy{curve.Linear},
		Seed:           1,
	}
}

// Holdings is the combined balance of the pool and every trader.
type Holdings struct {
	Lamports uint64
	LegA     uint64
	LegB     uint64
}

type Report struct {
	Committed int
	Aborted   int
	ByKind    map[string]int
	Receipts  []*swap.Receipt
	Before    Holdings
	After     Holdings
	// Violations lists every broken conservation check. Empty means the
	// run conserved value.
	Violations []string
}

func (r *Report) Conserved() bool {
	return len(r.Violations) == 0
}

type trader struct {
	key      solana.PublicKey
	lamports uint64
}

// Run funds cfg.Traders fresh traders and lets them trade against p
// concurrently through one engine, with random ledger faults. p must
// already be provisioned on l.
func Run(ctx context.Context, l Ledger, p *pool.LiquidityPool, cfg Config, logger *zap.Logger, opts ...swap.Option) (*Report, error) {
	logger = logger.Named("sim")
	if cfg.Traders <= 0 || cfg.TradesEach < 0 {
		return nil, fmt.Errorf("invalid simulation size: %d traders x %d trades", cfg.Traders, cfg.TradesEach)
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = []curve.Strategy{curve.Linear}
	}

	traders := make([]trader, cfg.Traders)
	for i := range traders {
		traders[i] = trader{key: solana.NewWallet().PublicKey(), lamports: cfg.TraderLamports}
		if cfg.TraderLamports == 0 {
			continue
		}
		if err := l.Airdrop(ctx, traders[i].key, cfg.TraderLamports); err != nil {
			return nil, fmt.Errorf("failed to fund trader %d: %w", i, err)
		}
	}

	before, err := holdings(ctx, l, p, traders)
	if err != nil {
		return nil, err
	}

	var faultMu sync.Mutex
	faultRng := rand.New(rand.NewSource(cfg.Seed))
	faulty := ledger.WithFaults(l, func(c ledger.Call) error {
		faultMu.Lock()
		defer faultMu.Unlock()
		if faultRng.Float64() < cfg.FaultRate {
			return errors.New("simulated outage")
		}
		return nil
	})
	engine := swap.NewEngine(faulty, logger, opts...)

	report := &Report{ByKind: make(map[string]int), Before: before}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, tr := range traders {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(i) + 1))
		key := tr.key
		g.Go(func() error {
			for j := 0; j < cfg.TradesEach; j++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				leg := pool.LegA
				if rng.Intn(2) == 1 {
					leg = pool.LegB
				}
				req := swap.Request{
					Pool:     p,
					Leg:      leg,
					Amount:   drawAmount(rng, cfg.MaxAmount),
					Strategy: cfg.Strategies[rng.Intn(len(cfg.Strategies))],
					Trader:   key,
				}

				var rc *swap.Receipt
				var err error
				if rng.Intn(2) == 0 {
					rc, err = engine.Buy(gctx, req)
				} else {
					rc, err = engine.Sell(gctx, req)
				}

				mu.Lock()
				if err != nil {
					report.Aborted++
					report.ByKind[swap.KindOf(err).String()]++
				} else {
					report.Committed++
					report.Receipts = append(report.Receipts, rc)
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	after, err := holdings(ctx, l, p, traders)
	if err != nil {
		return nil, err
	}
	report.After = after
	report.Violations = append(report.Violations, checkTotals(before, after)...)

	perTrader, err := checkTraders(ctx, l, p, traders, report.Receipts)
	if err != nil {
		return nil, err
	}
	report.Violations = append(report.Violations, perTrader...)

	logger.Info("Simulation finished",
		zap.Int("traders", cfg.Traders),
		zap.Int("committed", report.Committed),
		zap.Int("aborted", report.Aborted),
		zap.Bool("conserved", report.Conserved()))

	return report, nil
}

// drawAmount returns a trade size in [0, limit].
func drawAmount(rng *rand.Rand, limit uint64) uint64 {
	if limit == math.MaxUint64 {
		return rng.Uint64()
	}
	return rng.Uint64() % (limit + 1)
}

func holdings(ctx context.Context, l ledger.Reader, p *pool.LiquidityPool, traders []trader) (Holdings, error) {
	var h Holdings
	reserve, err := l.Lamports(ctx, p.Reserve)
	if err != nil {
		return h, fmt.Errorf("failed to read reserve: %w", err)
	}
	h.Lamports = reserve
	if h.LegA, err = l.TokenBalance(ctx, p.CustodyA); err != nil {
		return h, fmt.Errorf("failed to read custody A: %w", err)
	}
	if h.LegB, err = l.TokenBalance(ctx, p.CustodyB); err != nil {
		return h, fmt.Errorf("failed to read custody B: %w", err)
	}

	for _, tr := range traders {
		b, err := traderBalances(ctx, l, p, tr.key)
		if err != nil {
			return h, err
		}
		h.Lamports += b.Lamports
		h.LegA += b.LegA
		h.LegB += b.LegB
	}
	return h, nil
}

func traderBalances(ctx context.Context, l ledger.Reader, p *pool.LiquidityPool, key solana.PublicKey) (Holdings, error) {
	var h Holdings
	var err error
	if h.Lamports, err = optional(l.Lamports(ctx, key)); err != nil {
		return h, err
	}
	for _, leg := range []pool.Leg{pool.LegA, pool.LegB} {
		ata, err := p.TraderAccount(key, leg)
		if err != nil {
			return h, err
		}
		bal, err := optional(l.TokenBalance(ctx, ata))
		if err != nil {
			return h, err
		}
		if leg == pool.LegA {
			h.LegA = bal
		} else {
			h.LegB = bal
		}
	}
	return h, nil
}

// optional treats a missing account as an empty one.
func optional(v uint64, err error) (uint64, error) {
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, nil
	}
	return v, err
}

func checkTotals(before, after Holdings) []string {
	var v []string
	if before.Lamports != after.Lamports {
		v = append(v, fmt.Sprintf("lamports: %d before, %d after", before.Lamports, after.Lamports))
	}
	if before.LegA != after.LegA {
		v = append(v, fmt.Sprintf("leg A: %d before, %d after", before.LegA, after.LegA))
	}
	if before.LegB != after.LegB {
		v = append(v, fmt.Sprintf("leg B: %d before, %d after", before.LegB, after.LegB))
	}
	return v
}

// checkTraders replays each trader's receipts and compares the result with
// the ledger. Aborted trades have no receipt, so any effect they left shows
// up here.
func checkTraders(ctx context.Context, l ledger.Reader, p *pool.LiquidityPool, traders []trader, receipts []*swap.Receipt) ([]string, error) {
	type delta struct {
		lamports int64
		legA     int64
		legB     int64
	}
	deltas := make(map[solana.PublicKey]*delta, len(traders))
	for _, tr := range traders {
		deltas[tr.key] = &delta{}
	}
	for _, rc := range receipts {
		d := deltas[rc.Trader]
		sign := int64(1)
		if rc.Direction == swap.Sell {
			sign = -1
		}
		d.lamports -= sign * int64(rc.TotalPrice)
		if rc.Leg == pool.LegA {
			d.legA += sign * int64(rc.Amount)
		} else {
			d.legB += sign * int64(rc.Amount)
		}
	}

	var v []string
	for _, tr := range traders {
		got, err := traderBalances(ctx, l, p, tr.key)
		if err != nil {
			return nil, err
		}
		d := deltas[tr.key]
		if int64(got.Lamports) != int64(tr.lamports)+d.lamports {
			v = append(v, fmt.Sprintf("trader %s lamports: have %d, receipts imply %d", tr.key, got.Lamports, int64(tr.lamports)+d.lamports))
		}
		if int64(got.LegA) != d.legA {
			v = append(v, fmt.Sprintf("trader %s leg A: have %d, receipts imply %d", tr.key, got.LegA, d.legA))
		}
		if int64(got.LegB) != d.legB {
			v = append(v, fmt.Sprintf("trader %s leg B: have %d, receipts imply %d", tr.key, got.LegB, d.legB))
		}
	}
	return v, nil
}
