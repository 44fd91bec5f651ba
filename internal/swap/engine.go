// =============================
// File: internal/swap/engine.go
// =============================
package swap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/events"
	"github.com/rovshanmuradov/bondswap/internal/ledger"
)

// Publisher receives trade events. *events.Bus satisfies it.
type Publisher interface {
	Publish(event events.Event) error
}

// Recorder receives trade outcomes for metrics.
type Recorder interface {
	RecordSettled(direction, strategy string, totalPrice uint64, elapsed time.Duration)
	RecordAborted(direction, strategy, kind string)
}

// Engine settles buys and sells against a ledger. It holds no locks of its
// own; the ledger serializes transactions.
type Engine struct {
	ledger    ledger.Ledger
	supply    ledger.SupplyReader
	publisher Publisher
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Engine)

// WithSupplySource prices trades from an external supply feed instead of
// the supply recorded in the settling transaction.
func WithSupplySource(src ledger.SupplyReader) Option {
	return func(e *Engine) { e.supply = src }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func withClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(l ledger.Ledger, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		ledger: l,
		logger: logger.Named("swap"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Buy pays lamports into the pool reserve and receives amount of the leg
// from pool custody.
func (e *Engine) Buy(ctx context.Context, req Request) (*Receipt, error) {
	return e.execute(ctx, Buy, req)
}

// Sell pays amount of the leg into pool custody and receives lamports from
// the pool reserve.
func (e *Engine) Sell(ctx context.Context, req Request) (*Receipt, error) {
	return e.execute(ctx, Sell, req)
}

// Quote prices req without touching balances.
func (e *Engine) Quote(ctx context.Context, req Request) (Quote, error) {
	var src ledger.SupplyReader = e.ledger
	if e.supply != nil {
		src = e.supply
	}
	return QuoteFrom(ctx, src, req)
}

// QuoteFrom prices req against the supply reported by src.
func QuoteFrom(ctx context.Context, src ledger.SupplyReader, req Request) (Quote, error) {
	const op = "quote"
	if err := req.validate(false); err != nil {
		return Quote{}, newError(op, KindInvalidRequest, 0, err)
	}
	model, err := curve.New(req.Strategy, req.Pool.Curve)
	if err != nil {
		return Quote{}, newError(op, curveKind(err), 0, err)
	}
	mint, _ := req.Pool.Mint(req.Leg)

	supply, err := src.Supply(ctx, mint)
	if err != nil {
		return Quote{}, newError(op, supplyKind(err), 0, fmt.Errorf("read supply: %w", err))
	}
	total, err := model.Price(supply, req.Amount)
	if err != nil {
		return Quote{}, newError(op, curveKind(err), 0, err)
	}
	unit, _ := model.UnitPrice(supply)

	return Quote{
		Pool:       req.Pool.Address,
		Leg:        req.Leg,
		Mint:       mint,
		Strategy:   req.Strategy,
		Amount:     req.Amount,
		Supply:     supply,
		UnitPrice:  unit,
		TotalPrice: total,
	}, nil
}

func (e *Engine) execute(ctx context.Context, dir Direction, req Request) (*Receipt, error) {
	start := e.now()
	rc, err := e.settle(ctx, dir, req)
	if err != nil {
		e.aborted(dir, req, err)
		return nil, err
	}
	e.settled(rc, e.now().Sub(start))
	return rc, nil
}

// settle runs one trade inside one ledger transaction. Every return path
// before Commit rolls the transaction back.
func (e *Engine) settle(ctx context.Context, dir Direction, req Request) (*Receipt, error) {
	op := dir.String()
	if err := req.validate(true); err != nil {
		return nil, newError(op, KindInvalidRequest, 0, err)
	}
	model, err := curve.New(req.Strategy, req.Pool.Curve)
	if err != nil {
		return nil, newError(op, curveKind(err), 0, err)
	}
	mint, _ := req.Pool.Mint(req.Leg)
	traderAccount, err := req.Pool.TraderAccount(req.Trader, req.Leg)
	if err != nil {
		return nil, newError(op, KindInvalidRequest, 0, err)
	}

	// An external feed is read before Begin so a slow source never holds
	// the ledger lock. Ledger supply is read inside the transaction.
	var supply uint64
	if e.supply != nil {
		if supply, err = e.supply.Supply(ctx, mint); err != nil {
			return nil, newError(op, supplyKind(err), 0, fmt.Errorf("read supply: %w", err))
		}
	}

	tx, err := e.ledger.Begin(ctx)
	if err != nil {
		return nil, newError(op, KindSettlementAborted, 0, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	if e.supply == nil {
		if supply, err = tx.Supply(mint); err != nil {
			return nil, newError(op, supplyKind(err), 0, fmt.Errorf("read supply: %w", err))
		}
	}
	total, err := model.Price(supply, req.Amount)
	if err != nil {
		return nil, newError(op, curveKind(err), 0, err)
	}
	unit, _ := model.UnitPrice(supply)

	rc := &Receipt{
		ID:           uuid.NewString(),
		Pool:         req.Pool.Address,
		Trader:       req.Trader,
		Direction:    dir,
		Leg:          req.Leg,
		Mint:         mint,
		Strategy:     req.Strategy,
		Amount:       req.Amount,
		TotalPrice:   total,
		UnitPrice:    unit,
		SupplyBefore: supply,
	}
	rc.advance(PhaseValidated)

	if req.Amount == 0 {
		rc.advance(PhaseCommitted)
		rc.SettledAt = e.now()
		return rc, nil
	}

	if err := checkProvisioned(tx, req); err != nil {
		return nil, newError(op, KindInvalidRequest, PhaseValidated, err)
	}

	l := legs{tx: tx, req: req, rc: rc, traderAccount: traderAccount}
	switch dir {
	case Buy:
		err = l.buy()
	case Sell:
		err = l.sell()
	default:
		err = newError(op, KindInvalidRequest, PhaseValidated, fmt.Errorf("unknown direction %s", dir))
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, newError(op, KindSettlementAborted, rc.Phase(), fmt.Errorf("commit: %w", err))
	}
	rc.advance(PhaseCommitted)
	rc.SettledAt = e.now()
	return rc, nil
}

func supplyKind(err error) Kind {
	if errors.Is(err, ledger.ErrMintNotFound) {
		return KindInvalidRequest
	}
	return KindSettlementAborted
}

// checkProvisioned makes sure the pool's reserve and the leg's custody
// account exist before anything moves.
func checkProvisioned(tx ledger.Tx, req Request) error {
	custody, _ := req.Pool.Custody(req.Leg)
	if _, err := tx.TokenBalance(custody); err != nil {
		return fmt.Errorf("pool not provisioned: custody %s: %w", custody, err)
	}
	if _, err := tx.Lamports(req.Pool.Reserve); err != nil {
		return fmt.Errorf("pool not provisioned: reserve %s: %w", req.Pool.Reserve, err)
	}
	return nil
}

func (e *Engine) settled(rc *Receipt, elapsed time.Duration) {
	e.logger.Info("Trade settled",
		zap.String("trade_id", rc.ID),
		zap.String("direction", rc.Direction.String()),
		zap.String("pool", rc.Pool.String()),
		zap.String("leg", rc.Leg.String()),
		zap.String("strategy", rc.Strategy.String()),
		zap.Uint64("amount", rc.Amount),
		zap.Uint64("total_price", rc.TotalPrice),
		zap.Uint64("supply_before", rc.SupplyBefore),
		zap.Duration("elapsed", elapsed))

	if e.recorder != nil {
		e.recorder.RecordSettled(rc.Direction.String(), rc.Strategy.String(), rc.TotalPrice, elapsed)
	}
	if e.publisher != nil {
		ev := events.TradeSettledEvent{
			BaseEvent:  events.BaseEvent{EventType: events.TradeSettled, EventTime: rc.SettledAt},
			TradeID:    rc.ID,
			Pool:       rc.Pool.String(),
			Trader:     rc.Trader.String(),
			Mint:       rc.Mint.String(),
			Direction:  rc.Direction.String(),
			Leg:        rc.Leg.String(),
			Strategy:   rc.Strategy.String(),
			Amount:     rc.Amount,
			TotalPrice: rc.TotalPrice,
			Supply:     rc.SupplyBefore,
		}
		if err := e.publisher.Publish(ev); err != nil {
			e.logger.Warn("Failed to publish trade event", zap.String("trade_id", rc.ID), zap.Error(err))
		}
	}
}

func (e *Engine) aborted(dir Direction, req Request, err error) {
	kind := KindOf(err)
	var phase Phase
	var se *Error
	if errors.As(err, &se) {
		phase = se.Phase
	}

	fields := []zap.Field{
		zap.String("direction", dir.String()),
		zap.String("leg", req.Leg.String()),
		zap.String("strategy", req.Strategy.String()),
		zap.Uint64("amount", req.Amount),
		zap.String("trader", req.Trader.String()),
		zap.String("kind", kind.String()),
		zap.Stringer("phase", phase),
		zap.Error(err),
	}
	if req.Pool != nil {
		fields = append(fields, zap.String("pool", req.Pool.Address.String()))
	}
	if kind == KindSettlementAborted {
		e.logger.Error("Trade aborted", fields...)
	} else {
		e.logger.Warn("Trade rejected", fields...)
	}

	if e.recorder != nil {
		e.recorder.RecordAborted(dir.String(), req.Strategy.String(), kind.String())
	}
	if e.publisher != nil {
		ev := events.TradeAbortedEvent{
			BaseEvent: events.BaseEvent{EventType: events.TradeAborted, EventTime: e.now()},
			Trader:    req.Trader.String(),
			Direction: dir.String(),
			Leg:       req.Leg.String(),
			Strategy:  req.Strategy.String(),
			Amount:    req.Amount,
			Kind:      kind.String(),
			Phase:     phase.String(),
			Error:     err,
		}
		if req.Pool != nil {
			ev.Pool = req.Pool.Address.String()
		}
		if perr := e.publisher.Publish(ev); perr != nil {
			e.logger.Warn("Failed to publish trade event", zap.Error(perr))
		}
	}
}
