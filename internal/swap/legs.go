package swap

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/bondswap/internal/ledger"
)

// legs performs the two transfers of one trade inside an open transaction.
type legs struct {
	tx            ledger.Tx
	req           Request
	rc            *Receipt
	traderAccount solana.PublicKey
}

// buy collects the price from the trader into the reserve, then releases
// the asset from custody to the trader's token account.
func (l legs) buy() error {
	const op = "buy"
	p := l.req.Pool
	mint, _ := p.Mint(l.req.Leg)
	custody, _ := p.Custody(l.req.Leg)

	if _, err := l.tx.Lamports(l.req.Trader); errors.Is(err, ledger.ErrAccountNotFound) {
		return newError(op, KindInsufficientPayment, PhaseValidated,
			fmt.Errorf("trader %s has no lamports: %w", l.req.Trader, err))
	}
	if err := l.tx.EnsureTokenAccount(l.traderAccount, mint, l.req.Trader); err != nil {
		return newError(op, KindSettlementAborted, PhaseValidated,
			fmt.Errorf("trader token account: %w", err))
	}

	if err := l.tx.TransferLamports(l.req.Trader, p.Reserve, l.rc.TotalPrice, ledger.WalletSigner(l.req.Trader)); err != nil {
		return newError(op, fundingKind(err, KindInsufficientPayment), PhaseValidated,
			fmt.Errorf("collect payment: %w", err))
	}
	l.rc.advance(PhaseCollected)

	if err := l.tx.TransferToken(custody, l.traderAccount, l.req.Amount, p.AuthoritySigner()); err != nil {
		return newError(op, fundingKind(err, KindInsufficientAssetBalance), PhaseCollected,
			fmt.Errorf("release asset: %w", err))
	}
	l.rc.advance(PhaseReleased)
	return nil
}

// sell collects the asset from the trader into custody, then releases the
// price from the reserve to the trader.
func (l legs) sell() error {
	const op = "sell"
	p := l.req.Pool
	custody, _ := p.Custody(l.req.Leg)

	if _, err := l.tx.TokenBalance(l.traderAccount); errors.Is(err, ledger.ErrAccountNotFound) {
		return newError(op, KindInsufficientAssetBalance, PhaseValidated,
			fmt.Errorf("trader %s holds no %s: %w", l.req.Trader, l.rc.Mint, err))
	}

	if err := l.tx.TransferToken(l.traderAccount, custody, l.req.Amount, ledger.WalletSigner(l.req.Trader)); err != nil {
		return newError(op, fundingKind(err, KindInsufficientAssetBalance), PhaseValidated,
			fmt.Errorf("collect asset: %w", err))
	}
	l.rc.advance(PhaseCollected)

	if err := l.tx.TransferLamports(p.Reserve, l.req.Trader, l.rc.TotalPrice, p.AuthoritySigner()); err != nil {
		return newError(op, fundingKind(err, KindInsufficientPayment), PhaseCollected,
			fmt.Errorf("release payment: %w", err))
	}
	l.rc.advance(PhaseReleased)
	return nil
}
