package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/bondswap/internal/ledger"
)

var ErrNothingToMove = errors.New("liquidity change moves nothing")

// Amounts is a change to a pool's inventory.
type Amounts struct {
	A        uint64
	B        uint64
	Lamports uint64
}

func (a Amounts) IsZero() bool {
	return a.A == 0 && a.B == 0 && a.Lamports == 0
}

// Deposit moves depositor's tokens into custody and lamports into the
// reserve in one transaction. Tokens come from the depositor's associated
// token accounts; the depositor signs every debit.
func Deposit(ctx context.Context, l ledger.Ledger, p *LiquidityPool, depositor solana.PublicKey, amt Amounts) error {
	if amt.IsZero() {
		return ErrNothingToMove
	}
	signer := ledger.WalletSigner(depositor)

	return inTx(ctx, l, func(tx ledger.Tx) error {
		for _, leg := range []Leg{LegA, LegB} {
			amount := amt.leg(leg)
			if amount == 0 {
				continue
			}
			from, err := p.TraderAccount(depositor, leg)
			if err != nil {
				return err
			}
			custody, _ := p.Custody(leg)
			if err := tx.TransferToken(from, custody, amount, signer); err != nil {
				return fmt.Errorf("failed to deposit leg %s: %w", leg, err)
			}
		}
		if amt.Lamports > 0 {
			if err := tx.TransferLamports(depositor, p.Reserve, amt.Lamports, signer); err != nil {
				return fmt.Errorf("failed to deposit into reserve: %w", err)
			}
		}
		return nil
	})
}

// Withdraw pays custody tokens and reserve lamports out to recipient in one
// transaction, signed by the pool authority. Recipient token accounts are
// created when missing. It is a privileged operation like Provision.
func Withdraw(ctx context.Context, l ledger.Ledger, p *LiquidityPool, recipient solana.PublicKey, amt Amounts) error {
	if amt.IsZero() {
		return ErrNothingToMove
	}
	signer := p.AuthoritySigner()

	return inTx(ctx, l, func(tx ledger.Tx) error {
		for _, leg := range []Leg{LegA, LegB} {
			amount := amt.leg(leg)
			if amount == 0 {
				continue
			}
			mint, _ := p.Mint(leg)
			custody, _ := p.Custody(leg)
			to, err := p.TraderAccount(recipient, leg)
			if err != nil {
				return err
			}
			if err := tx.EnsureTokenAccount(to, mint, recipient); err != nil {
				return fmt.Errorf("failed to open recipient account: %w", err)
			}
			if err := tx.TransferToken(custody, to, amount, signer); err != nil {
				return fmt.Errorf("failed to withdraw leg %s: %w", leg, err)
			}
		}
		if amt.Lamports > 0 {
			if err := tx.TransferLamports(p.Reserve, recipient, amt.Lamports, signer); err != nil {
				return fmt.Errorf("failed to withdraw from reserve: %w", err)
			}
		}
		return nil
	})
}

func (a Amounts) leg(leg Leg) uint64 {
	if leg == LegA {
		return a.A
	}
	return a.B
}

func inTx(ctx context.Context, l ledger.Ledger, fn func(ledger.Tx) error) error {
	tx, err := l.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
