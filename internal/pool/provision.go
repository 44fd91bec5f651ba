package pool

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/bondswap/internal/ledger"
)

// Liquidity is the seed inventory placed into custody at pool creation.
// Mints must already exist and be mintable by MintAuthority.
type Liquidity struct {
	AmountA       uint64
	AmountB       uint64
	ReserveFunds  uint64
	MintAuthority ledger.Signer
}

// Provision creates the reserve and both custody accounts for p on the
// ledger and funds them. This is the privileged setup step; trades never
// call it.
func Provision(ctx context.Context, prov ledger.Provisioner, p *LiquidityPool, liq Liquidity) error {
	if err := prov.CreateSystemAccount(ctx, p.Reserve, p.Authority); err != nil {
		return fmt.Errorf("failed to create reserve: %w", err)
	}
	if err := prov.CreateTokenAccount(ctx, p.CustodyA, p.MintA, p.Authority); err != nil {
		return fmt.Errorf("failed to create custody account A: %w", err)
	}
	if err := prov.CreateTokenAccount(ctx, p.CustodyB, p.MintB, p.Authority); err != nil {
		return fmt.Errorf("failed to create custody account B: %w", err)
	}

	seed := []struct {
		mint    solana.PublicKey
		custody solana.PublicKey
		amount  uint64
	}{
		{p.MintA, p.CustodyA, liq.AmountA},
		{p.MintB, p.CustodyB, liq.AmountB},
	}
	for _, s := range seed {
		if s.amount == 0 {
			continue
		}
		if err := prov.MintTo(ctx, s.mint, s.custody, s.amount, liq.MintAuthority); err != nil {
			return fmt.Errorf("failed to seed custody %s: %w", s.custody, err)
		}
	}

	if liq.ReserveFunds > 0 {
		if err := prov.Airdrop(ctx, p.Reserve, liq.ReserveFunds); err != nil {
			return fmt.Errorf("failed to fund reserve: %w", err)
		}
	}
	return nil
}
