// =============================
// File: internal/pool/pool.go
// =============================
package pool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/ledger"
)

// PDA seeds
var (
	PoolSeed      = []byte("liquidity_pool")
	AuthoritySeed = []byte("pool_authority")
	ReserveSeed   = []byte("reserve")
)

var (
	ErrIdenticalMints = errors.New("mint A and mint B are identical")
	ErrZeroMint       = errors.New("mint address is empty")
	ErrInvalidLeg     = errors.New("invalid asset leg")
	ErrPoolExists     = errors.New("liquidity pool already exists")
	ErrPoolNotFound   = errors.New("liquidity pool not found")
)

// Leg selects one of the two assets of a pool.
type Leg uint8

const (
	LegA Leg = iota
	LegB
)

func (l Leg) String() string {
	switch l {
	case LegA:
		return "A"
	case LegB:
		return "B"
	default:
		return fmt.Sprintf("leg(%d)", uint8(l))
	}
}

func (l Leg) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l Leg) Valid() bool {
	return l == LegA || l == LegB
}

// ParseLeg accepts "a"/"b" in any case.
func ParseLeg(s string) (Leg, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return LegA, nil
	case "B":
		return LegB, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLeg, s)
	}
}

// LiquidityPool is one market over an ordered mint pair. Every address is
// derived from the program id and the pair, so two processes that agree on
// those agree on the whole pool.
type LiquidityPool struct {
	ProgramID solana.PublicKey
	MintA     solana.PublicKey
	MintB     solana.PublicKey

	Address       solana.PublicKey
	Bump          uint8
	Authority     solana.PublicKey
	AuthorityBump uint8
	Reserve       solana.PublicKey
	ReserveBump   uint8

	// Custody token accounts, owned by Authority.
	CustodyA solana.PublicKey
	CustodyB solana.PublicKey

	Curve curve.Params
}

// New derives a pool for (mintA, mintB) under programID.
func New(programID, mintA, mintB solana.PublicKey, params curve.Params) (*LiquidityPool, error) {
	if mintA.IsZero() || mintB.IsZero() {
		return nil, ErrZeroMint
	}
	if mintA.Equals(mintB) {
		return nil, ErrIdenticalMints
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	p := &LiquidityPool{
		ProgramID: programID,
		MintA:     mintA,
		MintB:     mintB,
		Curve:     params,
	}

	var err error
	p.Address, p.Bump, err = solana.FindProgramAddress(
		[][]byte{PoolSeed, mintA.Bytes(), mintB.Bytes()},
		programID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to derive pool address: %w", err)
	}

	p.Authority, p.AuthorityBump, err = solana.FindProgramAddress(
		[][]byte{mintA.Bytes(), mintB.Bytes(), AuthoritySeed},
		programID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to derive pool authority: %w", err)
	}

	p.Reserve, p.ReserveBump, err = solana.FindProgramAddress(
		[][]byte{ReserveSeed, p.Address.Bytes()},
		programID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to derive reserve: %w", err)
	}

	if p.CustodyA, _, err = solana.FindAssociatedTokenAddress(p.Authority, mintA); err != nil {
		return nil, fmt.Errorf("failed to derive custody account A: %w", err)
	}
	if p.CustodyB, _, err = solana.FindAssociatedTokenAddress(p.Authority, mintB); err != nil {
		return nil, fmt.Errorf("failed to derive custody account B: %w", err)
	}

	return p, nil
}

func (p *LiquidityPool) Mint(leg Leg) (solana.PublicKey, error) {
	switch leg {
	case LegA:
		return p.MintA, nil
	case LegB:
		return p.MintB, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrInvalidLeg, leg)
	}
}

func (p *LiquidityPool) Custody(leg Leg) (solana.PublicKey, error) {
	switch leg {
	case LegA:
		return p.CustodyA, nil
	case LegB:
		return p.CustodyB, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrInvalidLeg, leg)
	}
}

// AuthoritySigner builds the custody capability on demand from the pool's
// own identity. It is never stored; the ledger re-derives the address from
// the seeds before accepting it.
func (p *LiquidityPool) AuthoritySigner() ledger.Signer {
	return ledger.ProgramSigner(p.Authority, [][]byte{
		p.MintA.Bytes(),
		p.MintB.Bytes(),
		AuthoritySeed,
		{p.AuthorityBump},
	})
}

// TraderAccount returns the trader's associated token account for leg.
func (p *LiquidityPool) TraderAccount(trader solana.PublicKey, leg Leg) (solana.PublicKey, error) {
	mint, err := p.Mint(leg)
	if err != nil {
		return solana.PublicKey{}, err
	}
	ata, _, err := solana.FindAssociatedTokenAddress(trader, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive trader token account: %w", err)
	}
	return ata, nil
}

func (p *LiquidityPool) String() string {
	return fmt.Sprintf("pool %s (%s/%s)", p.Address, p.MintA, p.MintB)
}
