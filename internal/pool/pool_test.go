package pool

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/ledger"
)

func TestNewDerivesAddressesDeterministically(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()

	p1, err := New(programID, mintA, mintB, curve.DefaultParams())
	require.NoError(t, err)
	p2, err := New(programID, mintA, mintB, curve.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, p1.Address, p2.Address)
	assert.Equal(t, p1.Authority, p2.Authority)
	assert.Equal(t, p1.Reserve, p2.Reserve)
	assert.Equal(t, p1.CustodyA, p2.CustodyA)

	expected, bump, err := solana.FindProgramAddress(
		[][]byte{[]byte("liquidity_pool"), mintA.Bytes(), mintB.Bytes()}, programID)
	require.NoError(t, err)
	assert.Equal(t, expected, p1.Address)
	assert.Equal(t, bump, p1.Bump)

	authority, _, err := solana.FindProgramAddress(
		[][]byte{mintA.Bytes(), mintB.Bytes(), []byte("pool_authority")}, programID)
	require.NoError(t, err)
	assert.Equal(t, authority, p1.Authority)

	reserve, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("reserve"), p1.Address.Bytes()}, programID)
	require.NoError(t, err)
	assert.Equal(t, reserve, p1.Reserve)

	custodyA, _, err := solana.FindAssociatedTokenAddress(p1.Authority, mintA)
	require.NoError(t, err)
	assert.Equal(t, custodyA, p1.CustodyA)

	// order matters for derivation
	rev, err := New(programID, mintB, mintA, curve.DefaultParams())
	require.NoError(t, err)
	assert.NotEqual(t, p1.Address, rev.Address)
}

func TestNewRejectsBadInput(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	_, err := New(programID, mint, mint, curve.DefaultParams())
	require.ErrorIs(t, err, ErrIdenticalMints)

	_, err = New(programID, solana.PublicKey{}, mint, curve.DefaultParams())
	require.ErrorIs(t, err, ErrZeroMint)

	_, err = New(programID, mint, solana.NewWallet().PublicKey(), curve.Params{})
	require.ErrorIs(t, err, curve.ErrInvalidParams)
}

func TestLegs(t *testing.T) {
	p, err := New(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), curve.DefaultParams())
	require.NoError(t, err)

	mint, err := p.Mint(LegB)
	require.NoError(t, err)
	assert.Equal(t, p.MintB, mint)

	custody, err := p.Custody(LegA)
	require.NoError(t, err)
	assert.Equal(t, p.CustodyA, custody)

	_, err = p.Mint(Leg(7))
	require.ErrorIs(t, err, ErrInvalidLeg)
	_, err = p.Custody(Leg(7))
	require.ErrorIs(t, err, ErrInvalidLeg)

	leg, err := ParseLeg("b")
	require.NoError(t, err)
	assert.Equal(t, LegB, leg)
	_, err = ParseLeg("c")
	require.ErrorIs(t, err, ErrInvalidLeg)
	assert.Equal(t, "A", LegA.String())
}

func TestAuthoritySignerIsVerifiable(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	p, err := New(programID, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), curve.DefaultParams())
	require.NoError(t, err)

	signer := p.AuthoritySigner()
	require.True(t, signer.IsProgramDerived())

	derived, err := solana.CreateProgramAddress(signer.Seeds, programID)
	require.NoError(t, err)
	assert.Equal(t, p.Authority, derived)
}

func TestRegistry(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	r := NewRegistry(programID, zap.NewNop())
	assert.Equal(t, programID, r.ProgramID())
	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()

	p, err := r.Create(mintA, mintB, curve.DefaultParams())
	require.NoError(t, err)

	_, err = r.Create(mintA, mintB, curve.DefaultParams())
	require.ErrorIs(t, err, ErrPoolExists)
	_, err = r.Create(mintB, mintA, curve.DefaultParams())
	require.ErrorIs(t, err, ErrPoolExists)

	got, err := r.Get(mintB, mintA)
	require.NoError(t, err)
	assert.Same(t, p, got)

	got, err = r.ByAddress(p.Address)
	require.NoError(t, err)
	assert.Same(t, p, got)

	_, err = r.Get(mintA, solana.NewWallet().PublicKey())
	require.ErrorIs(t, err, ErrPoolNotFound)

	_, err = r.Create(solana.NewWallet().PublicKey(), mintB, curve.DefaultParams())
	require.NoError(t, err)
	assert.Len(t, r.List(), 2)
}

func TestProvision(t *testing.T) {
	ctx := context.Background()
	programID := solana.NewWallet().PublicKey()
	mintAuth := solana.NewWallet().PublicKey()
	l := ledger.NewMemory(programID, zap.NewNop())

	p, err := New(programID, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), curve.DefaultParams())
	require.NoError(t, err)
	require.NoError(t, l.CreateMint(ctx, p.MintA, 0, mintAuth))
	require.NoError(t, l.CreateMint(ctx, p.MintB, 0, mintAuth))

	err = Provision(ctx, l, p, Liquidity{
		AmountA:       1_000,
		AmountB:       2_000,
		ReserveFunds:  300,
		MintAuthority: ledger.WalletSigner(mintAuth),
	})
	require.NoError(t, err)

	a, err := l.TokenBalance(ctx, p.CustodyA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), a)
	b, err := l.TokenBalance(ctx, p.CustodyB)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000), b)
	reserve, err := l.Lamports(ctx, p.Reserve)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), reserve)

	// provisioning twice collides on the reserve
	err = Provision(ctx, l, p, Liquidity{MintAuthority: ledger.WalletSigner(mintAuth)})
	require.ErrorIs(t, err, ledger.ErrAccountExists)
}
