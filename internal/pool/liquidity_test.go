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

type liquidityFixture struct {
	ctx       context.Context
	ledger    *ledger.Memory
	pool      *LiquidityPool
	depositor solana.PublicKey
}

// newLiquidityFixture provisions a pool with 1_000 of each leg and 500
// reserve lamports, and a depositor holding 300 of each leg and 1_000
// lamports.
func newLiquidityFixture(t *testing.T) *liquidityFixture {
	t.Helper()
	ctx := context.Background()
	programID := solana.NewWallet().PublicKey()
	mintAuth := solana.NewWallet().PublicKey()
	l := ledger.NewMemory(programID, zap.NewNop())

	p, err := New(programID, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), curve.DefaultParams())
	require.NoError(t, err)
	require.NoError(t, l.CreateMint(ctx, p.MintA, 0, mintAuth))
	require.NoError(t, l.CreateMint(ctx, p.MintB, 0, mintAuth))
	require.NoError(t, Provision(ctx, l, p, Liquidity{
		AmountA:       1_000,
		AmountB:       1_000,
		ReserveFunds:  500,
		MintAuthority: ledger.WalletSigner(mintAuth),
	}))

	depositor := solana.NewWallet().PublicKey()
	for _, leg := range []Leg{LegA, LegB} {
		mint, _ := p.Mint(leg)
		ata, err := p.TraderAccount(depositor, leg)
		require.NoError(t, err)
		require.NoError(t, l.CreateTokenAccount(ctx, ata, mint, depositor))
		require.NoError(t, l.MintTo(ctx, mint, ata, 300, ledger.WalletSigner(mintAuth)))
	}
	require.NoError(t, l.Airdrop(ctx, depositor, 1_000))

	return &liquidityFixture{ctx: ctx, ledger: l, pool: p, depositor: depositor}
}

type inventory struct {
	custodyA, custodyB, reserve uint64
}

func (f *liquidityFixture) inventory(t *testing.T) inventory {
	t.Helper()
	var inv inventory
	var err error
	inv.custodyA, err = f.ledger.TokenBalance(f.ctx, f.pool.CustodyA)
	require.NoError(t, err)
	inv.custodyB, err = f.ledger.TokenBalance(f.ctx, f.pool.CustodyB)
	require.NoError(t, err)
	inv.reserve, err = f.ledger.Lamports(f.ctx, f.pool.Reserve)
	require.NoError(t, err)
	return inv
}

func (f *liquidityFixture) tokens(t *testing.T, owner solana.PublicKey, leg Leg) uint64 {
	t.Helper()
	ata, err := f.pool.TraderAccount(owner, leg)
	require.NoError(t, err)
	v, err := f.ledger.TokenBalance(f.ctx, ata)
	require.NoError(t, err)
	return v
}

func TestDeposit(t *testing.T) {
	f := newLiquidityFixture(t)

	require.NoError(t, Deposit(f.ctx, f.ledger, f.pool, f.depositor, Amounts{A: 100, Lamports: 250}))

	assert.Equal(t, inventory{custodyA: 1_100, custodyB: 1_000, reserve: 750}, f.inventory(t))
	assert.Equal(t, uint64(200), f.tokens(t, f.depositor, LegA))
	assert.Equal(t, uint64(300), f.tokens(t, f.depositor, LegB))
	lamports, err := f.ledger.Lamports(f.ctx, f.depositor)
	require.NoError(t, err)
	assert.Equal(t, uint64(750), lamports)
}

func TestDepositIsAllOrNothing(t *testing.T) {
	f := newLiquidityFixture(t)
	before := f.inventory(t)

	// leg A would move, leg B cannot
	err := Deposit(f.ctx, f.ledger, f.pool, f.depositor, Amounts{A: 100, B: 301})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, before, f.inventory(t))
	assert.Equal(t, uint64(300), f.tokens(t, f.depositor, LegA))

	// another wallet cannot spend the depositor's tokens
	err = Deposit(f.ctx, f.ledger, f.pool, solana.NewWallet().PublicKey(), Amounts{A: 1})
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)

	require.ErrorIs(t, Deposit(f.ctx, f.ledger, f.pool, f.depositor, Amounts{}), ErrNothingToMove)
}

func TestWithdraw(t *testing.T) {
	f := newLiquidityFixture(t)
	recipient := solana.NewWallet().PublicKey()

	require.NoError(t, Withdraw(f.ctx, f.ledger, f.pool, recipient, Amounts{B: 400, Lamports: 500}))

	assert.Equal(t, inventory{custodyA: 1_000, custodyB: 600, reserve: 0}, f.inventory(t))
	assert.Equal(t, uint64(400), f.tokens(t, recipient, LegB))
	lamports, err := f.ledger.Lamports(f.ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), lamports)

	// no account was opened for the untouched leg
	ata, err := f.pool.TraderAccount(recipient, LegA)
	require.NoError(t, err)
	_, err = f.ledger.TokenBalance(f.ctx, ata)
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestWithdrawIsAllOrNothing(t *testing.T) {
	f := newLiquidityFixture(t)
	recipient := solana.NewWallet().PublicKey()
	before := f.inventory(t)

	err := Withdraw(f.ctx, f.ledger, f.pool, recipient, Amounts{A: 10, Lamports: 501})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, before, f.inventory(t))

	ata, err := f.pool.TraderAccount(recipient, LegA)
	require.NoError(t, err)
	_, err = f.ledger.TokenBalance(f.ctx, ata)
	require.ErrorIs(t, err, ledger.ErrAccountNotFound, "recipient account rolled back")
}

func TestWithdrawRequiresPoolAuthority(t *testing.T) {
	f := newLiquidityFixture(t)

	// a pool under another program id derives an authority the ledger rejects
	other, err := New(solana.NewWallet().PublicKey(), f.pool.MintA, f.pool.MintB, curve.DefaultParams())
	require.NoError(t, err)
	other.CustodyA = f.pool.CustodyA

	err = Withdraw(f.ctx, f.ledger, other, f.depositor, Amounts{A: 1})
	require.Error(t, err)
	assert.Equal(t, uint64(1_000), f.inventory(t).custodyA)
}
