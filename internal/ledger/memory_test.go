package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	ledger    *Memory
	programID solana.PublicKey
	mint      solana.PublicKey
	mintAuth  solana.PublicKey
	alice     solana.PublicKey
	bob       solana.PublicKey
	aliceATA  solana.PublicKey
	bobATA    solana.PublicKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		programID: solana.NewWallet().PublicKey(),
		mint:      solana.NewWallet().PublicKey(),
		mintAuth:  solana.NewWallet().PublicKey(),
		alice:     solana.NewWallet().PublicKey(),
		bob:       solana.NewWallet().PublicKey(),
		aliceATA:  solana.NewWallet().PublicKey(),
		bobATA:    solana.NewWallet().PublicKey(),
	}
	f.ledger = NewMemory(f.programID, zap.NewNop())

	require.NoError(t, f.ledger.CreateMint(ctx, f.mint, 6, f.mintAuth))
	require.NoError(t, f.ledger.CreateTokenAccount(ctx, f.aliceATA, f.mint, f.alice))
	require.NoError(t, f.ledger.CreateTokenAccount(ctx, f.bobATA, f.mint, f.bob))
	require.NoError(t, f.ledger.MintTo(ctx, f.mint, f.aliceATA, 1_000, WalletSigner(f.mintAuth)))
	require.NoError(t, f.ledger.Airdrop(ctx, f.alice, 5_000))
	return f
}

func TestProvisioning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	supply, err := f.ledger.Supply(ctx, f.mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), supply)

	bal, err := f.ledger.TokenBalance(ctx, f.aliceATA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), bal)

	lamports, err := f.ledger.Lamports(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), lamports)

	require.ErrorIs(t, f.ledger.CreateMint(ctx, f.mint, 6, f.mintAuth), ErrMintExists)
	require.ErrorIs(t, f.ledger.CreateTokenAccount(ctx, f.aliceATA, f.mint, f.alice), ErrAccountExists)
	require.ErrorIs(t, f.ledger.MintTo(ctx, f.mint, f.aliceATA, 1, WalletSigner(f.alice)), ErrUnauthorized)

	_, err = f.ledger.Supply(ctx, solana.NewWallet().PublicKey())
	require.ErrorIs(t, err, ErrMintNotFound)
	_, err = f.ledger.Lamports(ctx, f.aliceATA)
	require.ErrorIs(t, err, ErrWrongAccountKind)
}

func TestTransferCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tx, err := f.ledger.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.TransferToken(f.aliceATA, f.bobATA, 400, WalletSigner(f.alice)))
	require.NoError(t, tx.TransferLamports(f.alice, f.bob, 1_500, WalletSigner(f.alice)))

	// visible inside the transaction
	bal, err := tx.TokenBalance(f.bobATA)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), bal)
	require.NoError(t, tx.Commit())

	bal, err = f.ledger.TokenBalance(ctx, f.bobATA)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), bal)

	lamports, err := f.ledger.Lamports(ctx, f.bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500), lamports)

	// supply is untouched by transfers
	supply, err := f.ledger.Supply(ctx, f.mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), supply)
}

func TestRollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tx, err := f.ledger.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.TransferToken(f.aliceATA, f.bobATA, 400, WalletSigner(f.alice)))
	newATA := solana.NewWallet().PublicKey()
	require.NoError(t, tx.EnsureTokenAccount(newATA, f.mint, f.bob))
	tx.Rollback()
	tx.Rollback()

	bal, err := f.ledger.TokenBalance(ctx, f.aliceATA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), bal)

	_, err = f.ledger.TokenBalance(ctx, newATA)
	require.ErrorIs(t, err, ErrAccountNotFound)

	require.ErrorIs(t, tx.Commit(), ErrTxClosed)
	require.ErrorIs(t, tx.TransferLamports(f.alice, f.bob, 1, WalletSigner(f.alice)), ErrTxClosed)
}

func TestTransferRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tx, err := f.ledger.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	err = tx.TransferToken(f.aliceATA, f.bobATA, 1_001, WalletSigner(f.alice))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	err = tx.TransferLamports(f.alice, f.bob, 5_001, WalletSigner(f.alice))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	err = tx.TransferToken(f.aliceATA, f.bobATA, 1, WalletSigner(f.bob))
	require.ErrorIs(t, err, ErrUnauthorized)

	err = tx.TransferLamports(f.aliceATA, f.bob, 1, WalletSigner(f.alice))
	require.ErrorIs(t, err, ErrWrongAccountKind)

	err = tx.TransferToken(f.aliceATA, f.alice, 1, WalletSigner(f.alice))
	require.ErrorIs(t, err, ErrWrongAccountKind)

	err = tx.TransferToken(f.aliceATA, solana.NewWallet().PublicKey(), 1, WalletSigner(f.alice))
	require.ErrorIs(t, err, ErrAccountNotFound)

	// zero-value transfers are allowed no-ops
	require.NoError(t, tx.TransferToken(f.aliceATA, f.bobATA, 0, WalletSigner(f.alice)))
}

func TestMintMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	other := solana.NewWallet().PublicKey()
	otherATA := solana.NewWallet().PublicKey()
	require.NoError(t, f.ledger.CreateMint(ctx, other, 6, f.mintAuth))
	require.NoError(t, f.ledger.CreateTokenAccount(ctx, otherATA, other, f.bob))

	tx, err := f.ledger.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	err = tx.TransferToken(f.aliceATA, otherATA, 1, WalletSigner(f.alice))
	require.ErrorIs(t, err, ErrMintMismatch)

	err = tx.EnsureTokenAccount(otherATA, f.mint, f.bob)
	require.ErrorIs(t, err, ErrMintMismatch)
}

func TestProgramDerivedSigner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	seeds := [][]byte{[]byte("vault"), f.mint.Bytes()}
	vault, bump, err := solana.FindProgramAddress(seeds, f.programID)
	require.NoError(t, err)
	vaultATA := solana.NewWallet().PublicKey()
	require.NoError(t, f.ledger.CreateTokenAccount(ctx, vaultATA, f.mint, vault))
	require.NoError(t, f.ledger.MintTo(ctx, f.mint, vaultATA, 50, WalletSigner(f.mintAuth)))

	signed := append(append([][]byte{}, seeds...), []byte{bump})

	tx, err := f.ledger.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	// a program address cannot pose as a wallet
	err = tx.TransferToken(vaultATA, f.bobATA, 10, WalletSigner(vault))
	require.ErrorIs(t, err, ErrInvalidSigner)

	// seeds that derive a different address are refused
	wrong := append(append([][]byte{}, seeds[:1]...), f.bob.Bytes(), []byte{bump})
	err = tx.TransferToken(vaultATA, f.bobATA, 10, ProgramSigner(vault, wrong))
	require.ErrorIs(t, err, ErrInvalidSigner)

	require.NoError(t, tx.TransferToken(vaultATA, f.bobATA, 10, ProgramSigner(vault, signed)))
	require.NoError(t, tx.Commit())

	bal, err := f.ledger.TokenBalance(ctx, f.bobATA)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bal)
}

func TestBeginSerializesTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.ledger.Begin(ctx)
	require.NoError(t, err)

	started := make(chan struct{})
	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(started)
		second, err := f.ledger.Begin(ctx)
		if err != nil {
			t.Errorf("second begin: %v", err)
			return
		}
		close(acquired)
		second.Rollback()
	}()

	<-started
	select {
	case <-acquired:
		t.Fatal("second transaction opened while the first was still open")
	case <-time.After(50 * time.Millisecond):
	}

	first.Rollback()
	wg.Wait()
}

func TestBeginHonoursCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ledger.Begin(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithFaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	boom := errors.New("boom")
	l := WithFaults(f.ledger, func(c Call) error {
		if c.Op == OpCommit {
			return boom
		}
		return nil
	})

	tx, err := l.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.TransferToken(f.aliceATA, f.bobATA, 400, WalletSigner(f.alice)))
	err = tx.Commit()
	require.ErrorIs(t, err, ErrInjectedFault)
	tx.Rollback()

	bal, err := f.ledger.TokenBalance(ctx, f.aliceATA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), bal)

	// ledger is usable again after the failed commit
	tx, err = l.Begin(ctx)
	require.NoError(t, err)
	tx.Rollback()

	l = WithFaults(f.ledger, func(c Call) error {
		if c.Op == OpBegin {
			return boom
		}
		return nil
	})
	_, err = l.Begin(ctx)
	require.ErrorIs(t, err, ErrInjectedFault)
}
