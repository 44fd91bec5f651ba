// ==============================
// File: internal/ledger/ledger.go
// ==============================
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrMintNotFound      = errors.New("mint not found")
	ErrMintExists        = errors.New("mint already exists")
	ErrMintMismatch      = errors.New("token accounts belong to different mints")
	ErrWrongAccountKind  = errors.New("wrong account kind")
	ErrUnauthorized      = errors.New("signer does not own the source account")
	ErrInvalidSigner     = errors.New("signer seeds do not derive the signer address")
	ErrTxClosed          = errors.New("transaction already closed")
)

// Signer authorizes a debit. Wallet signers are trusted as authenticated
// upstream; program-derived signers carry the seeds (bump included) the
// ledger re-derives against its program id before honouring them.
type Signer struct {
	Key   solana.PublicKey
	Seeds [][]byte
}

// WalletSigner returns a signer for an externally authenticated key.
func WalletSigner(key solana.PublicKey) Signer {
	return Signer{Key: key}
}

// ProgramSigner returns a signer for a program-derived address.
func ProgramSigner(key solana.PublicKey, seeds [][]byte) Signer {
	return Signer{Key: key, Seeds: seeds}
}

func (s Signer) IsProgramDerived() bool {
	return len(s.Seeds) > 0
}

// SupplyReader reports the circulating supply of a mint.
type SupplyReader interface {
	Supply(ctx context.Context, mint solana.PublicKey) (uint64, error)
}

// Reader exposes committed balances without opening a transaction.
type Reader interface {
	SupplyReader
	Lamports(ctx context.Context, account solana.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Ledger is the platform the swap engine settles against. Every mutation
// happens inside a Tx; a Tx is either committed in full or rolled back.
// Implementations serialize transactions so no two trades interleave.
type Ledger interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a single all-or-nothing unit of settlement.
type Tx interface {
	Supply(mint solana.PublicKey) (uint64, error)
	Lamports(account solana.PublicKey) (uint64, error)
	TokenBalance(account solana.PublicKey) (uint64, error)

	// EnsureTokenAccount creates the token account if it does not exist.
	EnsureTokenAccount(address, mint, owner solana.PublicKey) error
	TransferLamports(from, to solana.PublicKey, amount uint64, signer Signer) error
	TransferToken(from, to solana.PublicKey, amount uint64, signer Signer) error

	Commit() error
	// Rollback discards every effect of the Tx. Safe after Commit.
	Rollback()
}

// Provisioner performs privileged setup: mints, accounts and seed liquidity.
type Provisioner interface {
	CreateMint(ctx context.Context, mint solana.PublicKey, decimals uint8, authority solana.PublicKey) error
	CreateSystemAccount(ctx context.Context, address, owner solana.PublicKey) error
	CreateTokenAccount(ctx context.Context, address, mint, owner solana.PublicKey) error
	MintTo(ctx context.Context, mint, destination solana.PublicKey, amount uint64, signer Signer) error
	Airdrop(ctx context.Context, account solana.PublicKey, lamports uint64) error
}

// StaticSupply serves fixed supply figures, such as a snapshot taken from a
// live cluster.
type StaticSupply map[solana.PublicKey]uint64

func (s StaticSupply) Supply(_ context.Context, mint solana.PublicKey) (uint64, error) {
	v, ok := s[mint]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMintNotFound, mint)
	}
	return v, nil
}
