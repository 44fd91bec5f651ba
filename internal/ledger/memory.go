// ==============================
// File: internal/ledger/memory.go
// ==============================
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	smath "github.com/ava-labs/avalanchego/utils/math"
)

var (
	_ Ledger      = (*Memory)(nil)
	_ Provisioner = (*Memory)(nil)
	_ Tx          = (*memoryTx)(nil)
)

// Memory is an in-process ledger backed by memdb. Every transaction works
// on a versiondb overlay that is committed to the base database in one
// batch or discarded. A transaction holds the write lock from Begin until
// Commit or Rollback, so settlements never interleave.
type Memory struct {
	mu        sync.RWMutex
	db        *memdb.Database
	programID solana.PublicKey
	logger    *zap.Logger
}

// NewMemory creates an empty ledger. programID is the address program-derived
// signers are verified against.
func NewMemory(programID solana.PublicKey, logger *zap.Logger) *Memory {
	return &Memory{
		db:        memdb.New(),
		programID: programID,
		logger:    logger.Named("ledger"),
	}
}

func (m *Memory) read() *state {
	return &state{db: m.db, programID: m.programID}
}

func (m *Memory) Supply(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, err := m.read().mint(mint)
	if err != nil {
		return 0, err
	}
	return rec.supply, nil
}

func (m *Memory) Lamports(ctx context.Context, address solana.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.read().lamports(address)
}

func (m *Memory) TokenBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.read().tokenBalance(address)
}

// Begin opens a transaction. It blocks until any open transaction closes.
func (m *Memory) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	vdb := versiondb.New(m.db)
	return &memoryTx{
		ledger: m,
		vdb:    vdb,
		st:     &state{db: vdb, programID: m.programID},
	}, nil
}

// update runs fn as its own transaction. Used by provisioning.
func (m *Memory) update(ctx context.Context, fn func(*state) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx.(*memoryTx).st); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Memory) CreateMint(ctx context.Context, mint solana.PublicKey, decimals uint8, authority solana.PublicKey) error {
	return m.update(ctx, func(s *state) error {
		_, err := s.mint(mint)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrMintExists, mint)
		}
		if !errors.Is(err, ErrMintNotFound) {
			return err
		}
		m.logger.Debug("Mint created",
			zap.String("mint", mint.String()),
			zap.Uint8("decimals", decimals))
		return s.putMint(mint, mintRecord{decimals: decimals, authority: authority})
	})
}

func (m *Memory) CreateSystemAccount(ctx context.Context, address, owner solana.PublicKey) error {
	return m.update(ctx, func(s *state) error {
		ok, err := s.exists(address)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s", ErrAccountExists, address)
		}
		return s.putAccount(address, account{kind: kindSystem, owner: owner})
	})
}

func (m *Memory) CreateTokenAccount(ctx context.Context, address, mint, owner solana.PublicKey) error {
	return m.update(ctx, func(s *state) error {
		ok, err := s.exists(address)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s", ErrAccountExists, address)
		}
		return s.ensureTokenAccount(address, mint, owner)
	})
}

// MintTo issues new units of mint into destination, raising supply.
func (m *Memory) MintTo(ctx context.Context, mint, destination solana.PublicKey, amount uint64, signer Signer) error {
	return m.update(ctx, func(s *state) error {
		rec, err := s.mint(mint)
		if err != nil {
			return err
		}
		if err := s.authorize(rec.authority, signer); err != nil {
			return err
		}
		dst, err := s.account(destination)
		if err != nil {
			return err
		}
		if dst.kind != kindToken || !dst.mint.Equals(mint) {
			return fmt.Errorf("%w: %s cannot hold %s", ErrMintMismatch, destination, mint)
		}
		if rec.supply, err = smath.Add(rec.supply, amount); err != nil {
			return fmt.Errorf("%w: supply of %s", ErrBalanceOverflow, mint)
		}
		if dst.amount, err = smath.Add(dst.amount, amount); err != nil {
			return fmt.Errorf("%w: %s", ErrBalanceOverflow, destination)
		}
		if err := s.putMint(mint, rec); err != nil {
			return err
		}
		return s.putAccount(destination, dst)
	})
}

// Airdrop credits lamports out of thin air, creating the account if needed.
func (m *Memory) Airdrop(ctx context.Context, address solana.PublicKey, lamports uint64) error {
	return m.update(ctx, func(s *state) error {
		a, err := s.account(address)
		switch {
		case errors.Is(err, ErrAccountNotFound):
			a = account{kind: kindSystem, owner: address}
		case err != nil:
			return err
		case a.kind != kindSystem:
			return fmt.Errorf("%w: %s is a %s account", ErrWrongAccountKind, address, a.kind)
		}
		if a.amount, err = smath.Add(a.amount, lamports); err != nil {
			return fmt.Errorf("%w: %s", ErrBalanceOverflow, address)
		}
		return s.putAccount(address, a)
	})
}

type memoryTx struct {
	ledger *Memory
	vdb    *versiondb.Database
	st     *state
	closed bool
}

func (t *memoryTx) Supply(mint solana.PublicKey) (uint64, error) {
	if t.closed {
		return 0, ErrTxClosed
	}
	rec, err := t.st.mint(mint)
	if err != nil {
		return 0, err
	}
	return rec.supply, nil
}

func (t *memoryTx) Lamports(address solana.PublicKey) (uint64, error) {
	if t.closed {
		return 0, ErrTxClosed
	}
	return t.st.lamports(address)
}

func (t *memoryTx) TokenBalance(address solana.PublicKey) (uint64, error) {
	if t.closed {
		return 0, ErrTxClosed
	}
	return t.st.tokenBalance(address)
}

func (t *memoryTx) EnsureTokenAccount(address, mint, owner solana.PublicKey) error {
	if t.closed {
		return ErrTxClosed
	}
	return t.st.ensureTokenAccount(address, mint, owner)
}

func (t *memoryTx) TransferLamports(from, to solana.PublicKey, amount uint64, signer Signer) error {
	if t.closed {
		return ErrTxClosed
	}
	return t.st.transferLamports(from, to, amount, signer)
}

func (t *memoryTx) TransferToken(from, to solana.PublicKey, amount uint64, signer Signer) error {
	if t.closed {
		return ErrTxClosed
	}
	return t.st.transferToken(from, to, amount, signer)
}

func (t *memoryTx) Commit() error {
	if t.closed {
		return ErrTxClosed
	}
	defer t.close()

	if err := t.vdb.Commit(); err != nil {
		t.vdb.Abort()
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *memoryTx) Rollback() {
	if t.closed {
		return
	}
	t.vdb.Abort()
	t.close()
}

func (t *memoryTx) close() {
	t.closed = true
	t.ledger.mu.Unlock()
}
