package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrInjectedFault marks failures produced by a Fault hook.
var ErrInjectedFault = errors.New("injected fault")

// Op names a ledger call a Fault hook can intercept.
type Op string

const (
	OpBegin              Op = "begin"
	OpEnsureTokenAccount Op = "ensure_token_account"
	OpTransferLamports   Op = "transfer_lamports"
	OpTransferToken      Op = "transfer_token"
	OpCommit             Op = "commit"
)

// Call describes an intercepted call. Seq counts mutating calls within one
// transaction starting at 1; it is 0 for begin.
type Call struct {
	Op  Op
	Seq int
}

// Fault decides whether an intercepted call fails. Returning nil lets the
// call through.
type Fault func(Call) error

// WithFaults wraps l so fault can fail any begin, mutation or commit. A
// failed commit rolls the underlying transaction back.
func WithFaults(l Ledger, fault Fault) Ledger {
	return &faultyLedger{Ledger: l, fault: fault}
}

type faultyLedger struct {
	Ledger
	fault Fault
}

func (f *faultyLedger) Begin(ctx context.Context) (Tx, error) {
	if err := f.check(Call{Op: OpBegin}); err != nil {
		return nil, err
	}
	tx, err := f.Ledger.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, check: f.check}, nil
}

func (f *faultyLedger) check(c Call) error {
	if f.fault == nil {
		return nil
	}
	if err := f.fault(c); err != nil {
		return fmt.Errorf("%w: %s #%d: %v", ErrInjectedFault, c.Op, c.Seq, err)
	}
	return nil
}

type faultyTx struct {
	Tx
	check func(Call) error
	seq   int
}

func (t *faultyTx) next(op Op) error {
	t.seq++
	return t.check(Call{Op: op, Seq: t.seq})
}

func (t *faultyTx) EnsureTokenAccount(address, mint, owner solana.PublicKey) error {
	if err := t.next(OpEnsureTokenAccount); err != nil {
		return err
	}
	return t.Tx.EnsureTokenAccount(address, mint, owner)
}

func (t *faultyTx) TransferLamports(from, to solana.PublicKey, amount uint64, signer Signer) error {
	if err := t.next(OpTransferLamports); err != nil {
		return err
	}
	return t.Tx.TransferLamports(from, to, amount, signer)
}

func (t *faultyTx) TransferToken(from, to solana.PublicKey, amount uint64, signer Signer) error {
	if err := t.next(OpTransferToken); err != nil {
		return err
	}
	return t.Tx.TransferToken(from, to, amount, signer)
}

func (t *faultyTx) Commit() error {
	if err := t.next(OpCommit); err != nil {
		t.Tx.Rollback()
		return err
	}
	return t.Tx.Commit()
}
