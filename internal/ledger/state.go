package ledger

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/ava-labs/avalanchego/database"
	"github.com/gagliardetto/solana-go"

	smath "github.com/ava-labs/avalanchego/utils/math"
)

type keyValue interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
}

// state applies ledger rules on top of a key/value view. Both the base
// memdb and per-transaction versiondb overlays satisfy keyValue.
type state struct {
	db        keyValue
	programID solana.PublicKey
}

func (s *state) account(address solana.PublicKey) (account, error) {
	raw, err := s.db.Get(accountKey(address))
	if errors.Is(err, database.ErrNotFound) {
		return account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if err != nil {
		return account{}, err
	}
	return decodeAccount(raw)
}

func (s *state) putAccount(address solana.PublicKey, a account) error {
	return s.db.Put(accountKey(address), a.encode())
}

func (s *state) exists(address solana.PublicKey) (bool, error) {
	_, err := s.account(address)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *state) mint(mint solana.PublicKey) (mintRecord, error) {
	raw, err := s.db.Get(mintKey(mint))
	if errors.Is(err, database.ErrNotFound) {
		return mintRecord{}, fmt.Errorf("%w: %s", ErrMintNotFound, mint)
	}
	if err != nil {
		return mintRecord{}, err
	}
	return decodeMint(raw)
}

func (s *state) putMint(mint solana.PublicKey, m mintRecord) error {
	return s.db.Put(mintKey(mint), m.encode())
}

func (s *state) lamports(address solana.PublicKey) (uint64, error) {
	a, err := s.account(address)
	if err != nil {
		return 0, err
	}
	if a.kind != kindSystem {
		return 0, fmt.Errorf("%w: %s is a %s account", ErrWrongAccountKind, address, a.kind)
	}
	return a.amount, nil
}

func (s *state) tokenBalance(address solana.PublicKey) (uint64, error) {
	a, err := s.account(address)
	if err != nil {
		return 0, err
	}
	if a.kind != kindToken {
		return 0, fmt.Errorf("%w: %s is a %s account", ErrWrongAccountKind, address, a.kind)
	}
	return a.amount, nil
}

// authorize checks signer may debit an account owned by owner. A program
// address has no private key, so it can only sign through its seeds.
func (s *state) authorize(owner solana.PublicKey, signer Signer) error {
	if signer.IsProgramDerived() {
		derived, err := solana.CreateProgramAddress(signer.Seeds, s.programID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSigner, err)
		}
		if !derived.Equals(signer.Key) {
			return fmt.Errorf("%w: seeds derive %s, not %s", ErrInvalidSigner, derived, signer.Key)
		}
	} else if !onCurve(signer.Key) {
		return fmt.Errorf("%w: %s is a program address and cannot sign as a wallet", ErrInvalidSigner, signer.Key)
	}
	if !owner.Equals(signer.Key) {
		return fmt.Errorf("%w: owner %s, signer %s", ErrUnauthorized, owner, signer.Key)
	}
	return nil
}

func onCurve(key solana.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(key[:])
	return err == nil
}

func (s *state) ensureTokenAccount(address, mint, owner solana.PublicKey) error {
	a, err := s.account(address)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		if _, err := s.mint(mint); err != nil {
			return err
		}
		return s.putAccount(address, account{kind: kindToken, owner: owner, mint: mint})
	case err != nil:
		return err
	case a.kind != kindToken:
		return fmt.Errorf("%w: %s is a %s account", ErrWrongAccountKind, address, a.kind)
	case !a.mint.Equals(mint):
		return fmt.Errorf("%w: %s holds %s, not %s", ErrMintMismatch, address, a.mint, mint)
	case !a.owner.Equals(owner):
		return fmt.Errorf("%w: %s is owned by %s", ErrUnauthorized, address, a.owner)
	}
	return nil
}

func (s *state) transferLamports(from, to solana.PublicKey, amount uint64, signer Signer) error {
	src, err := s.account(from)
	if err != nil {
		return err
	}
	if src.kind != kindSystem {
		return fmt.Errorf("%w: %s is a %s account", ErrWrongAccountKind, from, src.kind)
	}
	if err := s.authorize(src.owner, signer); err != nil {
		return err
	}

	dst, err := s.account(to)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		// Transfers to a fresh address create a wallet-owned system account.
		dst = account{kind: kindSystem, owner: to}
	case err != nil:
		return err
	case dst.kind != kindSystem:
		return fmt.Errorf("%w: %s is a %s account", ErrWrongAccountKind, to, dst.kind)
	}

	return s.move(from, src, to, dst, amount)
}

func (s *state) transferToken(from, to solana.PublicKey, amount uint64, signer Signer) error {
	src, err := s.account(from)
	if err != nil {
		return err
	}
	dst, err := s.account(to)
	if err != nil {
		return err
	}
	if src.kind != kindToken || dst.kind != kindToken {
		return fmt.Errorf("%w: token transfer %s -> %s", ErrWrongAccountKind, from, to)
	}
	if !src.mint.Equals(dst.mint) {
		return fmt.Errorf("%w: %s -> %s", ErrMintMismatch, src.mint, dst.mint)
	}
	if err := s.authorize(src.owner, signer); err != nil {
		return err
	}
	return s.move(from, src, to, dst, amount)
}

func (s *state) move(from solana.PublicKey, src account, to solana.PublicKey, dst account, amount uint64) error {
	nsrc, err := smath.Sub(src.amount, amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, src.amount, amount)
	}
	if from.Equals(to) {
		return nil
	}
	ndst, err := smath.Add(dst.amount, amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %d, receiving %d", ErrBalanceOverflow, to, dst.amount, amount)
	}
	src.amount = nsrc
	dst.amount = ndst
	if err := s.putAccount(from, src); err != nil {
		return err
	}
	return s.putAccount(to, dst)
}
