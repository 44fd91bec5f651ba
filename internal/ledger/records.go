package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Key prefixes
const (
	accountPrefix byte = iota
	mintPrefix
)

type accountKind uint8

const (
	kindSystem accountKind = iota + 1
	kindToken
)

func (k accountKind) String() string {
	switch k {
	case kindSystem:
		return "system"
	case kindToken:
		return "token"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

const (
	accountRecordLen = 1 + solana.PublicKeyLength + solana.PublicKeyLength + 8
	mintRecordLen    = 8 + 1 + solana.PublicKeyLength
)

// account is the stored layout of both system (lamport) and token accounts.
// System accounts leave mint zeroed.
type account struct {
	kind   accountKind
	owner  solana.PublicKey
	mint   solana.PublicKey
	amount uint64
}

func accountKey(address solana.PublicKey) []byte {
	k := make([]byte, 1+solana.PublicKeyLength)
	k[0] = accountPrefix
	copy(k[1:], address[:])
	return k
}

func (a account) encode() []byte {
	b := make([]byte, accountRecordLen)
	b[0] = byte(a.kind)
	copy(b[1:33], a.owner[:])
	copy(b[33:65], a.mint[:])
	binary.BigEndian.PutUint64(b[65:], a.amount)
	return b
}

func decodeAccount(b []byte) (account, error) {
	if len(b) != accountRecordLen {
		return account{}, fmt.Errorf("invalid account record length %d", len(b))
	}
	return account{
		kind:   accountKind(b[0]),
		owner:  solana.PublicKeyFromBytes(b[1:33]),
		mint:   solana.PublicKeyFromBytes(b[33:65]),
		amount: binary.BigEndian.Uint64(b[65:]),
	}, nil
}

type mintRecord struct {
	supply    uint64
	decimals  uint8
	authority solana.PublicKey
}

func mintKey(mint solana.PublicKey) []byte {
	k := make([]byte, 1+solana.PublicKeyLength)
	k[0] = mintPrefix
	copy(k[1:], mint[:])
	return k
}

func (m mintRecord) encode() []byte {
	b := make([]byte, mintRecordLen)
	binary.BigEndian.PutUint64(b[0:8], m.supply)
	b[8] = m.decimals
	copy(b[9:], m.authority[:])
	return b
}

func decodeMint(b []byte) (mintRecord, error) {
	if len(b) != mintRecordLen {
		return mintRecord{}, fmt.Errorf("invalid mint record length %d", len(b))
	}
	return mintRecord{
		supply:    binary.BigEndian.Uint64(b[0:8]),
		decimals:  b[8],
		authority: solana.PublicKeyFromBytes(b[9:]),
	}, nil
}
