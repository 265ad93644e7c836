package ethtx

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/helixwallet/helix-core/pkg/crypto"
	"github.com/helixwallet/helix-core/pkg/rlp"
	"github.com/helixwallet/helix-core/pkg/types"
)

var (
	ErrMissingChainID = errors.New("ethtx: transaction has no chain ID")
	ErrUnknownTxType  = errors.New("ethtx: unknown transaction type")
)

// TxType identifies the envelope of an Ethereum transaction.
type TxType byte

const (
	// LegacyTxType is the pre-typed-envelope format, replay-protected
	// per EIP-155.
	LegacyTxType TxType = 0x00
	// DynamicFeeTxType is the EIP-1559 envelope with a priority fee and
	// a fee cap.
	DynamicFeeTxType TxType = 0x02
)

// AccessTuple is one entry of an EIP-2930 access list.
type AccessTuple struct {
	Address     Address
	StorageKeys []types.Hash
}

// Transaction is an unsigned Ethereum transaction. To is nil for
// contract creation. GasPrice applies to legacy transactions; GasTipCap
// and GasFeeCap to dynamic fee transactions.
type Transaction struct {
	Type       TxType
	ChainID    *big.Int
	Nonce      uint64
	GasPrice   *big.Int
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         *Address
	Value      *big.Int
	Data       []byte
	AccessList []AccessTuple
}

func (tx *Transaction) encodeTo() []byte {
	if tx.To == nil {
		return rlp.EncodeBytes(nil)
	}
	return rlp.EncodeBytes(tx.To[:])
}

func (tx *Transaction) encodeAccessList() []byte {
	entries := make([][]byte, len(tx.AccessList))
	for i, tuple := range tx.AccessList {
		keys := make([][]byte, len(tuple.StorageKeys))
		for j, k := range tuple.StorageKeys {
			keys[j] = rlp.EncodeBytes(k[:])
		}
		entries[i] = rlp.EncodeList(
			rlp.EncodeBytes(tuple.Address[:]),
			rlp.EncodeList(keys...),
		)
	}
	return rlp.EncodeList(entries...)
}

// SigningHash returns the digest a signature over this transaction must
// commit to. Legacy transactions use the EIP-155 scheme with the chain
// ID folded into the payload; dynamic fee transactions hash the typed
// envelope.
func (tx *Transaction) SigningHash() (types.Hash, error) {
	if tx.ChainID == nil || tx.ChainID.Sign() <= 0 {
		return types.Hash{}, ErrMissingChainID
	}
	switch tx.Type {
	case LegacyTxType:
		payload := rlp.EncodeList(
			rlp.EncodeUint64(tx.Nonce),
			rlp.EncodeBig(tx.GasPrice),
			rlp.EncodeUint64(tx.Gas),
			tx.encodeTo(),
			rlp.EncodeBig(tx.Value),
			rlp.EncodeBytes(tx.Data),
			rlp.EncodeBig(tx.ChainID),
			rlp.EncodeBytes(nil),
			rlp.EncodeBytes(nil),
		)
		return crypto.Keccak256(payload), nil
	case DynamicFeeTxType:
		payload := rlp.EncodeList(
			rlp.EncodeBig(tx.ChainID),
			rlp.EncodeUint64(tx.Nonce),
			rlp.EncodeBig(tx.GasTipCap),
			rlp.EncodeBig(tx.GasFeeCap),
			rlp.EncodeUint64(tx.Gas),
			tx.encodeTo(),
			rlp.EncodeBig(tx.Value),
			rlp.EncodeBytes(tx.Data),
			tx.encodeAccessList(),
		)
		return crypto.Keccak256(append([]byte{byte(DynamicFeeTxType)}, payload...)), nil
	}
	return types.Hash{}, fmt.Errorf("%w: %#02x", ErrUnknownTxType, byte(tx.Type))
}

// RawWithSignature assembles the broadcast-ready encoding of the
// transaction with the given signature. For legacy transactions v is
// chainID*2 + 35 + recovery ID; typed envelopes carry the recovery ID
// directly.
func (tx *Transaction) RawWithSignature(sig crypto.Signature) ([]byte, error) {
	if tx.ChainID == nil || tx.ChainID.Sign() <= 0 {
		return nil, ErrMissingChainID
	}
	r := new(big.Int).SetBytes(sig.R[:])
	s := new(big.Int).SetBytes(sig.S[:])

	switch tx.Type {
	case LegacyTxType:
		v := new(big.Int).Lsh(tx.ChainID, 1)
		v.Add(v, big.NewInt(35+int64(sig.RecoveryID)))
		return rlp.EncodeList(
			rlp.EncodeUint64(tx.Nonce),
			rlp.EncodeBig(tx.GasPrice),
			rlp.EncodeUint64(tx.Gas),
			tx.encodeTo(),
			rlp.EncodeBig(tx.Value),
			rlp.EncodeBytes(tx.Data),
			rlp.EncodeBig(v),
			rlp.EncodeBig(r),
			rlp.EncodeBig(s),
		), nil
	case DynamicFeeTxType:
		payload := rlp.EncodeList(
			rlp.EncodeBig(tx.ChainID),
			rlp.EncodeUint64(tx.Nonce),
			rlp.EncodeBig(tx.GasTipCap),
			rlp.EncodeBig(tx.GasFeeCap),
			rlp.EncodeUint64(tx.Gas),
			tx.encodeTo(),
			rlp.EncodeBig(tx.Value),
			rlp.EncodeBytes(tx.Data),
			tx.encodeAccessList(),
			rlp.EncodeUint64(uint64(sig.RecoveryID)),
			rlp.EncodeBig(r),
			rlp.EncodeBig(s),
		)
		return append([]byte{byte(DynamicFeeTxType)}, payload...), nil
	}
	return nil, fmt.Errorf("%w: %#02x", ErrUnknownTxType, byte(tx.Type))
}

// TxHash returns the transaction hash of a broadcast-ready encoding:
// the Keccak-256 of the raw bytes, typed-envelope prefix included.
func TxHash(raw []byte) types.Hash {
	return crypto.Keccak256(raw)
}
