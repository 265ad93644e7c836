package btcwire

import (
	"encoding/binary"

	"github.com/helixwallet/helix-core/pkg/crypto"
	"github.com/helixwallet/helix-core/pkg/types"
)

// SegWit serialization marker and flag bytes (BIP-141).
const (
	SegWitMarker = 0x00
	SegWitFlag   = 0x01
)

// Transaction is a Bitcoin transaction.
type Transaction struct {
	Version  int32
	Inputs   []Input
	Outputs  []Output
	LockTime uint32
}

// Input spends a previous output.
type Input struct {
	PrevOut  types.Outpoint
	Script   []byte // scriptSig
	Sequence uint32
	Witness  [][]byte
}

// Output creates a new spendable output.
type Output struct {
	Value  uint64 // satoshis
	Script []byte // locking script
}

// HasWitness reports whether any input carries witness data.
func (tx *Transaction) HasWitness() bool {
	for _, in := range tx.Inputs {
		if len(in.Witness) > 0 {
			return true
		}
	}
	return false
}

// Serialize returns the wire encoding. Witness data is included (with the
// BIP-141 marker and flag) when withWitness is set and any input has a
// witness stack.
func (tx *Transaction) Serialize(withWitness bool) []byte {
	segwit := withWitness && tx.HasWitness()

	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, uint32(tx.Version))

	if segwit {
		buf = append(buf, SegWitMarker, SegWitFlag)
	}

	buf = AppendCompactSize(buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = AppendOutpoint(buf, in.PrevOut)
		buf = AppendVarBytes(buf, in.Script)
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}

	buf = AppendCompactSize(buf, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = AppendVarBytes(buf, out.Script)
	}

	if segwit {
		for _, in := range tx.Inputs {
			buf = AppendCompactSize(buf, uint64(len(in.Witness)))
			for _, item := range in.Witness {
				buf = AppendVarBytes(buf, item)
			}
		}
	}

	return binary.LittleEndian.AppendUint32(buf, tx.LockTime)
}

// AppendOutpoint writes the 32-byte previous txid in reversed (wire) byte
// order followed by the little-endian output index. Txids are carried in
// display order throughout the API, matching what RPC nodes report.
func AppendOutpoint(dst []byte, op types.Outpoint) []byte {
	rev := op.TxHash.Reversed()
	dst = append(dst, rev[:]...)
	return binary.LittleEndian.AppendUint32(dst, op.Index)
}

// TxID returns the transaction id: double-SHA256 of the non-witness
// serialization, regardless of whether the transaction carries witnesses.
// The result is in display byte order.
func (tx *Transaction) TxID() types.Hash {
	return crypto.SHA256d(tx.Serialize(false)).Reversed()
}

// WTxID returns the witness transaction id: double-SHA256 of the
// witness-inclusive serialization, in display byte order. For transactions
// without witness data it equals TxID.
func (tx *Transaction) WTxID() types.Hash {
	return crypto.SHA256d(tx.Serialize(true)).Reversed()
}

// Copy returns a deep copy. Sighash computation mutates scripts on a copy
// so the original transaction is never modified.
func (tx *Transaction) Copy() *Transaction {
	dup := &Transaction{
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Inputs:   make([]Input, len(tx.Inputs)),
		Outputs:  make([]Output, len(tx.Outputs)),
	}
	for i, in := range tx.Inputs {
		dup.Inputs[i] = Input{
			PrevOut:  in.PrevOut,
			Script:   append([]byte(nil), in.Script...),
			Sequence: in.Sequence,
		}
		if in.Witness != nil {
			w := make([][]byte, len(in.Witness))
			for j, item := range in.Witness {
				w[j] = append([]byte(nil), item...)
			}
			dup.Inputs[i].Witness = w
		}
	}
	for i, out := range tx.Outputs {
		dup.Outputs[i] = Output{
			Value:  out.Value,
			Script: append([]byte(nil), out.Script...),
		}
	}
	return dup
}

// Deserialize parses a wire-encoded transaction, accepting both legacy and
// SegWit framing. The full input must be consumed.
func Deserialize(data []byte) (*Transaction, error) {
	tx, n, err := deserialize(data)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, ErrMalformed
	}
	return tx, nil
}

func deserialize(data []byte) (*Transaction, int, error) {
	pos := 0
	next := func(n int) ([]byte, error) {
		if len(data)-pos < n {
			return nil, ErrMalformed
		}
		b := data[pos : pos+n]
		pos += n
		return b, nil
	}

	verBytes, err := next(4)
	if err != nil {
		return nil, 0, err
	}
	tx := &Transaction{Version: int32(binary.LittleEndian.Uint32(verBytes))}

	segwit := false
	if len(data)-pos >= 2 && data[pos] == SegWitMarker && data[pos+1] == SegWitFlag {
		segwit = true
		pos += 2
	}

	inputCount, err := readCount(data, &pos)
	if err != nil {
		return nil, 0, err
	}
	for i := uint64(0); i < inputCount; i++ {
		opBytes, err := next(36)
		if err != nil {
			return nil, 0, err
		}
		var in Input
		var rev types.Hash
		copy(rev[:], opBytes[:32])
		in.PrevOut.TxHash = rev.Reversed()
		in.PrevOut.Index = binary.LittleEndian.Uint32(opBytes[32:36])
		if in.Script, err = readVarBytes(data, &pos); err != nil {
			return nil, 0, err
		}
		seqBytes, err := next(4)
		if err != nil {
			return nil, 0, err
		}
		in.Sequence = binary.LittleEndian.Uint32(seqBytes)
		tx.Inputs = append(tx.Inputs, in)
	}

	outputCount, err := readCount(data, &pos)
	if err != nil {
		return nil, 0, err
	}
	for i := uint64(0); i < outputCount; i++ {
		valBytes, err := next(8)
		if err != nil {
			return nil, 0, err
		}
		var out Output
		out.Value = binary.LittleEndian.Uint64(valBytes)
		if out.Script, err = readVarBytes(data, &pos); err != nil {
			return nil, 0, err
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	if segwit {
		for i := range tx.Inputs {
			itemCount, err := readCount(data, &pos)
			if err != nil {
				return nil, 0, err
			}
			witness := make([][]byte, 0, itemCount)
			for j := uint64(0); j < itemCount; j++ {
				item, err := readVarBytes(data, &pos)
				if err != nil {
					return nil, 0, err
				}
				witness = append(witness, item)
			}
			tx.Inputs[i].Witness = witness
		}
	}

	ltBytes, err := next(4)
	if err != nil {
		return nil, 0, err
	}
	tx.LockTime = binary.LittleEndian.Uint32(ltBytes)

	return tx, pos, nil
}

func readCount(data []byte, pos *int) (uint64, error) {
	v, n, err := ReadCompactSize(data[*pos:])
	if err != nil {
		return 0, err
	}
	// Cap counts at what the remaining data could possibly hold.
	if v > uint64(len(data)) {
		return 0, ErrMalformed
	}
	*pos += n
	return v, nil
}

func readVarBytes(data []byte, pos *int) ([]byte, error) {
	n, consumed, err := ReadCompactSize(data[*pos:])
	if err != nil {
		return nil, err
	}
	*pos += consumed
	if uint64(len(data)-*pos) < n {
		return nil, ErrMalformed
	}
	b := append([]byte(nil), data[*pos:*pos+int(n)]...)
	*pos += int(n)
	return b, nil
}
