package btctx

import (
	"encoding/binary"
	"errors"

	"github.com/helixwallet/helix-core/pkg/btcwire"
	"github.com/helixwallet/helix-core/pkg/crypto"
	"github.com/helixwallet/helix-core/pkg/types"
)

var (
	ErrInvalidInputIndex = errors.New("btctx: input index out of range")
	ErrSingleNoOutput    = errors.New("btctx: SIGHASH_SINGLE input has no matching output")
)

// SigHashType selects which parts of a transaction a signature commits to.
type SigHashType uint32

const (
	SigHashAll          SigHashType = 0x01
	SigHashNone         SigHashType = 0x02
	SigHashSingle       SigHashType = 0x03
	SigHashAnyOneCanPay SigHashType = 0x80
)

// Base strips the ANYONECANPAY flag, leaving ALL, NONE or SINGLE.
func (t SigHashType) Base() SigHashType { return t & 0x1f }

// AnyOneCanPay reports whether the ANYONECANPAY flag is set.
func (t SigHashType) AnyOneCanPay() bool { return t&SigHashAnyOneCanPay != 0 }

// LegacySigHash computes the pre-segwit signature hash for the given input.
// The transaction itself is never modified; the hash is derived from a copy.
// scriptCode is the raw locking script (or redeem script) being satisfied.
func LegacySigHash(tx *btcwire.Transaction, inputIndex int, scriptCode []byte, hashType SigHashType) (types.Hash, error) {
	if inputIndex < 0 || inputIndex >= len(tx.Inputs) {
		return types.Hash{}, ErrInvalidInputIndex
	}

	c := tx.Copy()
	for i := range c.Inputs {
		c.Inputs[i].Script = nil
		c.Inputs[i].Witness = nil
	}
	c.Inputs[inputIndex].Script = append([]byte(nil), scriptCode...)

	switch hashType.Base() {
	case SigHashNone:
		c.Outputs = nil
		for i := range c.Inputs {
			if i != inputIndex {
				c.Inputs[i].Sequence = 0
			}
		}
	case SigHashSingle:
		if inputIndex >= len(c.Outputs) {
			return types.Hash{}, ErrSingleNoOutput
		}
		c.Outputs = c.Outputs[:inputIndex+1]
		for i := 0; i < inputIndex; i++ {
			// Dropped outputs are replaced by the maximal amount and an
			// empty script so their positions still serialize.
			c.Outputs[i].Value = ^uint64(0)
			c.Outputs[i].Script = nil
		}
		for i := range c.Inputs {
			if i != inputIndex {
				c.Inputs[i].Sequence = 0
			}
		}
	}

	if hashType.AnyOneCanPay() {
		c.Inputs = []btcwire.Input{c.Inputs[inputIndex]}
	}

	preimage := c.Serialize(false)
	preimage = binary.LittleEndian.AppendUint32(preimage, uint32(hashType))
	return crypto.SHA256d(preimage), nil
}

// SegwitSigHash computes the BIP 143 signature hash for a segwit v0 input.
// amount is the value in satoshis of the output being spent, which the
// digest commits to. scriptCode follows the BIP 143 rules for the script
// type (the P2PKH template for P2WPKH spends, the witness script for
// P2WSH spends).
func SegwitSigHash(tx *btcwire.Transaction, inputIndex int, scriptCode []byte, amount uint64, hashType SigHashType) (types.Hash, error) {
	if inputIndex < 0 || inputIndex >= len(tx.Inputs) {
		return types.Hash{}, ErrInvalidInputIndex
	}

	var hashPrevouts, hashSequence, hashOutputs types.Hash
	base := hashType.Base()

	if !hashType.AnyOneCanPay() {
		var buf []byte
		for _, in := range tx.Inputs {
			buf = btcwire.AppendOutpoint(buf, in.PrevOut)
		}
		hashPrevouts = crypto.SHA256d(buf)
	}
	if !hashType.AnyOneCanPay() && base != SigHashSingle && base != SigHashNone {
		var buf []byte
		for _, in := range tx.Inputs {
			buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
		}
		hashSequence = crypto.SHA256d(buf)
	}
	switch {
	case base != SigHashSingle && base != SigHashNone:
		var buf []byte
		for _, out := range tx.Outputs {
			buf = binary.LittleEndian.AppendUint64(buf, out.Value)
			buf = btcwire.AppendVarBytes(buf, out.Script)
		}
		hashOutputs = crypto.SHA256d(buf)
	case base == SigHashSingle && inputIndex < len(tx.Outputs):
		var buf []byte
		buf = binary.LittleEndian.AppendUint64(buf, tx.Outputs[inputIndex].Value)
		buf = btcwire.AppendVarBytes(buf, tx.Outputs[inputIndex].Script)
		hashOutputs = crypto.SHA256d(buf)
	}

	in := tx.Inputs[inputIndex]
	preimage := make([]byte, 0, 256)
	preimage = binary.LittleEndian.AppendUint32(preimage, uint32(tx.Version))
	preimage = append(preimage, hashPrevouts[:]...)
	preimage = append(preimage, hashSequence[:]...)
	preimage = btcwire.AppendOutpoint(preimage, in.PrevOut)
	preimage = btcwire.AppendVarBytes(preimage, scriptCode)
	preimage = binary.LittleEndian.AppendUint64(preimage, amount)
	preimage = binary.LittleEndian.AppendUint32(preimage, in.Sequence)
	preimage = append(preimage, hashOutputs[:]...)
	preimage = binary.LittleEndian.AppendUint32(preimage, tx.LockTime)
	preimage = binary.LittleEndian.AppendUint32(preimage, uint32(hashType))
	return crypto.SHA256d(preimage), nil
}

// P2WPKHScriptCode returns the scriptCode BIP 143 prescribes for spending
// a P2WPKH output: the classic P2PKH template over the same key hash.
func P2WPKHScriptCode(pubKeyHash [20]byte) []byte {
	return P2PKHScript(pubKeyHash)
}
