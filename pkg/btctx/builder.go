package btctx

import (
	"errors"
	"sort"

	"github.com/helixwallet/helix-core/pkg/btcwire"
	"github.com/helixwallet/helix-core/pkg/types"
)

var (
	ErrInsufficientBalance = errors.New("btctx: insufficient balance for amount plus fee")
	ErrNoRecipients        = errors.New("btctx: transaction needs at least one recipient")
)

// DustThreshold is the smallest change amount worth creating an output
// for. Change below it is absorbed into the fee.
const DustThreshold = 546

// Virtual size constants for fee estimation. They assume P2PKH-sized
// inputs, which overestimates segwit spends; the overshoot is returned
// as change rather than burned.
const (
	txOverheadVBytes = 10
	inputVBytes      = 148
	outputVBytes     = 34
	feeBuffer        = 1000
)

// EstimateFee returns the fee in satoshis for a transaction with the
// given shape at feeRate satoshis per virtual byte, plus a fixed buffer
// so estimation error cannot stall the transaction.
func EstimateFee(numInputs, numOutputs int, feeRate uint64) uint64 {
	vbytes := uint64(txOverheadVBytes + numInputs*inputVBytes + numOutputs*outputVBytes)
	return vbytes*feeRate + feeBuffer
}

// SelectUTXOs picks unspent outputs covering target satoshis plus the
// estimated fee. Selection is greedy largest-first, so the input count
// and with it the fee stay small. The returned fee is the estimate the
// selection was made against, assuming a recipient and a change output.
func SelectUTXOs(utxos []types.UTXO, target, feeRate uint64) ([]types.UTXO, uint64, error) {
	sorted := append([]types.UTXO(nil), utxos...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })

	var selected []types.UTXO
	var total uint64
	for _, u := range sorted {
		selected = append(selected, u)
		total += u.Amount
		fee := EstimateFee(len(selected), 2, feeRate)
		if total >= target+fee {
			return selected, fee, nil
		}
	}
	return nil, 0, ErrInsufficientBalance
}

// Recipient is a payment destination inside a transaction under
// construction, expressed as a locking script.
type Recipient struct {
	Script []byte
	Amount uint64
}

// BuildTransaction assembles an unsigned transaction paying the
// recipients from the given inputs. Change above the dust threshold
// goes to changeScript; dust-level change is left to the miners.
// Inputs and outputs keep their argument order so the caller controls
// the final layout.
func BuildTransaction(utxos []types.UTXO, recipients []Recipient, changeScript []byte, feeRate uint64, lockTime uint32) (*btcwire.Transaction, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	var sendTotal uint64
	for _, r := range recipients {
		sendTotal += r.Amount
	}
	var inTotal uint64
	for _, u := range utxos {
		inTotal += u.Amount
	}

	fee := EstimateFee(len(utxos), len(recipients)+1, feeRate)
	if inTotal < sendTotal+fee {
		return nil, ErrInsufficientBalance
	}

	tx := &btcwire.Transaction{Version: 2, LockTime: lockTime}
	for _, u := range utxos {
		tx.Inputs = append(tx.Inputs, btcwire.Input{
			PrevOut:  u.Outpoint,
			Sequence: 0xffffffff,
		})
	}
	for _, r := range recipients {
		tx.Outputs = append(tx.Outputs, btcwire.Output{
			Value:  r.Amount,
			Script: append([]byte(nil), r.Script...),
		})
	}
	if change := inTotal - sendTotal - fee; change > DustThreshold {
		tx.Outputs = append(tx.Outputs, btcwire.Output{
			Value:  change,
			Script: append([]byte(nil), changeScript...),
		})
	}
	return tx, nil
}
