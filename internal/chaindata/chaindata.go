// Package chaindata adapts per-chain JSON-RPC node APIs into the
// interfaces the builders and the confirmation monitor consume.
package chaindata

import (
	"context"

	"github.com/helixwallet/helix-core/pkg/types"
)

// TxState is what a chain currently knows about a transaction.
type TxState struct {
	// Found is false when the node knows nothing about the hash, which
	// after a broadcast means the transaction was dropped or replaced.
	Found bool
	// Failed is true when the transaction was mined but its execution
	// reverted. Always false on Bitcoin.
	Failed bool
	// Confirmations is 0 while the transaction sits in the mempool.
	Confirmations uint64
}

// Source reports transaction confirmation state for one chain.
type Source interface {
	TransactionState(ctx context.Context, txHash types.Hash) (TxState, error)
}

// Broadcaster submits raw signed transactions to one chain.
type Broadcaster interface {
	BroadcastTransaction(ctx context.Context, raw []byte) (types.Hash, error)
}
