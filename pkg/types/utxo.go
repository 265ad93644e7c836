package types

import "fmt"

// Outpoint references a specific output of a previous transaction.
// The txid is carried in display byte order, as RPC nodes report it.
type Outpoint struct {
	TxHash Hash   `json:"txid"`
	Index  uint32 `json:"index"`
}

// String returns "txid:index".
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxHash.String(), o.Index)
}

// UTXO is a snapshot of an unspent transaction output reported by a
// blockchain data source. The builder treats it as read-only input data.
type UTXO struct {
	Outpoint      Outpoint `json:"outpoint"`
	Amount        uint64   `json:"amount"` // satoshis
	Script        []byte   `json:"script"` // locking script
	Confirmations uint64   `json:"confirmations"`
}
