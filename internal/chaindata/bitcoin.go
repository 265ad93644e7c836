package chaindata

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/helixwallet/helix-core/internal/log"
	"github.com/helixwallet/helix-core/internal/rpcclient"
	"github.com/helixwallet/helix-core/pkg/types"
)

// Bitcoin Core error code for a transaction the node does not know.
const btcErrInvalidAddressOrKey = -5

// Bitcoin accesses a Bitcoin Core compatible node over JSON-RPC. It
// implements Source and Broadcaster.
type Bitcoin struct {
	client *rpcclient.Client
}

// NewBitcoin wraps a JSON-RPC client for a Bitcoin node.
func NewBitcoin(client *rpcclient.Client) *Bitcoin {
	return &Bitcoin{client: client}
}

// btcToSats converts a BTC-denominated JSON amount to satoshis.
func btcToSats(btc float64) uint64 {
	return uint64(math.Round(btc * 1e8))
}

// ListUnspent returns the spendable outputs of the given addresses with
// at least minConf confirmations.
func (b *Bitcoin) ListUnspent(ctx context.Context, addresses []string, minConf uint64) ([]types.UTXO, error) {
	var entries []struct {
		TxID          string  `json:"txid"`
		Vout          uint32  `json:"vout"`
		Amount        float64 `json:"amount"`
		ScriptPubKey  string  `json:"scriptPubKey"`
		Confirmations uint64  `json:"confirmations"`
		Spendable     bool    `json:"spendable"`
	}
	params := []interface{}{minConf, 9999999, addresses}
	if err := b.client.Call(ctx, "listunspent", params, &entries); err != nil {
		return nil, fmt.Errorf("listunspent: %w", err)
	}

	utxos := make([]types.UTXO, 0, len(entries))
	for _, e := range entries {
		if !e.Spendable {
			continue
		}
		txHash, err := types.HexToHash(e.TxID)
		if err != nil {
			return nil, fmt.Errorf("parse txid %q: %w", e.TxID, err)
		}
		script, err := hex.DecodeString(e.ScriptPubKey)
		if err != nil {
			return nil, fmt.Errorf("parse script for %s: %w", e.TxID, err)
		}
		utxos = append(utxos, types.UTXO{
			Outpoint:      types.Outpoint{TxHash: txHash, Index: e.Vout},
			Amount:        btcToSats(e.Amount),
			Script:        script,
			Confirmations: e.Confirmations,
		})
	}
	return utxos, nil
}

// FeeRate returns a sat/vB fee rate targeting confirmation within
// confTarget blocks. Nodes without fee data (fresh regtest chains)
// yield a floor of 1 sat/vB.
func (b *Bitcoin) FeeRate(ctx context.Context, confTarget int) (uint64, error) {
	var result struct {
		FeeRate float64  `json:"feerate"`
		Errors  []string `json:"errors"`
	}
	if err := b.client.Call(ctx, "estimatesmartfee", []interface{}{confTarget}, &result); err != nil {
		return 0, fmt.Errorf("estimatesmartfee: %w", err)
	}
	if result.FeeRate <= 0 {
		return 1, nil
	}
	// feerate is BTC per kvB.
	rate := btcToSats(result.FeeRate) / 1000
	if rate == 0 {
		rate = 1
	}
	return rate, nil
}

// BroadcastTransaction submits a raw signed transaction and returns its
// txid in display order.
func (b *Bitcoin) BroadcastTransaction(ctx context.Context, raw []byte) (types.Hash, error) {
	var txid string
	if err := b.client.Call(ctx, "sendrawtransaction", []interface{}{hex.EncodeToString(raw)}, &txid); err != nil {
		return types.Hash{}, fmt.Errorf("sendrawtransaction: %w", err)
	}
	h, err := types.HexToHash(txid)
	if err != nil {
		return types.Hash{}, fmt.Errorf("parse txid %q: %w", txid, err)
	}
	log.RPC.Info().Str("txid", h.String()).Msg("broadcast bitcoin transaction")
	return h, nil
}

// TransactionState reports the confirmation depth of a transaction via
// getrawtransaction, which needs txindex on the node for transactions
// outside the wallet.
func (b *Bitcoin) TransactionState(ctx context.Context, txHash types.Hash) (TxState, error) {
	var result struct {
		Confirmations uint64 `json:"confirmations"`
	}
	err := b.client.Call(ctx, "getrawtransaction", []interface{}{txHash.String(), true}, &result)
	if err != nil {
		var rpcErr *rpcclient.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == btcErrInvalidAddressOrKey {
			return TxState{}, nil
		}
		return TxState{}, fmt.Errorf("getrawtransaction: %w", err)
	}
	return TxState{Found: true, Confirmations: result.Confirmations}, nil
}
