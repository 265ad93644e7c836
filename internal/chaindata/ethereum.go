package chaindata

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/helixwallet/helix-core/internal/log"
	"github.com/helixwallet/helix-core/internal/rpcclient"
	"github.com/helixwallet/helix-core/pkg/ethtx"
	"github.com/helixwallet/helix-core/pkg/types"
)

// Ethereum accesses an EVM chain over JSON-RPC. It implements
// ethtx.DataSource, Source and Broadcaster.
type Ethereum struct {
	client *rpcclient.Client
}

// NewEthereum wraps a JSON-RPC client for an EVM chain.
func NewEthereum(client *rpcclient.Client) *Ethereum {
	return &Ethereum{client: client}
}

// hexQuantity is a JSON-RPC 0x-prefixed big-endian quantity.
type hexQuantity big.Int

func (q *hexQuantity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok {
		return fmt.Errorf("bad hex quantity %q", s)
	}
	*q = hexQuantity(*v)
	return nil
}

func (q *hexQuantity) big() *big.Int { return (*big.Int)(q) }

func (q *hexQuantity) uint64() uint64 { return (*big.Int)(q).Uint64() }

func encodeQuantity(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0x0"
	}
	return "0x" + v.Text(16)
}

// TransactionCount returns the account nonce. pending counts mempool
// transactions so consecutive sends do not collide.
func (e *Ethereum) TransactionCount(ctx context.Context, account ethtx.Address, pending bool) (uint64, error) {
	tag := "latest"
	if pending {
		tag = "pending"
	}
	var count hexQuantity
	if err := e.client.Call(ctx, "eth_getTransactionCount", []interface{}{account.String(), tag}, &count); err != nil {
		return 0, fmt.Errorf("eth_getTransactionCount: %w", err)
	}
	return count.uint64(), nil
}

// SuggestFees returns the latest block's base fee and the node's
// priority fee suggestion.
func (e *Ethereum) SuggestFees(ctx context.Context) (*big.Int, *big.Int, error) {
	var head struct {
		BaseFeePerGas *hexQuantity `json:"baseFeePerGas"`
	}
	if err := e.client.Call(ctx, "eth_getBlockByNumber", []interface{}{"latest", false}, &head); err != nil {
		return nil, nil, fmt.Errorf("eth_getBlockByNumber: %w", err)
	}
	if head.BaseFeePerGas == nil {
		return nil, nil, fmt.Errorf("chain has no base fee, use legacy pricing")
	}
	var tip hexQuantity
	if err := e.client.Call(ctx, "eth_maxPriorityFeePerGas", nil, &tip); err != nil {
		return nil, nil, fmt.Errorf("eth_maxPriorityFeePerGas: %w", err)
	}
	return head.BaseFeePerGas.big(), tip.big(), nil
}

// GasPrice returns the legacy gas price suggestion.
func (e *Ethereum) GasPrice(ctx context.Context) (*big.Int, error) {
	var price hexQuantity
	if err := e.client.Call(ctx, "eth_gasPrice", nil, &price); err != nil {
		return nil, fmt.Errorf("eth_gasPrice: %w", err)
	}
	return price.big(), nil
}

// EstimateGas simulates the call on the node.
func (e *Ethereum) EstimateGas(ctx context.Context, call ethtx.CallMsg) (uint64, error) {
	msg := map[string]string{"from": call.From.String()}
	if call.To != nil {
		msg["to"] = call.To.String()
	}
	if call.Value != nil && call.Value.Sign() > 0 {
		msg["value"] = encodeQuantity(call.Value)
	}
	if len(call.Data) > 0 {
		msg["data"] = "0x" + hex.EncodeToString(call.Data)
	}
	var gas hexQuantity
	if err := e.client.Call(ctx, "eth_estimateGas", []interface{}{msg}, &gas); err != nil {
		return 0, fmt.Errorf("eth_estimateGas: %w", err)
	}
	return gas.uint64(), nil
}

// BroadcastTransaction submits a raw signed transaction and returns its
// hash as reported by the node.
func (e *Ethereum) BroadcastTransaction(ctx context.Context, raw []byte) (types.Hash, error) {
	var txHash string
	if err := e.client.Call(ctx, "eth_sendRawTransaction", []interface{}{"0x" + hex.EncodeToString(raw)}, &txHash); err != nil {
		return types.Hash{}, fmt.Errorf("eth_sendRawTransaction: %w", err)
	}
	h, err := types.HexToHash(txHash)
	if err != nil {
		return types.Hash{}, fmt.Errorf("parse tx hash %q: %w", txHash, err)
	}
	log.RPC.Info().Str("tx_hash", h.String()).Msg("broadcast ethereum transaction")
	return h, nil
}

// TransactionState reports confirmation and execution state. A
// transaction with a receipt is confirmed to the depth of the chain
// above its block; one known only to the mempool has zero
// confirmations; one the node has never seen is not found.
func (e *Ethereum) TransactionState(ctx context.Context, txHash types.Hash) (TxState, error) {
	hashArg := "0x" + txHash.String()

	var receipt *struct {
		BlockNumber *hexQuantity `json:"blockNumber"`
		Status      *hexQuantity `json:"status"`
	}
	if err := e.client.Call(ctx, "eth_getTransactionReceipt", []interface{}{hashArg}, &receipt); err != nil {
		return TxState{}, fmt.Errorf("eth_getTransactionReceipt: %w", err)
	}
	if receipt == nil || receipt.BlockNumber == nil {
		// No receipt: still pending if the node knows the transaction.
		var tx *struct {
			Hash string `json:"hash"`
		}
		if err := e.client.Call(ctx, "eth_getTransactionByHash", []interface{}{hashArg}, &tx); err != nil {
			return TxState{}, fmt.Errorf("eth_getTransactionByHash: %w", err)
		}
		return TxState{Found: tx != nil}, nil
	}

	var latest hexQuantity
	if err := e.client.Call(ctx, "eth_blockNumber", nil, &latest); err != nil {
		return TxState{}, fmt.Errorf("eth_blockNumber: %w", err)
	}
	confs := uint64(0)
	if latest.uint64() >= receipt.BlockNumber.uint64() {
		confs = latest.uint64() - receipt.BlockNumber.uint64() + 1
	}
	failed := receipt.Status != nil && receipt.Status.uint64() == 0
	return TxState{Found: true, Failed: failed, Confirmations: confs}, nil
}
