package ethtx

import (
	"context"
	"fmt"
	"math/big"

	"github.com/helixwallet/helix-core/pkg/abi"
)

// transferGasLimit is the intrinsic gas of a plain value transfer.
const transferGasLimit = 21000

// CallMsg describes a contract call for gas estimation.
type CallMsg struct {
	From  Address
	To    *Address
	Value *big.Int
	Data  []byte
}

// DataSource supplies the chain state a transaction builder needs.
// internal/chaindata implements it over JSON-RPC.
type DataSource interface {
	// TransactionCount returns the nonce for an account. pending
	// includes transactions still in the mempool.
	TransactionCount(ctx context.Context, account Address, pending bool) (uint64, error)
	// SuggestFees returns the latest base fee and a suggested priority
	// fee for dynamic fee transactions.
	SuggestFees(ctx context.Context) (baseFee, priorityFee *big.Int, err error)
	// GasPrice returns the legacy gas price suggestion.
	GasPrice(ctx context.Context) (*big.Int, error)
	// EstimateGas simulates the call and returns a gas limit for it.
	EstimateGas(ctx context.Context, call CallMsg) (uint64, error)
}

// Builder assembles unsigned transactions for one chain, filling nonce,
// fees and gas limits from a DataSource.
type Builder struct {
	chainID *big.Int
	source  DataSource
}

// NewBuilder returns a Builder for the given chain.
func NewBuilder(chainID *big.Int, source DataSource) *Builder {
	return &Builder{chainID: new(big.Int).Set(chainID), source: source}
}

// fees returns the dynamic fee pair: the suggested priority fee, and a
// fee cap of twice the current base fee plus that priority fee, so the
// transaction stays valid through base fee growth while waiting.
func (b *Builder) fees(ctx context.Context) (tip, feeCap *big.Int, err error) {
	baseFee, tip, err := b.source.SuggestFees(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest fees: %w", err)
	}
	feeCap = new(big.Int).Lsh(baseFee, 1)
	feeCap.Add(feeCap, tip)
	return tip, feeCap, nil
}

// Transfer builds an unsigned dynamic fee transaction moving value wei
// from one account to another.
func (b *Builder) Transfer(ctx context.Context, from, to Address, value *big.Int) (*Transaction, error) {
	nonce, err := b.source.TransactionCount(ctx, from, true)
	if err != nil {
		return nil, fmt.Errorf("transaction count: %w", err)
	}
	tip, feeCap, err := b.fees(ctx)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		Type:      DynamicFeeTxType,
		ChainID:   new(big.Int).Set(b.chainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       transferGasLimit,
		To:        &to,
		Value:     new(big.Int).Set(value),
	}, nil
}

// LegacyTransfer builds an unsigned legacy transaction priced at the
// node's suggested gas price, for chains without EIP-1559 fees.
func (b *Builder) LegacyTransfer(ctx context.Context, from, to Address, value *big.Int) (*Transaction, error) {
	nonce, err := b.source.TransactionCount(ctx, from, true)
	if err != nil {
		return nil, fmt.Errorf("transaction count: %w", err)
	}
	gasPrice, err := b.source.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	return &Transaction{
		Type:     LegacyTxType,
		ChainID:  new(big.Int).Set(b.chainID),
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      transferGasLimit,
		To:       &to,
		Value:    new(big.Int).Set(value),
	}, nil
}

// TokenTransfer builds an unsigned dynamic fee transaction invoking an
// ERC-20 transfer on the token contract. The gas limit comes from
// simulating the call.
func (b *Builder) TokenTransfer(ctx context.Context, from, token, recipient Address, amount *big.Int) (*Transaction, error) {
	data, err := abi.ERC20Transfer(recipient, amount)
	if err != nil {
		return nil, fmt.Errorf("encode transfer call: %w", err)
	}
	nonce, err := b.source.TransactionCount(ctx, from, true)
	if err != nil {
		return nil, fmt.Errorf("transaction count: %w", err)
	}
	tip, feeCap, err := b.fees(ctx)
	if err != nil {
		return nil, err
	}
	gas, err := b.source.EstimateGas(ctx, CallMsg{From: from, To: &token, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	return &Transaction{
		Type:      DynamicFeeTxType,
		ChainID:   new(big.Int).Set(b.chainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &token,
		Data:      data,
	}, nil
}

// ContractCall builds an unsigned dynamic fee transaction invoking
// arbitrary calldata on a contract.
func (b *Builder) ContractCall(ctx context.Context, from, contract Address, value *big.Int, data []byte) (*Transaction, error) {
	nonce, err := b.source.TransactionCount(ctx, from, true)
	if err != nil {
		return nil, fmt.Errorf("transaction count: %w", err)
	}
	tip, feeCap, err := b.fees(ctx)
	if err != nil {
		return nil, err
	}
	gas, err := b.source.EstimateGas(ctx, CallMsg{From: from, To: &contract, Value: value, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	tx := &Transaction{
		Type:      DynamicFeeTxType,
		ChainID:   new(big.Int).Set(b.chainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &contract,
		Data:      append([]byte(nil), data...),
	}
	if value != nil {
		tx.Value = new(big.Int).Set(value)
	}
	return tx, nil
}
