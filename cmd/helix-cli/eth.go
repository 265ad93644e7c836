package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"

	"github.com/helixwallet/helix-core/config"
	"github.com/helixwallet/helix-core/internal/log"
	"github.com/helixwallet/helix-core/internal/signer"
	"github.com/helixwallet/helix-core/pkg/crypto"
	"github.com/helixwallet/helix-core/pkg/ethtx"
	"github.com/helixwallet/helix-core/pkg/types"
)

// cmdBuildETH builds an unsigned ethereum transaction using node-supplied
// nonce, fees and gas estimate, and prints it as JSON.
func cmdBuildETH(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("build eth", flag.ExitOnError)
	fromStr := fs.String("from", "", "Sender address")
	toStr := fs.String("to", "", "Recipient address")
	valueStr := fs.String("value", "0", "Amount in ETH")
	tokenStr := fs.String("token", "", "ERC-20 contract address (token transfer)")
	amountStr := fs.String("amount", "", "Token amount in base units")
	dataHex := fs.String("data", "", "Call data (hex)")
	fs.Parse(args)

	if *fromStr == "" || *toStr == "" {
		fatal("Usage: helix build eth --from <addr> --to <addr> --value <eth>")
	}
	from, err := ethtx.ParseAddress(*fromStr)
	if err != nil {
		fatal("invalid sender address: %v", err)
	}
	to, err := ethtx.ParseAddress(*toStr)
	if err != nil {
		fatal("invalid recipient address: %v", err)
	}

	node := newEthereumNode(cfg)
	tx := buildEthereumTx(cfg, node, from, to, *valueStr, *tokenStr, *amountStr, *dataHex)

	out, err := json.MarshalIndent(ethTxView(tx), "", "  ")
	if err != nil {
		fatal("marshal transaction: %v", err)
	}
	fmt.Println(string(out))
}

// cmdSendETH builds, signs and broadcasts an ethereum transaction.
func cmdSendETH(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("send eth", flag.ExitOnError)
	toStr := fs.String("to", "", "Recipient address")
	valueStr := fs.String("value", "0", "Amount in ETH")
	tokenStr := fs.String("token", "", "ERC-20 contract address (token transfer)")
	amountStr := fs.String("amount", "", "Token amount in base units")
	dataHex := fs.String("data", "", "Call data (hex)")
	wait := fs.Bool("wait", false, "Wait for confirmation")
	fs.Parse(args)

	if *toStr == "" {
		fatal("Usage: helix send eth --to <addr> --value <eth> [--wait]")
	}
	to, err := ethtx.ParseAddress(*toStr)
	if err != nil {
		fatal("invalid recipient address: %v", err)
	}

	key := readKey()
	backend := crypto.NewBackend()
	pub, err := backend.DerivePublicKey(key, false)
	if err != nil {
		fatal("derive public key: %v", err)
	}
	from, err := ethtx.PubkeyToAddress(pub)
	if err != nil {
		fatal("derive sender address: %v", err)
	}

	node := newEthereumNode(cfg)
	tx := buildEthereumTx(cfg, node, from, to, *valueStr, *tokenStr, *amountStr, *dataHex)

	s := signer.New(backend, nil, nil)
	signed, err := s.Sign(context.Background(), &signer.UnsignedTx{
		Blockchain: types.Ethereum,
		Ethereum:   tx,
	}, signer.KeyMaterial{PrivateKey: key}, signer.Context{})
	if err != nil {
		fatal("sign: %v", err)
	}

	txHash, err := node.BroadcastTransaction(context.Background(), signed.Raw)
	if err != nil {
		fatal("broadcast: %v", err)
	}
	log.CLI.Info().Str("tx", txHash.String()).Msg("transaction broadcast")
	fmt.Printf("Submitted: %s\n", txHash)

	if *wait {
		waitForConfirmation(cfg, types.Ethereum, txHash)
	}
}

// cmdSign signs an ethereum transaction offline, without touching a node.
// Nonce and gas parameters must be supplied explicitly.
func cmdSign(cfg *config.Config, args []string) {
	if len(args) < 1 || args[0] != "eth" {
		fatal("Usage: helix sign eth [flags] (offline signing is ethereum-only)")
	}

	fs := flag.NewFlagSet("sign eth", flag.ExitOnError)
	toStr := fs.String("to", "", "Recipient address")
	valueStr := fs.String("value", "0", "Amount in ETH")
	dataHex := fs.String("data", "", "Call data (hex)")
	nonce := fs.Uint64("nonce", 0, "Account nonce")
	gas := fs.Uint64("gas", 21000, "Gas limit")
	gasPrice := fs.Uint64("gas-price", 0, "Gas price in gwei (legacy transaction)")
	tip := fs.Uint64("tip", 0, "Priority fee in gwei (dynamic-fee transaction)")
	feeCap := fs.Uint64("fee-cap", 0, "Max fee in gwei (dynamic-fee transaction)")
	fs.Parse(args[1:])

	if *toStr == "" {
		fatal("Usage: helix sign eth --to <addr> --value <eth> --nonce <n> --gas <n> (--gas-price <gwei> | --tip <gwei> --fee-cap <gwei>)")
	}
	to, err := ethtx.ParseAddress(*toStr)
	if err != nil {
		fatal("invalid recipient address: %v", err)
	}
	value, err := parseEther(*valueStr)
	if err != nil {
		fatal("invalid value: %v", err)
	}
	data := parseDataHex(*dataHex)

	tx := &ethtx.Transaction{
		ChainID: new(big.Int).SetUint64(cfg.Ethereum.ChainID),
		Nonce:   *nonce,
		Gas:     *gas,
		To:      &to,
		Value:   value,
		Data:    data,
	}
	switch {
	case *gasPrice > 0:
		tx.Type = ethtx.LegacyTxType
		tx.GasPrice = gweiToWei(*gasPrice)
	case *feeCap > 0:
		tx.Type = ethtx.DynamicFeeTxType
		tx.GasTipCap = gweiToWei(*tip)
		tx.GasFeeCap = gweiToWei(*feeCap)
	default:
		fatal("either --gas-price or --fee-cap is required")
	}

	key := readKey()
	s := signer.New(crypto.NewBackend(), nil, nil)
	signed, err := s.Sign(context.Background(), &signer.UnsignedTx{
		Blockchain: types.Ethereum,
		Ethereum:   tx,
	}, signer.KeyMaterial{PrivateKey: key}, signer.Context{})
	if err != nil {
		fatal("sign: %v", err)
	}

	fmt.Printf("Hash: %s\n", signed.TxHash)
	fmt.Printf("Raw:  0x%x\n", signed.Raw)
}

// buildEthereumTx drives the fee-aware builder for plain transfers, token
// transfers and contract calls.
func buildEthereumTx(cfg *config.Config, node ethtx.DataSource, from, to ethtx.Address, valueStr, tokenStr, amountStr, dataHex string) *ethtx.Transaction {
	value, err := parseEther(valueStr)
	if err != nil {
		fatal("invalid value: %v", err)
	}

	builder := ethtx.NewBuilder(new(big.Int).SetUint64(cfg.Ethereum.ChainID), node)
	ctx := context.Background()

	var tx *ethtx.Transaction
	switch {
	case tokenStr != "":
		if amountStr == "" {
			fatal("--token requires --amount in base units")
		}
		token, err := ethtx.ParseAddress(tokenStr)
		if err != nil {
			fatal("invalid token address: %v", err)
		}
		amount, ok := new(big.Int).SetString(amountStr, 10)
		if !ok {
			fatal("invalid token amount %q", amountStr)
		}
		tx, err = builder.TokenTransfer(ctx, from, token, to, amount)
		if err != nil {
			fatal("build token transfer: %v", err)
		}
	case dataHex != "":
		tx, err = builder.ContractCall(ctx, from, to, value, parseDataHex(dataHex))
		if err != nil {
			fatal("build contract call: %v", err)
		}
	case cfg.Ethereum.LegacyTx:
		tx, err = builder.LegacyTransfer(ctx, from, to, value)
		if err != nil {
			fatal("build transfer: %v", err)
		}
	default:
		tx, err = builder.Transfer(ctx, from, to, value)
		if err != nil {
			fatal("build transfer: %v", err)
		}
	}

	// A configured tip overrides the node's suggestion.
	if cfg.Ethereum.TipGwei > 0 && tx.Type == ethtx.DynamicFeeTxType {
		tx.GasTipCap = gweiToWei(cfg.Ethereum.TipGwei)
		if tx.GasFeeCap.Cmp(tx.GasTipCap) < 0 {
			tx.GasFeeCap = new(big.Int).Set(tx.GasTipCap)
		}
	}
	return tx
}

func parseDataHex(s string) []byte {
	if s == "" {
		return nil
	}
	data, err := hex.DecodeString(trim0x(s))
	if err != nil {
		fatal("invalid call data hex: %v", err)
	}
	return data
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// ethTxView is the JSON shape used when printing unsigned transactions.
func ethTxView(tx *ethtx.Transaction) map[string]interface{} {
	view := map[string]interface{}{
		"type":     fmt.Sprintf("%#02x", byte(tx.Type)),
		"chain_id": tx.ChainID.String(),
		"nonce":    tx.Nonce,
		"gas":      tx.Gas,
		"to":       tx.To.String(),
	}
	if tx.Value != nil {
		view["value"] = tx.Value.String()
	}
	if tx.GasPrice != nil {
		view["gas_price"] = tx.GasPrice.String()
	}
	if tx.GasTipCap != nil {
		view["max_priority_fee"] = tx.GasTipCap.String()
	}
	if tx.GasFeeCap != nil {
		view["max_fee"] = tx.GasFeeCap.String()
	}
	if len(tx.Data) > 0 {
		view["data"] = "0x" + hex.EncodeToString(tx.Data)
	}
	return view
}
