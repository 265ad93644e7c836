package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"

	"github.com/helixwallet/helix-core/config"
	"github.com/helixwallet/helix-core/internal/chaindata"
	"github.com/helixwallet/helix-core/internal/log"
	"github.com/helixwallet/helix-core/internal/signer"
	"github.com/helixwallet/helix-core/pkg/btctx"
	"github.com/helixwallet/helix-core/pkg/btcwire"
	"github.com/helixwallet/helix-core/pkg/crypto"
	"github.com/helixwallet/helix-core/pkg/types"
)

// cmdBuildBTC builds an unsigned bitcoin transaction from the UTXOs of a
// given address and prints the serialized transaction.
func cmdBuildBTC(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("build btc", flag.ExitOnError)
	fromStr := fs.String("from", "", "Address whose UTXOs fund the transaction")
	toStr := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount in BTC")
	feeRate := fs.Uint64("feerate", 0, "Fee rate in sat/vB (0 = node estimate)")
	fs.Parse(args)

	if *fromStr == "" || *toStr == "" || *amountStr == "" {
		fatal("Usage: helix build btc --from <addr> --to <addr> --amount <btc>")
	}

	node := newBitcoinNode(cfg)

	net := btcNetwork(cfg)
	changeScript, err := net.DecodeAddress(*fromStr)
	if err != nil {
		fatal("invalid funding address: %v", err)
	}

	tx, selected := buildBitcoinTx(cfg, node, net, *fromStr, changeScript, *toStr, *amountStr, *feeRate)

	fmt.Printf("Inputs:\n")
	for i, u := range selected {
		fmt.Printf("  %d: %s  %d sat\n", i, u.Outpoint, u.Amount)
	}
	fmt.Printf("Unsigned: %s\n", hex.EncodeToString(tx.Serialize(false)))
}

// cmdSendBTC builds, signs and broadcasts a bitcoin transaction funded by
// the prompted key's address.
func cmdSendBTC(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("send btc", flag.ExitOnError)
	toStr := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount in BTC")
	feeRate := fs.Uint64("feerate", 0, "Fee rate in sat/vB (0 = node estimate)")
	legacy := fs.Bool("legacy", false, "Spend from the legacy P2PKH address instead of segwit")
	wait := fs.Bool("wait", false, "Wait for confirmation")
	fs.Parse(args)

	if *toStr == "" || *amountStr == "" {
		fatal("Usage: helix send btc --to <addr> --amount <btc> [--wait]")
	}

	key := readKey()
	backend := crypto.NewBackend()
	pub, err := backend.DerivePublicKey(key, true)
	if err != nil {
		fatal("derive public key: %v", err)
	}
	pubKeyHash := crypto.Hash160(pub)

	net := btcNetwork(cfg)
	var fromAddr string
	var fundingScript []byte
	if *legacy {
		fromAddr = net.EncodeP2PKH(pubKeyHash)
		fundingScript = btctx.P2PKHScript(pubKeyHash)
	} else {
		fromAddr, err = net.EncodeP2WPKH(pubKeyHash)
		if err != nil {
			fatal("encode address: %v", err)
		}
		fundingScript = btctx.P2WPKHScript(pubKeyHash)
	}

	node := newBitcoinNode(cfg)
	tx, selected := buildBitcoinTx(cfg, node, net, fromAddr, fundingScript, *toStr, *amountStr, *feeRate)

	inputs := make([]signer.BitcoinInput, len(selected))
	for i, u := range selected {
		inputs[i] = signer.BitcoinInput{Script: u.Script, Amount: u.Amount}
	}

	s := signer.New(backend, nil, nil)
	signed, err := s.Sign(context.Background(), &signer.UnsignedTx{
		Blockchain:    types.Bitcoin,
		Bitcoin:       tx,
		BitcoinInputs: inputs,
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
		waitForConfirmation(cfg, types.Bitcoin, txHash)
	}
}

// buildBitcoinTx selects UTXOs from the funding address and assembles an
// unsigned transaction paying the recipient, with change back to the
// funding script.
func buildBitcoinTx(cfg *config.Config, node *chaindata.Bitcoin, net btctx.Network, fromAddr string, changeScript []byte, toStr, amountStr string, feeRate uint64) (*btcwire.Transaction, []types.UTXO) {
	amount, err := parseBTC(amountStr)
	if err != nil {
		fatal("invalid amount: %v", err)
	}
	recipientScript, err := net.DecodeAddress(toStr)
	if err != nil {
		fatal("invalid recipient address: %v", err)
	}

	ctx := context.Background()

	if feeRate == 0 {
		feeRate = cfg.Bitcoin.FeeRate
	}
	if feeRate == 0 {
		feeRate, err = node.FeeRate(ctx, cfg.Bitcoin.FeeTarget)
		if err != nil {
			fatal("fee estimate: %v", err)
		}
	}

	utxos, err := node.ListUnspent(ctx, []string{fromAddr}, 1)
	if err != nil {
		fatal("list unspent: %v", err)
	}
	if len(utxos) == 0 {
		fatal("no spendable outputs for %s", fromAddr)
	}

	selected, total, err := btctx.SelectUTXOs(utxos, amount, feeRate)
	if err != nil {
		fatal("select utxos: %v", err)
	}
	log.CLI.Debug().
		Int("inputs", len(selected)).
		Uint64("total", total).
		Uint64("feerate", feeRate).
		Msg("selected funding")

	tx, err := btctx.BuildTransaction(selected, []btctx.Recipient{
		{Script: recipientScript, Amount: amount},
	}, changeScript, feeRate, 0)
	if err != nil {
		fatal("build transaction: %v", err)
	}
	return tx, selected
}
