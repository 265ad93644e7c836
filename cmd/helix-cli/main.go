// helix-cli builds, signs, broadcasts and tracks wallet transactions
// against remote Bitcoin and Ethereum nodes.
package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"
	"syscall"

	"github.com/helixwallet/helix-core/config"
	"github.com/helixwallet/helix-core/internal/chaindata"
	"github.com/helixwallet/helix-core/internal/log"
	"github.com/helixwallet/helix-core/internal/rpcclient"
	"github.com/helixwallet/helix-core/pkg/btctx"
	"github.com/helixwallet/helix-core/pkg/crypto"
	"github.com/helixwallet/helix-core/pkg/ethtx"
	"golang.org/x/term"
)

func main() {
	cfg, flags, err := config.Load()
	if err != nil {
		fatal("%v", err)
	}

	logFile := cfg.Log.File
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fatal("init logging: %v", err)
	}

	args := flags.Args
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "address":
		cmdAddress(cfg, cmdArgs)
	case "build":
		cmdBuild(cfg, cmdArgs)
	case "sign":
		cmdSign(cfg, cmdArgs)
	case "send":
		cmdSend(cfg, cmdArgs)
	case "track":
		cmdTrack(cfg, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: helix [global flags] <command> [flags]

Global flags:
  --network <net>            mainnet (default) or testnet
  --testnet                  Shorthand for --network=testnet
  --datadir <path>           Data directory (default: ~/.helix)
  --config <path>            Config file path
  --bitcoin-endpoints <urls> Bitcoin node URLs (comma-separated)
  --ethereum-endpoints <urls> Ethereum node URLs (comma-separated)

Commands:
  address                    Show the addresses for a private key

  build btc --to <addr> --amount <btc> [--feerate <sat/vB>]
                             Build an unsigned bitcoin transaction
  build eth --to <addr> --value <eth>
                             Build an unsigned ethereum transaction

  sign eth --to <addr> --value <eth> --nonce <n> --gas <n>
           (--gas-price <gwei> | --tip <gwei> --fee-cap <gwei>)
                             Sign offline, without a node

  send btc --to <addr> --amount <btc> [--feerate <sat/vB>] [--legacy] [--wait]
                             Send bitcoin
  send eth --to <addr> --value <eth> [--wait]
  send eth --token <addr> --to <addr> --amount <units> [--wait]
                             Send ether or ERC-20 tokens

  track <btc|eth> <txhash>   Track a transaction to confirmation

The private key is always prompted for, never passed as an argument.
`)
}

func cmdBuild(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: helix build <btc|eth> [flags]")
	}
	switch args[0] {
	case "btc":
		cmdBuildBTC(cfg, args[1:])
	case "eth":
		cmdBuildETH(cfg, args[1:])
	default:
		fatal("Unknown chain %q (want btc or eth)", args[0])
	}
}

func cmdSend(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: helix send <btc|eth> [flags]")
	}
	switch args[0] {
	case "btc":
		cmdSendBTC(cfg, args[1:])
	case "eth":
		cmdSendETH(cfg, args[1:])
	default:
		fatal("Unknown chain %q (want btc or eth)", args[0])
	}
}

// cmdAddress prints the bitcoin and ethereum addresses controlled by a
// private key.
func cmdAddress(cfg *config.Config, args []string) {
	key := readKey()
	backend := crypto.NewBackend()

	compressed, err := backend.DerivePublicKey(key, true)
	if err != nil {
		fatal("derive public key: %v", err)
	}
	uncompressed, err := backend.DerivePublicKey(key, false)
	if err != nil {
		fatal("derive public key: %v", err)
	}

	net := btcNetwork(cfg)
	pubKeyHash := crypto.Hash160(compressed)
	segwit, err := net.EncodeP2WPKH(pubKeyHash)
	if err != nil {
		fatal("encode segwit address: %v", err)
	}
	ethAddr, err := ethtx.PubkeyToAddress(uncompressed)
	if err != nil {
		fatal("derive ethereum address: %v", err)
	}

	fmt.Printf("Bitcoin (segwit):  %s\n", segwit)
	fmt.Printf("Bitcoin (legacy):  %s\n", net.EncodeP2PKH(pubKeyHash))
	fmt.Printf("Ethereum:          %s\n", ethAddr.String())
}

// ── Chain plumbing ──────────────────────────────────────────────────────

func clientOptions(cfg *config.Config) rpcclient.Options {
	return rpcclient.Options{
		Timeout:           cfg.Client.Timeout,
		MaxRetries:        cfg.Client.MaxRetries,
		RetryDelay:        cfg.Client.RetryDelay,
		RateLimitDelay:    cfg.Client.RateLimitDelay,
		RequestsPerSecond: cfg.Client.RequestsPerSecond,
	}
}

func newBitcoinNode(cfg *config.Config) *chaindata.Bitcoin {
	if !cfg.Bitcoin.Enabled {
		fatal("bitcoin is disabled in the config")
	}
	client, err := rpcclient.New(cfg.Bitcoin.Endpoints, clientOptions(cfg))
	if err != nil {
		fatal("bitcoin endpoints: %v", err)
	}
	return chaindata.NewBitcoin(client)
}

func newEthereumNode(cfg *config.Config) *chaindata.Ethereum {
	if !cfg.Ethereum.Enabled {
		fatal("ethereum is disabled in the config")
	}
	client, err := rpcclient.New(cfg.Ethereum.Endpoints, clientOptions(cfg))
	if err != nil {
		fatal("ethereum endpoints: %v", err)
	}
	return chaindata.NewEthereum(client)
}

func btcNetwork(cfg *config.Config) btctx.Network {
	if cfg.Network == config.Testnet {
		return btctx.TestNet
	}
	return btctx.MainNet
}

// ── Amount parsing ──────────────────────────────────────────────────────

// parseDecimal converts a decimal coin amount ("1.5") to its integer
// base-unit representation with the given number of decimal places.
func parseDecimal(s string, decimals int) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative amount")
	}

	parts := strings.SplitN(s, ".", 2)

	whole, ok := new(big.Int).SetString(parts[0], 10)
	if !ok {
		return nil, fmt.Errorf("invalid whole part %q", parts[0])
	}

	frac := big.NewInt(0)
	if len(parts) == 2 {
		fracStr := parts[1]
		if len(fracStr) > decimals {
			return nil, fmt.Errorf("too many decimal places (max %d)", decimals)
		}
		// Pad to the full number of decimal places.
		fracStr = fracStr + strings.Repeat("0", decimals-len(fracStr))
		frac, ok = new(big.Int).SetString(fracStr, 10)
		if !ok {
			return nil, fmt.Errorf("invalid fractional part %q", parts[1])
		}
	}

	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Add(new(big.Int).Mul(whole, unit), frac), nil
}

// parseBTC converts a BTC amount to satoshis.
func parseBTC(s string) (uint64, error) {
	v, err := parseDecimal(s, 8)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("amount too large")
	}
	return v.Uint64(), nil
}

// parseEther converts an ETH amount to wei.
func parseEther(s string) (*big.Int, error) {
	return parseDecimal(s, 18)
}

// gweiToWei converts a gwei amount to wei.
func gweiToWei(gwei uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(gwei), big.NewInt(1e9))
}

// ── Key and error helpers ───────────────────────────────────────────────

// readKey prompts for a hex private key with terminal echo disabled.
func readKey() []byte {
	fmt.Fprint(os.Stderr, "Enter private key (hex): ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		fatal("read key: %v", err)
	}

	key, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
	if err != nil {
		fatal("invalid key hex: %v", err)
	}
	if len(key) != 32 {
		fatal("key must be 32 bytes, got %d", len(key))
	}
	return key
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
