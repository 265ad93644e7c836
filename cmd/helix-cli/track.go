package main

import (
	"context"
	"fmt"

	"github.com/helixwallet/helix-core/config"
	"github.com/helixwallet/helix-core/internal/chaindata"
	"github.com/helixwallet/helix-core/internal/log"
	"github.com/helixwallet/helix-core/internal/monitor"
	"github.com/helixwallet/helix-core/internal/storage"
	"github.com/helixwallet/helix-core/pkg/types"
)

// cmdTrack follows a broadcast transaction until it confirms, fails or is
// dropped from the mempool.
func cmdTrack(cfg *config.Config, args []string) {
	if len(args) != 2 {
		fatal("Usage: helix track <btc|eth> <txhash>")
	}

	var chain types.Blockchain
	switch args[0] {
	case "btc":
		chain = types.Bitcoin
	case "eth":
		chain = types.Ethereum
	default:
		fatal("Unknown chain %q (want btc or eth)", args[0])
	}

	txHash, err := types.HexToHash(trim0x(args[1]))
	if err != nil {
		fatal("invalid transaction hash: %v", err)
	}

	waitForConfirmation(cfg, chain, txHash)
}

// waitForConfirmation runs the confirmation monitor for a single
// transaction, printing status transitions as they happen. Tracked state is
// persisted so an interrupted track can be resumed.
func waitForConfirmation(cfg *config.Config, chain types.Blockchain, txHash types.Hash) {
	sources := make(map[types.Blockchain]chaindata.Source)
	var required uint64
	switch chain {
	case types.Bitcoin:
		sources[types.Bitcoin] = newBitcoinNode(cfg)
		required = cfg.Bitcoin.Confirmations
	case types.Ethereum:
		sources[types.Ethereum] = newEthereumNode(cfg)
		required = cfg.Ethereum.Confirmations
	}

	db, err := storage.NewBadger(cfg.MonitorDir())
	if err != nil {
		fatal("open monitor database: %v", err)
	}
	defer db.Close()

	m, err := monitor.New(sources, monitor.Config{
		PollInterval:    cfg.Monitor.PollInterval,
		MaxDuration:     cfg.Monitor.MaxDuration,
		NotFoundTimeout: cfg.Monitor.NotFoundTimeout,
		EvictAfter:      cfg.Monitor.EvictAfter,
	}, monitor.NewStore(db))
	if err != nil {
		fatal("start monitor: %v", err)
	}

	if err := m.Track(chain, txHash, required); err != nil {
		fatal("track: %v", err)
	}

	updates, cancel := m.Subscribe(chain, txHash)
	defer cancel()
	go func() {
		for tx := range updates {
			log.CLI.Info().
				Str("tx", tx.TxHash.String()).
				Stringer("status", tx.Status).
				Uint64("confirmations", tx.Confirmations).
				Msg("status update")
			fmt.Printf("%s: %d/%d confirmations\n", tx.Status, tx.Confirmations, tx.Required)
		}
	}()

	m.Start()
	defer m.Stop()

	ctx, cancelWait := context.WithTimeout(context.Background(), cfg.Monitor.MaxDuration)
	defer cancelWait()

	final, err := m.WaitForConfirmation(ctx, chain, txHash)
	if err != nil {
		fatal("waiting for confirmation: %v", err)
	}
	fmt.Printf("Confirmed: %s (%d confirmations)\n", final.TxHash, final.Confirmations)
}
