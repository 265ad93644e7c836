// Package monitor tracks broadcast transactions until they reach their
// required confirmation depth, fanning out status changes to
// subscribers and optionally persisting tracking state across restarts.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/helixwallet/helix-core/internal/chaindata"
	"github.com/helixwallet/helix-core/internal/log"
	"github.com/helixwallet/helix-core/internal/storage"
	"github.com/helixwallet/helix-core/pkg/types"
)

var (
	ErrUnknownChain = errors.New("monitor: no source for blockchain")
	ErrNotTracked   = errors.New("monitor: transaction not tracked")
	ErrTimeout      = errors.New("monitor: timed out waiting for confirmation")
	ErrTxFailed     = errors.New("monitor: transaction failed on chain")
	ErrTxDropped    = errors.New("monitor: transaction dropped")
)

// Status is the lifecycle state of a tracked transaction.
type Status uint8

const (
	// StatusPending: broadcast, not yet in a block.
	StatusPending Status = iota
	// StatusConfirming: mined, below the required depth.
	StatusConfirming
	// StatusConfirmed: at or beyond the required depth. Terminal.
	StatusConfirmed
	// StatusFailed: mined but execution reverted. Terminal.
	StatusFailed
	// StatusDropped: no longer known to the chain, or tracking gave up.
	// Terminal.
	StatusDropped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirming:
		return "confirming"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	case StatusDropped:
		return "dropped"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusDropped
}

// rank orders the forward-only progress states. A transaction never
// moves to a lower rank: a confirmation count that dips during a reorg
// does not demote it.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusConfirming:
		return 1
	case StatusConfirmed:
		return 2
	}
	return -1
}

// TrackedTx is a snapshot of one tracked transaction.
type TrackedTx struct {
	Blockchain    types.Blockchain `json:"blockchain"`
	TxHash        types.Hash       `json:"tx_hash"`
	Status        Status           `json:"status"`
	Confirmations uint64           `json:"confirmations"`
	Required      uint64           `json:"required"`
	SubmittedAt   time.Time        `json:"submitted_at"`
	UpdatedAt     time.Time        `json:"updated_at"`

	// notFoundSince is set while consecutive polls fail to find the
	// transaction.
	notFoundSince time.Time
}

type txKey struct {
	chain types.Blockchain
	hash  types.Hash
}

// Config tunes the polling and eviction behavior.
type Config struct {
	// PollInterval between confirmation sweeps.
	PollInterval time.Duration
	// MaxDuration tracks a transaction for at most this long before
	// giving up and marking it dropped.
	MaxDuration time.Duration
	// NotFoundTimeout marks a transaction dropped after it has been
	// unknown to the chain for this long.
	NotFoundTimeout time.Duration
	// EvictAfter removes terminal transactions from the registry this
	// long after their final transition.
	EvictAfter time.Duration
	// WaitPollInterval is how often WaitForConfirmation re-checks.
	WaitPollInterval time.Duration
}

// DefaultConfig returns the production polling cadence.
func DefaultConfig() Config {
	return Config{
		PollInterval:     10 * time.Second,
		MaxDuration:      time.Hour,
		NotFoundTimeout:  10 * time.Minute,
		EvictAfter:       time.Minute,
		WaitPollInterval: 2 * time.Second,
	}
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = d.MaxDuration
	}
	if c.NotFoundTimeout <= 0 {
		c.NotFoundTimeout = d.NotFoundTimeout
	}
	if c.EvictAfter <= 0 {
		c.EvictAfter = d.EvictAfter
	}
	if c.WaitPollInterval <= 0 {
		c.WaitPollInterval = d.WaitPollInterval
	}
}

// Monitor polls chain sources for the confirmation state of tracked
// transactions.
type Monitor struct {
	cfg     Config
	sources map[types.Blockchain]chaindata.Source
	store   *snapshotStore
	now     func() time.Time

	mu   sync.Mutex
	txs  map[txKey]*TrackedTx
	subs map[txKey][]chan TrackedTx

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a Monitor over the given per-chain sources. store may be
// nil to keep tracking state in memory only; otherwise previously
// tracked non-terminal transactions are restored from it.
func New(sources map[types.Blockchain]chaindata.Source, cfg Config, store *snapshotStore) (*Monitor, error) {
	cfg.fillDefaults()
	m := &Monitor{
		cfg:     cfg,
		sources: sources,
		store:   store,
		now:     time.Now,
		txs:     make(map[txKey]*TrackedTx),
		subs:    make(map[txKey][]chan TrackedTx),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if store != nil {
		restored, err := store.loadAll()
		if err != nil {
			return nil, fmt.Errorf("restore tracked transactions: %w", err)
		}
		for _, tx := range restored {
			if tx.Status.Terminal() {
				continue
			}
			cp := tx
			m.txs[txKey{tx.Blockchain, tx.TxHash}] = &cp
		}
		if len(m.txs) > 0 {
			log.Monitor.Info().Int("count", len(m.txs)).Msg("restored tracked transactions")
		}
	}
	return m, nil
}

// Track registers a transaction for confirmation monitoring. Tracking
// an already-tracked transaction is a no-op.
func (m *Monitor) Track(chain types.Blockchain, txHash types.Hash, required uint64) error {
	if _, ok := m.sources[chain]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChain, chain)
	}
	if required == 0 {
		required = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := txKey{chain, txHash}
	if _, ok := m.txs[key]; ok {
		return nil
	}
	now := m.now()
	tx := &TrackedTx{
		Blockchain:  chain,
		TxHash:      txHash,
		Status:      StatusPending,
		Required:    required,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	m.txs[key] = tx
	m.persist(tx, nil)
	log.Monitor.Info().Str("blockchain", string(chain)).Str("tx_hash", txHash.String()).
		Uint64("required", required).Msg("tracking transaction")
	return nil
}

// Status returns the current snapshot of a tracked transaction.
func (m *Monitor) Status(chain types.Blockchain, txHash types.Hash) (TrackedTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[txKey{chain, txHash}]
	if !ok {
		return TrackedTx{}, ErrNotTracked
	}
	return *tx, nil
}

// Tracked returns snapshots of all tracked transactions.
func (m *Monitor) Tracked() []TrackedTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TrackedTx, 0, len(m.txs))
	for _, tx := range m.txs {
		out = append(out, *tx)
	}
	return out
}

// Subscribe delivers every status change of the transaction on the
// returned channel. The cancel function must be called to release the
// subscription; it closes the channel. Slow receivers miss
// intermediate updates rather than blocking the poll loop.
func (m *Monitor) Subscribe(chain types.Blockchain, txHash types.Hash) (<-chan TrackedTx, func()) {
	ch := make(chan TrackedTx, 8)
	key := txKey{chain, txHash}

	m.mu.Lock()
	m.subs[key] = append(m.subs[key], ch)
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subs[key]
		for i, c := range subs {
			if c == ch {
				m.subs[key] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
		if len(m.subs[key]) == 0 {
			delete(m.subs, key)
		}
	}
	return ch, cancel
}

// Start launches the poll loop. Stop terminates it.
func (m *Monitor) Start() {
	go m.run()
}

// Stop terminates the poll loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

func (m *Monitor) run() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.PollInterval)
			m.poll(ctx)
			cancel()
		}
	}
}

// poll performs one sweep: queries each non-terminal transaction's
// source, applies transitions, and evicts stale terminal entries. The
// sweep's snapshot writes and deletions commit as one batch.
func (m *Monitor) poll(ctx context.Context) {
	var batch storage.Batch
	if m.store != nil {
		batch = m.store.newBatch()
	}

	for _, snapshot := range m.Tracked() {
		key := txKey{snapshot.Blockchain, snapshot.TxHash}
		if snapshot.Status.Terminal() {
			m.maybeEvict(key, snapshot, batch)
			continue
		}

		state, err := m.sources[snapshot.Blockchain].TransactionState(ctx, snapshot.TxHash)
		if err != nil {
			log.Monitor.Warn().Str("tx_hash", snapshot.TxHash.String()).Err(err).
				Msg("confirmation query failed")
			continue
		}
		m.apply(key, state, batch)
	}

	if batch != nil {
		if err := batch.Commit(); err != nil {
			log.Monitor.Warn().Err(err).Msg("commit tracking snapshots")
		}
	}
}

// apply folds one observed chain state into the tracked transaction.
// A non-nil batch receives the snapshot write instead of the store.
func (m *Monitor) apply(key txKey, state chaindata.TxState, batch storage.Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[key]
	if !ok || tx.Status.Terminal() {
		return
	}
	now := m.now()

	next := tx.Status
	switch {
	case state.Failed:
		next = StatusFailed
	case !state.Found:
		if tx.notFoundSince.IsZero() {
			tx.notFoundSince = now
		}
		if now.Sub(tx.notFoundSince) >= m.cfg.NotFoundTimeout {
			next = StatusDropped
		}
	case state.Confirmations >= tx.Required:
		next = StatusConfirmed
	case state.Confirmations > 0:
		next = StatusConfirming
	default:
		next = StatusPending
	}
	if state.Found {
		tx.notFoundSince = time.Time{}
	}

	// A transaction that has been pending too long stops being tracked.
	if !next.Terminal() && now.Sub(tx.SubmittedAt) >= m.cfg.MaxDuration {
		next = StatusDropped
	}

	// Progress states only move forward.
	if !next.Terminal() && next.rank() < tx.Status.rank() {
		next = tx.Status
	}

	prevStatus, prevConfs := tx.Status, tx.Confirmations
	if state.Found {
		tx.Confirmations = state.Confirmations
	}
	if next != prevStatus {
		log.Monitor.Info().Str("tx_hash", tx.TxHash.String()).
			Str("from", prevStatus.String()).Str("to", next.String()).
			Uint64("confirmations", tx.Confirmations).Msg("transaction status changed")
	}
	tx.Status = next
	if tx.Status != prevStatus || tx.Confirmations != prevConfs {
		tx.UpdatedAt = now
		m.persist(tx, batch)
		m.notifyLocked(key, *tx)
	}
}

// maybeEvict drops a terminal transaction once its grace period lapsed.
// A non-nil batch receives the snapshot deletion instead of the store.
func (m *Monitor) maybeEvict(key txKey, snapshot TrackedTx, batch storage.Batch) {
	if m.now().Sub(snapshot.UpdatedAt) < m.cfg.EvictAfter {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.txs, key)
	if m.store == nil {
		return
	}
	var err error
	if batch != nil {
		err = m.store.deleteTo(batch, key.chain, key.hash)
	} else {
		err = m.store.delete(key.chain, key.hash)
	}
	if err != nil {
		log.Monitor.Warn().Err(err).Msg("delete tracking snapshot")
	}
}

// persist writes the snapshot, through the batch when one is open.
// Callers hold m.mu.
func (m *Monitor) persist(tx *TrackedTx, batch storage.Batch) {
	if m.store == nil {
		return
	}
	var err error
	if batch != nil {
		err = m.store.saveTo(batch, *tx)
	} else {
		err = m.store.save(*tx)
	}
	if err != nil {
		log.Monitor.Warn().Str("tx_hash", tx.TxHash.String()).Err(err).
			Msg("save tracking snapshot")
	}
}

// notifyLocked fans a snapshot out to subscribers. Callers hold m.mu.
func (m *Monitor) notifyLocked(key txKey, snapshot TrackedTx) {
	for _, ch := range m.subs[key] {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// WaitForConfirmation blocks until the transaction confirms, reaches a
// terminal failure, or the context expires.
func (m *Monitor) WaitForConfirmation(ctx context.Context, chain types.Blockchain, txHash types.Hash) (TrackedTx, error) {
	ticker := time.NewTicker(m.cfg.WaitPollInterval)
	defer ticker.Stop()
	for {
		tx, err := m.Status(chain, txHash)
		if err != nil {
			return TrackedTx{}, err
		}
		switch tx.Status {
		case StatusConfirmed:
			return tx, nil
		case StatusFailed:
			return tx, ErrTxFailed
		case StatusDropped:
			return tx, ErrTxDropped
		}
		select {
		case <-ctx.Done():
			return tx, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
