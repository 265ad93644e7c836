package signer

import (
	"sync"

	"github.com/helixwallet/helix-core/pkg/types"
)

// NonceKey identifies one nonce sequence.
type NonceKey struct {
	Blockchain types.Blockchain
	ChainID    string
	Sender     string
}

// NonceManager allocates account nonces with mutual exclusion across
// concurrent sign calls. A nonce is consumed exactly once: the counter
// advances only when the signing callback succeeds, so a failed sign
// leaves the nonce available for the next attempt.
type NonceManager struct {
	mu   sync.Mutex
	next map[NonceKey]uint64
}

// NewNonceManager creates an empty manager.
func NewNonceManager() *NonceManager {
	return &NonceManager{next: make(map[NonceKey]uint64)}
}

// SeedIfAbsent sets the next nonce for a key that has no local state
// yet, typically from the chain's pending transaction count. Existing
// local state wins: it may already be ahead of what the chain reports.
func (n *NonceManager) SeedIfAbsent(key NonceKey, next uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.next[key]; !ok {
		n.next[key] = next
	}
}

// Reset discards local state for a key, forcing the next sign to seed
// from chain data again.
func (n *NonceManager) Reset(key NonceKey) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.next, key)
}

// Next returns the nonce the next successful sign will consume.
func (n *NonceManager) Next(key NonceKey) (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.next[key]
	return v, ok
}

// Do runs fn with the key's next nonce while holding the key's
// allocation exclusively. The nonce is consumed only when fn returns
// nil.
func (n *NonceManager) Do(key NonceKey, fn func(nonce uint64) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	nonce := n.next[key]
	if err := fn(nonce); err != nil {
		return err
	}
	n.next[key] = nonce + 1
	return nil
}
