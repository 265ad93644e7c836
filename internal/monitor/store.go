package monitor

import (
	"encoding/json"
	"fmt"

	"github.com/helixwallet/helix-core/internal/storage"
	"github.com/helixwallet/helix-core/pkg/types"
)

// snapshotStore persists tracked-transaction snapshots in a key-value
// database, namespaced under its own prefix so the database can be
// shared with other components.
type snapshotStore struct {
	db *storage.PrefixDB
}

// NewStore wraps a database for tracking snapshots.
func NewStore(db storage.DB) *snapshotStore {
	return &snapshotStore{db: storage.NewPrefixDB(db, []byte("monitor/"))}
}

// newBatch starts a batch so one poll sweep's writes and evictions
// commit together.
func (s *snapshotStore) newBatch() storage.Batch {
	return s.db.NewBatch()
}

func (s *snapshotStore) saveTo(b storage.Batch, tx TrackedTx) error {
	val, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return b.Put(snapshotKey(tx.Blockchain, tx.TxHash), val)
}

func (s *snapshotStore) deleteTo(b storage.Batch, chain types.Blockchain, txHash types.Hash) error {
	return b.Delete(snapshotKey(chain, txHash))
}

func snapshotKey(chain types.Blockchain, txHash types.Hash) []byte {
	return []byte(string(chain) + "/" + txHash.String())
}

func (s *snapshotStore) save(tx TrackedTx) error {
	val, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.db.Put(snapshotKey(tx.Blockchain, tx.TxHash), val)
}

func (s *snapshotStore) delete(chain types.Blockchain, txHash types.Hash) error {
	return s.db.Delete(snapshotKey(chain, txHash))
}

func (s *snapshotStore) loadAll() ([]TrackedTx, error) {
	var out []TrackedTx
	err := s.db.ForEach(nil, func(_, value []byte) error {
		var tx TrackedTx
		if err := json.Unmarshal(value, &tx); err != nil {
			return fmt.Errorf("unmarshal snapshot: %w", err)
		}
		out = append(out, tx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
