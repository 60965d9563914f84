package persistence

import (
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v3"
)

// badgerRepository is the BadgerDB implementation of StateRepository,
// keying each pair's state under its own "pair_state:<pair>" key so
// multiple pairs can share one database.
type badgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository opens (or creates) a BadgerDB database at dbPath.
func NewBadgerRepository(dbPath string) (StateRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // badger's own logging is disabled; errors still propagate via returns

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerRepository{db: db}, nil
}

func stateKey(pair string) []byte {
	return []byte("pair_state:" + pair)
}

func (r *badgerRepository) SaveState(state PairRuntimeState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey(state.Pair), data)
	})
}

func (r *badgerRepository) LoadState(pair string) (*PairRuntimeState, error) {
	var state PairRuntimeState

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey(pair))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("pair state value is empty in database")
			}
			return json.Unmarshal(val, &state)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *badgerRepository) Close() error {
	return r.db.Close()
}
