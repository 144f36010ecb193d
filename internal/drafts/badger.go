package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// OpenBadger opens the draft database at path, or an in-memory one when
// path is empty.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open drafts db: %w", err)
	}
	return db, nil
}

// BadgerRepository stores each draft as one JSON value that expires after
// ttl without writes.
type BadgerRepository struct {
	db  *badger.DB
	ttl time.Duration
}

func NewBadgerRepository(db *badger.DB, ttl time.Duration) *BadgerRepository {
	return &BadgerRepository{db: db, ttl: ttl}
}

func (r *BadgerRepository) Load(_ context.Context, sid string) (Draft, error) {
	var env envelope
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(sid))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &env); err != nil {
				return fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, err
	}
	return env.State, nil
}

func (r *BadgerRepository) Save(_ context.Context, sid string, d Draft) error {
	val, err := json.Marshal(envelope{State: d})
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key(sid), val)
		if r.ttl > 0 {
			e = e.WithTTL(r.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("store draft: %w", err)
	}
	return nil
}

func (r *BadgerRepository) Clear(_ context.Context, sid string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(sid))
	})
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// RunGC rewrites value-log files until nothing is left to reclaim.
func (r *BadgerRepository) RunGC() error {
	for {
		err := r.db.RunValueLogGC(0.5)
		switch {
		case err == nil:
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return nil
		default:
			return fmt.Errorf("drafts gc: %w", err)
		}
	}
}
