package kvstore

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/infra"
)

// BadgerStore is an embedded infra.KVStore for single-node deployments.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

// NewBadgerStore opens (or creates) a store at dir. An empty dir keeps
// everything in memory.
func NewBadgerStore(dir string, prefix string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, prefix: prefix}, nil
}

func (b *BadgerStore) Backend() string { return string(enum.KVStoreTypeBadger) }

func (b *BadgerStore) key(k string) ([]byte, error) {
	if k == "" {
		return nil, ErrKeyEmpty
	}
	return []byte(joinKey(b.prefix, k)), nil
}

func get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (b *BadgerStore) Get(k string) ([]byte, error) {
	key, err := b.key(k)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = b.db.View(func(txn *badger.Txn) error {
		out, err = get(txn, key)
		return err
	})
	return out, err
}

func (b *BadgerStore) Put(k string, value []byte) error {
	key, err := b.key(k)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Update retries on transaction conflicts; fn may therefore run more than once.
func (b *BadgerStore) Update(k string, fn infra.UpdateFunc) error {
	key, err := b.key(k)
	if err != nil {
		return err
	}
	for range maxUpdateAttempts {
		err = b.db.Update(func(txn *badger.Txn) error {
			cur, err := get(txn, key)
			if err != nil && !errors.Is(err, ErrKeyNotFound) {
				return err
			}
			next, err := fn(cur)
			if err != nil {
				return err
			}
			if next == nil {
				return txn.Delete(key)
			}
			return txn.Set(key, next)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return ErrConflict
}

func (b *BadgerStore) Delete(k string) error {
	key, err := b.key(k)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}
