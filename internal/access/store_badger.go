package access

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps the allow-list in an embedded Badger database. Keys are
// "<role>:<id>" with empty values.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger database at path. An in-memory
// database is used when inMemory is set and path is ignored.
func OpenBadger(path string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

// NewBadgerStore wraps an open Badger database as a Store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Add(_ context.Context, role Role, id int64) (bool, error) {
	key, err := badgerKey(role, id)
	if err != nil {
		return false, err
	}
	added := false
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		added = true
		return txn.Set(key, nil)
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

func (s *BadgerStore) Remove(_ context.Context, role Role, id int64) (bool, error) {
	if role == RoleOwner {
		return false, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	key, err := badgerKey(role, id)
	if err != nil {
		return false, err
	}
	removed := false
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		removed = true
		return txn.Delete(key)
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (s *BadgerStore) Has(_ context.Context, role Role, id int64) (bool, error) {
	key, err := badgerKey(role, id)
	if err != nil {
		return false, err
	}
	found := false
	err = s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *BadgerStore) List(_ context.Context, role Role) ([]int64, error) {
	prefix, err := badgerPrefix(role)
	if err != nil {
		return nil, err
	}
	var ids []int64
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			raw := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt allow-list key %q: %w", it.Item().Key(), err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Keys sort lexically; callers expect numeric order.
	slices.Sort(ids)
	return ids, nil
}

func badgerPrefix(role Role) ([]byte, error) {
	switch role {
	case RoleOwner:
		return []byte("owner:"), nil
	case RoleAllowedUser:
		return []byte("user:"), nil
	case RoleAllowedConversation:
		return []byte("chat:"), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
}

func badgerKey(role Role, id int64) ([]byte, error) {
	prefix, err := badgerPrefix(role)
	if err != nil {
		return nil, err
	}
	return strconv.AppendInt(prefix, id, 10), nil
}
