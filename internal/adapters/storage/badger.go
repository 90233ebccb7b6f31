package storage

import (
	"errors"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/eleven-am/triageflow/internal/ports"
)

// BadgerStorage is the default durable key-value backend. Every write goes
// through a badger transaction, so two concurrent transactions touching the
// same keys resolve to exactly one winner; the loser sees a transaction
// conflict.
type BadgerStorage struct {
	db     *badger.DB
	logger *slog.Logger
}

func NewBadgerStorage(db *badger.DB, logger *slog.Logger) *BadgerStorage {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStorage{
		db:     db,
		logger: logger.With("component", "badger-storage"),
	}
}

// OpenBadger opens (or creates) a badger database at dir. An empty dir opens
// an in-memory database, which the tests use.
func OpenBadger(dir string, logger *slog.Logger) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.NewInternalError("failed to open badger database", err)
	}

	return NewBadgerStorage(db, logger), nil
}

func (s *BadgerStorage) Get(key string) (value []byte, exists bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				exists = false
				return nil
			}
			return err
		}

		exists = true
		value, err = item.ValueCopy(nil)
		return err
	})

	return value, exists, err
}

func (s *BadgerStorage) Put(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return s.mapConflict(key, err)
}

func (s *BadgerStorage) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return s.mapConflict(key, err)
}

func (s *BadgerStorage) Exists(key string) (bool, error) {
	_, exists, err := s.Get(key)
	return exists, err
}

func (s *BadgerStorage) BatchWrite(ops []ports.WriteOp) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			switch op.Type {
			case ports.OpPut:
				if err := txn.Set([]byte(op.Key), op.Value); err != nil {
					return err
				}
			case ports.OpDelete:
				if err := txn.Delete([]byte(op.Key)); err != nil {
					return err
				}
			default:
				return domain.NewValidationError("unknown write op type", map[string]interface{}{
					"key": op.Key,
				})
			}
		}
		return nil
	})
	return s.mapConflict("batch", err)
}

func (s *BadgerStorage) ListByPrefix(prefix string) ([]ports.KeyValue, error) {
	var results []ports.KeyValue

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			results = append(results, ports.KeyValue{
				Key:   string(item.Key()),
				Value: value,
			})
		}

		return nil
	})

	return results, err
}

func (s *BadgerStorage) CountPrefix(prefix string) (count int, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}

		return nil
	})

	return count, err
}

func (s *BadgerStorage) RunInTransaction(fn func(tx ports.Transaction) error) error {
	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(&badgerTransaction{txn: txn}); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return domain.NewTransactionConflictError("txn")
		}
		return err
	}

	return nil
}

func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

func (s *BadgerStorage) mapConflict(key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrConflict) {
		return domain.NewTransactionConflictError(key)
	}
	return err
}

type badgerTransaction struct {
	txn *badger.Txn
}

func (t *badgerTransaction) Get(key string) (value []byte, exists bool, err error) {
	item, err := t.txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	value, err = item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}

	return value, true, nil
}

func (t *badgerTransaction) Put(key string, value []byte) error {
	return t.txn.Set([]byte(key), value)
}

func (t *badgerTransaction) Delete(key string) error {
	return t.txn.Delete([]byte(key))
}

func (t *badgerTransaction) Exists(key string) (bool, error) {
	_, err := t.txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}
