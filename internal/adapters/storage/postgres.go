package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/eleven-am/triageflow/internal/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key   TEXT PRIMARY KEY,
	value BYTEA NOT NULL
)`

// serialization_failure / deadlock_detected, the two SQLSTATEs a retryable
// transaction collision produces.
var pgConflictCodes = map[string]bool{
	"40001": true,
	"40P01": true,
}

// PostgresStorage implements the storage port on a single key-value table.
// Transactions run at SERIALIZABLE so concurrent writers on the same keys
// collide the same way badger transactions do.
type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStorage(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*PostgresStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := pool.Exec(ctx, kvSchema); err != nil {
		return nil, domain.NewInternalError("failed to ensure kv_entries table", err)
	}

	return &PostgresStorage{
		pool:   pool,
		logger: logger.With("component", "postgres-storage"),
	}, nil
}

func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, domain.NewInternalError("failed to create postgres pool", err)
	}

	s, err := NewPostgresStorage(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStorage) Get(key string) (value []byte, exists bool, err error) {
	err = s.pool.QueryRow(context.Background(),
		"SELECT value FROM kv_entries WHERE key = $1", key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *PostgresStorage) Put(key string, value []byte) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO kv_entries (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return mapPgError(key, err)
}

func (s *PostgresStorage) Delete(key string) error {
	_, err := s.pool.Exec(context.Background(),
		"DELETE FROM kv_entries WHERE key = $1", key)
	return mapPgError(key, err)
}

func (s *PostgresStorage) Exists(key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT 1 FROM kv_entries WHERE key = $1)", key).Scan(&exists)
	return exists, err
}

func (s *PostgresStorage) BatchWrite(ops []ports.WriteOp) error {
	return s.RunInTransaction(func(tx ports.Transaction) error {
		for _, op := range ops {
			switch op.Type {
			case ports.OpPut:
				if err := tx.Put(op.Key, op.Value); err != nil {
					return err
				}
			case ports.OpDelete:
				if err := tx.Delete(op.Key); err != nil {
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
}

func (s *PostgresStorage) ListByPrefix(prefix string) ([]ports.KeyValue, error) {
	rows, err := s.pool.Query(context.Background(),
		"SELECT key, value FROM kv_entries WHERE key LIKE $1 || '%' ORDER BY key", prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ports.KeyValue
	for rows.Next() {
		var kv ports.KeyValue
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, err
		}
		results = append(results, kv)
	}

	return results, rows.Err()
}

func (s *PostgresStorage) CountPrefix(prefix string) (count int, err error) {
	err = s.pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM kv_entries WHERE key LIKE $1 || '%'", prefix).Scan(&count)
	return count, err
}

func (s *PostgresStorage) RunInTransaction(fn func(tx ports.Transaction) error) error {
	ctx := context.Background()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresTransaction{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError("txn", err)
	}

	return nil
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func mapPgError(key string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgConflictCodes[pgErr.Code] {
		return domain.NewTransactionConflictError(key)
	}

	return err
}

type postgresTransaction struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *postgresTransaction) Get(key string) (value []byte, exists bool, err error) {
	err = t.tx.QueryRow(t.ctx,
		"SELECT value FROM kv_entries WHERE key = $1", key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (t *postgresTransaction) Put(key string, value []byte) error {
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO kv_entries (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return err
}

func (t *postgresTransaction) Delete(key string) error {
	_, err := t.tx.Exec(t.ctx, "DELETE FROM kv_entries WHERE key = $1", key)
	return err
}

func (t *postgresTransaction) Exists(key string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(t.ctx,
		"SELECT EXISTS (SELECT 1 FROM kv_entries WHERE key = $1)", key).Scan(&exists)
	return exists, err
}
