package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxRunner runs fn inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

// SQLStore keeps records in the kv_entries table.
type SQLStore struct {
	db       DB
	txRunner TxRunner
}

func NewSQLStore(db DB, txRunner TxRunner) *SQLStore {
	return &SQLStore{db: db, txRunner: txRunner}
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, `
		SELECT value
		FROM kv_entries
		WHERE key = $1
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	return s.upsert(ctx, s.db, key, value)
}

func (s *SQLStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) SetMany(ctx context.Context, values map[string][]byte) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.setAll(ctx, tx, values)
	})
}

func (s *SQLStore) setAll(ctx context.Context, tx Execer, values map[string][]byte) error {
	for key, value := range values {
		if err := s.upsert(ctx, tx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) upsert(ctx context.Context, tx Execer, key string, value []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Schema is the DDL the store expects; cmd/migrate applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        text PRIMARY KEY,
	value      bytea NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`
