package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"shop-service/internal/apperr"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sqlx.DB
	*queries
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewStoreFromDB(db), nil
}

// NewStoreFromDB wraps an existing connection pool
func NewStoreFromDB(db *sqlx.DB) *Store {
	return &Store{db: db, queries: &queries{ext: db}}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, used by the readiness probe
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// InTx runs fn inside a transaction. Any error or panic from fn rolls the
// transaction back; serialization and deadlock failures surface as Conflict.
func (s *Store) InTx(ctx context.Context, fn func(q Queries) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapDBError("failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&queries{ext: tx}); err != nil {
		return mapDBError("transaction aborted", err)
	}

	if err = tx.Commit(); err != nil {
		return mapDBError("failed to commit transaction", err)
	}
	return nil
}

// Postgres SQLSTATEs that mean "retry the whole transaction".
var retryableCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// mapDBError leaves *apperr.Error values untouched and classifies raw driver errors.
func mapDBError(message string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && retryableCodes[pqErr.Code] {
		return apperr.Conflict("concurrent update, please retry", err)
	}

	return apperr.Internal(message, err)
}
