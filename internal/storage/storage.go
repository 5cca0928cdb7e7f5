// Package storage реализует хранилище бота на PostgreSQL: учётные записи подписок,
// отметки бесплатной выдачи и очередь чеков, ожидающих решения администратора.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// ErrNotFound запись не найдена.
var ErrNotFound = errors.New("not found")

// Storage инкапсулирует пул соединений с PostgreSQL.
type Storage struct {
	Pool *pgxpool.Pool
}

// New создаёт пул соединений и проверяет доступность базы.
func New(ctx context.Context, storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	pool, err := pgxpool.New(ctx, storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{Pool: pool}, nil
}

// SQLDB возвращает *sql.DB поверх пула, он нужен для миграций.
func (s *Storage) SQLDB() *sql.DB {
	return stdlib.OpenDBFromPool(s.Pool)
}

// Close закрывает пул соединений.
func (s *Storage) Close() {
	s.Pool.Close()
}

// Ping проверяет соединение с базой.
func (s *Storage) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// withTx выполняет fn в транзакции. При ошибке fn транзакция откатывается.
func (s *Storage) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// errNothingToApprove откатывает транзакцию одобрения, когда чеков пользователя уже нет.
var errNothingToApprove = errors.New("no pending receipts")

// errClaimRefused откатывает транзакцию бесплатной выдачи, если интервал не истёк.
var errClaimRefused = errors.New("free claim refused")
