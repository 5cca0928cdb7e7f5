package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

const upsertAccountQuery = `INSERT INTO accounts (user_id, plan, user_count, expiry, status, full_name, username)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (user_id) DO UPDATE
			  SET plan = EXCLUDED.plan, user_count = EXCLUDED.user_count, expiry = EXCLUDED.expiry,
			      status = EXCLUDED.status, full_name = EXCLUDED.full_name, username = EXCLUDED.username`

// GetAccount возвращает учётную запись пользователя или ErrNotFound.
func (s *Storage) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	const op = "storage.GetAccount"

	query := `SELECT user_id, plan, user_count, expiry, status, full_name, username
			  FROM accounts WHERE user_id = $1`
	var a models.Account
	err := s.Pool.QueryRow(ctx, query, userID).Scan(&a.UserID, &a.Plan, &a.UserCount,
		&a.Expiry, &a.Status, &a.FullName, &a.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &a, nil
}

// UpsertAccount полностью перезаписывает учётную запись или создаёт её.
func (s *Storage) UpsertAccount(ctx context.Context, a models.Account) error {
	const op = "storage.UpsertAccount"

	_, err := s.Pool.Exec(ctx, upsertAccountQuery,
		a.UserID, a.Plan, a.UserCount, a.Expiry, a.Status, a.FullName, a.Username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// EnsureAccount создаёт учётную запись из шаблона, если её ещё нет.
// У существующей записи обновляются только имя и логин.
func (s *Storage) EnsureAccount(ctx context.Context, a models.Account) (bool, error) {
	const op = "storage.EnsureAccount"

	query := `INSERT INTO accounts (user_id, plan, user_count, expiry, status, full_name, username)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (user_id) DO UPDATE
			  SET full_name = EXCLUDED.full_name, username = EXCLUDED.username
			  RETURNING (xmax = 0) AS inserted`
	var inserted bool
	err := s.Pool.QueryRow(ctx, query,
		a.UserID, a.Plan, a.UserCount, a.Expiry, a.Status, a.FullName, a.Username).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return inserted, nil
}

// ListActiveAccounts возвращает все активные учётные записи. Порядок не гарантируется.
func (s *Storage) ListActiveAccounts(ctx context.Context) ([]*models.Account, error) {
	const op = "storage.ListActiveAccounts"

	query := `SELECT user_id, plan, user_count, expiry, status, full_name, username
			  FROM accounts WHERE status = $1`
	rows, err := s.Pool.Query(ctx, query, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.UserID, &a.Plan, &a.UserCount, &a.Expiry, &a.Status,
			&a.FullName, &a.Username); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
