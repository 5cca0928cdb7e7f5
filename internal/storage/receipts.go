package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

// SaveReceipt добавляет чек в очередь и возвращает его ID.
func (s *Storage) SaveReceipt(ctx context.Context, r models.Receipt) (int64, error) {
	const op = "storage.SaveReceipt"

	query := `INSERT INTO pending_receipts (user_id, username, full_name, plan_id, user_count,
			      price, photo_file_id, submitted_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id`
	var id int64
	err := s.Pool.QueryRow(ctx, query, r.UserID, r.Username, r.FullName, r.PlanID, r.UserCount,
		r.Price, r.PhotoFileID, r.SubmittedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListPendingReceipts возвращает чеки в очереди, новые первыми.
func (s *Storage) ListPendingReceipts(ctx context.Context) ([]*models.Receipt, error) {
	const op = "storage.ListPendingReceipts"

	query := `SELECT id, user_id, username, full_name, plan_id, user_count, price::float8,
			      photo_file_id, submitted_at
			  FROM pending_receipts
			  ORDER BY submitted_at DESC, id DESC`
	rows, err := s.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Receipt
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.ID, &r.UserID, &r.Username, &r.FullName, &r.PlanID, &r.UserCount,
			&r.Price, &r.PhotoFileID, &r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountPendingReceipts количество чеков пользователя в очереди.
func (s *Storage) CountPendingReceipts(ctx context.Context, userID string) (int, error) {
	const op = "storage.CountPendingReceipts"

	var n int
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM pending_receipts WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// RemoveReceiptsByUser удаляет все чеки пользователя и возвращает их количество.
func (s *Storage) RemoveReceiptsByUser(ctx context.Context, userID string) (int, error) {
	const op = "storage.RemoveReceiptsByUser"

	tag, err := s.Pool.Exec(ctx, `DELETE FROM pending_receipts WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(tag.RowsAffected()), nil
}

// ApproveReceipts одной транзакцией удаляет чеки пользователя и активирует учётную запись.
// Если чеков не было, транзакция откатывается и запись не меняется: повторное решение
// по тому же пользователю ничего не делает. Конкурирующее решение ждёт блокировки строк
// и после фиксации первого видит ноль удалённых чеков.
func (s *Storage) ApproveReceipts(ctx context.Context, a models.Account) (int, error) {
	const op = "storage.ApproveReceipts"

	var removed int
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM pending_receipts WHERE user_id = $1`, a.UserID)
		if err != nil {
			return err
		}
		removed = int(tag.RowsAffected())
		if removed == 0 {
			return errNothingToApprove
		}
		_, err = tx.Exec(ctx, upsertAccountQuery,
			a.UserID, a.Plan, a.UserCount, a.Expiry, a.Status, a.FullName, a.Username)
		return err
	})
	if err == errNothingToApprove {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return removed, nil
}
