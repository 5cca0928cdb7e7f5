package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

// LastFreeClaim возвращает время последней бесплатной выдачи; found=false, если выдач не было.
func (s *Storage) LastFreeClaim(ctx context.Context, userID string) (time.Time, bool, error) {
	const op = "storage.LastFreeClaim"

	var last time.Time
	err := s.Pool.QueryRow(ctx, `SELECT last_claim FROM free_claims WHERE user_id = $1`, userID).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %w", op, err)
	}
	return last, true, nil
}

// RecordFreeClaim сохраняет время бесплатной выдачи, создавая запись при необходимости.
func (s *Storage) RecordFreeClaim(ctx context.Context, userID string, at time.Time) error {
	const op = "storage.RecordFreeClaim"

	query := `INSERT INTO free_claims (user_id, last_claim) VALUES ($1, $2)
			  ON CONFLICT (user_id) DO UPDATE SET last_claim = EXCLUDED.last_claim`
	if _, err := s.Pool.Exec(ctx, query, userID, at); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GrantFree одной транзакцией фиксирует бесплатную выдачу и записывает учётную запись.
// Выдача фиксируется, только если с прошлой прошло строго больше cooldown; при отказе
// возвращается время прошлой выдачи. Если запись учётной записи не удалась, отметка
// о выдаче откатывается вместе с ней.
func (s *Storage) GrantFree(ctx context.Context, userID string, id models.Identity, now time.Time,
	cooldown time.Duration, expiry time.Time,
) (models.FreeClaimResult, error) {
	const op = "storage.GrantFree"

	var res models.FreeClaimResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		claim := `INSERT INTO free_claims (user_id, last_claim) VALUES ($1, $2)
				  ON CONFLICT (user_id) DO UPDATE SET last_claim = EXCLUDED.last_claim
				  WHERE free_claims.last_claim < $3
				  RETURNING last_claim`
		var stamped time.Time
		err := tx.QueryRow(ctx, claim, userID, now, now.Add(-cooldown)).Scan(&stamped)
		if errors.Is(err, pgx.ErrNoRows) {
			if err := tx.QueryRow(ctx, `SELECT last_claim FROM free_claims WHERE user_id = $1`,
				userID).Scan(&res.LastClaim); err != nil {
				return err
			}
			return errClaimRefused
		}
		if err != nil {
			return err
		}

		existing, err := accountForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		acc, write := models.FreeGrantAccount(existing, userID, id, expiry, now)
		if write {
			if _, err := tx.Exec(ctx, upsertAccountQuery,
				acc.UserID, acc.Plan, acc.UserCount, acc.Expiry, acc.Status, acc.FullName, acc.Username); err != nil {
				return err
			}
		}
		res.Granted = true
		res.Account = acc
		return nil
	})
	if errors.Is(err, errClaimRefused) {
		return models.FreeClaimResult{LastClaim: res.LastClaim}, nil
	}
	if err != nil {
		return models.FreeClaimResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// accountForUpdate читает и блокирует учётную запись до конца транзакции; nil, если записи нет.
func accountForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*models.Account, error) {
	query := `SELECT user_id, plan, user_count, expiry, status, full_name, username
			  FROM accounts WHERE user_id = $1 FOR UPDATE`
	var a models.Account
	err := tx.QueryRow(ctx, query, userID).Scan(&a.UserID, &a.Plan, &a.UserCount,
		&a.Expiry, &a.Status, &a.FullName, &a.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
