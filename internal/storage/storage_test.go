package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/subscription-bot/internal/migrations"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	root, err := filepath.Abs("../..")
	require.NoError(t, err)
	db := s.SQLDB()
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db, filepath.Join(root, "migrations")))

	return s
}

func TestStorage_Accounts(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.GetAccount(ctx, "100")
	require.ErrorIs(t, err, ErrNotFound)

	created, err := s.EnsureAccount(ctx, models.NewFreeTemplate("100", "Ali", "ali", now))
	require.NoError(t, err)
	assert.True(t, created)

	paid := models.Account{
		UserID: "100", Plan: "20gb", UserCount: 2, Expiry: now.AddDate(0, 0, 15),
		Status: models.StatusActive, FullName: "Ali", Username: "ali",
	}
	require.NoError(t, s.UpsertAccount(ctx, paid))

	created, err = s.EnsureAccount(ctx, models.NewFreeTemplate("100", "Ali Reza", "alireza", now))
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetAccount(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "20gb", got.Plan)
	assert.Equal(t, 2, got.UserCount)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.True(t, paid.Expiry.Equal(got.Expiry))
	assert.Equal(t, "Ali Reza", got.FullName)
	assert.Equal(t, "alireza", got.Username)

	_, err = s.EnsureAccount(ctx, models.NewFreeTemplate("200", "Sara", "", now))
	require.NoError(t, err)

	active, err := s.ListActiveAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "100", active[0].UserID)
}

func TestStorage_FreeClaims(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cooldown := 2 * time.Hour
	id := models.Identity{FullName: "Ali", Username: "ali"}

	_, found, err := s.LastFreeClaim(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found)

	res, err := s.GrantFree(ctx, "1", id, now, cooldown, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.Equal(t, models.FreePlan, res.Account.Plan)

	acc, err := s.GetAccount(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, acc.Status)
	assert.Equal(t, "Ali", acc.FullName)

	res, err = s.GrantFree(ctx, "1", id, now.Add(cooldown), cooldown, now.Add(cooldown+24*time.Hour))
	require.NoError(t, err)
	assert.False(t, res.Granted, "exactly at cooldown must be refused")
	assert.True(t, now.Equal(res.LastClaim))

	res, err = s.GrantFree(ctx, "1", id, now.Add(cooldown+time.Second), cooldown, now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.True(t, res.Granted)

	require.NoError(t, s.RecordFreeClaim(ctx, "2", now))
	last, found, err := s.LastFreeClaim(ctx, "2")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, now.Equal(last))
}

func TestStorage_GrantFree_KeepsPaidSubscription(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	paid := models.Account{UserID: "1", Plan: "20 گیگابایت", UserCount: 4,
		Expiry: now.AddDate(0, 0, 15), Status: models.StatusActive, FullName: "Ali"}
	require.NoError(t, s.UpsertAccount(ctx, paid))

	res, err := s.GrantFree(ctx, "1", models.Identity{}, now, 2*time.Hour, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.Equal(t, "20 گیگابایت", res.Account.Plan)

	acc, err := s.GetAccount(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 4, acc.UserCount)
	assert.True(t, paid.Expiry.Equal(acc.Expiry))
}

func TestStorage_GrantFree_FailedAccountWriteRollsBackClaim(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// Невалидный UTF-8 отвергается сервером на записи учётной записи.
	_, err := s.GrantFree(ctx, "1", models.Identity{FullName: "\xff\xfe"}, now, 2*time.Hour, now.Add(24*time.Hour))
	require.Error(t, err)

	_, found, err := s.LastFreeClaim(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found, "claim must not be recorded when the account write fails")

	res, err := s.GrantFree(ctx, "1", models.Identity{FullName: "Ali"}, now.Add(time.Minute), 2*time.Hour, now.Add(25*time.Hour))
	require.NoError(t, err)
	assert.True(t, res.Granted)
}

func TestStorage_FreeClaims_Concurrent(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.GrantFree(ctx, "race", models.Identity{FullName: "R"}, now, 2*time.Hour, now.Add(24*time.Hour))
			assert.NoError(t, err)
			if res.Granted {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, granted)
}

func TestStorage_Receipts(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	receipts := []models.Receipt{
		{UserID: "1", Username: "a", FullName: "A", PlanID: "10gb", UserCount: 1, Price: 5, PhotoFileID: "p1", SubmittedAt: base},
		{UserID: "2", Username: "b", FullName: "B", PlanID: "20gb", UserCount: 4, Price: 28.8, PhotoFileID: "p2", SubmittedAt: base.Add(time.Minute)},
		{UserID: "1", Username: "a", FullName: "A", PlanID: "50gb", UserCount: 2, Price: 36, PhotoFileID: "p3", SubmittedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range receipts {
		id, err := s.SaveReceipt(ctx, r)
		require.NoError(t, err)
		assert.Positive(t, id)
	}

	list, err := s.ListPendingReceipts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "p3", list[0].PhotoFileID)
	assert.Equal(t, "p2", list[1].PhotoFileID)
	assert.Equal(t, "p1", list[2].PhotoFileID)
	assert.InDelta(t, 28.8, list[1].Price, 0.001)

	n, err := s.CountPendingReceipts(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := s.RemoveReceiptsByUser(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = s.RemoveReceiptsByUser(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	list, err = s.ListPendingReceipts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2", list[0].UserID)
}

func TestStorage_ApproveReceipts(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.SaveReceipt(ctx, models.Receipt{
		UserID: "7", Username: "u", FullName: "U", PlanID: "20gb", UserCount: 2,
		Price: 16.2, PhotoFileID: "p", SubmittedAt: now,
	})
	require.NoError(t, err)

	acc := models.Account{
		UserID: "7", Plan: "20gb", UserCount: 2, Expiry: now.AddDate(0, 0, 15),
		Status: models.StatusActive, FullName: "U", Username: "u",
	}
	removed, err := s.ApproveReceipts(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := s.GetAccount(ctx, "7")
	require.NoError(t, err)
	assert.True(t, got.IsActive())
	assert.True(t, acc.Expiry.Equal(got.Expiry))

	later := acc
	later.Expiry = now.AddDate(0, 0, 30)
	removed, err = s.ApproveReceipts(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	got, err = s.GetAccount(ctx, "7")
	require.NoError(t, err)
	assert.True(t, acc.Expiry.Equal(got.Expiry), "second approval must not touch the account")
}
