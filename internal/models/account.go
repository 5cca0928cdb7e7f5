// Package models содержит доменные структуры бота: учётную запись подписки,
// отметку бесплатной выдачи и чек, ожидающий решения администратора.
package models

import "time"

// Status статус подписки.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// FreePlan метка тарифа для новых учётных записей и бесплатной выдачи.
const FreePlan = "free"

// Account учётная запись подписки пользователя Telegram.
// Срок действия не перепроверяется фоновыми задачами: оставшиеся дни считаются при чтении.
type Account struct {
	UserID    string    `json:"user_id"`
	Plan      string    `json:"plan"`
	UserCount int       `json:"user_count"`
	Expiry    time.Time `json:"expiry"`
	Status    Status    `json:"status"`
	FullName  string    `json:"full_name"`
	Username  string    `json:"username"`
}

// IsActive сообщает, активна ли подписка.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// RemainingDays количество полных дней до окончания, не меньше нуля.
func (a *Account) RemainingDays(now time.Time) int {
	left := a.Expiry.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / (24 * time.Hour))
}

// NewFreeTemplate учётная запись, которая создаётся при первом обращении.
func NewFreeTemplate(userID, fullName, username string, now time.Time) Account {
	return Account{
		UserID:    userID,
		Plan:      FreePlan,
		UserCount: 1,
		Expiry:    now,
		Status:    StatusInactive,
		FullName:  fullName,
		Username:  username,
	}
}

// Identity отображаемое имя и логин пользователя.
type Identity struct {
	FullName string
	Username string
}

// FreeGrantAccount строит учётную запись бесплатной выдачи поверх существующей.
// Действующая платная подписка не понижается: тогда возвращается она сама и write=false.
// Пустые имя и логин берутся из существующей записи.
func FreeGrantAccount(existing *Account, userID string, id Identity, expiry, now time.Time) (acc Account, write bool) {
	if existing != nil {
		if existing.IsActive() && existing.Plan != FreePlan && existing.Expiry.After(now) {
			return *existing, false
		}
		if id.FullName == "" {
			id.FullName = existing.FullName
		}
		if id.Username == "" {
			id.Username = existing.Username
		}
	}
	return Account{
		UserID:    userID,
		Plan:      FreePlan,
		UserCount: 1,
		Expiry:    expiry,
		Status:    StatusActive,
		FullName:  id.FullName,
		Username:  id.Username,
	}, true
}

// FreeClaimResult итог попытки бесплатной выдачи.
type FreeClaimResult struct {
	// Granted false, если не истёк интервал между выдачами.
	Granted bool
	// LastClaim время прошлой выдачи, заполняется при отказе.
	LastClaim time.Time
	// Account запись после выдачи: бесплатная или сохранённая платная.
	Account Account
}
