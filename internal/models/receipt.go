package models

import "time"

// Receipt чек об оплате, ожидающий решения администратора.
// На одного пользователя может приходиться несколько чеков.
type Receipt struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	FullName    string    `json:"full_name"`
	PlanID      string    `json:"plan_id"`
	UserCount   int       `json:"user_count"`
	Price       float64   `json:"price"`
	PhotoFileID string    `json:"photo_file_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}
