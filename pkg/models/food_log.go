package models

import "time"

// FoodLog is a user's diary entry. FoodID is the catalog store id, not the
// external id, so catalog merges must repoint it.
type FoodLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FoodID    int64     `json:"food_id"`
	QuantityG float64   `json:"quantity_g"`
	LoggedAt  time.Time `json:"logged_at"`
}
