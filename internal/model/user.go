package model

import "time"

// User represents an account with a spendable point balance.
// The point balance is only ever mutated under a row-exclusive lock.
type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	Email          string    `json:"email"`
	BirthDate      time.Time `json:"birth_date"`
	Gender         string    `json:"gender"`
	Point          int64     `json:"point"`
	CreatedAt      time.Time `json:"-"`
}

// Product represents a sellable item with a non-negative stock count.
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Stock     int       `json:"stock"`
	BrandID   int64     `json:"brand_id"`
	CreatedAt time.Time `json:"-"`
}
