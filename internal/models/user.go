package models

import (
	"time"

	"github.com/google/uuid"
)

// User owns categories, ledger transactions and import jobs.
type User struct {
	ID           uuid.UUID `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}
