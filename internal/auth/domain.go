package auth

import "time"

// Account carries the credential-bearing view of a user.
type Account struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
