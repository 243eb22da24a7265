package models

import "time"

// RefreshToken is the stored side of an issued refresh token. Only the hash
// of the token is kept.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	Expires   time.Time
	CreatedAt time.Time
}
