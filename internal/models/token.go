package models

import (
	"time"

	"github.com/google/uuid"
)

// Opaque bearer credential, one per user
// Deleting it logs the user out
type AuthToken struct {
	Key       string
	UserID    uuid.UUID
	CreatedAt time.Time
}

// Marker of a single-use signed token that was already redeemed
// ID is the token 'jti'
type UsedToken struct {
	ID        uuid.UUID
	Purpose   string
	ExpiresAt time.Time
	UsedAt    time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenManager on claims-based login
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
