package models

import (
	"time"

	"github.com/google/uuid"
)

// LoginNonce is a single-use challenge embedded in the sign-in message.
type LoginNonce struct {
	ID        uuid.UUID `json:"id"`
	Nonce     string    `json:"nonce"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"-"`
}
