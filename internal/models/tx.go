package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction statuses
const (
	TxStatusPending   = "pending"
	TxStatusConfirmed = "confirmed"
	TxStatusFailed    = "failed"
)

// Valid receipt transitions: from -> []to
var ValidTxTransitions = map[string][]string{
	TxStatusPending:   {TxStatusConfirmed, TxStatusFailed},
	TxStatusConfirmed: {},
	TxStatusFailed:    {},
}

func IsValidTxTransition(from, to string) bool {
	allowed, ok := ValidTxTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// TxReceipt tracks one submitted marketplace write until it is executed.
type TxReceipt struct {
	ID          uuid.UUID  `json:"id"`
	Op          string     `json:"op"`
	Caller      string     `json:"caller"`
	Status      string     `json:"status"`
	ErrorCode   *string    `json:"error_code,omitempty"` // invalid_msg_sender / invalid_parameter / ...
	Error       *string    `json:"error,omitempty"`
	Result      any        `json:"result,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

func (r *TxReceipt) Final() bool {
	return r.Status == TxStatusConfirmed || r.Status == TxStatusFailed
}
