package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DepositStatusCredited = "credited"
	DepositStatusIgnored  = "ignored"
)

// Deposit is an ERC-20 transfer into the escrow address seen by the indexer.
type Deposit struct {
	ID          uuid.UUID `json:"id"`
	TxHash      string    `json:"tx_hash"`
	LogIndex    uint      `json:"log_index"`
	BlockNumber uint64    `json:"block_number"`
	FromAddress string    `json:"from_address"`
	Amount      string    `json:"amount"` // base units, numeric as string
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
