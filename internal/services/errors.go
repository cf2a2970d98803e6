package services

import (
	"errors"

	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
)

// Error codes stored on failed receipts.
const (
	CodeInvalidMsgSender     = "invalid_msg_sender"
	CodeInvalidParameter     = "invalid_parameter"
	CodeRedundantStateChange = "redundant_state_change"
	CodeNotFound             = "not_found"
	CodeInsufficientBalance  = "insufficient_balance"
	CodeInternal             = "internal"
)

var ErrQueueFull = errors.New("transaction queue is full")

func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, marketplace.ErrInvalidMsgSender):
		return CodeInvalidMsgSender
	case errors.Is(err, marketplace.ErrInvalidParameter):
		return CodeInvalidParameter
	case errors.Is(err, marketplace.ErrRedundantStateChange):
		return CodeRedundantStateChange
	case errors.Is(err, marketplace.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, marketplace.ErrInsufficientBalance):
		return CodeInsufficientBalance
	default:
		return CodeInternal
	}
}
