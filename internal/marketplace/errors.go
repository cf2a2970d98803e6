package marketplace

import "errors"

var (
	// ErrInvalidMsgSender: the caller is not the seller, owner or an authorized router.
	ErrInvalidMsgSender = errors.New("invalid msg sender")
	// ErrInvalidParameter: malformed input or an eligibility check failed.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrRedundantStateChange: the write would not change any stored value.
	ErrRedundantStateChange = errors.New("redundant state change")

	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)
