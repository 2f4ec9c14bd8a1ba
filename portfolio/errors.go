package portfolio

import "errors"

// Structural violations. They indicate a bug in the caller or corrupt data and
// are always returned, never swallowed.
var (
	ErrDuplicatePosition = errors.New("duplicate position")
	ErrPositionNotFound  = errors.New("position not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidPrice      = errors.New("price must be positive")
	ErrInvalidAmount     = errors.New("amount must be positive")
)
