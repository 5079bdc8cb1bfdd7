package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// InsufficientBalanceError fails a generation before any provider call is
// made. Carries both sides so clients can prompt an exact top-up.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s", e.Required.String(), e.Available.String())
}

var (
	// ErrNotFound covers rows that are absent or not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyProcessed is the idempotent no-op outcome: the work was done
	// earlier and nothing happened now. Not a failure.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrNoTask marks a generation that never received a provider task id
	// and therefore cannot be polled.
	ErrNoTask = errors.New("generation has no provider task")

	// ErrPromoExhausted means the code hit its usage cap.
	ErrPromoExhausted = errors.New("promo code exhausted")
)
