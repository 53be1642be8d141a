package game

import (
	"errors"

	"crashgame/internal/price"
	"crashgame/internal/wallet"
)

// Rejection reasons surfaced to clients. Every rejected operation leaves
// wallet and round state untouched.
var (
	ErrInvalidInput      = errors.New("invalid bet input")
	ErrRoundClosed       = errors.New("no running round")
	ErrDuplicatePosition = errors.New("bet already placed this round")
	ErrNoActiveBet       = errors.New("no active bet for user")
	ErrAlreadySettled    = errors.New("bet already cashed out")
	ErrRoundCrashed      = errors.New("round already crashed")
)

// Code maps a rejection to its short machine-readable kind.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrRoundClosed):
		return "round_closed"
	case errors.Is(err, ErrDuplicatePosition):
		return "duplicate_position"
	case errors.Is(err, ErrNoActiveBet):
		return "no_active_bet"
	case errors.Is(err, ErrAlreadySettled):
		return "already_settled"
	case errors.Is(err, ErrRoundCrashed):
		return "round_crashed"
	case errors.Is(err, wallet.ErrNotFound):
		return "not_found"
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, wallet.ErrInvalidAmount):
		return "invalid_input"
	case errors.Is(err, price.ErrUnavailable):
		return "price_unavailable"
	}
	return "internal_error"
}
