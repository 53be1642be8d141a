package game

import (
	"time"

	"crashgame/internal/wallet"
)

type RoundStatus string

const (
	StatusRunning RoundStatus = "RUNNING"
	StatusCrashed RoundStatus = "CRASHED"
)

// Round is the single active playthrough. The crash point stays hidden
// from clients until the crash broadcast.
type Round struct {
	RoundID    string      `json:"round_id"`
	Sequence   int         `json:"sequence"`
	CrashPoint float64     `json:"-"`
	Multiplier float64     `json:"multiplier"`
	Status     RoundStatus `json:"status"`
	StartTime  time.Time   `json:"start_time"`
	CrashTime  time.Time   `json:"crash_time,omitempty"`

	// positions is touched only by the engine goroutine.
	positions map[string]*Position
}

// Position is one user's open bet within one round. At most one per user.
type Position struct {
	UserID            string          `json:"user_id"`
	USDValueAtBet     float64         `json:"usd_value_at_bet"`
	CryptoAmount      float64         `json:"crypto_amount"`
	Currency          wallet.Currency `json:"currency"`
	CashedOut         bool            `json:"cashed_out"`
	CashoutMultiplier float64         `json:"cashout_multiplier,omitempty"`
	PlacedAt          time.Time       `json:"placed_at"`
}

type BetRequest struct {
	UserID       string           `json:"user_id"`
	CryptoAmount float64          `json:"crypto_amount"`
	Currency     string           `json:"currency"`
	ResponseChan chan BetResponse `json:"-"`
}

type BetResponse struct {
	Success      bool    `json:"success"`
	Code         string  `json:"code,omitempty"`
	Message      string  `json:"message"`
	CryptoAmount float64 `json:"crypto_amount,omitempty"`
}

type CashoutRequest struct {
	UserID       string               `json:"user_id"`
	ResponseChan chan CashoutResponse `json:"-"`
}

type CashoutResponse struct {
	Success           bool    `json:"success"`
	Code              string  `json:"code,omitempty"`
	Message           string  `json:"message"`
	USDPayout         float64 `json:"usd_payout,omitempty"`
	Profit            float64 `json:"profit,omitempty"`
	OriginalBet       float64 `json:"original_bet,omitempty"`
	CashoutMultiplier float64 `json:"cashout_multiplier,omitempty"`
	CrashPoint        float64 `json:"crash_point,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type RoundStartedEvent struct {
	RoundID  string `json:"round_id"`
	Sequence int    `json:"sequence"`
}

type MultiplierUpdateEvent struct {
	Multiplier float64 `json:"multiplier"`
}

type RoundCrashedEvent struct {
	RoundID    string  `json:"round_id"`
	CrashPoint float64 `json:"crash_point"`
}

type BetPlacedEvent struct {
	UserID       string  `json:"user_id"`
	CryptoAmount float64 `json:"crypto_amount"`
	Currency     string  `json:"currency"`
}

type CashoutEvent struct {
	UserID     string  `json:"user_id"`
	Multiplier float64 `json:"multiplier"`
	USDPayout  float64 `json:"usd_payout"`
}
