package wallet

import (
	"time"
)

type Currency string

const (
	CurrencyBTC Currency = "BTC"
	CurrencyETH Currency = "ETH"
)

// Currencies lists every supported denomination.
var Currencies = []Currency{CurrencyBTC, CurrencyETH}

// ParseCurrency maps a request string onto a supported currency.
func ParseCurrency(s string) (Currency, bool) {
	switch Currency(s) {
	case CurrencyBTC:
		return CurrencyBTC, true
	case CurrencyETH:
		return CurrencyETH, true
	}
	return "", false
}

// Balance splits a user's holdings of one currency into funds free to bet
// and funds committed to the active round.
type Balance struct {
	Available float64 `json:"available"`
	Locked    float64 `json:"locked"`
}

type Wallet struct {
	UserID   string                `json:"user_id"`
	Username string                `json:"username"`
	USD      float64               `json:"usd_balance"`
	Crypto   map[Currency]*Balance `json:"crypto"`
}

type TransactionType string

const (
	TransactionBuy     TransactionType = "buy"
	TransactionBet     TransactionType = "bet"
	TransactionCashout TransactionType = "cashout"
)

// Transaction is an append-only ledger entry. Once written it is never
// updated or deleted.
type Transaction struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	USDAmount    float64         `json:"usd_amount"`
	CryptoAmount float64         `json:"crypto_amount"`
	Currency     Currency        `json:"currency"`
	Type         TransactionType `json:"type"`
	PriceAtTime  float64         `json:"price_at_time"`
	CreatedAt    time.Time       `json:"created_at"`
}
