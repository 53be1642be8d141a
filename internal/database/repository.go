package database

import (
	"context"
	"database/sql"

	"crashgame/internal/wallet"
)

// Repository persists wallet snapshots and ledger transactions. It
// implements wallet.Persister; failures bubble up to the store, which
// logs them without rolling back in-memory state.
type Repository struct {
	db *sql.DB
}

func NewRepository(svc Service) *Repository {
	return &Repository{db: svc.DB()}
}

func (r *Repository) SaveWallet(ctx context.Context, w *wallet.Wallet) error {
	btc := w.Crypto[wallet.CurrencyBTC]
	eth := w.Crypto[wallet.CurrencyETH]

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, usd_balance, btc_available, btc_locked, eth_available, eth_locked, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			usd_balance   = EXCLUDED.usd_balance,
			btc_available = EXCLUDED.btc_available,
			btc_locked    = EXCLUDED.btc_locked,
			eth_available = EXCLUDED.eth_available,
			eth_locked    = EXCLUDED.eth_locked,
			updated_at    = now()`,
		w.UserID, w.Username, w.USD,
		btc.Available, btc.Locked, eth.Available, eth.Locked,
	)
	return err
}

func (r *Repository) AppendTransaction(ctx context.Context, tx wallet.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, usd_amount, crypto_amount, currency, type, price_at_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tx.ID, tx.UserID, tx.USDAmount, tx.CryptoAmount,
		string(tx.Currency), string(tx.Type), tx.PriceAtTime, tx.CreatedAt,
	)
	return err
}

// LoadWallet reads back a persisted wallet snapshot.
func (r *Repository) LoadWallet(ctx context.Context, userID string) (*wallet.Wallet, error) {
	w := &wallet.Wallet{
		UserID: userID,
		Crypto: map[wallet.Currency]*wallet.Balance{
			wallet.CurrencyBTC: {},
			wallet.CurrencyETH: {},
		},
	}
	btc := w.Crypto[wallet.CurrencyBTC]
	eth := w.Crypto[wallet.CurrencyETH]

	err := r.db.QueryRowContext(ctx, `
		SELECT username, usd_balance, btc_available, btc_locked, eth_available, eth_locked
		FROM users WHERE id = $1`, userID,
	).Scan(&w.Username, &w.USD, &btc.Available, &btc.Locked, &eth.Available, &eth.Locked)
	if err != nil {
		return nil, err
	}
	return w, nil
}
