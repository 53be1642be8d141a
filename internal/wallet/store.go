package wallet

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Persister saves wallet snapshots and appends transactions to durable
// storage. Failures are logged and do not roll back in-memory state.
type Persister interface {
	SaveWallet(ctx context.Context, w *Wallet) error
	AppendTransaction(ctx context.Context, tx Transaction) error
}

const persistTimeout = 3 * time.Second

// Store holds every user wallet. The store mutex guards the map; each
// wallet carries its own lock so settling one user never blocks another.
type Store struct {
	mu      sync.RWMutex
	wallets map[string]*Wallet
	locks   map[string]*sync.Mutex
	persist Persister
}

func NewStore(persist Persister) *Store {
	return &Store{
		wallets: make(map[string]*Wallet),
		locks:   make(map[string]*sync.Mutex),
		persist: persist,
	}
}

// Register creates a wallet with a starting USD balance and zero crypto.
func (s *Store) Register(ctx context.Context, username string, startingUSD float64) (*Wallet, error) {
	w := &Wallet{
		UserID:   uuid.NewString(),
		Username: username,
		USD:      startingUSD,
		Crypto:   make(map[Currency]*Balance, len(Currencies)),
	}
	for _, c := range Currencies {
		w.Crypto[c] = &Balance{}
	}

	s.mu.Lock()
	s.wallets[w.UserID] = w
	s.locks[w.UserID] = &sync.Mutex{}
	s.mu.Unlock()

	s.saveWallet(ctx, w)
	return snapshot(w), nil
}

// Get returns a copy of the wallet, safe to read without further locking.
func (s *Store) Get(userID string) (*Wallet, error) {
	w, lock, err := s.lookup(userID)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()
	return snapshot(w), nil
}

// Buy converts USD into crypto at the given price and records a buy
// transaction.
func (s *Store) Buy(ctx context.Context, userID string, usd float64, cur Currency, price float64) (cryptoAmount, remainingUSD float64, err error) {
	if usd <= 0 {
		return 0, 0, ErrInvalidAmount
	}
	w, lock, err := s.lookup(userID)
	if err != nil {
		return 0, 0, err
	}

	lock.Lock()
	defer lock.Unlock()

	if w.USD < usd {
		return 0, 0, ErrInsufficientFunds
	}
	cryptoAmount = usd / price
	w.USD -= usd
	w.Crypto[cur].Available += cryptoAmount

	s.saveWallet(ctx, w)
	s.appendTransaction(ctx, Transaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		USDAmount:    usd,
		CryptoAmount: cryptoAmount,
		Currency:     cur,
		Type:         TransactionBuy,
		PriceAtTime:  price,
		CreatedAt:    time.Now(),
	})
	return cryptoAmount, w.USD, nil
}

// LockBet moves amount from the available balance to the locked balance
// and records a bet transaction. Returns the USD value at bet time.
func (s *Store) LockBet(ctx context.Context, userID string, amount float64, cur Currency, price float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	w, lock, err := s.lookup(userID)
	if err != nil {
		return 0, err
	}

	lock.Lock()
	defer lock.Unlock()

	bal := w.Crypto[cur]
	if bal.Available < amount {
		return 0, ErrInsufficientFunds
	}
	bal.Available -= amount
	bal.Locked += amount

	usdValue := amount * price
	s.saveWallet(ctx, w)
	s.appendTransaction(ctx, Transaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		USDAmount:    usdValue,
		CryptoAmount: amount,
		Currency:     cur,
		Type:         TransactionBet,
		PriceAtTime:  price,
		CreatedAt:    time.Now(),
	})
	return usdValue, nil
}

// SettleCashout releases the locked stake, credits the USD payout and
// records a cashout transaction.
func (s *Store) SettleCashout(ctx context.Context, userID string, stake float64, cur Currency, cryptoGain, usdPayout, price float64) error {
	w, lock, err := s.lookup(userID)
	if err != nil {
		return err
	}

	lock.Lock()
	defer lock.Unlock()

	w.Crypto[cur].Locked -= stake
	if w.Crypto[cur].Locked < 0 {
		w.Crypto[cur].Locked = 0
	}
	w.USD += usdPayout

	s.saveWallet(ctx, w)
	s.appendTransaction(ctx, Transaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		USDAmount:    usdPayout,
		CryptoAmount: cryptoGain,
		Currency:     cur,
		Type:         TransactionCashout,
		PriceAtTime:  price,
		CreatedAt:    time.Now(),
	})
	return nil
}

// Forfeit removes the locked stake permanently. The house keeps it; no
// transaction is recorded.
func (s *Store) Forfeit(ctx context.Context, userID string, stake float64, cur Currency) error {
	w, lock, err := s.lookup(userID)
	if err != nil {
		return err
	}

	lock.Lock()
	defer lock.Unlock()

	w.Crypto[cur].Locked -= stake
	if w.Crypto[cur].Locked < 0 {
		w.Crypto[cur].Locked = 0
	}

	s.saveWallet(ctx, w)
	return nil
}

func (s *Store) lookup(userID string) (*Wallet, *sync.Mutex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[userID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	return w, s.locks[userID], nil
}

func (s *Store) saveWallet(ctx context.Context, w *Wallet) {
	if s.persist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := s.persist.SaveWallet(ctx, snapshot(w)); err != nil {
		log.Printf("[WALLET] Save failed for user %s: %v", w.UserID, err)
	}
}

func (s *Store) appendTransaction(ctx context.Context, tx Transaction) {
	if s.persist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := s.persist.AppendTransaction(ctx, tx); err != nil {
		log.Printf("[WALLET] Transaction append failed for user %s: %v", tx.UserID, err)
	}
}

func snapshot(w *Wallet) *Wallet {
	c := &Wallet{
		UserID:   w.UserID,
		Username: w.Username,
		USD:      w.USD,
		Crypto:   make(map[Currency]*Balance, len(w.Crypto)),
	}
	for cur, bal := range w.Crypto {
		b := *bal
		c.Crypto[cur] = &b
	}
	return c
}
