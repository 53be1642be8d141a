package wallet

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
)

type recordingPersister struct {
	mu      sync.Mutex
	txs     []Transaction
	saves   int
	failAll bool
}

func (r *recordingPersister) SaveWallet(_ context.Context, _ *Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("storage down")
	}
	r.saves++
	return nil
}

func (r *recordingPersister) AppendTransaction(_ context.Context, tx Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("storage down")
	}
	r.txs = append(r.txs, tx)
	return nil
}

const btcPrice = 50000.0

func newFundedStore(t *testing.T) (*Store, string) {
	t.Helper()
	s := NewStore(nil)
	w, err := s.Register(context.Background(), "alice", 1000)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return s, w.UserID
}

func TestRegister(t *testing.T) {
	s := NewStore(nil)
	w, err := s.Register(context.Background(), "bob", 100)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if w.UserID == "" {
		t.Error("expected a generated user id")
	}
	if w.USD != 100 {
		t.Errorf("usd = %v, want 100", w.USD)
	}
	for _, c := range Currencies {
		bal := w.Crypto[c]
		if bal == nil || bal.Available != 0 || bal.Locked != 0 {
			t.Errorf("expected zero %s balance at registration", c)
		}
	}
}

func TestGet_UnknownUser(t *testing.T) {
	s := NewStore(nil)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestBuy(t *testing.T) {
	s, userID := newFundedStore(t)

	amount, remaining, err := s.Buy(context.Background(), userID, 500, CurrencyBTC, btcPrice)
	if err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	if math.Abs(amount-0.01) > 1e-12 {
		t.Errorf("crypto amount = %v, want 0.01", amount)
	}
	if remaining != 500 {
		t.Errorf("remaining usd = %v, want 500", remaining)
	}

	w, _ := s.Get(userID)
	if math.Abs(w.Crypto[CurrencyBTC].Available-0.01) > 1e-12 {
		t.Errorf("available = %v, want 0.01", w.Crypto[CurrencyBTC].Available)
	}
}

func TestBuy_Rejections(t *testing.T) {
	s, userID := newFundedStore(t)

	tests := []struct {
		name    string
		userID  string
		usd     float64
		wantErr error
	}{
		{"non-positive amount", userID, 0, ErrInvalidAmount},
		{"negative amount", userID, -5, ErrInvalidAmount},
		{"unknown user", "ghost", 10, ErrNotFound},
		{"insufficient usd", userID, 5000, ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := s.Buy(context.Background(), tt.userID, tt.usd, CurrencyBTC, btcPrice); !errors.Is(err, tt.wantErr) {
				t.Errorf("Buy() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Nothing mutated by the rejections above.
	w, _ := s.Get(userID)
	if w.USD != 1000 || w.Crypto[CurrencyBTC].Available != 0 {
		t.Error("rejected buys must not mutate the wallet")
	}
}

func TestLockBet(t *testing.T) {
	s, userID := newFundedStore(t)
	s.Buy(context.Background(), userID, 500, CurrencyBTC, btcPrice)

	usdValue, err := s.LockBet(context.Background(), userID, 0.01, CurrencyBTC, btcPrice)
	if err != nil {
		t.Fatalf("LockBet() error: %v", err)
	}
	if math.Abs(usdValue-500) > 1e-9 {
		t.Errorf("usd value = %v, want 500", usdValue)
	}

	w, _ := s.Get(userID)
	bal := w.Crypto[CurrencyBTC]
	if math.Abs(bal.Available) > 1e-12 || math.Abs(bal.Locked-0.01) > 1e-12 {
		t.Errorf("balance = %+v, want all funds locked", *bal)
	}
}

func TestLockBet_Insufficient(t *testing.T) {
	s, userID := newFundedStore(t)

	if _, err := s.LockBet(context.Background(), userID, 0.01, CurrencyBTC, btcPrice); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("LockBet() error = %v, want ErrInsufficientFunds", err)
	}
}

func TestSettleCashout(t *testing.T) {
	s, userID := newFundedStore(t)
	s.Buy(context.Background(), userID, 500, CurrencyBTC, btcPrice)
	s.LockBet(context.Background(), userID, 0.01, CurrencyBTC, btcPrice)

	err := s.SettleCashout(context.Background(), userID, 0.01, CurrencyBTC, 0.02, 1000, btcPrice)
	if err != nil {
		t.Fatalf("SettleCashout() error: %v", err)
	}

	w, _ := s.Get(userID)
	if math.Abs(w.Crypto[CurrencyBTC].Locked) > 1e-12 {
		t.Errorf("locked = %v, want 0", w.Crypto[CurrencyBTC].Locked)
	}
	if math.Abs(w.USD-1500) > 1e-9 {
		t.Errorf("usd = %v, want 1500", w.USD)
	}
}

func TestForfeit(t *testing.T) {
	s, userID := newFundedStore(t)
	s.Buy(context.Background(), userID, 500, CurrencyBTC, btcPrice)
	s.LockBet(context.Background(), userID, 0.01, CurrencyBTC, btcPrice)

	if err := s.Forfeit(context.Background(), userID, 0.01, CurrencyBTC); err != nil {
		t.Fatalf("Forfeit() error: %v", err)
	}

	w, _ := s.Get(userID)
	bal := w.Crypto[CurrencyBTC]
	if math.Abs(bal.Locked) > 1e-12 {
		t.Errorf("locked = %v, want 0 after forfeit", bal.Locked)
	}
	if math.Abs(bal.Available) > 1e-12 {
		t.Errorf("available = %v, forfeiture must not refund", bal.Available)
	}
	if w.USD != 500 {
		t.Errorf("usd = %v, forfeiture must not pay out", w.USD)
	}
}

func TestNonNegativityInvariant(t *testing.T) {
	s, userID := newFundedStore(t)
	s.Buy(context.Background(), userID, 500, CurrencyBTC, btcPrice)
	s.LockBet(context.Background(), userID, 0.01, CurrencyBTC, btcPrice)

	// A double forfeit clamps at zero instead of going negative.
	s.Forfeit(context.Background(), userID, 0.01, CurrencyBTC)
	s.Forfeit(context.Background(), userID, 0.01, CurrencyBTC)

	w, _ := s.Get(userID)
	for _, c := range Currencies {
		if w.Crypto[c].Available < 0 || w.Crypto[c].Locked < 0 {
			t.Fatalf("%s balance went negative: %+v", c, *w.Crypto[c])
		}
	}
	if w.USD < 0 {
		t.Fatalf("usd balance went negative: %v", w.USD)
	}
}

func TestTransactionRecording(t *testing.T) {
	persist := &recordingPersister{}
	s := NewStore(persist)
	w, _ := s.Register(context.Background(), "carol", 1000)

	s.Buy(context.Background(), w.UserID, 500, CurrencyBTC, btcPrice)
	s.LockBet(context.Background(), w.UserID, 0.005, CurrencyBTC, btcPrice)
	s.SettleCashout(context.Background(), w.UserID, 0.005, CurrencyBTC, 0.01, 500, btcPrice)

	want := []TransactionType{TransactionBuy, TransactionBet, TransactionCashout}
	if len(persist.txs) != len(want) {
		t.Fatalf("recorded %d transactions, want %d", len(persist.txs), len(want))
	}
	for i, tt := range want {
		tx := persist.txs[i]
		if tx.Type != tt {
			t.Errorf("tx[%d].Type = %v, want %v", i, tx.Type, tt)
		}
		if tx.ID == "" || tx.UserID != w.UserID || tx.CreatedAt.IsZero() {
			t.Errorf("tx[%d] missing identity fields: %+v", i, tx)
		}
		if tx.PriceAtTime != btcPrice {
			t.Errorf("tx[%d].PriceAtTime = %v, want %v", i, tx.PriceAtTime, btcPrice)
		}
	}
}

func TestPersistenceFailureDoesNotRollBack(t *testing.T) {
	persist := &recordingPersister{failAll: true}
	s := NewStore(persist)
	w, _ := s.Register(context.Background(), "dave", 1000)

	if _, _, err := s.Buy(context.Background(), w.UserID, 500, CurrencyBTC, btcPrice); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}

	got, _ := s.Get(w.UserID)
	if got.USD != 500 {
		t.Errorf("usd = %v, want 500: failed saves are logged, not rolled back", got.USD)
	}
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want Currency
		ok   bool
	}{
		{"BTC", CurrencyBTC, true},
		{"ETH", CurrencyETH, true},
		{"DOGE", "", false},
		{"btc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseCurrency(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCurrency(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
