package price

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"crashgame/internal/wallet"
)

func TestOracle_CachesFetchedPrice(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, _ wallet.Currency) (float64, error) {
		calls++
		return 42000.0, nil
	}

	o := NewOracle(nil, fetch)

	for i := 0; i < 5; i++ {
		p, err := o.Price(context.Background(), wallet.CurrencyBTC)
		if err != nil {
			t.Fatalf("Price() error: %v", err)
		}
		if p != 42000.0 {
			t.Fatalf("price = %v, want 42000", p)
		}
	}

	if calls != 1 {
		t.Errorf("upstream fetched %d times within the cache TTL, want 1", calls)
	}
}

func TestOracle_CachePerCurrency(t *testing.T) {
	fetch := func(_ context.Context, cur wallet.Currency) (float64, error) {
		if cur == wallet.CurrencyBTC {
			return 50000.0, nil
		}
		return 3000.0, nil
	}

	o := NewOracle(nil, fetch)

	btc, _ := o.Price(context.Background(), wallet.CurrencyBTC)
	eth, _ := o.Price(context.Background(), wallet.CurrencyETH)

	if btc != 50000.0 || eth != 3000.0 {
		t.Errorf("prices = %v/%v, want 50000/3000", btc, eth)
	}
}

func TestOracle_Unavailable(t *testing.T) {
	fetch := func(_ context.Context, _ wallet.Currency) (float64, error) {
		return 0, errors.New("upstream down")
	}

	o := NewOracle(nil, fetch)

	if _, err := o.Price(context.Background(), wallet.CurrencyBTC); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Price() error = %v, want ErrUnavailable", err)
	}
}

func TestFetchCoinGecko(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "bitcoin" {
			t.Errorf("ids = %q, want bitcoin", got)
		}
		w.Write([]byte(`{"bitcoin":{"usd":61234.5}}`))
	}))
	defer srv.Close()

	orig := coinGeckoBaseURL
	coinGeckoBaseURL = srv.URL
	defer func() { coinGeckoBaseURL = orig }()

	p, err := FetchCoinGecko(context.Background(), wallet.CurrencyBTC)
	if err != nil {
		t.Fatalf("FetchCoinGecko() error: %v", err)
	}
	if p != 61234.5 {
		t.Errorf("price = %v, want 61234.5", p)
	}
}

func TestFetchCoinGecko_BadResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"missing coin", http.StatusOK, `{}`},
		{"zero price", http.StatusOK, `{"bitcoin":{"usd":0}}`},
		{"garbage", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			orig := coinGeckoBaseURL
			coinGeckoBaseURL = srv.URL
			defer func() { coinGeckoBaseURL = orig }()

			if _, err := FetchCoinGecko(context.Background(), wallet.CurrencyBTC); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFetchCoinGecko_UnsupportedCurrency(t *testing.T) {
	if _, err := FetchCoinGecko(context.Background(), wallet.Currency("DOGE")); err == nil {
		t.Error("expected an error for an unsupported currency")
	}
}
