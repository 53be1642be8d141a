package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"crashgame/internal/wallet"
)

const (
	CACHE_TTL       = 10 * time.Second
	FETCH_TIMEOUT   = 5 * time.Second
	REDIS_KEY_PRICE = "crash:price:"
)

// ErrUnavailable is returned when no price can be fetched. Callers may
// retry; nothing has been mutated.
var ErrUnavailable = errors.New("price unavailable")

var coinIDs = map[wallet.Currency]string{
	wallet.CurrencyBTC: "bitcoin",
	wallet.CurrencyETH: "ethereum",
}

// Fetcher retrieves the current USD price per unit from an upstream feed.
type Fetcher func(ctx context.Context, cur wallet.Currency) (float64, error)

var coinGeckoBaseURL = "https://api.coingecko.com/api/v3/simple/price"

type cached struct {
	price float64
	at    time.Time
}

// Oracle serves USD unit prices with a short cache to bound the upstream
// call rate. Redis is used when available, with a process-local fallback.
type Oracle struct {
	redisClient *redis.Client
	fetch       Fetcher

	mu    sync.Mutex
	local map[wallet.Currency]cached
}

func NewOracle(redisClient *redis.Client, fetch Fetcher) *Oracle {
	if fetch == nil {
		fetch = FetchCoinGecko
	}
	return &Oracle{
		redisClient: redisClient,
		fetch:       fetch,
		local:       make(map[wallet.Currency]cached),
	}
}

// Price returns the current USD price per unit of cur.
func (o *Oracle) Price(ctx context.Context, cur wallet.Currency) (float64, error) {
	if p, ok := o.cachedPrice(ctx, cur); ok {
		return p, nil
	}

	ctx, cancel := context.WithTimeout(ctx, FETCH_TIMEOUT)
	defer cancel()

	p, err := o.fetch(ctx, cur)
	if err != nil {
		log.Printf("[PRICE] Fetch failed for %s: %v", cur, err)
		return 0, fmt.Errorf("%w: %s", ErrUnavailable, cur)
	}

	o.storePrice(ctx, cur, p)
	return p, nil
}

func (o *Oracle) cachedPrice(ctx context.Context, cur wallet.Currency) (float64, bool) {
	if o.redisClient != nil {
		p, err := o.redisClient.Get(ctx, REDIS_KEY_PRICE+string(cur)).Float64()
		if err == nil {
			return p, true
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.local[cur]
	if ok && time.Since(c.at) < CACHE_TTL {
		return c.price, true
	}
	return 0, false
}

func (o *Oracle) storePrice(ctx context.Context, cur wallet.Currency, p float64) {
	if o.redisClient != nil {
		if err := o.redisClient.Set(ctx, REDIS_KEY_PRICE+string(cur), p, CACHE_TTL).Err(); err != nil {
			log.Printf("[PRICE] Cache write failed for %s: %v", cur, err)
		}
	}

	o.mu.Lock()
	o.local[cur] = cached{price: p, at: time.Now()}
	o.mu.Unlock()
}

// FetchCoinGecko queries the public CoinGecko simple price endpoint.
func FetchCoinGecko(ctx context.Context, cur wallet.Currency) (float64, error) {
	coinID, ok := coinIDs[cur]
	if !ok {
		return 0, fmt.Errorf("unsupported currency: %s", cur)
	}

	q := url.Values{}
	q.Set("ids", coinID)
	q.Set("vs_currencies", "usd")
	reqURL := coinGeckoBaseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price API returned %s", resp.Status)
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}

	p, ok := payload[coinID]["usd"]
	if !ok || p <= 0 {
		return 0, errors.New("price not present in API response")
	}
	return p, nil
}
