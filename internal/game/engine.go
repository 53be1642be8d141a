package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"crashgame/internal/wallet"
)

const (
	TICK_INTERVAL   = 100 * time.Millisecond
	PRICE_TIMEOUT   = 2 * time.Second
	REQUEST_TIMEOUT = 5 * time.Second
	DEFAULT_SEED    = "crash-server-seed"

	REDIS_KEY_ROUND_PREFIX = "crash:round:"
)

// PriceSource converts crypto amounts to USD at settlement time.
type PriceSource interface {
	Price(ctx context.Context, cur wallet.Currency) (float64, error)
}

// Broadcaster pushes events to every connected client.
type Broadcaster interface {
	Broadcast(message interface{})
}

type Config struct {
	Seed          string
	MaxMultiplier int
	TickInterval  time.Duration
}

func (c *Config) applyDefaults() {
	if c.Seed == "" {
		c.Seed = DEFAULT_SEED
	}
	if c.MaxMultiplier <= 0 {
		c.MaxMultiplier = DEFAULT_MAX_MULTIPLIER
	}
	if c.TickInterval <= 0 {
		c.TickInterval = TICK_INTERVAL
	}
}

// Engine owns the single global round. One goroutine drives the tick loop
// and drains the bet and cashout channels, so every mutation of round
// state is serialized against the crash check by construction. Exactly
// one RUNNING round exists at any time while the engine is started.
type Engine struct {
	hub         Broadcaster
	wallets     *wallet.Store
	prices      PriceSource
	redisClient *redis.Client
	ctx         context.Context
	cfg         Config

	stateMutex sync.RWMutex
	current    *Round

	sequence       int
	betChannel     chan BetRequest
	cashoutChannel chan CashoutRequest
	stopChan       chan struct{}
	doneChan       chan struct{}
}

func NewEngine(hub Broadcaster, wallets *wallet.Store, prices PriceSource, redisClient *redis.Client, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		hub:            hub,
		wallets:        wallets,
		prices:         prices,
		redisClient:    redisClient,
		ctx:            context.Background(),
		cfg:            cfg,
		betChannel:     make(chan BetRequest, 1000),
		cashoutChannel: make(chan CashoutRequest, 1000),
		stopChan:       make(chan struct{}),
		doneChan:       make(chan struct{}),
	}
}

func (e *Engine) Start() {
	go e.gameLoop()
}

// Stop halts the tick loop. A round in flight is abandoned; a fresh round
// begins on the next Start of a new engine.
func (e *Engine) Stop() {
	close(e.stopChan)
	<-e.doneChan
}

// GetCurrentRound returns a snapshot of the active round, or nil before
// the first round begins.
func (e *Engine) GetCurrentRound() *Round {
	e.stateMutex.RLock()
	defer e.stateMutex.RUnlock()
	if e.current == nil {
		return nil
	}
	roundCopy := *e.current
	roundCopy.positions = nil
	return &roundCopy
}

// PlaceBet funnels a bet request into the engine goroutine and waits for
// the reply.
func (e *Engine) PlaceBet(req BetRequest) BetResponse {
	respChan := make(chan BetResponse, 1)
	req.ResponseChan = respChan

	select {
	case e.betChannel <- req:
		select {
		case resp := <-respChan:
			return resp
		case <-time.After(REQUEST_TIMEOUT):
			return BetResponse{Success: false, Code: "timeout", Message: "Bet timed out"}
		}
	default:
		return BetResponse{Success: false, Code: "busy", Message: "Bet queue full"}
	}
}

// Cashout funnels a cashout request into the engine goroutine and waits
// for the reply.
func (e *Engine) Cashout(req CashoutRequest) CashoutResponse {
	respChan := make(chan CashoutResponse, 1)
	req.ResponseChan = respChan

	select {
	case e.cashoutChannel <- req:
		select {
		case resp := <-respChan:
			return resp
		case <-time.After(REQUEST_TIMEOUT):
			return CashoutResponse{Success: false, Code: "timeout", Message: "Cashout timed out"}
		}
	default:
		return CashoutResponse{Success: false, Code: "busy", Message: "Cashout queue full"}
	}
}

func (e *Engine) gameLoop() {
	defer close(e.doneChan)
	for {
		select {
		case <-e.stopChan:
			log.Println("[GAME] Engine stopped")
			return
		default:
			if !e.runRound() {
				return
			}
		}
	}
}

// runRound drives one full round and returns false when the engine was
// stopped mid-round.
func (e *Engine) runRound() bool {
	round := e.beginRound()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if e.tick() {
				log.Printf("=== ROUND %s ENDED at %.2fx ===", round.RoundID, round.CrashPoint)
				return true
			}
		case req := <-e.betChannel:
			e.processBet(req)
		case req := <-e.cashoutChannel:
			e.processCashout(req)
		case <-e.stopChan:
			log.Println("[GAME] Engine stopped mid-round")
			return false
		}
	}
}

// beginRound assigns the next sequence number, fixes the crash point and
// publishes the round start. The crash point is never broadcast before
// the crash itself.
func (e *Engine) beginRound() *Round {
	e.sequence++
	crashPoint := CrashPoint(e.cfg.Seed, e.sequence, e.cfg.MaxMultiplier)

	round := &Round{
		RoundID:    fmt.Sprintf("R%d-%d", time.Now().Unix(), e.sequence),
		Sequence:   e.sequence,
		CrashPoint: crashPoint,
		Multiplier: MIN_MULTIPLIER,
		Status:     StatusRunning,
		StartTime:  time.Now(),
		positions:  make(map[string]*Position),
	}

	e.stateMutex.Lock()
	e.current = round
	e.stateMutex.Unlock()

	e.storeRound(round)

	log.Printf("=== ROUND %s === crash point %.2fx (hidden)", round.RoundID, crashPoint)

	e.hub.Broadcast(WSMessage{Type: "round_started", Data: RoundStartedEvent{
		RoundID:  round.RoundID,
		Sequence: round.Sequence,
	}})
	return round
}

// tick advances the multiplier once and returns true when the round
// crashed and was settled.
func (e *Engine) tick() bool {
	round := e.current
	elapsed := time.Since(round.StartTime).Seconds()
	multiplier := MultiplierAt(elapsed)

	if multiplier >= round.CrashPoint {
		e.crashRound(round)
		return true
	}

	e.stateMutex.Lock()
	round.Multiplier = multiplier
	e.stateMutex.Unlock()

	e.hub.Broadcast(WSMessage{Type: "multiplier_update", Data: MultiplierUpdateEvent{
		Multiplier: multiplier,
	}})
	return false
}

// crashRound transitions the round to CRASHED and forfeits every position
// that did not cash out. No cashout can be accepted after this point: the
// transition happens on the same goroutine that evaluates cashouts.
func (e *Engine) crashRound(round *Round) {
	e.stateMutex.Lock()
	round.Multiplier = round.CrashPoint
	round.Status = StatusCrashed
	round.CrashTime = time.Now()
	e.stateMutex.Unlock()

	e.hub.Broadcast(WSMessage{Type: "round_crashed", Data: RoundCrashedEvent{
		RoundID:    round.RoundID,
		CrashPoint: round.CrashPoint,
	}})

	e.settleForfeits(round)
	e.storeRound(round)
}

// settleForfeits removes the locked stake of every unresolved position.
// One user's failure is logged and never blocks the rest.
func (e *Engine) settleForfeits(round *Round) {
	forfeited := 0
	for userID, pos := range round.positions {
		if pos.CashedOut {
			continue
		}
		if err := e.wallets.Forfeit(e.ctx, userID, pos.CryptoAmount, pos.Currency); err != nil {
			log.Printf("[GAME] Forfeit failed for user %s: %v", userID, err)
			continue
		}
		forfeited++
	}
	log.Printf("[GAME] Round %s crashed at %.2fx, %d position(s) forfeited", round.RoundID, round.CrashPoint, forfeited)
}

// processBet validates and commits a bet against the active round. Runs
// on the engine goroutine.
func (e *Engine) processBet(req BetRequest) {
	resp := BetResponse{}
	defer func() {
		if req.ResponseChan != nil {
			req.ResponseChan <- resp
		}
	}()

	cur, ok := wallet.ParseCurrency(req.Currency)
	if req.CryptoAmount <= 0 || !ok {
		resp.Code, resp.Message = Code(ErrInvalidInput), ErrInvalidInput.Error()
		return
	}

	round := e.current
	if round == nil || round.Status != StatusRunning {
		resp.Code, resp.Message = Code(ErrRoundClosed), ErrRoundClosed.Error()
		return
	}
	if _, exists := round.positions[req.UserID]; exists {
		resp.Code, resp.Message = Code(ErrDuplicatePosition), ErrDuplicatePosition.Error()
		return
	}

	price, err := e.fetchPrice(cur)
	if err != nil {
		resp.Code, resp.Message = Code(err), err.Error()
		return
	}

	usdValue, err := e.wallets.LockBet(e.ctx, req.UserID, req.CryptoAmount, cur, price)
	if err != nil {
		resp.Code, resp.Message = Code(err), err.Error()
		return
	}

	round.positions[req.UserID] = &Position{
		UserID:        req.UserID,
		USDValueAtBet: usdValue,
		CryptoAmount:  req.CryptoAmount,
		Currency:      cur,
		PlacedAt:      time.Now(),
	}

	resp.Success = true
	resp.CryptoAmount = req.CryptoAmount
	resp.Message = "Bet placed"

	e.hub.Broadcast(WSMessage{Type: "bet_placed", Data: BetPlacedEvent{
		UserID:       req.UserID,
		CryptoAmount: req.CryptoAmount,
		Currency:     string(cur),
	}})

	log.Printf("[BET] User %s bet %.8f %s ($%.2f)", req.UserID, req.CryptoAmount, cur, usdValue)
}

// processCashout settles a position at the current multiplier. Runs on
// the engine goroutine, so the (multiplier, crashPoint, cashedOut)
// snapshot it evaluates is atomic with respect to the crash check. A
// request racing the crash loses: once the tick observed the crash, every
// later cashout is rejected regardless of when the client sent it.
func (e *Engine) processCashout(req CashoutRequest) {
	resp := CashoutResponse{}
	defer func() {
		if req.ResponseChan != nil {
			req.ResponseChan <- resp
		}
	}()

	round := e.current
	if round == nil {
		resp.Code, resp.Message = Code(ErrNoActiveBet), ErrNoActiveBet.Error()
		return
	}
	pos, ok := round.positions[req.UserID]
	if !ok {
		resp.Code, resp.Message = Code(ErrNoActiveBet), ErrNoActiveBet.Error()
		return
	}
	if pos.CashedOut {
		resp.Code, resp.Message = Code(ErrAlreadySettled), ErrAlreadySettled.Error()
		return
	}
	if round.Status == StatusCrashed || round.Multiplier >= round.CrashPoint {
		resp.Code, resp.Message = Code(ErrRoundCrashed), ErrRoundCrashed.Error()
		return
	}

	multiplier := round.Multiplier

	// Price is fetched after the round-state check succeeds and before
	// the balance mutation commits.
	price, err := e.fetchPrice(pos.Currency)
	if err != nil {
		resp.Code, resp.Message = Code(err), err.Error()
		return
	}

	cryptoGain := pos.CryptoAmount * multiplier
	usdPayout := cryptoGain * price
	profit := usdPayout - pos.USDValueAtBet

	if err := e.wallets.SettleCashout(e.ctx, req.UserID, pos.CryptoAmount, pos.Currency, cryptoGain, usdPayout, price); err != nil {
		resp.Code, resp.Message = Code(err), err.Error()
		return
	}

	pos.CashedOut = true
	pos.CashoutMultiplier = multiplier

	resp.Success = true
	resp.Message = fmt.Sprintf("Cashed out at %.2fx", multiplier)
	resp.USDPayout = round2(usdPayout)
	resp.Profit = round2(profit)
	resp.OriginalBet = round2(pos.USDValueAtBet)
	resp.CashoutMultiplier = multiplier
	resp.CrashPoint = round.CrashPoint

	e.hub.Broadcast(WSMessage{Type: "cashout", Data: CashoutEvent{
		UserID:     req.UserID,
		Multiplier: multiplier,
		USDPayout:  resp.USDPayout,
	}})

	log.Printf("[CASHOUT] User %s cashed out at %.2fx (payout $%.2f)", req.UserID, multiplier, usdPayout)
}

func (e *Engine) fetchPrice(cur wallet.Currency) (float64, error) {
	ctx, cancel := context.WithTimeout(e.ctx, PRICE_TIMEOUT)
	defer cancel()
	return e.prices.Price(ctx, cur)
}

// storeRound snapshots the round to Redis for history and reconnect
// state. Best effort.
func (e *Engine) storeRound(round *Round) {
	if e.redisClient == nil {
		return
	}
	data, err := json.Marshal(round)
	if err != nil {
		return
	}
	key := REDIS_KEY_ROUND_PREFIX + round.RoundID
	if err := e.redisClient.Set(e.ctx, key, data, time.Hour).Err(); err != nil {
		log.Printf("[GAME] Round snapshot failed for %s: %v", round.RoundID, err)
	}
}
