package server

import (
	"log"
	"math"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"crashgame/internal/game"
	"crashgame/internal/wallet"
)

func statusForCode(code string) int {
	switch code {
	case "validation_error", "invalid_input", "insufficient_funds",
		"duplicate_position", "no_active_bet", "already_settled",
		"round_crashed", "round_closed":
		return fiber.StatusBadRequest
	case "not_found":
		return fiber.StatusNotFound
	case "price_unavailable", "timeout", "busy":
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func errorResponse(c *fiber.Ctx, err error) error {
	code := game.Code(err)
	return c.Status(statusForCode(code)).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

func validationError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
		"code":  "validation_error",
	})
}

type registerRequest struct {
	Username   string   `json:"username"`
	USDBalance *float64 `json:"usd_balance"`
}

func (s *FiberServer) registerHandler(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "Invalid request body")
	}
	if req.Username == "" {
		return validationError(c, "Username is required")
	}

	startingUSD := 100.0
	if req.USDBalance != nil {
		startingUSD = *req.USDBalance
	}
	if startingUSD < 0 {
		return validationError(c, "Starting balance cannot be negative")
	}

	w, err := s.wallets.Register(c.Context(), req.Username, startingUSD)
	if err != nil {
		return errorResponse(c, err)
	}

	log.Printf("[USER] Registered %s (%s)", w.Username, w.UserID)

	return c.JSON(fiber.Map{
		"success":     true,
		"user_id":     w.UserID,
		"username":    w.Username,
		"usd_balance": w.USD,
	})
}

type buyRequest struct {
	UserID   string  `json:"user_id"`
	USD      float64 `json:"usd"`
	Currency string  `json:"currency"`
}

func (s *FiberServer) buyHandler(c *fiber.Ctx) error {
	var req buyRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "Invalid request body")
	}

	cur, ok := wallet.ParseCurrency(req.Currency)
	if !ok || req.USD <= 0 {
		return validationError(c, "Invalid amount or currency")
	}

	if _, err := s.wallets.Get(req.UserID); err != nil {
		return errorResponse(c, err)
	}

	unitPrice, err := s.prices.Price(c.Context(), cur)
	if err != nil {
		return errorResponse(c, err)
	}

	cryptoAmount, remaining, err := s.wallets.Buy(c.Context(), req.UserID, req.USD, cur, unitPrice)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"crypto_amount": cryptoAmount,
		"remaining_usd": remaining,
	})
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var req game.BetRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "Invalid request body")
	}
	if req.UserID == "" {
		return validationError(c, "User ID is required")
	}

	resp := s.engine.PlaceBet(req)
	if !resp.Success {
		return c.Status(statusForCode(resp.Code)).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	var req game.CashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, "Invalid request body")
	}
	if req.UserID == "" {
		return validationError(c, "User ID is required")
	}

	resp := s.engine.Cashout(req)
	if !resp.Success {
		return c.Status(statusForCode(resp.Code)).JSON(resp)
	}
	return c.JSON(resp)
}

func (s *FiberServer) getWalletHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return validationError(c, "User ID is required")
	}

	w, err := s.wallets.Get(userID)
	if err != nil {
		return errorResponse(c, err)
	}

	// Display prices are best effort; a stale feed shows zero totals
	// rather than failing the whole wallet read.
	resp := fiber.Map{"usd_balance": round2(w.USD)}
	for _, cur := range wallet.Currencies {
		unitPrice, err := s.prices.Price(c.Context(), cur)
		if err != nil {
			unitPrice = 0
		}
		bal := w.Crypto[cur]
		resp[string(cur)] = fiber.Map{
			"available": bal.Available,
			"locked":    bal.Locked,
			"total_usd": round2((bal.Available + bal.Locked) * unitPrice),
		}
	}

	return c.JSON(resp)
}

func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	state := s.engine.GetCurrentRound()
	if state == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No active game round",
		})
	}
	return c.JSON(state)
}

type wsClientMessage struct {
	Type         string  `json:"type"`
	CryptoAmount float64 `json:"crypto_amount"`
	Currency     string  `json:"currency"`
}

// gameWebSocketHandler serves the realtime connection. Bets and cashouts
// received here run through the same engine calls as the HTTP handlers.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	userID := conn.Query("user_id", "anonymous")

	s.hub.RegisterClient(conn, userID)
	defer s.hub.UnregisterClient(conn)

	if state := s.engine.GetCurrentRound(); state != nil {
		conn.WriteJSON(game.WSMessage{Type: "initial_state", Data: state})
	}

	for {
		var msg wsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("[WS] Read error for user %s: %v", userID, err)
			return
		}

		switch msg.Type {
		case "place_bet":
			resp := s.engine.PlaceBet(game.BetRequest{
				UserID:       userID,
				CryptoAmount: msg.CryptoAmount,
				Currency:     msg.Currency,
			})
			conn.WriteJSON(game.WSMessage{Type: "bet_result", Data: resp})

		case "cashout":
			resp := s.engine.Cashout(game.CashoutRequest{UserID: userID})
			conn.WriteJSON(game.WSMessage{Type: "cashout_result", Data: resp})

		case "ping":
			conn.WriteJSON(game.WSMessage{Type: "pong"})
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
