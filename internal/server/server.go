package server

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"crashgame/internal/cache"
	"crashgame/internal/database"
	"crashgame/internal/game"
	"crashgame/internal/price"
	"crashgame/internal/wallet"
)

type FiberServer struct {
	*fiber.App

	db      database.Service
	cache   cache.Service
	wallets *wallet.Store
	prices  *price.Oracle
	engine  *game.Engine
	hub     *game.Hub
}

func New() *FiberServer {
	db := database.New()

	cacheService := cache.New()
	var redisClient *redis.Client
	if cacheService != nil {
		redisClient = cacheService.GetClient()
	} else {
		log.Println("[SERVER] Redis unavailable, round snapshots and shared price cache disabled")
	}

	wallets := wallet.NewStore(database.NewRepository(db))
	prices := price.NewOracle(redisClient, nil)

	hub := game.NewHub()
	engine := game.NewEngine(hub, wallets, prices, redisClient, game.Config{
		Seed: getEnv("CRASH_SEED", game.DEFAULT_SEED),
	})

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "crashgame",
			AppName:       "crashgame",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:      db,
		cache:   cacheService,
		wallets: wallets,
		prices:  prices,
		engine:  engine,
		hub:     hub,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	go hub.Run()
	engine.Start()
	log.Println("[SERVER] Round engine started")

	return server
}

// Shutdown stops the round engine before closing connections so no
// settlement pass is cut off mid-write.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.engine != nil {
		s.engine.Stop()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
