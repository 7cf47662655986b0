package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"

	"github.com/zmbpark/ticketing/internal/config"
	"github.com/zmbpark/ticketing/internal/database"
	"github.com/zmbpark/ticketing/internal/handler"
	"github.com/zmbpark/ticketing/internal/middleware"
	"github.com/zmbpark/ticketing/internal/payment"
	"github.com/zmbpark/ticketing/internal/queue"
	"github.com/zmbpark/ticketing/internal/repository"
	"github.com/zmbpark/ticketing/internal/router"
)

func main() {
	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()
	cfg := config.Load()

	// Monetary fields serialize as JSON numbers, matching the API contract.
	decimal.MarshalJSONWithoutQuotes = true

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and response cache disabled")
	}

	users := repository.NewUserRepo(db)
	products := repository.NewProductRepo(db)
	orders := repository.NewOrderRepo(db)

	provider := payment.NewStripeProvider(
		cfg.StripeSecretKey, cfg.StripeWebhookSecret,
		cfg.StripeSuccessURL, cfg.StripeCancelURL, cfg.StripeCurrency)

	authHandler := handler.NewAuthHandler(cfg, users)
	productHandler := handler.NewProductHandler(products)
	orderHandler := handler.NewOrderHandler(cfg, orders, products, users, provider)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, productHandler, cache)
	router.RegisterOrders(e, orderHandler, cfg.JWTSecret)

	// Ticket issuance consumer runs for the life of the process and
	// reconnects on broker failures.
	go func() {
		if err := queue.StartOrderConsumer(); err != nil {
			log.Printf("order consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
