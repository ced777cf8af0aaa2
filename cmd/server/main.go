package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/petitrideau/theatre-ticket-reservation/internal/config"
	"github.com/petitrideau/theatre-ticket-reservation/internal/database"
	"github.com/petitrideau/theatre-ticket-reservation/internal/handler"
	"github.com/petitrideau/theatre-ticket-reservation/internal/middleware"
	"github.com/petitrideau/theatre-ticket-reservation/internal/queue"
	"github.com/petitrideau/theatre-ticket-reservation/internal/repository"
	"github.com/petitrideau/theatre-ticket-reservation/internal/router"
	"github.com/petitrideau/theatre-ticket-reservation/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading environment")
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	spectacles := repository.NewSpectacleRepo(db)
	venues := repository.NewVenueRepo(db)
	sessions := repository.NewSessionRepo(db)
	bookings := repository.NewBookingRepo(db)
	tickets := repository.NewTicketRepo(db)
	queries := repository.NewBookingQueryRepo(db)

	// Services.
	issuer := service.NewTicketIssuer(tickets)
	engine := service.NewReservationEngine(sessions, bookings, issuer, spectacles, venues, queue.PublishBookingConfirmed)

	// Handlers.
	authH := handler.NewAuthHandler(cfg, users, tokens)
	bookingH := handler.NewBookingHandler(engine, issuer, queries, users)
	paymentH := handler.NewPaymentHandler(engine)
	exportH := handler.NewExportHandler(queries)
	adminH := handler.NewAdminHandler(spectacles, venues, sessions, bookings, tickets, queries)
	publicH := handler.NewPublicHandler(spectacles, sessions, venues)

	e := echo.New()
	e.HideBanner = true

	// Redis is optional: without it the limiter and cache become no-ops.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting and caching disabled")
	}
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	var cache echo.MiddlewareFunc
	if cacheCfg := config.LoadCacheConfig(); cacheCfg.Enabled && rdb != nil {
		cache = middleware.NewRedisCache(cacheCfg, rdb)
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, publicH, cache)
	router.RegisterCustomer(e, bookingH, exportH, cfg.JWTSecret)
	router.RegisterPayment(e, paymentH, cfg.JWTSecret)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	// Background workers: the confirmation log consumer and the
	// payment-window sweeper.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()
	sweeper := service.NewSweeper(engine, cfg.PaymentWindow, cfg.SweepInterval)
	go sweeper.Run(context.Background())

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
