package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/adapters/http"
	"github.com/dumu-tech/restaurant-ops/internal/adapters/memory"
	"github.com/dumu-tech/restaurant-ops/internal/adapters/payment"
	"github.com/dumu-tech/restaurant-ops/internal/adapters/postgres"
	redisRepo "github.com/dumu-tech/restaurant-ops/internal/adapters/redis"
	"github.com/dumu-tech/restaurant-ops/internal/config"
	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/events"
	"github.com/dumu-tech/restaurant-ops/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	loc, _ := cfg.Location()
	pricing, _ := cfg.Pricing()
	tiers, _ := cfg.WasteTiers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Storage
	var (
		store     core.Store
		sequencer core.Sequencer
		tokens    core.TableTokenStore
		checks    = map[string]func(context.Context) error{}
	)
	switch cfg.Store {
	case "memory":
		mem := memory.NewSeeded()
		store, sequencer, tokens = mem, memory.NewSequencer(), memory.NewTableTokens()
		zl.Warn("using in-memory store with demo data")
	case "postgres":
		// pgxpool backs the health check; GORM runs the queries
		dbpool, err := pgxpool.New(ctx, cfg.DBURL)
		if err != nil {
			zl.Fatal("failed to create connection pool", zap.Error(err))
		}
		defer dbpool.Close()
		if err := dbpool.Ping(ctx); err != nil {
			zl.Fatal("failed to connect to PostgreSQL", zap.Error(err))
		}
		checks["postgres"] = dbpool.Ping
		zl.Info("PostgreSQL connection established")

		pg, err := postgres.NewStore(cfg.DBURL, loc)
		if err != nil {
			zl.Fatal("failed to initialize postgres store", zap.Error(err))
		}
		defer pg.Close()
		store, sequencer, tokens = pg, postgres.NewSequencer(pg), memory.NewTableTokens()
	default:
		zl.Fatal("unknown STORE", zap.String("store", cfg.Store))
	}

	// Redis holds sequence counters and table tokens when reachable
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zl.Fatal("failed to parse Redis URL", zap.Error(err))
	}
	if cfg.RedisPassword != "" {
		redisOpts.Password = cfg.RedisPassword
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	redisRepository := redisRepo.NewRepository(rdb)
	if err := redisRepository.Ping(ctx); err != nil {
		zl.Warn("redis unavailable, falling back to local sequences and table tokens", zap.Error(err))
	} else {
		sequencer, tokens = redisRepository, redisRepository
		checks["redis"] = redisRepository.Ping
		zl.Info("Redis connection established")
	}

	// Services
	bus := events.NewEventBus(zl, store.Alerts())
	resolver := service.NewRecipeResolver(store.Catalog())
	ledger := service.NewInventoryLedger(store, bus, zl)
	catalog := service.NewCatalogService(store, resolver, bus, zl)
	orders := service.NewOrderService(store, bus, sequencer, tokens, pricing, cfg.TableTokenTTL, loc, zl)
	processors := payment.FromConfig(cfg)
	payments := service.NewPaymentService(store, orders, processors, sequencer, bus, loc,
		cfg.PaymentTimeout, cfg.DuplicatePaymentWindow, zl)
	deduction := service.NewDeductionCoordinator(store, ledger, resolver, zl)
	profit := service.NewProfitAggregator(store, resolver, loc, cfg.RecomputeWorkers, zl)
	waste := service.NewWasteLedger(store, ledger, bus, tiers, loc, zl)
	reports := service.NewProfitReportExporter(store, profit, loc)

	// cost prices refresh before deduction and profit read them
	catalog.Register(bus)
	deduction.Register(bus)
	profit.Register(bus)

	auth := service.NewAuthenticator(cfg.JWTSecret, 12*time.Hour)
	httpHandler := http.NewHandler(orders, payments, waste, ledger, catalog, deduction, processors, zl)
	dashboardHandler := http.NewDashboardHandler(profit, reports, store, bus, loc, zl)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Restaurant Ops API",
		ServerHeader: "Fiber",
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Health check route
	app.Get("/health", func(c *fiber.Ctx) error {
		status := fiber.Map{"status": "ok", "project": "restaurant-ops"}
		for name, check := range checks {
			cctx, ccancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			err := check(cctx)
			ccancel()
			if err != nil {
				status["status"] = "degraded"
				status[name] = err.Error()
				continue
			}
			status[name] = "ok"
		}
		if status["status"] != "ok" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(status)
		}
		return c.JSON(status)
	})

	http.RegisterRoutes(app, httpHandler, dashboardHandler, auth)

	methods := make([]string, 0, len(processors))
	for _, p := range processors {
		methods = append(methods, string(p.Method()))
	}
	zl.Info("routes registered", zap.Strings("payment_methods", methods), zap.String("store", cfg.Store))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		zl.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Error("shutdown failed", zap.Error(err))
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.AppPort)
	zl.Info("server starting", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zl.Fatal("failed to start server", zap.Error(err))
	}
}
