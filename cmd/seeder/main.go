package main

import (
	"context"
	"log"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/adapters/postgres"
	"github.com/dumu-tech/restaurant-ops/internal/config"
	"github.com/dumu-tech/restaurant-ops/internal/seed"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	loc, _ := cfg.Location()
	store, err := postgres.NewStore(cfg.DBURL, loc)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ds := seed.Demo()
	if err := store.Seed(ctx, ds); err != nil {
		logger.Fatal("failed to seed demo data", zap.Error(err))
	}

	logger.Info("seeding complete",
		zap.String("restaurant_id", seed.RestaurantID),
		zap.String("branch_id", seed.BranchID),
		zap.Int("menu_items", len(ds.MenuItems)),
		zap.Int("stock_items", len(ds.StockItems)))
}
