package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/adapters/postgres"
	"github.com/dumu-tech/restaurant-ops/internal/config"
	"github.com/dumu-tech/restaurant-ops/internal/service"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

func main() {
	restaurantID := flag.String("restaurant", "", "restaurant id (required)")
	branchID := flag.String("branch", "", "branch id; empty rebuilds every branch and the restaurant-wide rows")
	from := flag.String("from", "", "first day, YYYY-MM-DD (default: 7 days before -to)")
	to := flag.String("to", "", "last day, YYYY-MM-DD (default: today)")
	workers := flag.Int("workers", 0, "parallel days (default: RECOMPUTE_WORKERS)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if *restaurantID == "" {
		logger.Fatal("-restaurant is required")
	}

	loc, _ := cfg.Location()
	last := time.Now().In(loc)
	if *to != "" {
		if last, err = time.ParseInLocation(dateLayout, *to, loc); err != nil {
			logger.Fatal("invalid -to", zap.Error(err))
		}
	}
	first := last.AddDate(0, 0, -7)
	if *from != "" {
		if first, err = time.ParseInLocation(dateLayout, *from, loc); err != nil {
			logger.Fatal("invalid -from", zap.Error(err))
		}
	}
	if *workers <= 0 {
		*workers = cfg.RecomputeWorkers
	}

	store, err := postgres.NewStore(cfg.DBURL, loc)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	profit := service.NewProfitAggregator(store, service.NewRecipeResolver(store.Catalog()), loc, *workers, logger)
	summary, err := profit.RebuildRange(context.Background(), *restaurantID, *branchID, first, last)
	if err != nil {
		logger.Fatal("rebuild failed", zap.Error(err))
	}

	logger.Info("rebuild complete",
		zap.String("restaurant_id", *restaurantID),
		zap.String("branch_id", *branchID),
		zap.String("from", first.Format(dateLayout)),
		zap.String("to", last.Format(dateLayout)),
		zap.Int("days", summary.Days),
		zap.Int("performance_rows", summary.PerformanceRows),
		zap.Int("periods_rolled_up", summary.PeriodsRolledUp),
		zap.Int("completed_orders", summary.CompletedOrders))
}
