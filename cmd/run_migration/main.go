package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dumu-tech/restaurant-ops/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const defaultMigration = "migrations/001_init.sql"

// locate finds the migration file relative to the working directory or its parents
func locate(migrationFile string) (string, []string) {
	if _, err := os.Stat(migrationFile); err == nil {
		return migrationFile, nil
	}
	wd, _ := os.Getwd()
	possiblePaths := []string{
		filepath.Join(wd, migrationFile),
		filepath.Join(wd, "..", migrationFile),
		filepath.Join(wd, "..", "..", migrationFile),
	}
	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path, possiblePaths
		}
	}
	return "", possiblePaths
}

func main() {
	migrationFile := defaultMigration
	if len(os.Args) > 1 {
		migrationFile = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// DATABASE_PUBLIC_URL wins for local runs against a hosted database
	dbURL := cfg.DBURL
	if publicURL := os.Getenv("DATABASE_PUBLIC_URL"); publicURL != "" {
		dbURL = publicURL
		logger.Info("using DATABASE_PUBLIC_URL")
	} else if strings.Contains(dbURL, ".internal") {
		logger.Warn("DB_URL uses an internal hostname; set DATABASE_PUBLIC_URL for local runs")
	}

	ctx := context.Background()
	dbpool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("database connection established")

	migrationPath, tried := locate(migrationFile)
	if migrationPath == "" {
		logger.Fatal("migration file not found", zap.String("file", migrationFile), zap.Strings("tried", tried))
	}

	sqlContent, err := os.ReadFile(migrationPath)
	if err != nil {
		logger.Fatal("failed to read migration file", zap.String("path", migrationPath), zap.Error(err))
	}

	logger.Info("executing migration", zap.String("path", migrationPath))
	if _, err := dbpool.Exec(ctx, string(sqlContent)); err != nil {
		logger.Fatal("failed to execute migration", zap.Error(err))
	}

	logger.Info("migration completed successfully")
}
