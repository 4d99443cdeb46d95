package main

import (
	"context"
	"fmt"
	"os"

	"github.com/safar/shopcraft/internal/config"
	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/logging"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: go run scripts/run_migrations.go [up|down]")
		os.Exit(2)
	}

	direction := database.Direction(os.Args[1])
	if direction != database.Up && direction != database.Down {
		fmt.Fprintln(os.Stderr, "Direction must be 'up' or 'down'")
		os.Exit(2)
	}

	dbCfg, logCfg := config.LoadDatabase()
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &dbCfg)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db, "migrations", direction, func(name string) {
		logger.Info("running migration", zap.String("file", name))
	})
	if err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	logger.Info("migrations complete", zap.Int("count", applied), zap.String("direction", string(direction)))
}
