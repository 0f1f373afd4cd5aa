package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"midtown_book/internal/adapters/legacy"
	"midtown_book/internal/adapters/observability"
	redisad "midtown_book/internal/adapters/redis"
	"midtown_book/internal/app"
	"midtown_book/internal/domain"
	"midtown_book/internal/shared"
	mysqlrepo "midtown_book/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("base", cfg.LegacyBase).
		Int("workers", cfg.ImportWorkers).
		Int("page_size", cfg.ImportPageSize).
		Msg("importer starting")

	if cfg.StorageDriver != "mysql" {
		log.Fatal().Str("driver", cfg.StorageDriver).Msg("the importer writes to MySQL only")
	}
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := legacy.New(cfg.LegacyBase, cfg.LegacyKey, cfg.ImportRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize legacy client")
	}

	var cache domain.Cache = redisad.Noop{}
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		cache = rc
	}

	imp := app.NewImportService(client, repo, cache, app.ImportOptions{
		Workers:  cfg.ImportWorkers,
		PageSize: cfg.ImportPageSize,
	})

	start := time.Now()
	st, err := imp.Run(ctx)
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Int("categories", st.Categories).
		Int("businesses", st.Businesses).
		Int("reviews", st.Reviews).
		Int("misses", st.Misses).
		Dur("took", time.Since(start)).
		Msg("import finished")
	if err != nil {
		stop()
		db.Close()
		os.Exit(1)
	}
}
