package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	server "midtown_book/internal/adapters/http_server"
	"midtown_book/internal/adapters/jwtauth"
	"midtown_book/internal/adapters/mailer"
	"midtown_book/internal/adapters/observability"
	redisad "midtown_book/internal/adapters/redis"
	"midtown_book/internal/adapters/s3docs"
	"midtown_book/internal/app"
	"midtown_book/internal/domain"
	"midtown_book/internal/shared"
	"midtown_book/internal/storage/memory"
	mysqlrepo "midtown_book/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	metricsSrv := observability.Serve(cfg.MetricsAddr, reg)

	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	var cache domain.Cache = redisad.Noop{}
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; reads will miss until it recovers")
		}
		defer rc.Close()
		cache = rc
	}

	// optional integrations stay nil interfaces when unconfigured
	var docs domain.DocumentStore
	if cfg.DocumentsEnabled() {
		s, err := s3docs.New(s3docs.Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("s3 session failed")
		}
		docs = s
	}
	var notify domain.Notifier
	if cfg.MailEnabled() {
		notify = mailer.New(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
			BaseURL:  cfg.PublicBaseURL,
		})
	}

	q := app.NewQueryService(store, cache, cfg.CacheTTL)
	d := app.NewDirectoryService(store, cache, docs, notify, app.DirectoryOptions{AutoApproveReviews: cfg.ReviewAutoApprove})
	views := app.NewViewRecorder(store, cfg.ViewBuffer, cfg.ViewFlush)

	// http
	srv, err := server.New(server.Options{CORSOrigins: cfg.CORSOrigins, RateLimit: cfg.RateLimit})
	if err != nil {
		log.Fatal().Err(err).Msg("http server config")
	}
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, D: d, Views: views}, jwtauth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience))

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		views.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("storage", cfg.StorageDriver).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("shutdown complete")
}

// openStore picks the backend named by STORAGE_DRIVER.
func openStore(ctx context.Context, cfg shared.Config) (domain.Store, func()) {
	switch cfg.StorageDriver {
	case "memory":
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		return memory.New(), func() {}
	case "mysql":
	default:
		log.Fatal().Str("driver", cfg.StorageDriver).Msg("unknown STORAGE_DRIVER")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")
	return mysqlrepo.New(db), func() { _ = db.Close() }
}
