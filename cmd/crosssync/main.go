package main

import (
	"context"
	"crosssync/cfg"
	"crosssync/svc/api"
	"crosssync/svc/cache"
	"crosssync/svc/db"
	"crosssync/svc/lim"
	"crosssync/svc/persist"
	"crosssync/svc/qr"
	"crosssync/svc/svc"
	"crosssync/svc/util"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-health" {
		os.Exit(healthcheck())
	}

	envFile, err := cfg.LoadEnvFiles(".env", ".env.local")
	if err != nil {
		util.Fatal().Err(err).Msg("failed to read env file")
		os.Exit(1)
	}
	c, err := cfg.Load()
	if err != nil {
		util.Fatal().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.Validate(c); err != nil {
		util.Fatal().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	defer c.Wipe()
	util.InitLog(c.LogLevel, c.Environment == "development")
	util.Info().Str("env_file", envFile).Msg("starting crosssync API")

	sqlDB, err := db.NewSQLiteWithConfig(c.DatabasePath, c.DBMaxOpenConns, c.DBMaxIdleConns, c.DBQueryTimeout)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize database")
		os.Exit(1)
	}
	defer sqlDB.Close()
	util.Info().Str("path", c.DatabasePath).Msg("durable store initialized")

	// Redis backs the session store and the shared rate counter; without it
	// both fall back to in-process state.
	var session persist.Store
	var counter lim.Counter
	if c.RedisURL != "" {
		rdb, err := db.NewRedis(c.RedisURL, c)
		if err != nil {
			if c.Environment == "production" {
				util.Fatal().Err(err).Msg("CRITICAL: Redis required in production")
				os.Exit(1)
			}
			util.Warn().Err(err).Msg("redis unavailable, using in-process session store")
		} else {
			defer rdb.Close()
			session, counter = rdb, rdb
			util.Info().Dur("ttl", c.SessionTTL).Msg("redis session store connected")
		}
	}
	if session == nil {
		lru, err := cache.NewLRU(c.LRUCacheSize, c.SessionTTL)
		if err != nil {
			util.Fatal().Err(err).Msg("failed to create LRU session store")
			os.Exit(1)
		}
		session = lru
		util.Info().Int("size", c.LRUCacheSize).Msg("LRU session store initialized")
	}
	shim := persist.NewShim(sqlDB, session)

	renderer := qr.New(qr.Config{
		Endpoint:  c.QR.Endpoint,
		Size:      c.QR.Size,
		Timeout:   c.QR.Timeout,
		CacheSize: c.QR.CacheSize,
		Workers:   c.QR.Workers,
	})
	content := svc.NewContent(shim, renderer, c)
	util.Info().Str("qr_endpoint", c.QR.Endpoint).Int("qr_workers", c.QR.Workers).Msg("content service initialized")

	limiter := lim.New(c.RateLimit.RPM, c.RateLimit.Burst, c.RateLimit.ConservativeLimit, counter, c.TrustedProxies)
	defer limiter.Stop()
	util.Info().
		Int("rpm", c.RateLimit.RPM).
		Int("burst", c.RateLimit.Burst).
		Strs("trusted_proxies", c.TrustedProxies).
		Msg("rate limiter initialized")

	server := api.NewServer(c, content, limiter, shim)

	walCtx, stopWAL := context.WithCancel(context.Background())
	walDone := db.StartWALMaintenance(walCtx, sqlDB.DB(), 0)
	util.Info().Msg("WAL maintenance worker started")

	util.Info().Str("port", c.Port).Str("environment", c.Environment).Str("base_url", c.BaseURL).Msg("server starting")
	go func() {
		if err := server.Start(); err != nil {
			util.Fatal().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	util.Info().Msg("shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		util.Error().Err(err).Msg("server shutdown error")
	}
	content.Shutdown()
	stopWAL()
	select {
	case <-walDone:
		util.Info().Msg("WAL maintenance stopped")
	case <-time.After(15 * time.Second):
		util.Warn().Msg("WAL maintenance did not stop gracefully")
	}
	util.Info().Msg("shutdown complete")
}

func healthcheck() int {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "crosssync.db"
	}
	sqlDB, err := db.NewSQLite(dbPath)
	if err != nil {
		return 1
	}
	defer sqlDB.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sqlDB.Ping(ctx); err != nil {
		return 1
	}
	return 0
}
