package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/coderoom/internal/ai"
	"github.com/eldtechnologies/coderoom/internal/api"
	"github.com/eldtechnologies/coderoom/internal/config"
	"github.com/eldtechnologies/coderoom/internal/engine"
	"github.com/eldtechnologies/coderoom/internal/handlers"
	"github.com/eldtechnologies/coderoom/internal/sandbox"
	"github.com/eldtechnologies/coderoom/internal/store"
	"github.com/eldtechnologies/coderoom/internal/ws"
)

func main() {
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Relational write-behind store: Postgres when DATABASE_URL is set,
	// otherwise SQLite when SQLITE_PATH is set, otherwise none.
	var data store.DataStore
	switch {
	case cfg.DatabaseURL != "":
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pg.Close()
		logger.Info().Msg("connected to PostgreSQL")
		data = pg
	case cfg.SQLitePath != "":
		lite, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer lite.Close()
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite store")
		data = lite
	}

	var chats *store.ChatCache
	if cfg.RedisURL != "" {
		var err error
		chats, err = store.NewChatCache(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer chats.Close()
		logger.Info().Msg("connected to Redis")
	}

	files, err := store.NewFileStore(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("data dir unavailable")
	}

	runner := sandbox.New(cfg.PythonCommand, cfg.ExecTimeout, os.TempDir(), logger)
	assistant := ai.New(cfg.AI, logger)
	if cfg.AI.Enabled {
		logger.Info().Str("model", cfg.AI.Model).Msg("AI collaborator enabled")
	} else {
		logger.Info().Msg("AI collaborator disabled (no API key)")
	}

	// engine.ChatCache is satisfied by *store.ChatCache, but a typed
	// nil must stay a plain nil interface.
	var chatCache engine.ChatCache
	if chats != nil {
		chatCache = chats
	}

	eng := engine.New(cfg, runner, assistant, data, chatCache, files, logger)

	// Restore rooms from the previous run's snapshot, if any.
	if snap, err := files.Load(); err != nil {
		logger.Error().Err(err).Msg("snapshot load failed, starting empty")
	} else if snap != nil {
		eng.Restore(snap)
	}

	engCtx, stopEngine := context.WithCancel(ctx)
	go eng.Run(engCtx)

	wsServer := ws.NewServer(eng, cfg, logger)
	h := handlers.NewHandler(eng, cfg, data, chats)
	router := api.NewRouter(h, wsServer, cfg.CORSOrigin, logger)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
		// No global read/write timeouts: they would sever long-lived
		// websocket sessions. Liveness is the ping/pong deadline's job.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.Env).
			Msg("starting coderoom server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Flush a final snapshot while the engine still serves commands.
	if err := eng.Flush(); err != nil {
		logger.Error().Err(err).Msg("final snapshot failed")
	}
	stopEngine()

	logger.Info().Msg("server stopped")
}
