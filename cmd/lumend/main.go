package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lumenos/lumen/internal/config"
	"github.com/lumenos/lumen/internal/llm"
	"github.com/lumenos/lumen/internal/server"
	"github.com/lumenos/lumen/internal/store/postgres"
	redisstore "github.com/lumenos/lumen/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("LUMEN_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("LUMEN_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	provider := buildProvider(cfg)

	// Optional PostgreSQL run archive.
	var store *postgres.Store
	if cfg.ArchiveEnabled() {
		if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
			return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}

		store, err = postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if err != nil {
			return err
		}
		defer store.Close()
		log.Info().Msg("run archive enabled")
	}

	// Optional Redis event mirror.
	var pubsub *redisstore.PubSub
	if cfg.MirrorEnabled() {
		pubsub, err = redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer pubsub.Close()
		log.Info().Msg("event mirror enabled")
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := server.New(ctx, cfg, provider, store, pubsub)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}

// buildProvider selects the model backend. A nil provider is legal: the
// protocol endpoints answer 500 until a credential is configured.
func buildProvider(cfg *config.Config) llm.Provider {
	switch cfg.Model.Provider {
	case "script":
		log.Warn().Msg("using scripted model provider; responses are canned")
		return &llm.ScriptProvider{}
	default:
		if cfg.Model.APIKey == "" {
			log.Warn().Msg("no model API key configured; agent endpoints will refuse requests")
			return nil
		}
		return llm.NewOpenAIProvider(cfg.Model.APIKey, cfg.Model.BaseURL, cfg.Model.Model)
	}
}
