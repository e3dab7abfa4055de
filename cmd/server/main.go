package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/voicerooms/internal/adapters/http"
	"github.com/dkeye/voicerooms/internal/adapters/kafka"
	"github.com/dkeye/voicerooms/internal/adapters/memory"
	"github.com/dkeye/voicerooms/internal/adapters/postgres"
	"github.com/dkeye/voicerooms/internal/adapters/redisx"
	"github.com/dkeye/voicerooms/internal/adapters/secret"
	"github.com/dkeye/voicerooms/internal/adapters/storage"
	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/config"
	"github.com/dkeye/voicerooms/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		// JSON lines in production.
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	deps := orch.Deps{
		Hasher:         secret.NewBcryptHasher(cfg.Rooms.BcryptCost),
		MaxActiveRooms: cfg.Rooms.MaxActiveRooms,
		HubBuffer:      cfg.Rooms.EventBuffer,
	}
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
		if err != nil {
			return err
		}
		closers = append(closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		deps.Rooms = postgres.NewRoomRepository(pool)
		deps.Members = postgres.NewParticipantRepository(pool)
		deps.Messages = postgres.NewMessageRepository(pool)
	default:
		deps.Rooms = memory.NewRoomRepository()
		deps.Members = memory.NewParticipantRepository()
		deps.Messages = memory.NewMessageRepository()
	}
	log.Info().Str("module", "main").Str("driver", cfg.Storage.Driver).Msg("storage ready")

	if cfg.Redis.URL != "" {
		rdb, err := redisx.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		closers = append(closers, func() { closeRedis(rdb) })
		deps.Limiter = redisx.NewAttemptLimiter(rdb, cfg.Rooms.PasswordMaxAttempts, cfg.Rooms.PasswordLockout)
		deps.Typing = redisx.NewTypingTracker(rdb, cfg.Rooms.TypingTTL)
		log.Info().Str("module", "main").Msg("redis limiter and typing tracker ready")
	} else {
		deps.Limiter = memory.NewAttemptLimiter(cfg.Rooms.PasswordMaxAttempts, cfg.Rooms.PasswordLockout)
		deps.Typing = memory.NewTypingTracker(cfg.Rooms.TypingTTL)
	}

	if cfg.Media.Endpoint != "" {
		covers, err := storage.New(storage.Config{
			Endpoint:  cfg.Media.Endpoint,
			AccessKey: cfg.Media.AccessKey,
			SecretKey: cfg.Media.SecretKey,
			UseSSL:    cfg.Media.UseSSL,
			Bucket:    cfg.Media.Bucket,
			PublicURL: cfg.Media.PublicURL,
		})
		if err != nil {
			return err
		}
		if err := covers.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("storage: ensure bucket: %w", err)
		}
		deps.Covers = covers
		log.Info().Str("module", "main").Str("bucket", cfg.Media.Bucket).Msg("cover storage ready")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		closers = append(closers, func() {
			if err := pub.Close(); err != nil {
				log.Error().Err(err).Str("module", "main").Msg("close kafka writer")
			}
		})
		deps.Sinks = append(deps.Sinks, pub)
		log.Info().Str("module", "main").Strs("brokers", cfg.Kafka.Brokers).Msg("kafka events enabled")
	}

	o := orch.New(deps)
	metrics := telemetry.New(map[string]func() float64{
		"active_rooms": func() float64 { return float64(o.Registry.ActiveRooms()) },
	})
	o.Metrics = metrics

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRouter(ctx, cfg, o, metrics.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("voicerooms server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func closeRedis(rdb *goredis.Client) {
	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Str("module", "main").Msg("close redis")
	}
}
