package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/timeclock/internal/api"
	"github.com/your-org/timeclock/internal/api/handlers"
	"github.com/your-org/timeclock/internal/api/ws"
	"github.com/your-org/timeclock/internal/auth"
	"github.com/your-org/timeclock/internal/config"
	"github.com/your-org/timeclock/internal/face"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/observability"
	"github.com/your-org/timeclock/internal/queue"
	"github.com/your-org/timeclock/internal/session"
	"github.com/your-org/timeclock/internal/storage"
	"github.com/your-org/timeclock/internal/timesheet"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting timeclock API",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"matcher", cfg.Face.Matcher,
		"timezone", cfg.Attendance.Timezone,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	checks := map[string]handlers.Check{"database": store.Ping}

	if err := ensureAdmin(ctx, store, cfg.Auth); err != nil {
		slog.Error("seed admin account", "error", err)
		os.Exit(1)
	}

	var snapshots face.SnapshotStore
	if cfg.MinIO.Enabled {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		snapshots = minioStore
		checks["minio"] = minioStore.Ping
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	var publisher session.Publisher
	if cfg.NATS.Enabled {
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}
		publisher = producer
		checks["nats"] = func(context.Context) error { return producer.Ping() }

		consumer, err := queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Error("create event consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		err = consumer.ConsumeEvents(ctx, "api-ws", func(_ context.Context, ev *models.AttendanceEvent) error {
			hub.BroadcastEvent(ev)
			return nil
		})
		if err != nil {
			slog.Warn("start event consumer", "error", err)
		}
	} else {
		slog.Info("nats disabled, attendance events handled in-process")
		publisher = &localPublisher{store: store, hub: hub}
	}

	loc := cfg.Attendance.Location()
	sessions := session.NewService(store, publisher, loc)
	sheet := timesheet.NewService(store, loc)

	var matcher face.Matcher
	switch cfg.Face.Matcher {
	case "pgvector":
		matcher = face.NewVectorIndexMatcher(store, cfg.Face.MatchThreshold)
	default:
		matcher = face.NewLinearMatcher(store, cfg.Face.MatchThreshold)
	}
	faces := face.NewService(store, matcher, sessions, face.Options{
		DescriptorLength: cfg.Face.DescriptorLength,
		Snapshots:        snapshots,
		Publisher:        publisher,
	})

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		APIKey:     cfg.Server.APIKey,
		Store:      store,
		Issuer:     auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		TOTPIssuer: cfg.Auth.TOTPIssuer,
		Sessions:   sessions,
		Sheet:      sheet,
		Faces:      faces,
		Hub:        hub,
		Checks:     checks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Database.Driver == "memory" {
		slog.Warn("using in-memory store, data is lost on restart")
		return storage.NewMemoryStore(), nil
	}

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx, cfg.Face.DescriptorLength); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ensureAdmin creates the configured admin account if it does not exist yet.
func ensureAdmin(ctx context.Context, store storage.Store, cfg config.AuthConfig) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	existing, err := store.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("look up admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	u := &models.User{
		Name:         "Administrator",
		Email:        email,
		Role:         models.RoleAdmin,
		PasswordHash: hash,
		ClockStatus:  models.ClockStatusOut,
		BreakStatus:  models.BreakStatusNone,
	}
	if err := store.CreateUser(ctx, u); err != nil && !errors.Is(err, storage.ErrEmailTaken) {
		return fmt.Errorf("create admin: %w", err)
	}
	slog.Info("admin account seeded", "email", email)
	return nil
}
