package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/timeclock/internal/config"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/observability"
	"github.com/your-org/timeclock/internal/queue"
	"github.com/your-org/timeclock/internal/storage"
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

	if cfg.Database.Driver != "postgres" {
		slog.Error("worker requires the postgres driver", "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	if !cfg.NATS.Enabled {
		slog.Error("worker requires nats to be enabled")
		os.Exit(1)
	}

	slog.Info("starting attendance worker", "workers", cfg.Worker.Count)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx, cfg.Face.DescriptorLength); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// The stream must exist before a consumer can bind to it.
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	refreshPresence(ctx, db)

	err = consumer.ConsumeDurable(ctx, "attendance-audit", func(ctx context.Context, ev *models.AttendanceEvent) error {
		if err := db.InsertAttendanceEvent(ctx, ev); err != nil {
			return fmt.Errorf("store event %s: %w", ev.ID, err)
		}
		slog.Debug("attendance event stored", "id", ev.ID, "type", ev.Type, "user_id", ev.UserID)

		switch ev.Type {
		case models.EventClockIn, models.EventClockOut, models.EventBreakStart,
			models.EventBreakEnd, models.EventWorkHoursEdited, models.EventWorkHoursDeleted:
			refreshPresence(ctx, db)
		}
		return nil
	}, cfg.Worker.Count)
	if err != nil {
		slog.Error("start event consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		addr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		slog.Info("worker metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// refreshPresence recounts present users from the roster.
func refreshPresence(ctx context.Context, db *storage.PostgresStore) {
	users, err := db.ListUsers(ctx)
	if err != nil {
		slog.Warn("count present users", "error", err)
		return
	}
	present := 0
	for i := range users {
		if users[i].Present() {
			present++
		}
	}
	observability.PresentUsers.Set(float64(present))
}
