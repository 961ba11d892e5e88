// Command server runs the attendance integrity engine: the check-in/check-out
// API, the location integrity monitor and the realtime fan-out endpoint.
// Dependency wiring lives here; business logic stays in internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"sentra/internal/attendance"
	"sentra/internal/audit"
	"sentra/internal/identity"
	"sentra/internal/integrity"
	"sentra/internal/notify"
	"sentra/internal/platform/config"
	"sentra/internal/platform/httpserver"
	"sentra/internal/platform/logger"
	"sentra/internal/platform/metrics"
	redisplatform "sentra/internal/platform/redis"
	"sentra/internal/realtime"
	"sentra/internal/schedule"
	httptransport "sentra/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var db *sql.DB
	if cfg.Postgres.DSN != "" {
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		defer db.Close()
	}

	var (
		attendanceStore attendance.Store
		sampleStore     integrity.SampleStore
		signalStore     integrity.SignalStore
	)
	if db != nil {
		attendanceStore = attendance.NewPostgresStore(db)
		sampleStore = integrity.NewPostgresSampleStore(db)
		signalStore = integrity.NewPostgresSignalStore(db)
	} else {
		log.Warn("postgres not configured, using in-memory stores")
		attendanceStore = attendance.NewInMemoryStore()
		sampleStore = integrity.NewInMemorySampleStore()
		signalStore = integrity.NewInMemorySignalStore()
	}

	var offenses integrity.OffenseCounter
	if redisClient != nil {
		offenses = integrity.NewRedisOffenseCounter(redisClient.Client, cfg.Fraud.OffenseWindow)
	} else {
		offenses = integrity.NewInMemoryOffenseCounter(cfg.Fraud.OffenseWindow)
	}

	var auditStore audit.Store
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(ctx, cfg.Kafka)
		if err != nil {
			return err
		}
		defer kafkaStore.Close()
		auditStore = kafkaStore
	} else {
		log.Warn("kafka not configured, audit trail is in-memory only")
		auditStore = audit.NewInMemoryStore()
	}
	auditPublisher := audit.NewPublisher(auditStore, log, audit.WithAsyncBuffer(256))
	defer auditPublisher.Close()

	hub := realtime.NewHub(log, realtime.WithMetrics(m))
	var bridge *realtime.Bridge
	if redisClient != nil {
		bridge = realtime.NewBridge(redisClient.Client, cfg.Realtime.BridgeChannel, log)
		bridge.Attach(hub)
	}

	// The planning system owns events and assignments; it syncs into this
	// read-only store.
	scheduleStore := schedule.NewInMemoryStore()
	notifier := &notify.LogDispatcher{Logger: log}

	monitor := integrity.NewMonitor(
		sampleStore, signalStore, offenses, scheduleStore, cfg.Fraud, log,
		integrity.WithBroadcaster(hub),
		integrity.WithNotifier(notifier),
		integrity.WithAuditor(auditPublisher),
		integrity.WithMonitorMetrics(m),
	)
	registry := attendance.NewRegistry(
		attendanceStore, scheduleStore, monitor, cfg.Fraud, log,
		attendance.WithVerifier(identity.StaticVerifier{}),
		attendance.WithNotifier(notifier),
		attendance.WithBroadcaster(hub),
		attendance.WithAuditor(auditPublisher),
		attendance.WithRegistryMetrics(m),
	)

	health := map[string]httptransport.HealthChecker{}
	if redisClient != nil {
		health["redis"] = redisClient
	}
	if db != nil {
		health["postgres"] = dbHealth{db: db}
	}

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Attendance: httptransport.NewAttendanceHandler(registry, log),
		Integrity:  httptransport.NewIntegrityHandler(monitor, log),
		Alerts:     httptransport.NewAlertHandler(hub, scheduleStore, notifier, log),
		Realtime:   realtime.NewWSHandler(hub, cfg.Realtime, log),
		Health:     health,
		Logger:     log,
		Config:     cfg.HTTP,
	})
	srv := httpserver.New(cfg.HTTP.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if bridge != nil {
		g.Go(func() error {
			return bridge.Run(gctx, hub)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// dbHealth adapts *sql.DB to the router's health probe.
type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
