package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-labeling/internal/config"
	"ms-labeling/internal/database/migrations"
	"ms-labeling/internal/dishes"
	"ms-labeling/internal/kafka"
	"ms-labeling/internal/label"
	"ms-labeling/internal/logger"
	"ms-labeling/internal/order"
	"ms-labeling/internal/order/api"
	orderdb "ms-labeling/internal/order/db"
	"ms-labeling/internal/printing"
	printdb "ms-labeling/internal/printing/db"
	"ms-labeling/internal/rkeeper"
)

type notifier interface {
	order.Notifier
	printing.Notifier
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()
	ctx := context.Background()

	// --- PostgreSQL ---
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	defer sqldb.Close()
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	log.LogDatabase("CONNECT", "postgres", fmt.Sprintf("connected to %s:%s", cfg.Database.Host, cfg.Database.Port))

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	log.LogDatabase("MIGRATE", "postgres", "schema is up to date")

	// --- Dish master (read-only sqlite export) ---
	dishDB, err := dishes.Open(cfg.DishDB.Path)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open dish database %s: %v", cfg.DishDB.Path, err))
	}
	defer dishDB.Close()

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	defer redisClient.Close()
	dishLookup := dishes.NewCachedLookup(dishDB, redisClient, cfg.DishDB.CacheTTL)

	// --- Kafka ---
	var events notifier = kafka.NoopNotifier{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer producer.Close()
		events = producer
	}

	// --- Services ---
	orderStore := orderdb.NewStore(bunDB)
	printStore := printdb.NewStore(bunDB)

	encoder := label.NewEncoder(cfg.Printer.DPI, cfg.Printer.BitmapText)
	factory := printing.NewFactory(printStore, dishLookup, encoder, label.FormatTSPL, log)

	reconciler := order.NewReconciler(orderStore, events, log)
	service := order.NewService(orderStore, reconciler, factory, log)

	transport := printing.NewTCPTransport(cfg.Printer.Host, cfg.Printer.Port, cfg.Printer.Timeout)
	worker := printing.NewWorker(printStore, orderStore, transport, events, log,
		cfg.Worker.IdlePoll, cfg.Worker.ShutdownTimeout)
	worker.Start(ctx)

	var syncer *order.Syncer
	if cfg.RKeeper.SyncEnabled {
		client := rkeeper.NewClient(cfg.RKeeper.BaseURL, cfg.RKeeper.Username, cfg.RKeeper.Password)
		syncer = order.NewSyncer(client, orderStore, events, log, cfg.RKeeper.SyncInterval)
		syncer.Start(ctx)
	}

	handler := &api.Handler{Orders: service, Jobs: printStore, Syncer: syncer, Log: log}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Label service listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("SERVER", fmt.Sprintf("Forced shutdown: %v", err))
	}

	if syncer != nil {
		syncer.Stop()
	}
	worker.Stop()

	log.Info("SERVER", "Service stopped")
}
