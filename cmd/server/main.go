package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sheikh-saqib/till-ledger/internal/config"
	"github.com/sheikh-saqib/till-ledger/internal/currency"
	"github.com/sheikh-saqib/till-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/till-ledger/internal/hooks"
	"github.com/sheikh-saqib/till-ledger/internal/http/handler"
	interfaces "github.com/sheikh-saqib/till-ledger/internal/interfaces"
	"github.com/sheikh-saqib/till-ledger/internal/ledger"
	"github.com/sheikh-saqib/till-ledger/internal/logger"
	"github.com/sheikh-saqib/till-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/till-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/till-ledger/internal/tasks"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Database, logg)
	if err != nil {
		logg.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	formatter, err := currency.New(cfg.Ledger.CurrencyCode, cfg.Ledger.Locale)
	if err != nil {
		logg.Fatal("invalid currency settings", zap.Error(err))
	}

	opts := []ledger.Option{
		ledger.WithLogger(logg.Named("ledger")),
		ledger.WithFormatter(formatter.Format),
		ledger.WithCommitRetries(cfg.Ledger.CommitRetries),
		ledger.WithEventTopic(cfg.Kafka.RegisterTopic),
	}

	var publisher *kafka.Publisher
	if cfg.Kafka.Enabled {
		publisher = kafka.NewPublisher(cfg.Kafka.Brokers)
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher))
	}

	registerLedger := ledger.NewLedger(store, opts...)

	_, stopPipeline := startOrderPipeline(ctx, cfg, registerLedger, publisher, logg)
	defer stopPipeline()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handler.NewRegisterHandler(registerLedger, logg.Named("http")).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server shutdown failed", zap.Error(err))
	}
}

// startOrderPipeline consumes order events and runs the background tasks they
// trigger. Both arrive over Kafka, so with Kafka disabled nothing is started
// and the returned queue is nil.
func startOrderPipeline(ctx context.Context, cfg *config.Config, l *ledger.Ledger, publisher interfaces.EventPublisher, logg *zap.Logger) (*tasks.Queue, func()) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}
	}

	queue := tasks.NewQueue(tasks.Config{
		Workers:    cfg.Tasks.Workers,
		QueueSize:  cfg.Tasks.QueueSize,
		MaxRetries: cfg.Tasks.MaxRetries,
		RetryDelay: cfg.Tasks.RetryDelay,
	}, logg.Named("tasks"))
	queue.Start(ctx)

	requester := kafka.NewRecomputeRequester(publisher)
	hookHandler := hooks.NewHandler(l, queue, requester, requester, logg.Named("hooks"))
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, cfg.Kafka.GroupID, hookHandler, logg.Named("consumer"))

	go func() {
		if err := consumer.Run(ctx); err != nil {
			logg.Error("order event consumer stopped", zap.Error(err))
		}
	}()

	return queue, func() {
		consumer.Close()
		queue.Stop()
	}
}

// openStore returns the Postgres store when a DSN is configured and the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logg *zap.Logger) (interfaces.RegisterStore, func(), error) {
	if cfg.DSN == "" {
		logg.Warn("no database configured, using in-memory store")
		return memory.NewMemoryRegisterStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	migrator, err := postgres.NewMigrator(db, logg.Named("migrate"))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	// Closing the migrator also closes db.
	closeDB := func() {
		if err := migrator.Close(); err != nil {
			logg.Warn("failed to close database", zap.Error(err))
		}
	}
	if err := migrator.Up(); err != nil {
		closeDB()
		return nil, nil, err
	}
	return postgres.NewPostgresRegisterStore(db), closeDB, nil
}
