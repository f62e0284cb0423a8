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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/config"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/directory"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/events/kafka"
	redisevents "github.com/sheikh-saqib/tuition-fee-ledger/internal/events/redis"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/handler"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/interfaces"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/ledger"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/logger"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/metrics"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/router"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/tuition-fee-ledger/internal/storage/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting fee ledger",
		zap.String("env", cfg.Env),
		zap.String("store", cfg.Store),
		zap.String("directory", cfg.Directory),
		zap.String("events", cfg.Events))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *goredis.Client
	if cfg.NeedsRedis() {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer rdb.Close()
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open ledger store", zap.Error(err))
	}
	defer store.Close()

	dir, err := openDirectory(cfg, rdb)
	if err != nil {
		log.Fatal("failed to open student directory", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []ledger.Option{
		ledger.WithLogger(log),
		ledger.WithMetrics(metrics.New(reg)),
		ledger.WithRepairAttempts(cfg.RepairAttempts),
		ledger.WithBatchConcurrency(cfg.BatchConcurrency),
	}
	if pub := openPublisher(cfg, rdb); pub != nil {
		defer pub.Close()
		opts = append(opts, ledger.WithPublisher(pub))
	}
	feeLedger := ledger.NewLedger(store, dir, opts...)

	ledgerHandler := handler.NewLedgerHandler(feeLedger, log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.SetupRoutes(ledgerHandler, reg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (interfaces.LedgerStore, error) {
	if cfg.Store == "memory" {
		return memory.NewMemoryLedgerStore(), nil
	}
	dialect, err := sqlstore.ParseDialect(cfg.Store)
	if err != nil {
		return nil, err
	}
	dsn := cfg.DatabaseURL
	if dialect == sqlstore.SQLite {
		dsn = cfg.SQLitePath
	}
	return sqlstore.Open(ctx, dialect, dsn, log)
}

func openDirectory(cfg config.Config, rdb *goredis.Client) (interfaces.Directory, error) {
	if cfg.Directory == "redis" {
		return directory.NewRedis(rdb, cfg.RedisPrefix), nil
	}
	if cfg.DirectorySeed != "" {
		return directory.LoadFile(cfg.DirectorySeed)
	}
	return directory.NewMemory(), nil
}

func openPublisher(cfg config.Config, rdb *goredis.Client) interfaces.EventPublisher {
	switch cfg.Events {
	case "kafka":
		return kafka.NewPublisher(cfg.KafkaBrokers, cfg.TopicPrefix)
	case "redis":
		return redisevents.NewPublisher(rdb, cfg.TopicPrefix)
	default:
		return nil
	}
}
