package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lotting_ledger/internal/adapters/progress"
	"lotting_ledger/internal/config"
	"lotting_ledger/internal/handlers"
	"lotting_ledger/internal/logger"
	"lotting_ledger/internal/metrics"
	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"
	"lotting_ledger/internal/repository"
	"lotting_ledger/internal/repository/database"
	importitems "lotting_ledger/internal/repository/imports"
	"lotting_ledger/internal/repository/memory"
	"lotting_ledger/internal/server"
	"lotting_ledger/internal/services/importer/processors"
	"lotting_ledger/internal/services/ledger"
	"lotting_ledger/internal/services/reconcile"
	"lotting_ledger/internal/transport/auth"

	"go.uber.org/zap"
)

type storage struct {
	buyers   ports.BuyerRepository
	fees     ports.FeePlanRepository
	deposits ports.DepositRepository
	tokens   auth.TokenRepo
}

func main() {
	st, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(st.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.Init(setupCtx, st, log)
	defer cfg.Close(context.Background())
	log.Info("all connections established", zap.String("storage", st.StorageDriver))

	if err := cfg.CheckConnections(setupCtx); err != nil {
		log.Fatal("connection check failed", zap.Error(err))
	}
	log.Info("all connections OK")

	if err := importitems.EnsureIndexes(setupCtx, cfg.Mongo); err != nil {
		log.Warn("mongo indexes not ensured", zap.Error(err))
	}

	store, err := newStorage(cfg, log)
	if err != nil {
		log.Fatal("storage", zap.Error(err))
	}

	m := metrics.New()
	led := ledger.NewService(store.buyers, store.fees, ledger.Options{
		LegacyFarFutureOffset: st.LegacyFarFutureOffset,
		Metrics:               m,
		Log:                   log,
	})

	events := progress.NewChannel(st.ProgressBuffer, log)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		events.Run(context.Background(), progress.NewRedisSink(cfg.Redis.Client))
	}()

	engine := reconcile.NewEngine(store.buyers, store.deposits, led.Status, st.DefaultBuyerID, log)
	engine.Progress = events
	engine.Metrics = m

	registry := processors.Register(processors.DefaultRegistry(),
		processors.NewDepositsProcessor(processors.NewBaseProcessor(cfg.Mongo, log), engine))

	h := handlers.New(led, store.deposits, registry, log)
	h.Postgres, h.Mongo, h.S3, h.Redis = cfg.Postgres, cfg.Mongo, cfg.S3, cfg.Redis
	h.Progress = events
	h.Metrics = m
	h.LocalRoot = st.LocalImportRoot
	h.Subscribe = func(ctx context.Context, id string) (<-chan models.ProgressEvent, error) {
		return progress.Subscribe(ctx, cfg.Redis.Client, id)
	}

	srv := server.NewServer(st.Port, server.Routes(h, auth.TokenMiddleware(store.tokens, log)), log)
	if err := srv.Run(runCtx); err != nil {
		log.Error("server stopped", zap.Error(err))
	}

	h.Wait()
	events.Close()
	<-progressDone
	log.Info("bye")
}

func newStorage(cfg *config.Config, log *zap.Logger) (storage, error) {
	if cfg.StorageDriver == config.StoragePostgres {
		return storage{
			buyers:   database.NewBuyerRepo(cfg.Postgres),
			fees:     database.NewFeePlanRepo(cfg.Postgres),
			deposits: database.NewDepositRepo(cfg.Postgres),
			tokens:   repository.NewPersonalAccessTokenRepository(cfg.Postgres, log),
		}, nil
	}

	tokens, err := repository.ParseStaticTokens(cfg.APITokens)
	if err != nil {
		return storage{}, fmt.Errorf("API_TOKENS: %w", err)
	}
	mem := memory.NewStore()
	return storage{buyers: mem, fees: mem, deposits: mem, tokens: tokens}, nil
}
