package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stabletrade/internal/config"
	"stabletrade/internal/kv"
	"stabletrade/internal/logging"
	"stabletrade/internal/server"
	"stabletrade/internal/sui"
)

const (
	demoSender = "0x00000000000000000000000000000000000000000000000000000000000d3e70"
	// demoFunding is 1000 USDC in base units.
	demoFunding = 1_000_000_000
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.Service.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	backend, closeBackend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		logger.Fatal("store backend error", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closeBackend()

	apiServer := server.NewServer(cfg, chainFactory(cfg, logger), backend, logger)

	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (kv.Backend, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.BackendMemory:
		return kv.NewMemoryBackend(), noop, nil
	case config.BackendFile:
		b, err := kv.NewFileBackend(cfg.Path)
		return b, noop, err
	case config.BackendPostgres:
		b, err := kv.NewPostgresBackend(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return b, b.Close, nil
	case config.BackendRedis:
		b, err := kv.NewRedisBackend(ctx, cfg.RedisAddr, "stabletrade:")
		if err != nil {
			return nil, noop, err
		}
		return b, func() { _ = b.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// chainFactory dials a fullnode and signs with CHAIN_PRIVATE_KEY. Without a
// key the server runs against an in-memory chain with a funded demo account.
func chainFactory(cfg *config.AppConfig, logger *zap.Logger) server.ChainFactory {
	if cfg.Chain.PrivateKey != "" {
		return func(ctx context.Context, n config.Network) (server.Chain, error) {
			node, err := sui.NewRPCClient(ctx, sui.RPCClientConfig{
				URL:       cfg.RPCURLFor(n),
				GasBudget: cfg.Chain.GasBudget,
			})
			if err != nil {
				return server.Chain{}, err
			}
			wallet, err := sui.NewWallet(node, cfg.Chain.PrivateKey)
			if err != nil {
				node.Close()
				return server.Chain{}, err
			}
			return server.Chain{Client: node, Submitter: wallet, Sender: wallet.Address(), Close: node.Close}, nil
		}
	}

	sender := cfg.Chain.Sender
	if sender == "" {
		sender = demoSender
	}
	logger.Warn("CHAIN_PRIVATE_KEY not set, using in-memory chain", zap.String("sender", sender))
	fake := sui.NewFakeClient()
	funded := make(map[string]bool)
	return func(_ context.Context, n config.Network) (server.Chain, error) {
		if !funded[n.USDCCoinType] {
			fake.Fund(sender, n.USDCCoinType, big.NewInt(demoFunding))
			funded[n.USDCCoinType] = true
		}
		return server.Chain{Client: fake, Submitter: fake, Sender: sender}, nil
	}
}
