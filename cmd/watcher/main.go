// Command watcher runs a single chain's scan loop: one process per chain
// (CHAIN=TRC20 or CHAIN=BEP20), replacing the original system's two
// separate watcher_tron/watcher_bsc scripts with two instances of the same
// binary driving chainwatch.Watcher's one generic engine.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/chainwatch"
	"github.com/yourusername/trustora/internal/coordinator"
	"github.com/yourusername/trustora/internal/kv"
	"github.com/yourusername/trustora/internal/metrics"
	"github.com/yourusername/trustora/internal/rpcclient"
	"github.com/yourusername/trustora/internal/store"
)

func main() {
	log, err := obslogMust()
	if err != nil {
		fmt.Fprintf(os.Stderr, "watcher: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("watcher: fatal error", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	chain := chains.Chain(mustEnv("CHAIN"))
	if !chain.Valid() {
		return fmt.Errorf("unsupported CHAIN %q", chain)
	}

	st, err := store.Open(mustEnv("DATABASE_URL"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	kvc, err := kv.Open(mustEnv("REDIS_ADDR"))
	if err != nil {
		return fmt.Errorf("open redis: %w", err)
	}
	defer kvc.Close()

	backend, err := buildBackend(chain)
	if err != nil {
		return err
	}
	sink := coordinator.NewSink(st, chain)
	watcher := chainwatch.New(backend, kvc, sink)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	httpServer := &http.Server{Addr: envOr("LISTEN_ADDR", ":8081"), Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("watcher: metrics server failed", zap.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("watcher: starting scan loop", zap.String("chain", string(chain)))
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("scan loop: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildBackend(chain chains.Chain) (chainwatch.Backend, error) {
	switch chain {
	case chains.TRC20:
		return rpcclient.NewTronBackend(mustEnv("TRON_RPC_URL"), mustEnv("TRON_USDT_CONTRACT"), 15*time.Second), nil
	case chains.BEP20:
		client, err := rpcclient.NewClient(splitCSV(mustEnv("BSC_RPC_URLS")), 15*time.Second)
		if err != nil {
			return nil, fmt.Errorf("build bsc rpc client: %w", err)
		}
		return rpcclient.NewBSCBackend(client, mustEnv("BSC_USDT_CONTRACT")), nil
	default:
		return nil, fmt.Errorf("unsupported chain %q", chain)
	}
}
