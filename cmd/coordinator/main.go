// Command coordinator runs the escrow-owning service: deal creation, the
// buyer release flow, and dispute intake, fronted by a plain JSON HTTP API
// in place of the original system's Telegram bot transport (out of scope
// here; see internal/coordinator's package doc). Any number of instances
// may run concurrently against the same database and Redis, since every
// mutation takes its own row lock.
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

	"github.com/yourusername/trustora/internal/config"
	"github.com/yourusername/trustora/internal/coordinator"
	"github.com/yourusername/trustora/internal/kv"
	"github.com/yourusername/trustora/internal/metrics"
	"github.com/yourusername/trustora/internal/store"
)

func main() {
	log, err := obslogMust()
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("coordinator: fatal error", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
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

	cfgService := config.NewService(st)
	signerClient := coordinator.NewSignerClient(mustEnv("SIGNER_BASE_URL"), []byte(mustEnv("SIGNER_HMAC_SECRET")), 15*time.Second)
	coord := coordinator.New(st, kvc, cfgService, signerClient, mustEnv("USER_HASH_SALT"))

	api := &coordinator.API{Coordinator: coord, Log: log}

	mux := http.NewServeMux()
	mux.Handle("/", api.Routes())
	mux.Handle("/metrics", metrics.Handler())

	addr := envOr("LISTEN_ADDR", ":8082")
	httpServer := &http.Server{Addr: addr, Handler: mux}

	log.Info("coordinator: listening", zap.String("addr", addr))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	}
	return nil
}
