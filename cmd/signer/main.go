// Command signer runs the HMAC-authenticated HTTP service that holds
// private keys and is the only component in this system ever allowed to
// broadcast a transaction. Configuration comes entirely from environment
// variables, matching the original services/signer/settings.py and the
// teacher's own os.Getenv-direct configuration style: no config framework,
// no flags.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/trustora/internal/chains"
	"github.com/yourusername/trustora/internal/config"
	"github.com/yourusername/trustora/internal/keyfile"
	"github.com/yourusername/trustora/internal/kv"
	"github.com/yourusername/trustora/internal/limits"
	"github.com/yourusername/trustora/internal/metrics"
	"github.com/yourusername/trustora/internal/rpcclient"
	"github.com/yourusername/trustora/internal/signerapi"
	"github.com/yourusername/trustora/internal/signerkeys"
	"github.com/yourusername/trustora/internal/store"
)

func main() {
	log, err := obslogMust()
	if err != nil {
		fmt.Fprintf(os.Stderr, "signer: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("signer: fatal error", zap.Error(err))
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

	passphrase := mustEnv("KEY_ENCRYPTION_PASSPHRASE")
	tronPool, err := loadPool(chains.TRC20, mustEnv("TRON_KEY_FILE"), passphrase)
	if err != nil {
		return fmt.Errorf("load tron key pool: %w", err)
	}
	bscPool, err := loadPool(chains.BEP20, mustEnv("BSC_KEY_FILE"), passphrase)
	if err != nil {
		return fmt.Errorf("load bsc key pool: %w", err)
	}

	bscRPC, err := rpcclient.NewClient(splitCSV(mustEnv("BSC_RPC_URLS")), 15*time.Second)
	if err != nil {
		return fmt.Errorf("build bsc rpc client: %w", err)
	}
	bscBackend := rpcclient.NewBSCBackend(bscRPC, mustEnv("BSC_USDT_CONTRACT"))
	tronBackend := rpcclient.NewTronBackend(mustEnv("TRON_RPC_URL"), mustEnv("TRON_USDT_CONTRACT"), 15*time.Second)

	srv := &signerapi.Server{
		HMACKey:         []byte(mustEnv("SIGNER_HMAC_SECRET")),
		Nonces:          kvc,
		Store:           st,
		Config:          cfgService,
		Limits:          loadLimits(),
		KVCounters:      kvc,
		TronPool:        tronPool,
		BSCPool:         bscPool,
		TronBroadcaster: tronBackend,
		BSCBroadcaster:  bscBackend,
		FeeWalletTron:   mustEnv("FEE_WALLET_TRON"),
		FeeWalletBSC:    mustEnv("FEE_WALLET_BSC"),
		Log:             log,
	}

	mux := http.NewServeMux()
	mux.Handle("/", srv.Routes())
	mux.Handle("/metrics", metrics.Handler())

	addr := envOr("LISTEN_ADDR", ":8080")
	httpServer := &http.Server{Addr: addr, Handler: mux}

	log.Info("signer: listening", zap.String("addr", addr))

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

func loadPool(c chains.Chain, path, passphrase string) (*signerkeys.Pool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	var env keyfile.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	entries, err := keyfile.Decrypt(&env, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt key file: %w", err)
	}
	return signerkeys.BuildPool(c, entries)
}

func loadLimits() limits.Limits {
	return limits.Limits{
		HardMax:        mustParseAmount("HARD_MAX_PAYOUT"),
		AutoPayoutMax:  mustParseAmount("AUTO_PAYOUT_MAX"),
		DailySumMax:    mustParseAmount("DAILY_PAYOUT_MAX"),
		HourlyCountMax: mustParseInt("PAYOUTS_PER_HOUR_MAX"),
	}
}
