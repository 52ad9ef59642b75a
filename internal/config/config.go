// Package config implements the platform's single mutable configuration
// row: fee defaults and the payout kill switch. Every update is snapshotted
// to config_history and recorded to the audit log in the same transaction,
// mirroring the original config_service.py's merge-and-snapshot contract.
package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/idgen"
	"github.com/yourusername/trustora/internal/store"
)

// Config is the live platform configuration.
type Config struct {
	FeeFlatMicro       amount.Micro `json:"fee_flat_micro"`
	FeePercentBps       int64        `json:"fee_percent_bps"`
	FeeThresholdMicro  amount.Micro `json:"fee_threshold_micro"`
	PausePayouts       bool         `json:"pause_payouts"`
	HardMaxMicro       amount.Micro `json:"hard_max_micro"`
	AutoPayoutMaxMicro amount.Micro `json:"auto_payout_max_micro"`
}

// Default returns the platform's built-in configuration, used to seed the
// config row the first time the service starts.
func Default() Config {
	return Config{
		FeeFlatMicro:       amount.DefaultFeeSnapshot.FlatMicro,
		FeePercentBps:      amount.DefaultFeeSnapshot.PercentBasisPoints,
		FeeThresholdMicro:  amount.DefaultFeeSnapshot.ThresholdMicro,
		PausePayouts:       false,
		HardMaxMicro:       amount.MustParse("50000"),
		AutoPayoutMaxMicro: amount.MustParse("500"),
	}
}

// FeeSnapshot captures the current config's fee schedule as an immutable
// amount.FeeSnapshot, for stamping onto a newly created escrow.
func (c Config) FeeSnapshot() amount.FeeSnapshot {
	return amount.FeeSnapshot{
		FlatMicro:          c.FeeFlatMicro,
		PercentBasisPoints: c.FeePercentBps,
		ThresholdMicro:     c.FeeThresholdMicro,
	}
}

// Service reads and mutates the config row.
type Service struct {
	store *store.Store
}

func NewService(s *store.Store) *Service { return &Service{store: s} }

// Get returns the current config, seeding the default row on first use.
func (svc *Service) Get(ctx context.Context) (Config, error) {
	var raw string
	err := svc.store.DB().QueryRowContext(ctx, `SELECT config_json FROM config WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		def := Default()
		if err := svc.seed(ctx, def); err != nil {
			return Config{}, err
		}
		return def, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}

	var c Config
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return c, nil
}

func (svc *Service) seed(ctx context.Context, c Config) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	_, err = svc.store.DB().ExecContext(ctx, `
		INSERT INTO config (id, config_json) VALUES (1, $1)
		ON CONFLICT (id) DO NOTHING`, string(raw))
	if err != nil {
		return fmt.Errorf("config: seed: %w", err)
	}
	return nil
}

// Update applies mutate to the current config and persists the result,
// writing a config_history snapshot and an audit_log entry ("config.update")
// in the same transaction as the config row update.
func (svc *Service) Update(ctx context.Context, actorID string, mutate func(*Config)) (Config, error) {
	current, err := svc.Get(ctx)
	if err != nil {
		return Config{}, err
	}
	mutate(&current)

	raw, err := json.Marshal(current)
	if err != nil {
		return Config{}, fmt.Errorf("config: marshal: %w", err)
	}

	err = svc.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE config SET config_json = $1, updated_at = now() WHERE id = 1`, string(raw)); err != nil {
			return fmt.Errorf("config: update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO config_history (id, config_json, changed_by) VALUES ($1, $2, $3)`,
			idgen.New(), string(raw), actorID); err != nil {
			return fmt.Errorf("config: history: %w", err)
		}
		if err := svc.store.Audit().Record(ctx, tx, store.AuditEntry{
			ID:       idgen.New(),
			ActorID:  actorID,
			Action:   "config.update",
			Metadata: map[string]any{"config": current},
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Config{}, err
	}
	return current, nil
}

// TogglePausePayouts flips the kill switch, the fastest lever an operator
// has to halt every payout mid-incident without touching any in-flight
// escrow's own state.
func (svc *Service) TogglePausePayouts(ctx context.Context, actorID string) (Config, error) {
	return svc.Update(ctx, actorID, func(c *Config) {
		c.PausePayouts = !c.PausePayouts
	})
}
