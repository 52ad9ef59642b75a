// Package limits implements the payout rate/amount gate: hard and
// auto-payout ceilings checked before any counter is touched, followed by
// day/hour counters that are incremented regardless of whether the
// request later turns out to exceed them — matching the original
// check_and_track_limits contract, where an excess is detected only after
// the increment and is never refunded.
package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/apperr"
)

// Counters is the subset of internal/kv's Client this package needs,
// small enough to fake in tests without a real Redis instance.
type Counters interface {
	IncrByFloatWithExpire(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error)
	IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

const (
	dayTTL  = 24 * time.Hour
	hourTTL = 1 * time.Hour
)

// Limits is the set of ceilings a payout request is checked against.
type Limits struct {
	HardMax       amount.Micro
	AutoPayoutMax amount.Micro
	DailySumMax   amount.Micro
	HourlyCountMax int64
}

// CheckAndTrack evaluates gross against the hard ceiling, then increments
// the address's daily-sum and hourly-count counters, then evaluates the
// post-increment totals against the remaining limits. The order matters:
// the hard-max check happens before anything is written, exactly mirroring
// the original's "reject outright, or track and possibly flag after the
// fact" split.
func (l Limits) CheckAndTrack(ctx context.Context, kv Counters, address string, gross amount.Micro) error {
	if gross.Cmp(l.HardMax) > 0 {
		return apperr.New(apperr.CodeLimitExceeded, apperr.NonRetryable,
			fmt.Sprintf("amount %s exceeds hard maximum %s", gross, l.HardMax))
	}
	// The signer assumes admin pre-approval already routed anything over
	// AutoPayoutMax through the Coordinator; reject here too, defense in
	// depth against a Coordinator bug or a forged request reaching /payout
	// directly.
	if gross.Cmp(l.AutoPayoutMax) > 0 {
		return apperr.New(apperr.CodeLimitExceeded, apperr.NonRetryable,
			fmt.Sprintf("amount %s exceeds auto-payout maximum %s", gross, l.AutoPayoutMax))
	}

	dayKey := "limits:day:" + address
	hourKey := "limits:hour:" + address

	daySum, err := kv.IncrByFloatWithExpire(ctx, dayKey, float64(gross.Int64()), dayTTL)
	if err != nil {
		return fmt.Errorf("limits: track daily sum: %w", err)
	}
	hourCount, err := kv.IncrWithExpire(ctx, hourKey, hourTTL)
	if err != nil {
		return fmt.Errorf("limits: track hourly count: %w", err)
	}

	if l.DailySumMax.IsPositive() && amount.Micro(int64(daySum)).Cmp(l.DailySumMax) > 0 {
		return apperr.New(apperr.CodeRateLimited, apperr.UserIntervention,
			fmt.Sprintf("daily payout sum for %s exceeds limit", address))
	}
	if l.HourlyCountMax > 0 && hourCount > l.HourlyCountMax {
		return apperr.New(apperr.CodeRateLimited, apperr.UserIntervention,
			fmt.Sprintf("hourly payout count for %s exceeds limit", address))
	}
	return nil
}

// AllowsAutoPayout reports whether net is small enough to be released
// without requiring admin approval.
func (l Limits) AllowsAutoPayout(net amount.Micro) bool {
	return net.Cmp(l.AutoPayoutMax) <= 0
}
