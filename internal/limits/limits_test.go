package limits

import (
	"context"
	"testing"
	"time"

	"github.com/yourusername/trustora/internal/amount"
)

type fakeCounters struct {
	sums   map[string]float64
	counts map[string]int64
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{sums: map[string]float64{}, counts: map[string]int64{}}
}

func (f *fakeCounters) IncrByFloatWithExpire(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error) {
	f.sums[key] += delta
	return f.sums[key], nil
}

func (f *fakeCounters) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func testLimits() Limits {
	return Limits{
		HardMax:        amount.MustParse("1000"),
		AutoPayoutMax:  amount.MustParse("100"),
		DailySumMax:    amount.MustParse("500"),
		HourlyCountMax: 3,
	}
}

func TestHardMaxRejectedBeforeTracking(t *testing.T) {
	l := testLimits()
	kv := newFakeCounters()
	err := l.CheckAndTrack(context.Background(), kv, "addr1", amount.MustParse("2000"))
	if err == nil {
		t.Fatal("expected hard max to reject")
	}
	if len(kv.sums) != 0 {
		t.Error("hard-max rejection must not have touched counters")
	}
}

func TestAutoPayoutMaxRejectedBeforeTracking(t *testing.T) {
	l := testLimits()
	kv := newFakeCounters()
	err := l.CheckAndTrack(context.Background(), kv, "addr1", amount.MustParse("400"))
	if err == nil {
		t.Fatal("expected amount above auto-payout max to reject")
	}
	if len(kv.sums) != 0 {
		t.Error("auto-payout-max rejection must not have touched counters")
	}
}

func TestDailySumExceededAfterTracking(t *testing.T) {
	l := testLimits()
	l.AutoPayoutMax = amount.MustParse("1000") // isolate this test from the auto-payout-max gate
	kv := newFakeCounters()
	ctx := context.Background()

	if err := l.CheckAndTrack(ctx, kv, "addr1", amount.MustParse("400")); err != nil {
		t.Fatalf("first payout should pass: %v", err)
	}
	err := l.CheckAndTrack(ctx, kv, "addr1", amount.MustParse("200"))
	if err == nil {
		t.Fatal("expected daily sum limit to trigger")
	}
	// The excess payout is still counted, not refunded.
	if kv.sums["limits:day:addr1"] != 600 {
		t.Errorf("sum = %v, want 600 (excess not refunded)", kv.sums["limits:day:addr1"])
	}
}

func TestHourlyCountExceeded(t *testing.T) {
	l := testLimits()
	kv := newFakeCounters()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckAndTrack(ctx, kv, "addr1", amount.MustParse("1")); err != nil {
			t.Fatalf("call %d should pass: %v", i, err)
		}
	}
	if err := l.CheckAndTrack(ctx, kv, "addr1", amount.MustParse("1")); err == nil {
		t.Fatal("expected hourly count limit to trigger on 4th call")
	}
}

func TestAllowsAutoPayout(t *testing.T) {
	l := testLimits()
	if !l.AllowsAutoPayout(amount.MustParse("50")) {
		t.Error("expected small payout to auto-approve")
	}
	if l.AllowsAutoPayout(amount.MustParse("150")) {
		t.Error("expected large payout to require manual approval")
	}
}
