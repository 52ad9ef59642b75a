package chainwatch

import (
	"context"
	"testing"
	"time"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/chains"
)

type fakeBackend struct {
	chain     chains.Chain
	latest    int64
	transfers []Transfer
}

func (b *fakeBackend) Chain() chains.Chain { return b.chain }
func (b *fakeBackend) LatestBlock(ctx context.Context) (int64, error) { return b.latest, nil }
func (b *fakeBackend) TransferLogs(ctx context.Context, from, to int64) ([]Transfer, error) {
	return b.transfers, nil
}

type fakeCursor struct {
	cursors map[string]int64
	rescans map[string]int64
}

func newFakeCursor() *fakeCursor {
	return &fakeCursor{cursors: map[string]int64{}, rescans: map[string]int64{}}
}
func (c *fakeCursor) GetCursor(ctx context.Context, key string) (int64, error) { return c.cursors[key], nil }
func (c *fakeCursor) SetCursor(ctx context.Context, key string, block int64) error {
	c.cursors[key] = block
	return nil
}
func (c *fakeCursor) GetLastRescan(ctx context.Context, key string) (int64, error) {
	return c.rescans[key], nil
}
func (c *fakeCursor) SetLastRescan(ctx context.Context, key string, t int64) error {
	c.rescans[key] = t
	return nil
}

type fakeSink struct {
	addresses map[string]bool
	applied   []Transfer
}

func (s *fakeSink) KnownDepositAddresses(ctx context.Context) (map[string]bool, error) {
	return s.addresses, nil
}
func (s *fakeSink) ApplyDeposit(ctx context.Context, t Transfer) error {
	s.applied = append(s.applied, t)
	return nil
}

func TestScanOnceAppliesConfirmedDepositsToKnownAddresses(t *testing.T) {
	backend := &fakeBackend{
		chain:  chains.BEP20,
		latest: 1000,
		transfers: []Transfer{
			{TxHash: "0x1", ToAddress: "0xknown", Amount: amount.MustParse("10"), Confirmations: 20},
			{TxHash: "0x2", ToAddress: "0xunknown", Amount: amount.MustParse("10"), Confirmations: 20},
			{TxHash: "0x3", ToAddress: "0xknown", Amount: amount.MustParse("10"), Confirmations: 1},
		},
	}
	cursor := newFakeCursor()
	sink := &fakeSink{addresses: map[string]bool{"0xknown": true}}

	w := New(backend, cursor, sink)
	if err := w.ScanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(sink.applied) != 1 {
		t.Fatalf("applied %d transfers, want 1", len(sink.applied))
	}
	if sink.applied[0].TxHash != "0x1" {
		t.Errorf("applied wrong transfer: %+v", sink.applied[0])
	}
}

func TestScanOnceAdvancesCursorEvenWithNoEscrows(t *testing.T) {
	backend := &fakeBackend{chain: chains.TRC20, latest: 500}
	cursor := newFakeCursor()
	sink := &fakeSink{addresses: map[string]bool{}}

	w := New(backend, cursor, sink)
	if err := w.ScanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, _ := cursor.GetCursor(context.Background(), w.cursorKey())
	if got != 500 {
		t.Errorf("cursor = %d, want 500", got)
	}
}

func TestScanOnceUsesDeepRescanWindowWhenDue(t *testing.T) {
	backend := &fakeBackend{chain: chains.BEP20, latest: 10000}
	cursor := newFakeCursor()
	cursor.cursors[("watcher:cursor:" + string(chains.BEP20))] = 9999
	sink := &fakeSink{addresses: map[string]bool{"0xknown": true}}

	w := New(backend, cursor, sink)
	w.now = func() time.Time { return time.Unix(1_000_000, 0) }

	if err := w.ScanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	lastRescan := cursor.rescans[w.rescanKey()]
	if lastRescan != 1_000_000 {
		t.Errorf("expected rescan to run on first pass, last_rescan = %d", lastRescan)
	}
}
