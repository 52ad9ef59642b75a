// Package chainwatch implements one generic scan-loop engine shared by
// both chains, replacing the original system's two near-duplicate
// watcher_tron/watcher_bsc scripts with a single Watcher driving a
// per-chain Backend, the way the teacher's ChainAdapter interface
// generalizes Bitcoin/Ethereum behind one surface.
package chainwatch

import (
	"context"
	"time"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/chains"
)

// Transfer is a single confirmed-or-pending on-chain USDT transfer
// observed by a Backend.
type Transfer struct {
	TxHash      string
	ToAddress   string
	Amount      amount.Micro
	BlockNumber int64
	Confirmations int64
}

// Backend is the minimal per-chain capability chainwatch.Watcher needs: the
// current chain tip, and the set of token transfers in a block range.
// internal/rpcclient supplies the TRC20 and BEP20 implementations.
type Backend interface {
	Chain() chains.Chain
	LatestBlock(ctx context.Context) (int64, error)
	TransferLogs(ctx context.Context, fromBlock, toBlock int64) ([]Transfer, error)
}

// Cursor is the minimal persistence the Watcher needs for its scan
// position and deep-rescan timer; internal/kv supplies the Redis-backed
// implementation.
type Cursor interface {
	GetCursor(ctx context.Context, key string) (int64, error)
	SetCursor(ctx context.Context, key string, block int64) error
	GetLastRescan(ctx context.Context, key string) (int64, error)
	SetLastRescan(ctx context.Context, key string, unixTime int64) error
}

// DepositSink receives transfers that land on a deposit address the
// watcher recognizes as belonging to an in-flight escrow, doing the actual
// database row-lock-and-transition work. internal/coordinator supplies it.
type DepositSink interface {
	// KnownDepositAddresses returns the set of deposit addresses on the
	// watcher's chain currently awaiting a deposit.
	KnownDepositAddresses(ctx context.Context) (map[string]bool, error)
	// ApplyDeposit idempotently records transfer against whichever escrow
	// owns its ToAddress.
	ApplyDeposit(ctx context.Context, transfer Transfer) error
}

// Watcher drives the scan algorithm in spec §4.4: a normal scan advances
// from the last cursor, and a periodic deep rescan widens the window to
// catch deposits whose confirmations matured while the watcher was behind.
type Watcher struct {
	backend Backend
	cursor  Cursor
	sink    DepositSink
	now     func() time.Time
}

func New(backend Backend, cursor Cursor, sink DepositSink) *Watcher {
	return &Watcher{backend: backend, cursor: cursor, sink: sink, now: time.Now}
}

// Run loops ScanOnce every chains.ScanIntervalSeconds until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(chains.ScanIntervalSeconds * time.Second)
	defer ticker.Stop()

	for {
		if err := w.ScanOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) cursorKey() string     { return "watcher:cursor:" + string(w.backend.Chain()) }
func (w *Watcher) rescanKey() string     { return "watcher:last_rescan:" + string(w.backend.Chain()) }

// ScanOnce runs a single pass of the algorithm: decide whether this pass is
// a deep rescan or a normal scan, compute the block range, skip entirely
// if there are no escrows awaiting a deposit on this chain, fetch transfer
// logs, and apply any whose target address is a known deposit address.
func (w *Watcher) ScanOnce(ctx context.Context) error {
	latest, err := w.backend.LatestBlock(ctx)
	if err != nil {
		return err
	}

	lastBlock, err := w.cursor.GetCursor(ctx, w.cursorKey())
	if err != nil {
		return err
	}
	lastRescan, err := w.cursor.GetLastRescan(ctx, w.rescanKey())
	if err != nil {
		return err
	}

	now := w.now().Unix()
	isRescan := now-lastRescan >= chains.RescanIntervalSeconds

	var from int64
	if isRescan {
		from = max64(latest-chains.RescanDepthBlocks, 0)
	} else {
		from = max64(latest-chains.NormalScanDepthBlocks, lastBlock+1)
	}
	if from > latest {
		from = latest
	}

	addresses, err := w.sink.KnownDepositAddresses(ctx)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		// Nothing to watch for; still advance the cursor so a quiet
		// period doesn't force an ever-widening rescan window later.
		return w.advance(ctx, latest, isRescan, now)
	}

	transfers, err := w.backend.TransferLogs(ctx, from, latest)
	if err != nil {
		return err
	}

	requiredConf := chains.RequiredConfirmations(w.backend.Chain())
	for _, t := range transfers {
		if !addresses[t.ToAddress] {
			continue
		}
		if t.Confirmations < requiredConf {
			continue
		}
		if err := w.sink.ApplyDeposit(ctx, t); err != nil {
			return err
		}
	}

	return w.advance(ctx, latest, isRescan, now)
}

func (w *Watcher) advance(ctx context.Context, latest int64, isRescan bool, now int64) error {
	if err := w.cursor.SetCursor(ctx, w.cursorKey(), latest); err != nil {
		return err
	}
	if isRescan {
		if err := w.cursor.SetLastRescan(ctx, w.rescanKey(), now); err != nil {
			return err
		}
	}
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
