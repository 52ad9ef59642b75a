package escrow

import (
	"testing"

	"github.com/yourusername/trustora/internal/amount"
	"github.com/yourusername/trustora/internal/chains"
)

func newTestEscrow() *Escrow {
	return &Escrow{
		ID:             "e1",
		Chain:          chains.TRC20,
		Status:         AwaitingDeposit,
		BuyerID:        "buyer",
		SellerID:       "seller",
		ExpectedAmount: amount.MustParse("100"),
		Fee:            amount.DefaultFeeSnapshot,
	}
}

func TestValidateTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{Created, AwaitingDeposit, true},
		{Created, FundsLocked, false},
		{AwaitingDeposit, DepositSeen, true},
		{DepositSeen, FundsLocked, true},
		{DepositSeen, Underpaid, true},
		{Underpaid, FundsLocked, false}, // must go back through AwaitingDeposit
		{Underpaid, AwaitingDeposit, true},
		{PayoutQueued, PayoutSent, true},
		{PayoutSent, Completed, true},
		{Completed, AwaitingDeposit, false},
	}
	for _, c := range cases {
		err := ValidateTransition(c.from, c.to)
		if c.ok && err != nil {
			t.Errorf("ValidateTransition(%s, %s) = %v, want nil", c.from, c.to, err)
		}
		if !c.ok && err == nil {
			t.Errorf("ValidateTransition(%s, %s) = nil, want error", c.from, c.to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []Status{Completed, Expired, Cancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if AwaitingDeposit.Terminal() {
		t.Errorf("AwaitingDeposit should not be terminal")
	}
}

func TestRecordDepositExactMatch(t *testing.T) {
	e := newTestEscrow()
	status := e.RecordDeposit("0xabc", amount.MustParse("100"))
	if status != FundsLocked {
		t.Errorf("status = %s, want FUNDS_LOCKED", status)
	}
}

func TestRecordDepositUnderpaid(t *testing.T) {
	e := newTestEscrow()
	status := e.RecordDeposit("0xabc", amount.MustParse("50"))
	if status != Underpaid {
		t.Errorf("status = %s, want UNDERPAID", status)
	}
}

func TestRecordDepositOverpaid(t *testing.T) {
	e := newTestEscrow()
	status := e.RecordDeposit("0xabc", amount.MustParse("150"))
	if status != OverpaidReview {
		t.Errorf("status = %s, want OVERPAID_REVIEW", status)
	}
}

func TestCanRecordDepositIdempotent(t *testing.T) {
	e := newTestEscrow()
	if !e.CanRecordDeposit("0xabc") {
		t.Fatal("expected fresh escrow to accept deposit")
	}
	e.RecordDeposit("0xabc", amount.MustParse("100"))
	if !e.CanRecordDeposit("0xabc") {
		t.Error("expected a repeat of the same tx hash to be idempotently allowed")
	}
	if e.CanRecordDeposit("0xdef") {
		t.Error("expected a different tx hash to be rejected")
	}
}

func TestCanSendPayoutIdempotent(t *testing.T) {
	e := newTestEscrow()
	if !e.CanSendPayout() {
		t.Fatal("expected fresh escrow to allow payout")
	}
	e.PayoutTxHash = "0x123"
	if e.CanSendPayout() {
		t.Error("expected payout to be rejected once already sent")
	}
}

func TestChatFrozenIndependentOfStatus(t *testing.T) {
	e := newTestEscrow()
	e.Transition(DepositSeen)
	e.Transition(FundsLocked)
	e.Transition(Disputed)
	if e.ChatFrozen {
		t.Fatal("opening a dispute must not freeze chat on its own")
	}
	e.ToggleChatFrozen()
	if !e.ChatFrozen {
		t.Error("ToggleChatFrozen should flip the flag")
	}
}

func TestUserPublicHashStableAndShort(t *testing.T) {
	h1 := UserPublicHash("user-1", "salt")
	h2 := UserPublicHash("user-1", "salt")
	if h1 != h2 {
		t.Errorf("hash not stable: %s != %s", h1, h2)
	}
	if len(h1) != 6 || h1[:2] != "U#" {
		t.Errorf("unexpected hash shape: %s", h1)
	}
}

func TestValidateRejectsSameBuyerSeller(t *testing.T) {
	e := newTestEscrow()
	e.SellerID = e.BuyerID
	if err := e.Validate(); err == nil {
		t.Error("expected error when buyer == seller")
	}
}
