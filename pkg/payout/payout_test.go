package payout

import (
	"errors"
	"testing"

	"astaverde/pkg/domain"
	"astaverde/pkg/token"
)

var (
	owner    = domain.Address("0x00000000000000000000000000000000000000a0")
	custody  = domain.Address("0x00000000000000000000000000000000000000a1")
	treasury = domain.Address("0x00000000000000000000000000000000000000a2")
	p1       = domain.Address("0x00000000000000000000000000000000000000d1")
	p2       = domain.Address("0x00000000000000000000000000000000000000d2")
	p3       = domain.Address("0x00000000000000000000000000000000000000d3")
	p4       = domain.Address("0x00000000000000000000000000000000000000d4")
)

// newFunded returns a payout ledger plus a payment-asset ledger holding
// amount at the custody address.
func newFunded(t *testing.T, amount int64) (*Ledger, *token.Ledger) {
	t.Helper()
	usdc := token.New(owner, 0)
	if err := usdc.GrantMinter(owner, owner); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if amount > 0 {
		if err := usdc.Mint(owner, custody, amount); err != nil {
			t.Fatalf("fund custody: %v", err)
		}
	}
	return New(owner, custody, usdc, nil), usdc
}

func TestAccrueSplitFourProducers(t *testing.T) {
	// Purchase of 4 certificates, total T=230*4=920.
	// Platform floor(920*0.3)=276, producers 644: per-unit 161, remainder 0.
	l, _ := newFunded(t, 920)
	if err := l.Accrue([]domain.Address{p1, p2, p3, p4}, 920); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if got := l.PlatformAccrued(); got != 276 {
		t.Fatalf("platform %d, want 276", got)
	}
	for _, p := range []domain.Address{p1, p2, p3, p4} {
		if got := l.ProducerBalance(p); got != 161 {
			t.Fatalf("producer %s got %d, want 161", p, got)
		}
	}
	if !l.Conserved() {
		t.Fatal("conservation broken")
	}
}

func TestAccrueRemainderGoesToFirst(t *testing.T) {
	// T=101: platform floor(30.3)=30, producers 71: per-unit 17 across 4,
	// remainder 3 to the first certificate's producer.
	l, _ := newFunded(t, 101)
	if err := l.Accrue([]domain.Address{p1, p2, p3, p4}, 101); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if got := l.PlatformAccrued(); got != 30 {
		t.Fatalf("platform %d, want 30", got)
	}
	if got := l.ProducerBalance(p1); got != 20 {
		t.Fatalf("first producer %d, want 20", got)
	}
	for _, p := range []domain.Address{p2, p3, p4} {
		if got := l.ProducerBalance(p); got != 17 {
			t.Fatalf("producer %s got %d, want 17", p, got)
		}
	}
	if !l.Conserved() {
		t.Fatal("conservation broken")
	}
}

func TestAccrueSameProducerAccumulates(t *testing.T) {
	l, _ := newFunded(t, 200)
	if err := l.Accrue([]domain.Address{p1, p1}, 200); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	// platform 60, producers 140, per-unit 70, both units to p1.
	if got := l.ProducerBalance(p1); got != 140 {
		t.Fatalf("got %d, want 140", got)
	}
}

func TestClaimProducer(t *testing.T) {
	l, usdc := newFunded(t, 920)
	if err := l.Accrue([]domain.Address{p1, p2, p3, p4}, 920); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	amt, err := l.ClaimProducer(p1)
	if err != nil || amt != 161 {
		t.Fatalf("claim: %d %v", amt, err)
	}
	if usdc.BalanceOf(p1) != 161 {
		t.Fatalf("p1 balance %d", usdc.BalanceOf(p1))
	}
	if l.ProducerBalance(p1) != 0 {
		t.Fatalf("balance not zeroed")
	}
	if _, err := l.ClaimProducer(p1); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Fatalf("got %v, want ErrNothingToClaim", err)
	}
	if !l.Conserved() {
		t.Fatal("conservation broken after claim")
	}
}

func TestClaimPlatform(t *testing.T) {
	l, usdc := newFunded(t, 920)
	if err := l.Accrue([]domain.Address{p1, p2, p3, p4}, 920); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if _, err := l.ClaimPlatform(p1, treasury); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("got %v, want ErrNotOwner", err)
	}
	amt, err := l.ClaimPlatform(owner, treasury)
	if err != nil || amt != 276 {
		t.Fatalf("claim: %d %v", amt, err)
	}
	if usdc.BalanceOf(treasury) != 276 {
		t.Fatalf("treasury %d", usdc.BalanceOf(treasury))
	}
	if _, err := l.ClaimPlatform(owner, treasury); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Fatalf("got %v, want ErrNothingToClaim", err)
	}
}

func TestRecoverSurplus(t *testing.T) {
	l, usdc := newFunded(t, 920)
	if err := l.Accrue([]domain.Address{p1, p2, p3, p4}, 920); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if _, err := l.RecoverSurplus(owner, treasury); !errors.Is(err, domain.ErrNoSurplus) {
		t.Fatalf("got %v, want ErrNoSurplus", err)
	}
	// Externally injected windfall: funds arrive at custody without accrual.
	if err := usdc.Mint(owner, custody, 55); err != nil {
		t.Fatalf("windfall: %v", err)
	}
	before := l.Tracked()
	amt, err := l.RecoverSurplus(owner, treasury)
	if err != nil || amt != 55 {
		t.Fatalf("recover: %d %v", amt, err)
	}
	if l.Tracked() != before {
		t.Fatalf("tracked totals changed: %d -> %d", before, l.Tracked())
	}
	if !l.Conserved() {
		t.Fatal("conservation broken after recovery")
	}
	if _, err := l.RecoverSurplus(p1, treasury); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("got %v, want ErrNotOwner", err)
	}
}

func TestConservationAcrossSequence(t *testing.T) {
	l, usdc := newFunded(t, 0)
	fund := func(amt int64) {
		if err := usdc.Mint(owner, custody, amt); err != nil {
			t.Fatalf("fund: %v", err)
		}
	}
	fund(920)
	if err := l.Accrue([]domain.Address{p1, p2, p3, p4}, 920); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	fund(101)
	if err := l.Accrue([]domain.Address{p1, p2, p3, p4}, 101); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if _, err := l.ClaimProducer(p2); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := l.ClaimPlatform(owner, treasury); err != nil {
		t.Fatalf("claim platform: %v", err)
	}
	if !l.Conserved() {
		t.Fatal("conservation broken")
	}
}
