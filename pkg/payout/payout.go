// Package payout accrues and distributes sale proceeds to producers and
// the platform using the pull-payment pattern. The load-bearing invariant:
// the payment-asset balance held at the custody address always equals
// platform accrued plus the sum of producer balances, except for windfalls
// injected from outside, which only RecoverSurplus can remove.
package payout

import (
	"sync"

	"astaverde/pkg/domain"
)

// PlatformSharePercent of every sale goes to the platform, floor division.
const PlatformSharePercent int64 = 30

// Asset is the external payment-asset ledger surface the payout engine
// needs: moving custody funds out on claims and reading the custody
// balance for surplus accounting.
type Asset interface {
	Transfer(from, to domain.Address, amount int64) error
	BalanceOf(addr domain.Address) int64
}

type Ledger struct {
	mu       sync.Mutex
	asset    Asset
	custody  domain.Address
	owner    domain.Address
	producer map[domain.Address]int64
	platform int64
	sink     domain.Sink
}

func New(owner, custody domain.Address, asset Asset, sink domain.Sink) *Ledger {
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &Ledger{
		asset:    asset,
		custody:  custody,
		owner:    owner,
		producer: make(map[domain.Address]int64),
		sink:     sink,
	}
}

// Accrue books the proceeds of one purchase. producers lists the producer
// of each purchased certificate in batch order; total is the sale total.
// The platform takes 30% (floored); the rest splits evenly across the
// certificates with the integer remainder going to the producer of the
// first one. The caller has already moved the funds into custody.
func (l *Ledger) Accrue(producers []domain.Address, total int64) error {
	if len(producers) == 0 {
		return domain.ErrEmptyBatch
	}
	if total <= 0 {
		return domain.ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	platformShare := total * PlatformSharePercent / 100
	producerShare := total - platformShare
	q := int64(len(producers))
	perUnit := producerShare / q
	remainder := producerShare % q

	l.platform += platformShare
	for i, p := range producers {
		amt := perUnit
		if i == 0 {
			amt += remainder
		}
		l.producer[p] += amt
	}
	l.sink.Record(domain.NewEvent(domain.EvProceedsAccrued, domain.ProceedsAccrued{
		Total:         total,
		PlatformShare: platformShare,
		ProducerShare: producerShare,
	}))
	return nil
}

// ClaimProducer pays out the caller's entire accrued balance. Deliberately
// not gated on any pause switch: access to earned funds is never frozen.
func (l *Ledger) ClaimProducer(caller domain.Address) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	amt := l.producer[caller]
	if amt == 0 {
		return 0, domain.ErrNothingToClaim
	}
	if err := l.asset.Transfer(l.custody, caller, amt); err != nil {
		return 0, err
	}
	l.producer[caller] = 0
	l.sink.Record(domain.NewEvent(domain.EvProducerClaimed, domain.ProducerClaimed{
		Producer: caller,
		Amount:   amt,
	}))
	return amt, nil
}

// ClaimPlatform pays the platform's accrued balance to to. Owner-only.
func (l *Ledger) ClaimPlatform(caller, to domain.Address) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return 0, domain.ErrNotOwner
	}
	if !domain.ValidAddress(to) || to.IsZero() {
		return 0, domain.ErrBadAddress
	}
	if l.platform == 0 {
		return 0, domain.ErrNothingToClaim
	}
	amt := l.platform
	if err := l.asset.Transfer(l.custody, to, amt); err != nil {
		return 0, err
	}
	l.platform = 0
	l.sink.Record(domain.NewEvent(domain.EvPlatformClaimed, domain.PlatformClaimed{
		To:     to,
		Amount: amt,
	}))
	return amt, nil
}

// RecoverSurplus moves the portion of the custody balance that exceeds
// the tracked totals. It can never touch accrued producer or platform
// funds; a zero surplus is an error.
func (l *Ledger) RecoverSurplus(caller, to domain.Address) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.owner {
		return 0, domain.ErrNotOwner
	}
	if !domain.ValidAddress(to) || to.IsZero() {
		return 0, domain.ErrBadAddress
	}
	surplus := l.asset.BalanceOf(l.custody) - l.trackedLocked()
	if surplus <= 0 {
		return 0, domain.ErrNoSurplus
	}
	if err := l.asset.Transfer(l.custody, to, surplus); err != nil {
		return 0, err
	}
	l.sink.Record(domain.NewEvent(domain.EvSurplusRecovered, domain.SurplusRecovered{
		To:     to,
		Amount: surplus,
	}))
	return surplus, nil
}

func (l *Ledger) ProducerBalance(addr domain.Address) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.producer[addr]
}

func (l *Ledger) PlatformAccrued() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.platform
}

// Tracked returns platform accrued plus the sum of producer balances.
func (l *Ledger) Tracked() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trackedLocked()
}

// Conserved reports whether the custody balance matches the tracked
// totals exactly (no untracked surplus, nothing lost).
func (l *Ledger) Conserved() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.asset.BalanceOf(l.custody) == l.trackedLocked()
}

func (l *Ledger) trackedLocked() int64 {
	sum := l.platform
	for _, v := range l.producer {
		sum += v
	}
	return sum
}
