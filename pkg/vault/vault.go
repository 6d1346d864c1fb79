// Package vault locks un-redeemed certificates as collateral for a fixed
// amount of stable supply. One loan record per certificate id; deposit
// mints, withdraw burns, always exactly SCCPerAsset. Loan state is
// committed before any external transfer call so a reentrant attempt
// observes the post-state and fails the ordinary check.
package vault

import (
	"sync"

	"astaverde/pkg/domain"
)

const (
	// SCCPerAsset is the fixed stable-unit mint/burn per certificate.
	// There is no variable collateralization ratio.
	SCCPerAsset int64 = 20

	// MaxBatchSize bounds depositBatch/withdrawBatch list lengths.
	MaxBatchSize = 50
)

// Custodian is the certificate registry surface the vault depends on.
type Custodian interface {
	IsRedeemed(id domain.TokenID) (bool, error)
	OwnerOf(id domain.TokenID) (domain.Address, error)
	Pull(operator, from domain.Address, id domain.TokenID) error
	Transfer(caller, to domain.Address, id domain.TokenID) error
	MaxTokenID() domain.TokenID
}

// Stable is the stable-supply controller surface the vault depends on.
type Stable interface {
	Mint(caller, to domain.Address, amount int64) error
	BurnFrom(caller, holder domain.Address, amount int64) error
	BalanceOf(addr domain.Address) int64
	Allowance(owner, spender domain.Address) int64
}

// Loan records that a certificate is locked against minted supply.
// Borrower is left stale once Active drops; Active alone gates access.
type Loan struct {
	Borrower domain.Address
	Active   bool
}

type Vault struct {
	mu     sync.Mutex
	owner  domain.Address
	addr   domain.Address // the vault's custody address
	paused bool
	loans  map[domain.TokenID]*Loan
	cust   Custodian
	scc    Stable
	sink   domain.Sink
}

func New(owner, addr domain.Address, cust Custodian, scc Stable, sink domain.Sink) *Vault {
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &Vault{
		owner: owner,
		addr:  addr,
		loans: make(map[domain.TokenID]*Loan),
		cust:  cust,
		scc:   scc,
		sink:  sink,
	}
}

// Addr is the vault's custody address on the certificate registry.
func (v *Vault) Addr() domain.Address { return v.addr }

// Deposit locks the caller's certificate and mints SCCPerAsset to them.
func (v *Vault) Deposit(caller domain.Address, id domain.TokenID) error {
	if err := v.activate(caller, id); err != nil {
		return err
	}
	// Interactions after the state commitment. A reentrant Deposit
	// during the pull sees the active loan and is rejected above.
	if err := v.cust.Pull(v.addr, caller, id); err != nil {
		v.deactivate(id)
		return err
	}
	if err := v.scc.Mint(v.addr, caller, SCCPerAsset); err != nil {
		_ = v.cust.Transfer(v.addr, caller, id)
		v.deactivate(id)
		return err
	}
	v.sink.Record(domain.NewEvent(domain.EvDeposited, domain.Deposited{
		TokenID:  id,
		Borrower: caller,
		Minted:   SCCPerAsset,
	}))
	return nil
}

// activate runs every deposit check and commits the loan record.
func (v *Vault) activate(caller domain.Address, id domain.TokenID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.paused {
		return domain.ErrPaused
	}
	return v.activateLocked(caller, id)
}

func (v *Vault) activateLocked(caller domain.Address, id domain.TokenID) error {
	if ln := v.loans[id]; ln != nil && ln.Active {
		return domain.ErrLoanActive
	}
	redeemed, err := v.cust.IsRedeemed(id)
	if err != nil {
		return err
	}
	if redeemed {
		return domain.ErrRedeemed
	}
	own, err := v.cust.OwnerOf(id)
	if err != nil {
		return err
	}
	if own != caller {
		return domain.ErrNotTokenOwner
	}
	v.loans[id] = &Loan{Borrower: caller, Active: true}
	return nil
}

func (v *Vault) deactivate(id domain.TokenID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ln := v.loans[id]; ln != nil {
		ln.Active = false
	}
}

func (v *Vault) reactivate(borrower domain.Address, id domain.TokenID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loans[id] = &Loan{Borrower: borrower, Active: true}
}

// Withdraw burns SCCPerAsset from the caller's pre-granted allowance and
// returns the exact certificate. Borrower-only.
func (v *Vault) Withdraw(caller domain.Address, id domain.TokenID) error {
	v.mu.Lock()
	if v.paused {
		v.mu.Unlock()
		return domain.ErrPaused
	}
	if err := v.checkBorrowerLocked(caller, id); err != nil {
		v.mu.Unlock()
		return err
	}
	// State commitment before the external calls.
	v.loans[id].Active = false
	v.mu.Unlock()

	if err := v.scc.BurnFrom(v.addr, caller, SCCPerAsset); err != nil {
		v.reactivate(caller, id)
		return err
	}
	if err := v.cust.Transfer(v.addr, caller, id); err != nil {
		_ = v.scc.Mint(v.addr, caller, SCCPerAsset)
		v.reactivate(caller, id)
		return err
	}
	v.sink.Record(domain.NewEvent(domain.EvWithdrawn, domain.Withdrawn{
		TokenID:  id,
		Borrower: caller,
		Burned:   SCCPerAsset,
	}))
	return nil
}

func (v *Vault) checkBorrowerLocked(caller domain.Address, id domain.TokenID) error {
	ln := v.loans[id]
	if ln == nil || !ln.Active {
		return domain.ErrLoanInactive
	}
	if ln.Borrower != caller {
		return domain.ErrNotBorrower
	}
	return nil
}

// DepositBatch applies the per-id deposit rules over the whole list,
// all-or-nothing. Supply for the whole list is minted in one call.
func (v *Vault) DepositBatch(caller domain.Address, ids []domain.TokenID) error {
	if err := validateList(ids); err != nil {
		return err
	}
	v.mu.Lock()
	if v.paused {
		v.mu.Unlock()
		return domain.ErrPaused
	}
	committed := make([]domain.TokenID, 0, len(ids))
	for _, id := range ids {
		if err := v.activateLocked(caller, id); err != nil {
			for _, c := range committed {
				v.loans[c].Active = false
			}
			v.mu.Unlock()
			return err
		}
		committed = append(committed, id)
	}
	v.mu.Unlock()

	pulled := make([]domain.TokenID, 0, len(ids))
	fail := func(err error) error {
		for _, p := range pulled {
			_ = v.cust.Transfer(v.addr, caller, p)
		}
		for _, c := range committed {
			v.deactivate(c)
		}
		return err
	}
	for _, id := range ids {
		if err := v.cust.Pull(v.addr, caller, id); err != nil {
			return fail(err)
		}
		pulled = append(pulled, id)
	}
	if err := v.scc.Mint(v.addr, caller, SCCPerAsset*int64(len(ids))); err != nil {
		return fail(err)
	}
	for _, id := range ids {
		v.sink.Record(domain.NewEvent(domain.EvDeposited, domain.Deposited{
			TokenID:  id,
			Borrower: caller,
			Minted:   SCCPerAsset,
		}))
	}
	return nil
}

// WithdrawBatch verifies the caller's balance and allowance cover the
// whole list before touching any id, so insufficiency surfaces as one
// aggregate failure, then applies the per-id withdraw rules atomically.
func (v *Vault) WithdrawBatch(caller domain.Address, ids []domain.TokenID) error {
	if err := validateList(ids); err != nil {
		return err
	}
	need := SCCPerAsset * int64(len(ids))
	v.mu.Lock()
	if v.paused {
		v.mu.Unlock()
		return domain.ErrPaused
	}
	for _, id := range ids {
		if err := v.checkBorrowerLocked(caller, id); err != nil {
			v.mu.Unlock()
			return err
		}
	}
	if v.scc.BalanceOf(caller) < need {
		v.mu.Unlock()
		return domain.ErrInsufficientBalance
	}
	if v.scc.Allowance(caller, v.addr) < need {
		v.mu.Unlock()
		return domain.ErrInsufficientAllowance
	}
	for _, id := range ids {
		v.loans[id].Active = false
	}
	v.mu.Unlock()

	if err := v.scc.BurnFrom(v.addr, caller, need); err != nil {
		for _, id := range ids {
			v.reactivate(caller, id)
		}
		return err
	}
	for i, id := range ids {
		if err := v.cust.Transfer(v.addr, caller, id); err != nil {
			for _, back := range ids[:i] {
				_ = v.cust.Pull(v.addr, caller, back)
			}
			_ = v.scc.Mint(v.addr, caller, need)
			for _, rid := range ids {
				v.reactivate(caller, rid)
			}
			return err
		}
	}
	for _, id := range ids {
		v.sink.Record(domain.NewEvent(domain.EvWithdrawn, domain.Withdrawn{
			TokenID:  id,
			Borrower: caller,
			Burned:   SCCPerAsset,
		}))
	}
	return nil
}

func validateList(ids []domain.TokenID) error {
	if len(ids) == 0 {
		return domain.ErrEmptyBatch
	}
	if len(ids) > MaxBatchSize {
		return domain.ErrBatchTooLarge
	}
	seen := make(map[domain.TokenID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return domain.ErrDuplicateToken
		}
		seen[id] = true
	}
	return nil
}

// AdminSweepNFT recovers orphaned collateral: certificates transferred
// directly into vault custody with no loan. Blunt by design; it refuses
// to move anything a live borrower is entitled to.
func (v *Vault) AdminSweepNFT(caller domain.Address, id domain.TokenID, to domain.Address) error {
	v.mu.Lock()
	if caller != v.owner {
		v.mu.Unlock()
		return domain.ErrNotOwner
	}
	if !domain.ValidAddress(to) || to.IsZero() {
		v.mu.Unlock()
		return domain.ErrBadAddress
	}
	if ln := v.loans[id]; ln != nil && ln.Active {
		v.mu.Unlock()
		return domain.ErrLoanActive
	}
	v.mu.Unlock()

	if err := v.cust.Transfer(v.addr, to, id); err != nil {
		return err
	}
	v.sink.Record(domain.NewEvent(domain.EvCollateralSwept, domain.CollateralSwept{
		TokenID: id,
		To:      to,
	}))
	return nil
}

// Loan returns a copy of the loan record; zero-valued for unknown ids.
func (v *Vault) Loan(id domain.TokenID) Loan {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ln := v.loans[id]; ln != nil {
		return *ln
	}
	return Loan{}
}

// UserLoans scans the registry's full id range for the caller's active
// loans. Linear in certificates ever minted; acceptable at expected
// volumes.
func (v *Vault) UserLoans(addr domain.Address) []domain.TokenID {
	max := v.cust.MaxTokenID()
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []domain.TokenID
	for id := domain.TokenID(1); id <= max; id++ {
		if ln := v.loans[id]; ln != nil && ln.Active && ln.Borrower == addr {
			out = append(out, id)
		}
	}
	return out
}

func (v *Vault) UserLoanCount(addr domain.Address) int {
	return len(v.UserLoans(addr))
}

func (v *Vault) TotalActiveLoans() int {
	max := v.cust.MaxTokenID()
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for id := domain.TokenID(1); id <= max; id++ {
		if ln := v.loans[id]; ln != nil && ln.Active {
			n++
		}
	}
	return n
}

// Pause blocks deposits and withdrawals. Admin sweep and reads stay live.
func (v *Vault) Pause(caller domain.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if caller != v.owner {
		return domain.ErrNotOwner
	}
	if v.paused {
		return domain.ErrPaused
	}
	v.paused = true
	v.sink.Record(domain.NewEvent(domain.EvPauseChanged, domain.PauseChanged{Engine: "vault", Paused: true}))
	return nil
}

func (v *Vault) Unpause(caller domain.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if caller != v.owner {
		return domain.ErrNotOwner
	}
	if !v.paused {
		return domain.ErrNotPaused
	}
	v.paused = false
	v.sink.Record(domain.NewEvent(domain.EvPauseChanged, domain.PauseChanged{Engine: "vault", Paused: false}))
	return nil
}

func (v *Vault) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}
