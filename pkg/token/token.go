// Package token is an in-memory fungible ledger with a supply cap, an
// allowance table and a minter capability set. The stable unit (SCC) is
// one instance; dev and test environments instantiate a second ledger as
// the six-decimal payment asset.
package token

import (
	"sync"

	"astaverde/pkg/domain"
)

// DefaultMaxSupply caps SCC issuance.
const DefaultMaxSupply int64 = 1_000_000_000

type Ledger struct {
	mu         sync.Mutex
	cap        int64 // <= 0 means uncapped
	total      int64
	balances   map[domain.Address]int64
	allowances map[domain.Address]map[domain.Address]int64
	minters    map[domain.Address]bool
	admin      domain.Address
	renounced  bool
}

// New creates a ledger administered by admin. The admin can grant minter
// capabilities until it renounces; it holds no minting power itself.
func New(admin domain.Address, cap int64) *Ledger {
	return &Ledger{
		cap:        cap,
		balances:   make(map[domain.Address]int64),
		allowances: make(map[domain.Address]map[domain.Address]int64),
		minters:    make(map[domain.Address]bool),
		admin:      admin,
	}
}

// GrantMinter adds addr to the minter set. Bootstrap-only: fails forever
// once the admin has renounced.
func (l *Ledger) GrantMinter(caller, addr domain.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.admin {
		return domain.ErrNotOwner
	}
	if l.renounced {
		return domain.ErrAdminRenounced
	}
	if !domain.ValidAddress(addr) || addr.IsZero() {
		return domain.ErrBadAddress
	}
	l.minters[addr] = true
	return nil
}

// RenounceAdmin permanently drops the granting privilege.
func (l *Ledger) RenounceAdmin(caller domain.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if caller != l.admin {
		return domain.ErrNotOwner
	}
	if l.renounced {
		return domain.ErrAdminRenounced
	}
	l.renounced = true
	return nil
}

func (l *Ledger) IsMinter(addr domain.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minters[addr]
}

func (l *Ledger) AdminRenounced() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renounced
}

func (l *Ledger) Mint(caller, to domain.Address, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.minters[caller] {
		return domain.ErrNotMinter
	}
	if to.IsZero() {
		return domain.ErrZeroAddress
	}
	if amount <= 0 {
		return domain.ErrZeroAmount
	}
	if l.cap > 0 && l.total+amount > l.cap {
		return domain.ErrSupplyCapExceeded
	}
	l.total += amount
	l.balances[to] += amount
	return nil
}

func (l *Ledger) Burn(caller domain.Address, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount <= 0 {
		return domain.ErrZeroAmount
	}
	if l.balances[caller] < amount {
		return domain.ErrInsufficientBalance
	}
	l.balances[caller] -= amount
	l.total -= amount
	return nil
}

// BurnFrom burns from holder against caller's allowance.
func (l *Ledger) BurnFrom(caller, holder domain.Address, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount <= 0 {
		return domain.ErrZeroAmount
	}
	if l.allowances[holder][caller] < amount {
		return domain.ErrInsufficientAllowance
	}
	if l.balances[holder] < amount {
		return domain.ErrInsufficientBalance
	}
	l.allowances[holder][caller] -= amount
	l.balances[holder] -= amount
	l.total -= amount
	return nil
}

func (l *Ledger) Approve(owner, spender domain.Address, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if spender.IsZero() {
		return domain.ErrZeroAddress
	}
	if amount < 0 {
		return domain.ErrZeroAmount
	}
	m := l.allowances[owner]
	if m == nil {
		m = make(map[domain.Address]int64)
		l.allowances[owner] = m
	}
	m[spender] = amount
	return nil
}

func (l *Ledger) Transfer(from, to domain.Address, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(from, to, amount)
}

// TransferFrom moves holder funds on behalf of spender, allowance-gated.
func (l *Ledger) TransferFrom(spender, from, to domain.Address, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if to.IsZero() {
		return domain.ErrZeroAddress
	}
	if amount <= 0 {
		return domain.ErrZeroAmount
	}
	if l.allowances[from][spender] < amount {
		return domain.ErrInsufficientAllowance
	}
	if l.balances[from] < amount {
		return domain.ErrInsufficientBalance
	}
	l.allowances[from][spender] -= amount
	return l.transfer(from, to, amount)
}

func (l *Ledger) transfer(from, to domain.Address, amount int64) error {
	if to.IsZero() {
		return domain.ErrZeroAddress
	}
	if amount <= 0 {
		return domain.ErrZeroAmount
	}
	if l.balances[from] < amount {
		return domain.ErrInsufficientBalance
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

func (l *Ledger) BalanceOf(addr domain.Address) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

func (l *Ledger) Allowance(owner, spender domain.Address) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[owner][spender]
}

func (l *Ledger) TotalSupply() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
