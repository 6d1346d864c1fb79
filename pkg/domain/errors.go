package domain

import "errors"

// Stable failure reasons. Operator tooling and tests assert on these
// exact strings, so they are part of the external contract.

// Input validation.
var (
	ErrBadAddress     = errors.New("invalid address")
	ErrZeroAddress    = errors.New("zero address")
	ErrLengthMismatch = errors.New("array length mismatch")
	ErrEmptyBatch     = errors.New("empty batch")
	ErrBatchTooLarge  = errors.New("batch too large")
	ErrCIDTooLong     = errors.New("cid too long")
	ErrZeroAmount     = errors.New("zero amount")
	ErrZeroQuantity   = errors.New("zero quantity")
	ErrDuplicateToken = errors.New("duplicate token id")
)

// State conflicts.
var (
	ErrUnknownBatch      = errors.New("unknown batch")
	ErrUnknownToken      = errors.New("unknown token")
	ErrRedeemed          = errors.New("token redeemed")
	ErrNotTokenOwner     = errors.New("not token owner")
	ErrLoanActive        = errors.New("loan active")
	ErrLoanInactive      = errors.New("no active loan")
	ErrNotBorrower       = errors.New("not loan borrower")
	ErrInsufficientStock = errors.New("not enough unsold tokens")
	ErrRegistryRecipient = errors.New("registry cannot receive tokens")
)

// Authorization.
var (
	ErrNotOwner       = errors.New("not owner")
	ErrNotMinter      = errors.New("not a minter")
	ErrNotOperator    = errors.New("not an approved operator")
	ErrAdminRenounced = errors.New("admin renounced")
)

// Balance and allowance, standard ledger-style failures. These are
// deliberately distinct from the vault-specific conflicts above.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrSupplyCapExceeded     = errors.New("supply cap exceeded")
)

// Lifecycle.
var (
	ErrPaused          = errors.New("paused")
	ErrNotPaused       = errors.New("not paused")
	ErrNothingToClaim  = errors.New("nothing to claim")
	ErrNoSurplus       = errors.New("no surplus to recover")
	ErrPriceExceedsMax = errors.New("price exceeds max total")
)
