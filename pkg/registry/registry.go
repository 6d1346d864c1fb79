// Package registry owns certificate and batch records, registry custody,
// the one-way redemption flag and the Dutch-auction purchase flow.
package registry

import (
	"sync"
	"time"

	"astaverde/pkg/domain"
	"astaverde/pkg/pricing"
)

const (
	// MaxBatchSize bounds mintBatch array lengths.
	MaxBatchSize = 50

	// MaxCIDLength bounds metadata identifier strings. The bound exists
	// to stop unbounded-cost storage griefing.
	MaxCIDLength = 100
)

// PaymentAsset is the external six-decimal payment-asset ledger surface
// the purchase flow needs. Buyers approve the registry's custody address
// as spender before calling BuyBatch.
type PaymentAsset interface {
	TransferFrom(spender, from, to domain.Address, amount int64) error
	Transfer(from, to domain.Address, amount int64) error
}

// Accruer books sale proceeds; implemented by payout.Ledger.
type Accruer interface {
	Accrue(producers []domain.Address, total int64) error
}

// Batch groups certificates minted together. TokenIDs ascend.
type Batch struct {
	ID            domain.BatchID
	TokenIDs      []domain.TokenID
	StartingPrice int64
	CreatedAt     time.Time
	Unsold        int
	SoldOutAt     time.Time // zero until the last certificate sells
}

// Token is one certificate record. Records are never destroyed.
type Token struct {
	ID       domain.TokenID
	BatchID  domain.BatchID
	Producer domain.Address
	Owner    domain.Address
	CID      string
	Redeemed bool
}

type Config struct {
	Owner    domain.Address
	Custody  domain.Address // the registry's own asset address
	Asset    PaymentAsset
	Payouts  Accruer
	Strategy pricing.Strategy
	Sink     domain.Sink
	Now      func() time.Time
}

type Registry struct {
	mu         sync.Mutex
	owner      domain.Address
	custody    domain.Address
	asset      PaymentAsset
	payouts    Accruer
	strategy   pricing.Strategy
	sink       domain.Sink
	now        func() time.Time
	paused     bool
	basePrice  int64
	lastAdjust time.Time
	batches    map[domain.BatchID]*Batch
	tokens     map[domain.TokenID]*Token
	operators  map[domain.Address]bool
	nextBatch  domain.BatchID
	nextToken  domain.TokenID
}

func New(cfg Config) *Registry {
	if cfg.Strategy == nil {
		cfg.Strategy = pricing.DefaultStrategy()
	}
	if cfg.Sink == nil {
		cfg.Sink = domain.NopSink{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		owner:     cfg.Owner,
		custody:   cfg.Custody,
		asset:     cfg.Asset,
		payouts:   cfg.Payouts,
		strategy:  cfg.Strategy,
		sink:      cfg.Sink,
		now:       cfg.Now,
		basePrice: pricing.GenesisBasePrice,
		batches:   make(map[domain.BatchID]*Batch),
		tokens:    make(map[domain.TokenID]*Token),
		operators: make(map[domain.Address]bool),
		nextBatch: 1,
		nextToken: 1,
	}
}

// ApproveOperator lets addr pull certificates out of holder custody via
// Pull. Granted to the vault at bootstrap.
func (r *Registry) ApproveOperator(caller, addr domain.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return domain.ErrNotOwner
	}
	if !domain.ValidAddress(addr) || addr.IsZero() {
		return domain.ErrBadAddress
	}
	r.operators[addr] = true
	return nil
}

// MintBatch creates sequential certificates for producers[i]/cids[i], all
// held in registry custody. The global base price is advanced by the
// velocity strategy before being captured as the batch starting price.
func (r *Registry) MintBatch(caller domain.Address, producers []domain.Address, cids []string) (domain.BatchID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return 0, domain.ErrNotOwner
	}
	if r.paused {
		return 0, domain.ErrPaused
	}
	if len(producers) != len(cids) {
		return 0, domain.ErrLengthMismatch
	}
	if len(producers) == 0 {
		return 0, domain.ErrEmptyBatch
	}
	if len(producers) > MaxBatchSize {
		return 0, domain.ErrBatchTooLarge
	}
	for _, p := range producers {
		if !domain.ValidAddress(p) || p.IsZero() {
			return 0, domain.ErrBadAddress
		}
	}
	for _, cid := range cids {
		if len(cid) > MaxCIDLength {
			return 0, domain.ErrCIDTooLong
		}
	}

	now := r.now()
	r.adjustBasePrice(now)

	b := &Batch{
		ID:            r.nextBatch,
		StartingPrice: r.basePrice,
		CreatedAt:     now,
		Unsold:        len(producers),
	}
	r.nextBatch++
	for i, p := range producers {
		id := r.nextToken
		r.nextToken++
		r.tokens[id] = &Token{
			ID:       id,
			BatchID:  b.ID,
			Producer: p,
			Owner:    r.custody,
			CID:      cids[i],
		}
		b.TokenIDs = append(b.TokenIDs, id)
	}
	r.batches[b.ID] = b

	r.sink.Record(domain.NewEvent(domain.EvBatchMinted, domain.BatchMinted{
		BatchID:       b.ID,
		TokenIDs:      b.TokenIDs,
		Producers:     producers,
		StartingPrice: b.StartingPrice,
	}))
	return b.ID, nil
}

// adjustBasePrice feeds the strategy every sell-out that happened since
// the last adjustment plus all batches still sitting on unsold stock.
func (r *Registry) adjustBasePrice(now time.Time) {
	var stats []pricing.BatchStats
	for _, b := range r.batches {
		if !b.SoldOutAt.IsZero() && b.SoldOutAt.After(r.lastAdjust) {
			stats = append(stats, pricing.BatchStats{MintedAt: b.CreatedAt, SoldOutAt: b.SoldOutAt})
		}
		if b.Unsold > 0 {
			stats = append(stats, pricing.BatchStats{MintedAt: b.CreatedAt, HasUnsold: true})
		}
	}
	next := r.strategy.Next(r.basePrice, stats, now)
	if next != r.basePrice {
		r.sink.Record(domain.NewEvent(domain.EvBasePriceChanged, domain.BasePriceChanged{
			Old: r.basePrice,
			New: next,
		}))
		r.basePrice = next
	}
	r.lastAdjust = now
}

// CurrentPrice returns the batch's per-unit price at the registry clock.
func (r *Registry) CurrentPrice(id domain.BatchID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return 0, domain.ErrUnknownBatch
	}
	return pricing.Price(b.StartingPrice, b.CreatedAt, r.now()), nil
}

// BuyBatch sells the qty lowest-id unsold certificates of a batch to the
// caller at the current price, bounded by the caller's maxTotal. Payment
// is pulled from the caller's allowance into registry custody, then the
// proceeds are accrued for producers and platform.
func (r *Registry) BuyBatch(caller domain.Address, id domain.BatchID, maxTotal int64, qty int) ([]domain.TokenID, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		return nil, 0, domain.ErrPaused
	}
	b, ok := r.batches[id]
	if !ok {
		return nil, 0, domain.ErrUnknownBatch
	}
	if qty <= 0 {
		return nil, 0, domain.ErrZeroQuantity
	}
	if qty > b.Unsold {
		return nil, 0, domain.ErrInsufficientStock
	}
	now := r.now()
	price := pricing.Price(b.StartingPrice, b.CreatedAt, now)
	total := price * int64(qty)
	if total > maxTotal {
		return nil, 0, domain.ErrPriceExceedsMax
	}

	if err := r.asset.TransferFrom(r.custody, caller, r.custody, total); err != nil {
		return nil, 0, err
	}

	// Lowest-id-first allocation over certificates still in custody.
	ids := make([]domain.TokenID, 0, qty)
	producers := make([]domain.Address, 0, qty)
	for _, tid := range b.TokenIDs {
		if len(ids) == qty {
			break
		}
		tok := r.tokens[tid]
		if tok.Owner != r.custody {
			continue
		}
		tok.Owner = caller
		ids = append(ids, tid)
		producers = append(producers, tok.Producer)
	}
	b.Unsold -= qty

	if err := r.payouts.Accrue(producers, total); err != nil {
		// Unwind the sale; the accruer rejected the booking.
		for _, tid := range ids {
			r.tokens[tid].Owner = r.custody
		}
		b.Unsold += qty
		_ = r.asset.Transfer(r.custody, caller, total)
		return nil, 0, err
	}

	r.sink.Record(domain.NewEvent(domain.EvTokensPurchased, domain.TokensPurchased{
		BatchID:    id,
		Buyer:      caller,
		TokenIDs:   ids,
		UnitPrice:  price,
		TotalPrice: total,
	}))
	if b.Unsold == 0 {
		b.SoldOutAt = now
		r.sink.Record(domain.NewEvent(domain.EvBatchSoldOut, domain.BatchSoldOut{BatchID: id}))
	}
	return ids, total, nil
}

// Redeem flips the certificate's one-way redeemed flag. Holder-only and
// independent of any vault state; allowed while paused.
func (r *Registry) Redeem(caller domain.Address, id domain.TokenID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[id]
	if !ok {
		return domain.ErrUnknownToken
	}
	if tok.Owner != caller {
		return domain.ErrNotTokenOwner
	}
	if tok.Redeemed {
		return domain.ErrRedeemed
	}
	tok.Redeemed = true
	r.sink.Record(domain.NewEvent(domain.EvTokenRedeemed, domain.TokenRedeemed{
		TokenID: id,
		Holder:  caller,
	}))
	return nil
}

// Transfer moves certificate ownership. The registry never re-absorbs a
// certificate it already sold, so transfers to its custody address are
// rejected outright.
func (r *Registry) Transfer(caller, to domain.Address, id domain.TokenID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[id]
	if !ok {
		return domain.ErrUnknownToken
	}
	if tok.Owner != caller {
		return domain.ErrNotTokenOwner
	}
	if to == r.custody {
		return domain.ErrRegistryRecipient
	}
	if !domain.ValidAddress(to) || to.IsZero() {
		return domain.ErrBadAddress
	}
	tok.Owner = to
	r.sink.Record(domain.NewEvent(domain.EvTokenTransferred, domain.TokenTransferred{
		TokenID: id,
		From:    caller,
		To:      to,
	}))
	return nil
}

// Pull moves a certificate from holder custody to an approved operator.
// This is the vault's deposit path.
func (r *Registry) Pull(operator, from domain.Address, id domain.TokenID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.operators[operator] {
		return domain.ErrNotOperator
	}
	tok, ok := r.tokens[id]
	if !ok {
		return domain.ErrUnknownToken
	}
	if tok.Owner != from {
		return domain.ErrNotTokenOwner
	}
	tok.Owner = operator
	r.sink.Record(domain.NewEvent(domain.EvTokenTransferred, domain.TokenTransferred{
		TokenID: id,
		From:    from,
		To:      operator,
	}))
	return nil
}

func (r *Registry) Pause(caller domain.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return domain.ErrNotOwner
	}
	if r.paused {
		return domain.ErrPaused
	}
	r.paused = true
	r.sink.Record(domain.NewEvent(domain.EvPauseChanged, domain.PauseChanged{Engine: "market", Paused: true}))
	return nil
}

func (r *Registry) Unpause(caller domain.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return domain.ErrNotOwner
	}
	if !r.paused {
		return domain.ErrNotPaused
	}
	r.paused = false
	r.sink.Record(domain.NewEvent(domain.EvPauseChanged, domain.PauseChanged{Engine: "market", Paused: false}))
	return nil
}

func (r *Registry) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

func (r *Registry) BasePrice() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.basePrice
}

func (r *Registry) OwnerOf(id domain.TokenID) (domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[id]
	if !ok {
		return "", domain.ErrUnknownToken
	}
	return tok.Owner, nil
}

func (r *Registry) IsRedeemed(id domain.TokenID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[id]
	if !ok {
		return false, domain.ErrUnknownToken
	}
	return tok.Redeemed, nil
}

// MaxTokenID is the high-water mark of ids ever issued; zero before the
// first mint. Vault scans take their bound from here.
func (r *Registry) MaxTokenID() domain.TokenID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextToken - 1
}

// TokenInfo returns a copy of the certificate record.
func (r *Registry) TokenInfo(id domain.TokenID) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[id]
	if !ok {
		return Token{}, domain.ErrUnknownToken
	}
	return *tok, nil
}

// BatchInfo returns a copy of the batch record.
func (r *Registry) BatchInfo(id domain.BatchID) (Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return Batch{}, domain.ErrUnknownBatch
	}
	cp := *b
	cp.TokenIDs = append([]domain.TokenID(nil), b.TokenIDs...)
	return cp, nil
}
