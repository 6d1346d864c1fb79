package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a state transition in the audit trail.
type EventType string

const (
	EvBatchMinted      EventType = "BATCH_MINTED"
	EvBasePriceChanged EventType = "BASE_PRICE_CHANGED"
	EvTokensPurchased  EventType = "TOKENS_PURCHASED"
	EvBatchSoldOut     EventType = "BATCH_SOLD_OUT"
	EvTokenRedeemed    EventType = "TOKEN_REDEEMED"
	EvTokenTransferred EventType = "TOKEN_TRANSFERRED"
	EvProceedsAccrued  EventType = "PROCEEDS_ACCRUED"
	EvProducerClaimed  EventType = "PRODUCER_CLAIMED"
	EvPlatformClaimed  EventType = "PLATFORM_CLAIMED"
	EvSurplusRecovered EventType = "SURPLUS_RECOVERED"
	EvDeposited        EventType = "VAULT_DEPOSITED"
	EvWithdrawn        EventType = "VAULT_WITHDRAWN"
	EvCollateralSwept  EventType = "COLLATERAL_SWEPT"
	EvPauseChanged     EventType = "PAUSE_CHANGED"
)

// Event is one entry in the durable audit trail. Payload field order is
// part of the external contract; payloads are the typed structs below.
type Event struct {
	ID      string    `json:"event_id"`
	Type    EventType `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

func NewEvent(t EventType, payload any) Event {
	return Event{ID: "evt_" + uuid.NewString(), Type: t, At: time.Now().UTC(), Payload: payload}
}

// Sink receives every emitted event. Implementations must not block the
// emitting engine; persistence failures are the sink's problem to report.
type Sink interface {
	Record(e Event)
}

// Typed payloads, one per transition.

type BatchMinted struct {
	BatchID       BatchID   `json:"batch_id"`
	TokenIDs      []TokenID `json:"token_ids"`
	Producers     []Address `json:"producers"`
	StartingPrice int64     `json:"starting_price"`
}

type BasePriceChanged struct {
	Old int64 `json:"old"`
	New int64 `json:"new"`
}

type TokensPurchased struct {
	BatchID    BatchID   `json:"batch_id"`
	Buyer      Address   `json:"buyer"`
	TokenIDs   []TokenID `json:"token_ids"`
	UnitPrice  int64     `json:"unit_price"`
	TotalPrice int64     `json:"total_price"`
}

type BatchSoldOut struct {
	BatchID BatchID `json:"batch_id"`
}

type TokenRedeemed struct {
	TokenID TokenID `json:"token_id"`
	Holder  Address `json:"holder"`
}

type TokenTransferred struct {
	TokenID TokenID `json:"token_id"`
	From    Address `json:"from"`
	To      Address `json:"to"`
}

type ProceedsAccrued struct {
	Total         int64 `json:"total"`
	PlatformShare int64 `json:"platform_share"`
	ProducerShare int64 `json:"producer_share"`
}

type ProducerClaimed struct {
	Producer Address `json:"producer"`
	Amount   int64   `json:"amount"`
}

type PlatformClaimed struct {
	To     Address `json:"to"`
	Amount int64   `json:"amount"`
}

type SurplusRecovered struct {
	To     Address `json:"to"`
	Amount int64   `json:"amount"`
}

type Deposited struct {
	TokenID  TokenID `json:"token_id"`
	Borrower Address `json:"borrower"`
	Minted   int64   `json:"minted"`
}

type Withdrawn struct {
	TokenID  TokenID `json:"token_id"`
	Borrower Address `json:"borrower"`
	Burned   int64   `json:"burned"`
}

type CollateralSwept struct {
	TokenID TokenID `json:"token_id"`
	To      Address `json:"to"`
}

type PauseChanged struct {
	Engine string `json:"engine"`
	Paused bool   `json:"paused"`
}

// MemorySink collects events for tests and dev mode.
type MemorySink struct {
	Events []Event
}

func (m *MemorySink) Record(e Event) { m.Events = append(m.Events, e) }

// NopSink discards events.
type NopSink struct{}

func (NopSink) Record(Event) {}
