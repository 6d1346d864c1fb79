// Package pricing computes Dutch-auction prices for certificate batches
// and adapts the global base price to recent sale velocity.
package pricing

import "time"

const (
	// GenesisBasePrice seeds the global base price, in whole
	// payment-asset units.
	GenesisBasePrice int64 = 230

	// FloorPrice is the lowest a batch price or the base price can reach.
	FloorPrice int64 = 40

	// DecayPerDay is subtracted from a batch's starting price for every
	// whole day since mint.
	DecayPerDay int64 = 1
)

// Price returns the current per-unit price of a batch: the starting price
// minus one unit per whole elapsed day, never below the floor.
func Price(startingPrice int64, mintedAt, now time.Time) int64 {
	if now.Before(mintedAt) {
		return startingPrice
	}
	days := int64(now.Sub(mintedAt) / (24 * time.Hour))
	p := startingPrice - DecayPerDay*days
	if p < FloorPrice {
		return FloorPrice
	}
	return p
}

// BatchStats is the sale-velocity evidence the registry hands to a
// Strategy when a new batch is about to be minted.
type BatchStats struct {
	MintedAt  time.Time
	SoldOutAt time.Time // zero if the batch has not sold out
	HasUnsold bool
}

// Strategy decides the base price for the next minted batch. The exact
// thresholds are tunable; callers depend only on this interface.
type Strategy interface {
	Next(current int64, stats []BatchStats, now time.Time) int64
}

// VelocityStrategy bumps the base price up when a batch sold out quickly
// and down while unsold stock sits past the stale window. The result is
// clamped to the floor.
type VelocityStrategy struct {
	SellOutWindow time.Duration
	StaleWindow   time.Duration
	Step          int64
}

// DefaultStrategy returns the tuning used at launch.
func DefaultStrategy() *VelocityStrategy {
	return &VelocityStrategy{
		SellOutWindow: 2 * 24 * time.Hour,
		StaleWindow:   4 * 24 * time.Hour,
		Step:          10,
	}
}

func (s *VelocityStrategy) Next(current int64, stats []BatchStats, now time.Time) int64 {
	fast, stale := false, false
	for _, b := range stats {
		if !b.SoldOutAt.IsZero() && b.SoldOutAt.Sub(b.MintedAt) <= s.SellOutWindow {
			fast = true
		}
		if b.HasUnsold && now.Sub(b.MintedAt) >= s.StaleWindow {
			stale = true
		}
	}
	next := current
	switch {
	case fast:
		next += s.Step
	case stale:
		next -= s.Step
	}
	if next < FloorPrice {
		next = FloorPrice
	}
	return next
}
