package domain

import "regexp"

// Address is a 20-byte account identifier in 0x-hex form.
type Address string

const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func ValidAddress(a Address) bool {
	return addressRe.MatchString(string(a))
}

func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

// TokenID identifies a single certificate. Ids are sequential from 1;
// certificate records are arena-indexed by id and never destroyed.
type TokenID uint64

// BatchID identifies a mint batch. Sequential from 1.
type BatchID uint64
