package breakdown

import (
	"github.com/shopspring/decimal"

	"github.com/rlagrimas/lot-breakdown/internal/lot"
)

// Policy selects where an excess quantity lands when the total does not
// divide evenly into full lots.
type Policy int

const (
	// AssociateWithLast books the excess against the last full lot's
	// identifier. The resulting duplicate lot number is intentional.
	AssociateWithLast Policy = iota
	// CreateNewLot books the excess under the next identifier in the series.
	CreateNewLot
)

// Source identifies the lot numbers a breakdown draws from: either a single
// starting identifier or an explicit inclusive range.
type Source interface {
	isSource()
}

// Single starts the series at one identifier and increments from there.
// Start text that does not match the numeric-suffix grammar is carried
// literally onto every full lot, matching how operators label odd batches.
type Single struct {
	Start string
}

func (Single) isSource() {}

// Range assigns identifiers from a pre-expanded inclusive range. The range
// length must match the computed full-lot count exactly.
type Range struct {
	Lots lot.Range
}

func (Range) isSource() {}

// Request captures one breakdown computation. Quantities are exact decimals;
// binary floats would drift against the inventory ledger.
type Request struct {
	TotalQuantity decimal.Decimal
	WeightPerLot  decimal.Decimal
	Source        Source
	ExcessPolicy  Policy
}

// Allocation pairs a lot number with the quantity booked to it.
type Allocation struct {
	LotNumber string
	Quantity  decimal.Decimal
}

// Result is a complete breakdown: full lots of WeightPerLot each, plus at
// most one remainder lot absorbing the leftover.
type Result struct {
	FullLots  []Allocation
	Remainder *Allocation
}

// Allocations returns full lots followed by the remainder, in booking order.
func (r Result) Allocations() []Allocation {
	out := make([]Allocation, 0, len(r.FullLots)+1)
	out = append(out, r.FullLots...)
	if r.Remainder != nil {
		out = append(out, *r.Remainder)
	}
	return out
}

// Total sums every allocated quantity. For any result produced by Compute it
// equals the request's TotalQuantity exactly.
func (r Result) Total() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.FullLots {
		total = total.Add(a.Quantity)
	}
	if r.Remainder != nil {
		total = total.Add(r.Remainder.Quantity)
	}
	return total
}
