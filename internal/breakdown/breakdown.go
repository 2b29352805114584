// Package breakdown splits a total quantity across a series of lot
// identifiers: as many full lots of a fixed weight as fit, plus one optional
// remainder lot. The computation is pure and exact; full lots plus remainder
// always sum to the requested total with zero decimal error.
package breakdown

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rlagrimas/lot-breakdown/internal/lot"
)

// maxLotCount bounds the full-lot count; physical batches run well under a
// few thousand lots.
const maxLotCount = 100_000

// Calculator describes the behaviour required from a breakdown calculator.
type Calculator interface {
	Compute(req Request) (Result, error)
}

type decimalCalculator struct{}

// New creates a Calculator backed by exact decimal arithmetic.
func New() Calculator {
	return &decimalCalculator{}
}

func (c *decimalCalculator) Compute(req Request) (Result, error) {
	if req.TotalQuantity.Sign() <= 0 || req.WeightPerLot.Sign() <= 0 {
		return Result{}, ErrInvalidMagnitude
	}
	if req.Source == nil {
		return Result{}, ErrMissingSource
	}

	// QuoRem with precision 0 gives the integer quotient and an exact
	// decimal remainder: total == quo*weight + rem.
	quo, rem := req.TotalQuantity.QuoRem(req.WeightPerLot, 0)
	if !quo.LessThanOrEqual(decimal.NewFromInt(maxLotCount)) {
		return Result{}, ErrTooManyLots
	}
	numFull := int(quo.IntPart())

	switch src := req.Source.(type) {
	case Range:
		return computeFromRange(src.Lots, numFull, req.WeightPerLot, rem)
	case Single:
		return computeFromStart(src.Start, numFull, req.WeightPerLot, rem, req.ExcessPolicy)
	default:
		return Result{}, ErrMissingSource
	}
}

func computeFromRange(r lot.Range, numFull int, weight, rem decimal.Decimal) (Result, error) {
	ids := r.Expand()
	if len(ids) != numFull {
		return Result{}, &LotCountMismatchError{Expected: numFull, Actual: len(ids)}
	}

	res := Result{FullLots: allocate(ids, weight)}
	if rem.Sign() > 0 {
		// Ranges carry no excess policy; the excess always spills into the
		// next identifier after the range.
		next := r.End.Next()
		res.Remainder = &Allocation{LotNumber: next.String(), Quantity: rem}
	}
	return res, nil
}

func computeFromStart(start string, numFull int, weight, rem decimal.Decimal, policy Policy) (Result, error) {
	trimmed := strings.TrimSpace(start)
	if trimmed == "" {
		return Result{}, ErrMissingSource
	}

	startID, err := lot.Parse(trimmed)
	if err != nil {
		return computeFromLiteral(strings.ToUpper(trimmed), numFull, weight, rem, policy), nil
	}

	ids := lot.Sequence(startID, numFull)
	res := Result{FullLots: allocate(ids, weight)}

	if rem.Sign() > 0 {
		switch {
		case numFull == 0:
			// The whole quantity fits below one full lot; it keeps the
			// starting identifier.
			res.Remainder = &Allocation{LotNumber: startID.String(), Quantity: rem}
		case policy == AssociateWithLast:
			res.Remainder = &Allocation{LotNumber: ids[numFull-1].String(), Quantity: rem}
		default:
			res.Remainder = &Allocation{LotNumber: ids[numFull-1].Next().String(), Quantity: rem}
		}
	}
	return res, nil
}

// computeFromLiteral handles starting lot text outside the numeric-suffix
// grammar: the literal label repeats on every full lot and the excess either
// shares it or gets an "-EXCESS" marker appended.
func computeFromLiteral(label string, numFull int, weight, rem decimal.Decimal, policy Policy) Result {
	full := make([]Allocation, numFull)
	for i := range full {
		full[i] = Allocation{LotNumber: label, Quantity: weight}
	}

	res := Result{FullLots: full}
	if rem.Sign() > 0 {
		if numFull == 0 || policy == AssociateWithLast {
			res.Remainder = &Allocation{LotNumber: label, Quantity: rem}
		} else {
			res.Remainder = &Allocation{LotNumber: label + "-EXCESS", Quantity: rem}
		}
	}
	return res
}

func allocate(ids []lot.Identifier, weight decimal.Decimal) []Allocation {
	out := make([]Allocation, len(ids))
	for i, id := range ids {
		out[i] = Allocation{LotNumber: id.String(), Quantity: weight}
	}
	return out
}
