package breakdown

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMagnitude is returned when the total quantity or the weight
	// per lot is not strictly positive.
	ErrInvalidMagnitude = errors.New("total quantity and weight per lot must be greater than zero")
	// ErrMissingSource is returned when the request carries neither a
	// starting lot nor a lot range.
	ErrMissingSource = errors.New("a starting lot number or lot range is required")
	// ErrTooManyLots is returned when the computed full-lot count exceeds
	// any plausible physical batch.
	ErrTooManyLots = errors.New("computed lot count exceeds the supported maximum")
)

// LotCountMismatchError reports that a supplied range disagrees with the
// quantity-derived full-lot count. Reconciliation is a caller decision; the
// calculator never picks a side.
type LotCountMismatchError struct {
	Expected int
	Actual   int
}

func (e *LotCountMismatchError) Error() string {
	return fmt.Sprintf("lot range holds %d identifiers but the quantity requires %d full lots", e.Actual, e.Expected)
}
