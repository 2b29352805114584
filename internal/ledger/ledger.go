// Package ledger records breakdown documents and their inventory-transaction
// entries. A document books one breakdown result against a product: deliveries
// move stock out, endorsements move it in. Soft-deleting a document keeps the
// record and appends reversal entries so lot balances stay consistent.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rlagrimas/lot-breakdown/internal/breakdown"
)

// Kind is the ledger direction a document books its quantities under.
type Kind string

const (
	// Delivery books quantities out of stock (finished goods leaving).
	Delivery Kind = "DELIVERY"
	// Endorsement books quantities into stock (QC-failed material returning).
	Endorsement Kind = "ENDORSEMENT"
)

// Valid reports whether the kind is one of the known directions.
func (k Kind) Valid() bool {
	return k == Delivery || k == Endorsement
}

// Entry is one row of the inventory-transaction ledger. Exactly one of
// QuantityIn and QuantityOut is non-zero; a lot's balance is the sum of its
// ins minus the sum of its outs.
type Entry struct {
	ID          uuid.UUID
	RefNo       string
	ProductCode string
	LotNumber   string
	QuantityIn  decimal.Decimal
	QuantityOut decimal.Decimal
	Reason      string
	RecordedAt  time.Time
}

// Document is a persisted breakdown: the reference number, direction, and the
// lot allocations it booked.
type Document struct {
	RefNo       string
	Kind        Kind
	ProductCode string
	Lots        []breakdown.Allocation
	CreatedBy   string
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

// Deleted reports whether the document has been soft-deleted.
func (d Document) Deleted() bool {
	return d.DeletedAt != nil
}

// Total sums the document's allocated quantities.
func (d Document) Total() decimal.Decimal {
	total := decimal.Zero
	for _, a := range d.Lots {
		total = total.Add(a.Quantity)
	}
	return total
}

// Balance is the available stock for one product/lot pair.
type Balance struct {
	ProductCode string
	LotNumber   string
	Available   decimal.Decimal
}

// Store persists documents and their ledger entries.
type Store interface {
	SaveDocument(doc Document) error
	Document(refNo string) (Document, error)
	Documents() ([]Document, error)
	SoftDelete(refNo, reason string) error
	Restore(refNo string) error
	Entries(refNo string) ([]Entry, error)
	Balances(productCode, lotFilter string) ([]Balance, error)
}

var (
	// ErrUnknownRef is returned when no document carries the reference number.
	ErrUnknownRef = errors.New("no document with that reference number")
	// ErrDuplicateRef is returned when a reference number is already taken.
	ErrDuplicateRef = errors.New("reference number already exists")
	// ErrAlreadyDeleted is returned when soft-deleting a deleted document.
	ErrAlreadyDeleted = errors.New("document is already deleted")
	// ErrNotDeleted is returned when restoring a document that is not deleted.
	ErrNotDeleted = errors.New("document is not deleted")
	// ErrInvalidDocument is returned when a document is missing its reference
	// number, product code, direction, or allocations.
	ErrInvalidDocument = errors.New("document must carry a reference number, product code, known kind, and at least one positive allocation")
	// ErrInvalidLotFilter is returned when a lot filter with a hyphen is not
	// a parseable lot range.
	ErrInvalidLotFilter = errors.New("lot filter must be a lot number fragment or a range like 100A-105A")
)
