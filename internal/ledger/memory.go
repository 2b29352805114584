package ledger

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rlagrimas/lot-breakdown/internal/breakdown"
	"github.com/rlagrimas/lot-breakdown/internal/lot"
)

// MemoryStore keeps documents and ledger entries in memory and guards access
// with a RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string]Document
	entries []Entry

	clock func() time.Time
}

// MemoryStoreOption configures MemoryStore behaviour.
type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.clock = clock
	}
}

// NewMemoryStore initialises an empty in-memory store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		docs: make(map[string]Document),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveDocument validates and stores the document, then appends one ledger
// entry per allocation in the document's direction.
func (s *MemoryStore) SaveDocument(doc Document) error {
	if doc.RefNo == "" || doc.ProductCode == "" || !doc.Kind.Valid() || len(doc.Lots) == 0 {
		return ErrInvalidDocument
	}
	for _, a := range doc.Lots {
		if a.LotNumber == "" || a.Quantity.Sign() <= 0 {
			return ErrInvalidDocument
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.RefNo]; exists {
		return ErrDuplicateRef
	}

	now := s.clock()
	doc.CreatedAt = now
	doc.DeletedAt = nil
	doc.Lots = cloneAllocations(doc.Lots)
	s.docs[doc.RefNo] = doc

	s.appendEntriesLocked(doc, doc.Kind == Endorsement, string(doc.Kind), now)
	return nil
}

// Document returns the document for the reference number, deleted or not.
func (s *MemoryStore) Document(refNo string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[refNo]
	if !ok {
		return Document{}, ErrUnknownRef
	}
	return cloneDocument(doc), nil
}

// Documents returns every document ordered by reference number.
func (s *MemoryStore) Documents() ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, cloneDocument(doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RefNo < out[j].RefNo })
	return out, nil
}

// SoftDelete marks the document deleted and appends reversal entries in the
// opposite direction so the affected lot balances return to their prior
// values.
func (s *MemoryStore) SoftDelete(refNo, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[refNo]
	if !ok {
		return ErrUnknownRef
	}
	if doc.Deleted() {
		return ErrAlreadyDeleted
	}

	now := s.clock()
	doc.DeletedAt = &now
	s.docs[refNo] = doc

	if reason == "" {
		reason = "REVERSAL"
	}
	s.appendEntriesLocked(doc, doc.Kind != Endorsement, reason, now)
	return nil
}

// Restore clears the soft-delete mark and re-applies the document's entries
// in their original direction.
func (s *MemoryStore) Restore(refNo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[refNo]
	if !ok {
		return ErrUnknownRef
	}
	if !doc.Deleted() {
		return ErrNotDeleted
	}

	now := s.clock()
	doc.DeletedAt = nil
	s.docs[refNo] = doc

	s.appendEntriesLocked(doc, doc.Kind == Endorsement, "RESTORE", now)
	return nil
}

// Entries returns the ledger entries recorded under the reference number, in
// recording order.
func (s *MemoryStore) Entries(refNo string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.docs[refNo]; !ok {
		return nil, ErrUnknownRef
	}

	out := make([]Entry, 0, 8)
	for _, e := range s.entries {
		if e.RefNo == refNo {
			out = append(out, e)
		}
	}
	return out, nil
}

// Balances sums quantity-in minus quantity-out per product/lot pair, keeping
// only lots with stock remaining. The lot filter is either a fragment matched
// anywhere in the lot number or an inclusive range such as "100A-105A".
func (s *MemoryStore) Balances(productCode, lotFilter string) ([]Balance, error) {
	match, err := lotMatcher(lotFilter)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct{ product, lotNumber string }
	sums := make(map[key]decimal.Decimal)
	for _, e := range s.entries {
		if productCode != "" && e.ProductCode != productCode {
			continue
		}
		if !match(e.LotNumber) {
			continue
		}
		k := key{e.ProductCode, e.LotNumber}
		sums[k] = sums[k].Add(e.QuantityIn).Sub(e.QuantityOut)
	}

	out := make([]Balance, 0, len(sums))
	for k, available := range sums {
		if available.Sign() <= 0 {
			continue
		}
		out = append(out, Balance{ProductCode: k.product, LotNumber: k.lotNumber, Available: available})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductCode != out[j].ProductCode {
			return out[i].ProductCode < out[j].ProductCode
		}
		return out[i].LotNumber < out[j].LotNumber
	})
	return out, nil
}

func lotMatcher(filter string) (func(string) bool, error) {
	filter = strings.ToUpper(strings.TrimSpace(filter))
	if filter == "" {
		return func(string) bool { return true }, nil
	}

	if strings.Contains(filter, "-") {
		r, err := lot.ParseRange(filter)
		if err != nil {
			return nil, ErrInvalidLotFilter
		}
		return func(lotNumber string) bool {
			id, err := lot.Parse(lotNumber)
			if err != nil {
				return false
			}
			return id.Suffix == r.Start.Suffix &&
				id.Number >= r.Start.Number && id.Number <= r.End.Number
		}, nil
	}

	return func(lotNumber string) bool {
		return strings.Contains(strings.ToUpper(lotNumber), filter)
	}, nil
}

func (s *MemoryStore) appendEntriesLocked(doc Document, inbound bool, reason string, at time.Time) {
	for _, a := range doc.Lots {
		entry := Entry{
			ID:          uuid.New(),
			RefNo:       doc.RefNo,
			ProductCode: doc.ProductCode,
			LotNumber:   a.LotNumber,
			Reason:      reason,
			RecordedAt:  at,
		}
		if inbound {
			entry.QuantityIn = a.Quantity
		} else {
			entry.QuantityOut = a.Quantity
		}
		s.entries = append(s.entries, entry)
	}
}

func cloneAllocations(src []breakdown.Allocation) []breakdown.Allocation {
	out := make([]breakdown.Allocation, len(src))
	copy(out, src)
	return out
}

func cloneDocument(doc Document) Document {
	doc.Lots = cloneAllocations(doc.Lots)
	if doc.DeletedAt != nil {
		at := *doc.DeletedAt
		doc.DeletedAt = &at
	}
	return doc
}
