package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rlagrimas/lot-breakdown/internal/breakdown"
	"github.com/rlagrimas/lot-breakdown/internal/ledger"
	"github.com/rlagrimas/lot-breakdown/internal/lot"
	"github.com/rlagrimas/lot-breakdown/internal/render"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Excess policy values accepted on the wire. RETAIN_ORIGINAL_LOT books the
// excess against the last full lot; NEW_LOT opens the next lot in the series.
const (
	policyNewLot = "NEW_LOT"
	policyRetain = "RETAIN_ORIGINAL_LOT"
)

// Handler wires calculator, ledger, and reference-sequence dependencies into
// HTTP handlers.
type Handler struct {
	calculator breakdown.Calculator
	store      ledger.Store
	refs       *ledger.RefSequence

	defaultWeightPerLot decimal.Decimal
	deliveryPrefix      string
	endorsementPrefix   string

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithDefaultWeightPerLot sets the weight applied when a request omits it.
func WithDefaultWeightPerLot(w decimal.Decimal) HandlerOption {
	return func(h *Handler) {
		h.defaultWeightPerLot = w
	}
}

// WithRefPrefixes sets the reference-number prefixes for deliveries and
// endorsements.
func WithRefPrefixes(delivery, endorsement string) HandlerOption {
	return func(h *Handler) {
		h.deliveryPrefix = delivery
		h.endorsementPrefix = endorsement
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(calc breakdown.Calculator, store ledger.Store, refs *ledger.RefSequence, opts ...HandlerOption) *Handler {
	h := &Handler{
		calculator:          calc,
		store:               store,
		refs:                refs,
		defaultWeightPerLot: decimal.RequireFromString("25.00"),
		deliveryPrefix:      "OUT",
		endorsementPrefix:   "QCF",
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	var req breakdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	calcReq, ok := h.buildCalcRequest(w, req)
	if !ok {
		return
	}

	start := time.Now()
	result, err := h.calculator.Compute(calcReq)
	elapsed := time.Since(start)

	if err != nil {
		writeComputeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newBreakdownResponse(calcReq, result, elapsed))
}

func (h *Handler) handlePostDelivery(w http.ResponseWriter, r *http.Request) {
	h.handlePostDocument(w, r, ledger.Delivery, h.deliveryPrefix)
}

func (h *Handler) handlePostEndorsement(w http.ResponseWriter, r *http.Request) {
	h.handlePostDocument(w, r, ledger.Endorsement, h.endorsementPrefix)
}

// handlePostDocument computes a breakdown and books it on the ledger under a
// freshly issued reference number.
func (h *Handler) handlePostDocument(w http.ResponseWriter, r *http.Request, kind ledger.Kind, prefix string) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	productCode := strings.ToUpper(strings.TrimSpace(req.ProductCode))
	if productCode == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "productCode is required")
		return
	}

	calcReq, ok := h.buildCalcRequest(w, req.breakdownRequest)
	if !ok {
		return
	}

	result, err := h.calculator.Compute(calcReq)
	if err != nil {
		writeComputeError(w, err)
		return
	}

	refNo := h.refs.Next(prefix)
	doc := ledger.Document{
		RefNo:       refNo,
		Kind:        kind,
		ProductCode: productCode,
		Lots:        result.Allocations(),
		CreatedBy:   strings.TrimSpace(req.CreatedBy),
	}
	if err := h.store.SaveDocument(doc); err != nil {
		writeInternalError(w, err)
		return
	}

	saved, err := h.store.Document(refNo)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	preview := render.NewPreview(result)
	writeJSON(w, http.StatusCreated, documentResponse{
		Document: newDocumentPayload(saved),
		Preview:  &preview,
		Message:  fmt.Sprintf("%s saved as %s", docLabel(kind), refNo),
	})
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.Documents()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	includeDeleted := r.URL.Query().Get("includeDeleted") == "true"
	payload := make([]documentPayload, 0, len(docs))
	for _, doc := range docs {
		if doc.Deleted() && !includeDeleted {
			continue
		}
		payload = append(payload, newDocumentPayload(doc))
	}
	writeJSON(w, http.StatusOK, documentListResponse{Documents: payload})
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	refNo := r.PathValue("ref")
	doc, err := h.store.Document(refNo)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	entries, err := h.store.Entries(refNo)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, documentDetailResponse{
		Document: newDocumentPayload(doc),
		Entries:  newEntryPayloads(entries),
	})
}

func (h *Handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	refNo := r.PathValue("ref")
	reason := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("reason")))

	if err := h.store.SoftDelete(refNo, reason); err != nil {
		writeStoreError(w, err)
		return
	}

	doc, err := h.store.Document(refNo)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, documentResponse{
		Document: newDocumentPayload(doc),
		Message:  fmt.Sprintf("%s deleted; ledger entries reversed", refNo),
	})
}

func (h *Handler) handleRestoreDocument(w http.ResponseWriter, r *http.Request) {
	refNo := r.PathValue("ref")

	if err := h.store.Restore(refNo); err != nil {
		writeStoreError(w, err)
		return
	}

	doc, err := h.store.Document(refNo)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, documentResponse{
		Document: newDocumentPayload(doc),
		Message:  fmt.Sprintf("%s restored; ledger entries re-applied", refNo),
	})
}

func (h *Handler) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	product := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("product")))
	lotFilter := r.URL.Query().Get("lot")

	balances, err := h.store.Balances(product, lotFilter)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidLotFilter) {
			writeError(w, http.StatusBadRequest, "Invalid lot filter", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	payload := make([]balancePayload, 0, len(balances))
	for _, b := range balances {
		payload = append(payload, balancePayload{
			ProductCode: b.ProductCode,
			LotNumber:   b.LotNumber,
			Available:   b.Available,
			Display:     render.Quantity(b.Available),
		})
	}
	writeJSON(w, http.StatusOK, balanceListResponse{Balances: payload})
}

// buildCalcRequest translates the wire payload into a calculator request,
// writing the HTTP error itself when the payload is unusable.
func (h *Handler) buildCalcRequest(w http.ResponseWriter, req breakdownRequest) (breakdown.Request, bool) {
	if req.TotalQuantity == nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "totalQuantity is required")
		return breakdown.Request{}, false
	}

	weight := h.defaultWeightPerLot
	if req.WeightPerLot != nil {
		weight = *req.WeightPerLot
	}

	lotText := strings.TrimSpace(req.LotNumber)
	if lotText == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "lotNumber is required")
		return breakdown.Request{}, false
	}

	var source breakdown.Source
	if req.IsRange {
		r, err := lot.ParseRange(lotText)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid lot range", err.Error())
			return breakdown.Request{}, false
		}
		source = breakdown.Range{Lots: r}
	} else {
		source = breakdown.Single{Start: lotText}
	}

	policy := breakdown.CreateNewLot
	switch strings.ToUpper(strings.TrimSpace(req.ExcessPolicy)) {
	case "", policyNewLot:
	case policyRetain:
		policy = breakdown.AssociateWithLast
	default:
		writeError(w, http.StatusBadRequest, "Invalid request",
			fmt.Sprintf("excessPolicy must be %s or %s", policyNewLot, policyRetain))
		return breakdown.Request{}, false
	}

	return breakdown.Request{
		TotalQuantity: *req.TotalQuantity,
		WeightPerLot:  weight,
		Source:        source,
		ExcessPolicy:  policy,
	}, true
}

func writeComputeError(w http.ResponseWriter, err error) {
	var mismatch *breakdown.LotCountMismatchError
	switch {
	case errors.As(err, &mismatch):
		writeJSON(w, http.StatusUnprocessableEntity, mismatchResponse{
			Error:      "Lot count mismatch",
			Details:    mismatch.Error(),
			Expected:   mismatch.Expected,
			Actual:     mismatch.Actual,
			Suggestion: "Adjust the range or quantity, or recompute with the count you decide to trust",
		})
	case errors.Is(err, breakdown.ErrInvalidMagnitude),
		errors.Is(err, breakdown.ErrMissingSource):
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, breakdown.ErrTooManyLots):
		writeError(w, http.StatusUnprocessableEntity, "Cannot break down", err.Error(),
			"Check the weight per lot; the computed lot count is implausibly large")
	default:
		writeInternalError(w, err)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnknownRef):
		writeError(w, http.StatusNotFound, "Not found", err.Error())
	case errors.Is(err, ledger.ErrAlreadyDeleted),
		errors.Is(err, ledger.ErrNotDeleted),
		errors.Is(err, ledger.ErrDuplicateRef):
		writeError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ledger.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, "Invalid document", err.Error())
	default:
		writeInternalError(w, err)
	}
}

func docLabel(kind ledger.Kind) string {
	if kind == ledger.Endorsement {
		return "Endorsement"
	}
	return "Delivery"
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
