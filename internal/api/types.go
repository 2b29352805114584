package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rlagrimas/lot-breakdown/internal/breakdown"
	"github.com/rlagrimas/lot-breakdown/internal/ledger"
	"github.com/rlagrimas/lot-breakdown/internal/render"
)

// breakdownRequest is the wire form of a breakdown computation. Quantities
// travel as JSON strings so they stay exact decimals end to end.
type breakdownRequest struct {
	TotalQuantity *decimal.Decimal `json:"totalQuantity"`
	WeightPerLot  *decimal.Decimal `json:"weightPerLot,omitempty"`
	LotNumber     string           `json:"lotNumber"`
	IsRange       bool             `json:"isRange,omitempty"`
	ExcessPolicy  string           `json:"excessPolicy,omitempty"`
}

// documentRequest books a breakdown against a product on the ledger.
type documentRequest struct {
	breakdownRequest
	ProductCode string `json:"productCode"`
	CreatedBy   string `json:"createdBy,omitempty"`
}

type allocationPayload struct {
	LotNumber string          `json:"lotNumber"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type breakdownResponse struct {
	TotalQuantity     decimal.Decimal     `json:"totalQuantity"`
	WeightPerLot      decimal.Decimal     `json:"weightPerLot"`
	FullLots          []allocationPayload `json:"fullLots"`
	Remainder         *allocationPayload  `json:"remainder,omitempty"`
	FullLotCount      int                 `json:"fullLotCount"`
	Preview           render.Preview      `json:"preview"`
	CalculationTimeMs int64               `json:"calculationTimeMs"`
}

func newBreakdownResponse(req breakdown.Request, result breakdown.Result, elapsed time.Duration) breakdownResponse {
	resp := breakdownResponse{
		TotalQuantity:     req.TotalQuantity,
		WeightPerLot:      req.WeightPerLot,
		FullLots:          make([]allocationPayload, 0, len(result.FullLots)),
		FullLotCount:      len(result.FullLots),
		Preview:           render.NewPreview(result),
		CalculationTimeMs: elapsed.Milliseconds(),
	}
	for _, a := range result.FullLots {
		resp.FullLots = append(resp.FullLots, allocationPayload{LotNumber: a.LotNumber, Quantity: a.Quantity})
	}
	if result.Remainder != nil {
		resp.Remainder = &allocationPayload{
			LotNumber: result.Remainder.LotNumber,
			Quantity:  result.Remainder.Quantity,
		}
	}
	return resp
}

type documentPayload struct {
	RefNo       string              `json:"refNo"`
	Kind        string              `json:"kind"`
	ProductCode string              `json:"productCode"`
	Lots        []allocationPayload `json:"lots"`
	Total       decimal.Decimal     `json:"total"`
	CreatedBy   string              `json:"createdBy,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	DeletedAt   *time.Time          `json:"deletedAt,omitempty"`
}

func newDocumentPayload(doc ledger.Document) documentPayload {
	lots := make([]allocationPayload, 0, len(doc.Lots))
	for _, a := range doc.Lots {
		lots = append(lots, allocationPayload{LotNumber: a.LotNumber, Quantity: a.Quantity})
	}
	return documentPayload{
		RefNo:       doc.RefNo,
		Kind:        string(doc.Kind),
		ProductCode: doc.ProductCode,
		Lots:        lots,
		Total:       doc.Total(),
		CreatedBy:   doc.CreatedBy,
		CreatedAt:   doc.CreatedAt,
		DeletedAt:   doc.DeletedAt,
	}
}

type entryPayload struct {
	ID          string          `json:"id"`
	RefNo       string          `json:"refNo"`
	ProductCode string          `json:"productCode"`
	LotNumber   string          `json:"lotNumber"`
	QuantityIn  decimal.Decimal `json:"quantityIn"`
	QuantityOut decimal.Decimal `json:"quantityOut"`
	Reason      string          `json:"reason"`
	RecordedAt  time.Time       `json:"recordedAt"`
}

func newEntryPayloads(entries []ledger.Entry) []entryPayload {
	out := make([]entryPayload, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryPayload{
			ID:          e.ID.String(),
			RefNo:       e.RefNo,
			ProductCode: e.ProductCode,
			LotNumber:   e.LotNumber,
			QuantityIn:  e.QuantityIn,
			QuantityOut: e.QuantityOut,
			Reason:      e.Reason,
			RecordedAt:  e.RecordedAt,
		})
	}
	return out
}

type documentResponse struct {
	Document documentPayload `json:"document"`
	Preview  *render.Preview `json:"preview,omitempty"`
	Message  string          `json:"message,omitempty"`
}

type documentListResponse struct {
	Documents []documentPayload `json:"documents"`
}

type documentDetailResponse struct {
	Document documentPayload `json:"document"`
	Entries  []entryPayload  `json:"entries"`
}

type balancePayload struct {
	ProductCode string          `json:"productCode"`
	LotNumber   string          `json:"lotNumber"`
	Available   decimal.Decimal `json:"available"`
	Display     string          `json:"display"`
}

type balanceListResponse struct {
	Balances []balancePayload `json:"balances"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type mismatchResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details"`
	Expected   int    `json:"expected"`
	Actual     int    `json:"actual"`
	Suggestion string `json:"suggestion,omitempty"`
}
