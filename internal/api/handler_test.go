package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/rlagrimas/lot-breakdown/internal/breakdown"
	"github.com/rlagrimas/lot-breakdown/internal/ledger"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupTestRouter(t *testing.T) (http.Handler, *controllableClock) {
	t.Helper()

	clock := newControllableClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	store := ledger.NewMemoryStore(ledger.WithClock(clock.Now))
	refs := ledger.NewRefSequence(ledger.WithRefClock(clock.Now))
	calc := breakdown.New()

	handler := NewHandler(calc, store, refs,
		WithClock(clock.Now),
		WithDefaultWeightPerLot(decimal.RequireFromString("25.00")),
		WithRefPrefixes("OUT", "QCF"),
	)
	logger := zaptest.NewLogger(t)
	router := NewRouter(handler, logger, WithLogging(false))

	return router, clock
}

func postJSON(t *testing.T, router http.Handler, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	router, clock := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected timestamp %s, got %s", clock.Now(), body.Timestamp)
	}
}

func TestBreakdownEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := postJSON(t, router, "/api/breakdown", map[string]any{
		"totalQuantity": "220.00",
		"weightPerLot":  "50.00",
		"lotNumber":     "1001A",
		"excessPolicy":  "NEW_LOT",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		FullLots []struct {
			LotNumber string `json:"lotNumber"`
			Quantity  string `json:"quantity"`
		} `json:"fullLots"`
		Remainder *struct {
			LotNumber string `json:"lotNumber"`
			Quantity  string `json:"quantity"`
		} `json:"remainder"`
		FullLotCount int `json:"fullLotCount"`
		Preview      struct {
			Rows []struct {
				LotNumber    string `json:"lotNumber"`
				Quantity     string `json:"quantity"`
				RunningTotal string `json:"runningTotal"`
			} `json:"rows"`
			Total string `json:"total"`
		} `json:"preview"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.FullLotCount != 4 || len(body.FullLots) != 4 {
		t.Fatalf("expected 4 full lots, got %d", body.FullLotCount)
	}
	if body.FullLots[0].LotNumber != "1001A" || body.FullLots[3].LotNumber != "1004A" {
		t.Fatalf("unexpected full lot identifiers: %+v", body.FullLots)
	}
	if body.Remainder == nil || body.Remainder.LotNumber != "1005A" || body.Remainder.Quantity != "20" {
		t.Fatalf("unexpected remainder: %+v", body.Remainder)
	}
	if body.Preview.Total != "220.00" {
		t.Fatalf("expected preview total 220.00, got %s", body.Preview.Total)
	}
	if len(body.Preview.Rows) != 5 || body.Preview.Rows[4].RunningTotal != "220.00" {
		t.Fatalf("unexpected preview rows: %+v", body.Preview.Rows)
	}
}

func TestBreakdownEndpointUsesDefaultWeight(t *testing.T) {
	router, _ := setupTestRouter(t)

	// Default weight per lot is 25.00.
	rec := postJSON(t, router, "/api/breakdown", map[string]any{
		"totalQuantity": "50.00",
		"lotNumber":     "0001",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		FullLotCount int    `json:"fullLotCount"`
		WeightPerLot string `json:"weightPerLot"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.FullLotCount != 2 || body.WeightPerLot != "25" {
		t.Fatalf("expected 2 lots at default weight, got %+v", body)
	}
}

func TestBreakdownEndpointValidation(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name       string
		payload    map[string]any
		wantStatus int
	}{
		{
			name:       "MissingTotalQuantity",
			payload:    map[string]any{"lotNumber": "100A"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "MissingLotNumber",
			payload:    map[string]any{"totalQuantity": "100"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "NonPositiveQuantity",
			payload: map[string]any{
				"totalQuantity": "0", "weightPerLot": "50", "lotNumber": "100A",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "UnknownExcessPolicy",
			payload: map[string]any{
				"totalQuantity": "100", "weightPerLot": "50", "lotNumber": "100A", "excessPolicy": "SPLIT",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "MalformedRange",
			payload: map[string]any{
				"totalQuantity": "100", "weightPerLot": "50", "lotNumber": "100A-105B", "isRange": true,
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, router, "/api/breakdown", tt.payload)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestBreakdownEndpointLotCountMismatch(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := postJSON(t, router, "/api/breakdown", map[string]any{
		"totalQuantity": "220.00",
		"weightPerLot":  "50.00",
		"lotNumber":     "1-3",
		"isRange":       true,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Error    string `json:"error"`
		Expected int    `json:"expected"`
		Actual   int    `json:"actual"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Expected != 4 || body.Actual != 3 {
		t.Fatalf("expected mismatch {4,3}, got {%d,%d}", body.Expected, body.Actual)
	}
}

func TestDeliveryLifecycle(t *testing.T) {
	router, _ := setupTestRouter(t)

	// Stock arrives via an endorsement.
	rec := postJSON(t, router, "/api/endorsements", map[string]any{
		"totalQuantity": "220.00",
		"weightPerLot":  "50.00",
		"lotNumber":     "1001A",
		"excessPolicy":  "NEW_LOT",
		"productCode":   "fg-100",
		"createdBy":     "encoder1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var endorsed struct {
		Document struct {
			RefNo string `json:"refNo"`
			Kind  string `json:"kind"`
			Total string `json:"total"`
		} `json:"document"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&endorsed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if endorsed.Document.RefNo != "QCF-2608-0001" {
		t.Fatalf("expected QCF-2608-0001, got %s", endorsed.Document.RefNo)
	}
	if endorsed.Document.Kind != "ENDORSEMENT" || endorsed.Document.Total != "220" {
		t.Fatalf("unexpected document: %+v", endorsed.Document)
	}

	// Deliver part of it out.
	rec = postJSON(t, router, "/api/deliveries", map[string]any{
		"totalQuantity": "100.00",
		"weightPerLot":  "50.00",
		"lotNumber":     "1001A-1002A",
		"isRange":       true,
		"productCode":   "FG-100",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var delivered struct {
		Document struct {
			RefNo string `json:"refNo"`
		} `json:"document"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&delivered); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if delivered.Document.RefNo != "OUT-2608-0001" {
		t.Fatalf("expected OUT-2608-0001, got %s", delivered.Document.RefNo)
	}

	// Delivered lots drop out of the balance listing.
	req := httptest.NewRequest(http.MethodGet, "/api/balances?product=FG-100", nil)
	balRec := httptest.NewRecorder()
	router.ServeHTTP(balRec, req)
	if balRec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", balRec.Code)
	}

	var balances struct {
		Balances []struct {
			LotNumber string `json:"lotNumber"`
			Available string `json:"available"`
			Display   string `json:"display"`
		} `json:"balances"`
	}
	if err := json.NewDecoder(balRec.Body).Decode(&balances); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(balances.Balances) != 3 {
		t.Fatalf("expected 3 lots with stock, got %+v", balances.Balances)
	}
	if balances.Balances[0].LotNumber != "1003A" || balances.Balances[0].Display != "50.00" {
		t.Fatalf("unexpected first balance: %+v", balances.Balances[0])
	}

	// Soft delete the delivery; the stock returns.
	req = httptest.NewRequest(http.MethodDelete, "/api/documents/OUT-2608-0001?reason=ENCODING+ERROR", nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, req)
	if delRec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", delRec.Code, delRec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/balances?product=FG-100&lot=1001A-1002A", nil)
	balRec = httptest.NewRecorder()
	router.ServeHTTP(balRec, req)
	balances.Balances = nil
	if err := json.NewDecoder(balRec.Body).Decode(&balances); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(balances.Balances) != 2 {
		t.Fatalf("expected both lots restored, got %+v", balances.Balances)
	}

	// Deleted documents are hidden unless asked for.
	req = httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, req)
	var list struct {
		Documents []struct {
			RefNo string `json:"refNo"`
		} `json:"documents"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Documents) != 1 || list.Documents[0].RefNo != "QCF-2608-0001" {
		t.Fatalf("expected only the endorsement listed, got %+v", list.Documents)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/documents?includeDeleted=true", nil)
	listRec = httptest.NewRecorder()
	router.ServeHTTP(listRec, req)
	list.Documents = nil
	if err := json.NewDecoder(listRec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Documents) != 2 {
		t.Fatalf("expected both documents listed, got %+v", list.Documents)
	}

	// Restore brings the delivery back into effect.
	req = httptest.NewRequest(http.MethodPost, "/api/documents/OUT-2608-0001/restore", nil)
	resRec := httptest.NewRecorder()
	router.ServeHTTP(resRec, req)
	if resRec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resRec.Code, resRec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/documents/OUT-2608-0001", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	var detail struct {
		Document struct {
			DeletedAt *time.Time `json:"deletedAt"`
		} `json:"document"`
		Entries []struct {
			LotNumber string `json:"lotNumber"`
			Reason    string `json:"reason"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(getRec.Body).Decode(&detail); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if detail.Document.DeletedAt != nil {
		t.Fatalf("expected document active after restore")
	}
	// 2 original + 2 reversal + 2 restore entries.
	if len(detail.Entries) != 6 {
		t.Fatalf("expected 6 ledger entries, got %d", len(detail.Entries))
	}
}

func TestDocumentEndpointErrors(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/MISSING", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown ref, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/documents/MISSING/restore", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown ref, got %d", rec.Code)
	}

	rec = postJSON(t, router, "/api/deliveries", map[string]any{
		"totalQuantity": "100.00",
		"weightPerLot":  "50.00",
		"lotNumber":     "100A",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing product code, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/balances?lot=105A-100A", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed lot filter, got %d", rec.Code)
	}
}

func TestDoubleDeleteConflicts(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := postJSON(t, router, "/api/endorsements", map[string]any{
		"totalQuantity": "50.00",
		"weightPerLot":  "50.00",
		"lotNumber":     "100A",
		"productCode":   "FG-100",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/QCF-2608-0001", nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, req)
	if delRec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", delRec.Code)
	}

	delRec = httptest.NewRecorder()
	router.ServeHTTP(delRec, req.Clone(req.Context()))
	if delRec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on double delete, got %d", delRec.Code)
	}
}
