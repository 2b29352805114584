// Package render formats breakdown results for display: quantities rounded
// to two decimal places with thousands separators, and preview rows carrying
// a running total. Rounding happens here and only here; upstream arithmetic
// stays exact.
package render

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rlagrimas/lot-breakdown/internal/breakdown"
)

const displayPlaces = 2

// Quantity renders a decimal as "1,234.50".
func Quantity(d decimal.Decimal) string {
	fixed := d.StringFixed(displayPlaces)

	neg := strings.HasPrefix(fixed, "-")
	if neg {
		fixed = fixed[1:]
	}

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	b.WriteByte('.')
	b.WriteString(fracPart)
	return b.String()
}

// Row is one line of a breakdown preview table.
type Row struct {
	LotNumber    string `json:"lotNumber"`
	Quantity     string `json:"quantity"`
	RunningTotal string `json:"runningTotal"`
}

// Preview holds the formatted rows and grand total for a breakdown result.
type Preview struct {
	Rows  []Row  `json:"rows"`
	Total string `json:"total"`
}

// NewPreview formats a result the way the breakdown preview table shows it:
// full lots first, remainder last, each row with the total so far.
func NewPreview(result breakdown.Result) Preview {
	allocations := result.Allocations()
	rows := make([]Row, 0, len(allocations))

	running := decimal.Zero
	for _, a := range allocations {
		running = running.Add(a.Quantity)
		rows = append(rows, Row{
			LotNumber:    a.LotNumber,
			Quantity:     Quantity(a.Quantity),
			RunningTotal: Quantity(running),
		})
	}

	return Preview{Rows: rows, Total: Quantity(running)}
}
